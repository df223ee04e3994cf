package types

import "time"

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// IncidentCluster is a group of recent reports close to each other.
type IncidentCluster struct {
	ID               string      `json:"id"`
	Lat              float64     `json:"lat"` // centroid
	Lon              float64     `json:"lon"`
	ReportIDs        []string    `json:"report_ids"`
	ReportCount      int         `json:"report_count"`
	BoundingBox      BoundingBox `json:"bounding_box"`
	DominantCategory string      `json:"dominant_category"`
	MaxSeverity      Severity    `json:"max_severity"`
	FirstReported    time.Time   `json:"first_reported"`
	LastReported     time.Time   `json:"last_reported"`
	DistanceKM       float64     `json:"distance_km"` // from the queried location
}
