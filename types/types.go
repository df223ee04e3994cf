package types

import "time"

// SeismicEvent is one earthquake from the seismic feed.
type SeismicEvent struct {
	ID        string    `json:"id"`
	Magnitude float64   `json:"magnitude"`
	Place     string    `json:"place"`
	Time      time.Time `json:"time"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	DepthKM   float64   `json:"depth_km"`
}

// HazardEvent is one multi-hazard alert. HasCoordinates is false for entries
// recovered from the syndication feed without a position.
type HazardEvent struct {
	ID             string  `json:"id"`
	EventName      string  `json:"event_name"`
	EventType      string  `json:"event_type"`
	AlertLevel     string  `json:"alert_level"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	HasCoordinates bool    `json:"has_coordinates"`
	Source         string  `json:"source"`
}

// FeedContext is everything the feed layer knows about a location.
type FeedContext struct {
	Quakes     []SeismicEvent `json:"quakes"`
	Hazards    []HazardEvent  `json:"hazards"`
	PlaceLabel string         `json:"place_label,omitempty"`
	Snippet    string         `json:"snippet"`
}
