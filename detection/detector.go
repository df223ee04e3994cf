package detection

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"go-firstresponder/geo"
	"go-firstresponder/types"
)

const (
	DistanceThresholdKM = 50.0 // Max distance (km) between neighbouring reports in a cluster
	MinClusterSize      = 2
)

// severityRank orders severities for picking the worst one in a cluster.
var severityRank = map[types.Severity]int{
	types.Critical:      5,
	types.High:          4,
	types.Medium:        3,
	types.Low:           2,
	types.Informational: 1,
}

// ClusterReports groups classified reports that are chained together by
// neighbours closer than thresholdKM. Clusters smaller than MinClusterSize are
// dropped. Results are ordered by distance from origin.
func ClusterReports(reports []types.EmergencyReport, origin types.Location, thresholdKM float64) []types.IncidentCluster {
	if thresholdKM <= 0 {
		thresholdKM = DistanceThresholdKM
	}

	// 1. Seeds are reports that carry a classification; seed order follows
	// severity so the worst incidents anchor their clusters.
	var seeds []int
	for i := range reports {
		if reports[i].Category == "" || reports[i].ID == "" {
			continue
		}
		seeds = append(seeds, i)
	}
	sort.SliceStable(seeds, func(a, b int) bool {
		return severityRank[reports[seeds[a]].Severity] > severityRank[reports[seeds[b]].Severity]
	})

	processed := make(map[int]bool)
	var clusters []types.IncidentCluster

	// 2. Breadth-first expansion around each unprocessed seed.
	for _, seed := range seeds {
		if processed[seed] {
			continue
		}

		var members []*types.EmergencyReport
		queue := []int{seed}
		queued := map[int]bool{seed: true}

		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]

			if !processed[current] {
				members = append(members, &reports[current])
				processed[current] = true
			}

			for _, neighbour := range seeds {
				if queued[neighbour] || processed[neighbour] {
					continue
				}
				dist := geo.Haversine(reports[current].Lat, reports[current].Lon, reports[neighbour].Lat, reports[neighbour].Lon)
				if dist <= thresholdKM {
					queued[neighbour] = true
					queue = append(queue, neighbour)
				}
			}
		}

		// 3. Build the cluster record.
		if len(members) >= MinClusterSize {
			clusters = append(clusters, createCluster(members, origin))
		}
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].DistanceKM < clusters[b].DistanceKM
	})
	return clusters
}

// aggregates clustered reports into an IncidentCluster.
func createCluster(members []*types.EmergencyReport, origin types.Location) types.IncidentCluster {
	first := members[0]
	cluster := types.IncidentCluster{
		ID:          uuid.NewString(),
		ReportIDs:   make([]string, 0, len(members)),
		ReportCount: len(members),
		BoundingBox: types.BoundingBox{
			MinLat: first.Lat, MaxLat: first.Lat,
			MinLon: first.Lon, MaxLon: first.Lon,
		},
		MaxSeverity: first.Severity,
	}

	var sumLat, sumLon float64
	categoryCounts := make(map[string]int)

	for _, r := range members {
		cluster.ReportIDs = append(cluster.ReportIDs, r.ID)

		if r.Lat < cluster.BoundingBox.MinLat {
			cluster.BoundingBox.MinLat = r.Lat
		}
		if r.Lat > cluster.BoundingBox.MaxLat {
			cluster.BoundingBox.MaxLat = r.Lat
		}
		if r.Lon < cluster.BoundingBox.MinLon {
			cluster.BoundingBox.MinLon = r.Lon
		}
		if r.Lon > cluster.BoundingBox.MaxLon {
			cluster.BoundingBox.MaxLon = r.Lon
		}

		sumLat += r.Lat
		sumLon += r.Lon
		categoryCounts[r.Category]++

		if severityRank[r.Severity] > severityRank[cluster.MaxSeverity] {
			cluster.MaxSeverity = r.Severity
		}
		updateTimestamps(&cluster, r.ReceivedAt)
	}

	count := float64(len(members))
	cluster.Lat = sumLat / count
	cluster.Lon = sumLon / count
	cluster.DominantCategory = dominantCategory(categoryCounts)
	cluster.DistanceKM = geo.Haversine(origin.Lat, origin.Lon, cluster.Lat, cluster.Lon)

	// Sort ReportIDs for consistency
	sort.Strings(cluster.ReportIDs)

	return cluster
}

// picks the most frequent category; ties go to the lexically smaller name.
func dominantCategory(counts map[string]int) string {
	best, bestCount := "", 0
	for cat, n := range counts {
		if n > bestCount || (n == bestCount && cat < best) {
			best, bestCount = cat, n
		}
	}
	return best
}

func updateTimestamps(cluster *types.IncidentCluster, at time.Time) {
	if at.IsZero() {
		return
	}
	if cluster.FirstReported.IsZero() || at.Before(cluster.FirstReported) {
		cluster.FirstReported = at
	}
	if at.After(cluster.LastReported) {
		cluster.LastReported = at
	}
}
