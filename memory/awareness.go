package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go-firstresponder/detection"
	"go-firstresponder/geo"
	"go-firstresponder/types"
)

const (
	AwarenessWindow    = 6 * time.Hour
	AwarenessMaxReport = 100
	DefaultRadiusKM    = 10.0

	trendWindow = 3 * time.Hour
)

// GetSituationalAwareness summarizes reports received in the last six hours,
// leaving out every report of the caller's own conversation.
// It never fails; without a report source or on error it returns empty values.
func (s *Store) GetSituationalAwareness(ctx context.Context, loc types.Location, radiusKM float64, conversationID string) types.SituationalAwareness {
	if radiusKM <= 0 {
		radiusKM = DefaultRadiusKM
	}
	sa := EmptyAwareness()
	if s.reports == nil {
		return sa
	}

	now := s.now()
	reports, err := s.reports.Recent(ctx, now.Add(-AwarenessWindow), AwarenessMaxReport)
	s.recorder.RecordMemoryOperation("awareness", err == nil)
	if err != nil {
		s.logger.Warn("failed to load recent reports", slog.String("error", err.Error()))
		return sa
	}
	return Summarize(othersOnly(reports, conversationID), loc, radiusKM, now)
}

func othersOnly(reports []types.EmergencyReport, conversationID string) []types.EmergencyReport {
	if conversationID == "" {
		return reports
	}
	others := make([]types.EmergencyReport, 0, len(reports))
	for _, r := range reports {
		if r.ID == conversationID || r.ParentID == conversationID {
			continue
		}
		others = append(others, r)
	}
	return others
}

// Summarize derives situational awareness from a set of reports.
func Summarize(reports []types.EmergencyReport, loc types.Location, radiusKM float64, now time.Time) types.SituationalAwareness {
	sa := EmptyAwareness()
	for _, r := range reports {
		if geo.Within(loc.Lat, loc.Lon, r.Lat, r.Lon, radiusKM) {
			sa.ActiveIncidents++
		}
		if r.Category != "" {
			sa.TrendingCategories[r.Category]++
		}
		if r.Severity.Valid() {
			sa.SeverityDistribution[r.Severity.Name()]++
		}
	}
	sa.GeographicClusters = detection.ClusterReports(reports, loc, detection.DistanceThresholdKM)
	if sa.GeographicClusters == nil {
		sa.GeographicClusters = []types.IncidentCluster{}
	}
	sa.TimePatterns = timePatterns(reports, now)
	sa.ResourceStrain = resourceStrain(reports)
	return sa
}

func EmptyAwareness() types.SituationalAwareness {
	return types.SituationalAwareness{
		TrendingCategories:   map[string]int{},
		SeverityDistribution: map[string]int{},
		GeographicClusters:   []types.IncidentCluster{},
		TimePatterns:         types.TimePatterns{PeakHours: []string{}, Trend: "stable"},
		ResourceStrain: types.ResourceStrain{
			StrainLevel:     "normal",
			Bottlenecks:     []string{},
			Recommendations: []string{},
		},
	}
}

// timePatterns reports the two busiest hours and compares the last three
// hours with the three before.
func timePatterns(reports []types.EmergencyReport, now time.Time) types.TimePatterns {
	tp := types.TimePatterns{PeakHours: []string{}, Trend: "stable"}
	if len(reports) == 0 {
		return tp
	}

	byHour := map[int]int{}
	recent, earlier := 0, 0
	for _, r := range reports {
		at := r.ReceivedAt.UTC()
		byHour[at.Hour()]++
		switch age := now.Sub(r.ReceivedAt); {
		case age < trendWindow:
			recent++
		case age < 2*trendWindow:
			earlier++
		}
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if byHour[hours[i]] != byHour[hours[j]] {
			return byHour[hours[i]] > byHour[hours[j]]
		}
		return hours[i] < hours[j]
	})
	for _, h := range hours[:min(2, len(hours))] {
		tp.PeakHours = append(tp.PeakHours, fmt.Sprintf("%02d:00-%02d:00", h, (h+1)%24))
	}

	switch {
	case recent > earlier:
		tp.Trend = "rising"
	case recent < earlier:
		tp.Trend = "falling"
	}
	return tp
}

func resourceStrain(reports []types.EmergencyReport) types.ResourceStrain {
	rs := types.ResourceStrain{StrainLevel: "normal", Bottlenecks: []string{}, Recommendations: []string{}}

	urgent := 0
	urgentByCategory := map[string]int{}
	for _, r := range reports {
		if !r.Severity.Urgent() {
			continue
		}
		urgent++
		if r.Category != "" {
			urgentByCategory[r.Category]++
		}
	}

	switch {
	case urgent >= 10:
		rs.StrainLevel = "high"
		rs.Recommendations = append(rs.Recommendations, "Expect longer response times; follow self-help instructions while waiting")
	case urgent >= 5:
		rs.StrainLevel = "elevated"
		rs.Recommendations = append(rs.Recommendations, "Keep emergency lines free for urgent calls")
	}

	categories := make([]string, 0, len(urgentByCategory))
	for c, n := range urgentByCategory {
		if n >= 3 {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	for _, c := range categories {
		rs.Bottlenecks = append(rs.Bottlenecks, fmt.Sprintf("%d urgent %s reports", urgentByCategory[c], c))
	}
	return rs
}
