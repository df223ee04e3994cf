package memory

import (
	"context"
	"log/slog"
	"time"

	"go-firstresponder/types"
)

const recentActivityWindow = 6 * time.Hour

// GetRelevantContext gathers what memory knows about similar emergencies.
// Every part falls back to an empty default on its own.
func (s *Store) GetRelevantContext(ctx context.Context, loc types.Location, category string, severity types.Severity) types.RelevantContext {
	rc := types.RelevantContext{
		SimilarIncidents: []types.SimilarIncident{},
		LocationPatterns: emptyLocationPattern(),
		CategoryInsights: emptyCategoryLearning(),
	}
	ok := true

	hash := LocationHash(loc)
	var pattern types.LocationPattern
	if found, err := s.get(locationPrefix+hash, &pattern); err != nil {
		ok = false
		s.logger.Warn("failed to read location pattern", slog.String("error", err.Error()))
	} else if found {
		rc.LocationPatterns = pattern
		p := pattern
		rc.SimilarIncidents = append(rc.SimilarIncidents, types.SimilarIncident{Type: "location_match", Location: &p})
	}

	var learning types.CategoryLearning
	if found, err := s.get(categoryKey(category), &learning); err != nil {
		ok = false
		s.logger.Warn("failed to read category learning", slog.String("error", err.Error()))
	} else if found {
		rc.CategoryInsights = learning
		l := learning
		rc.SimilarIncidents = append(rc.SimilarIncidents, types.SimilarIncident{Type: "category_match", Category: &l})
	}

	rc.RecentActivity = s.recentActivity(hash)
	rc.Effectiveness = effectiveness(rc.CategoryInsights)

	s.recorder.RecordMemoryOperation("retrieve", ok)
	return rc
}

// recentActivity counts history entries in the same location cell.
func (s *Store) recentActivity(hash string) types.RecentActivity {
	ra := types.RecentActivity{ActivityLevel: "normal"}
	var history []types.InteractionSummary
	if _, err := s.get(historyKey, &history); err != nil {
		s.logger.Warn("failed to read interaction history", slog.String("error", err.Error()))
		return ra
	}

	cutoff := s.now().Add(-recentActivityWindow)
	for _, h := range history {
		if h.LocationHash != hash || h.Timestamp.Before(cutoff) {
			continue
		}
		ra.NearbyIncidents++
		if ra.LastIncident == nil || h.Timestamp.After(*ra.LastIncident) {
			ts := h.Timestamp
			ra.LastIncident = &ts
		}
	}
	switch {
	case ra.NearbyIncidents >= 5:
		ra.ActivityLevel = "high"
	case ra.NearbyIncidents >= 2:
		ra.ActivityLevel = "elevated"
	}
	return ra
}

func effectiveness(l types.CategoryLearning) types.EffectivenessData {
	e := types.EffectivenessData{SampleSize: l.TotalIncidents}
	if l.TotalIncidents > 0 {
		e.SuccessRate = float64(l.SuccessfulPlans) / float64(l.TotalIncidents)
	}
	if l.FeedbackCount > 0 {
		e.FeedbackRate = float64(l.PositiveFeedback) / float64(l.FeedbackCount)
	}
	return e
}

func emptyLocationPattern() types.LocationPattern {
	return types.LocationPattern{Categories: map[string]int{}, Severities: map[string]int{}}
}

func emptyCategoryLearning() types.CategoryLearning {
	return types.CategoryLearning{CommonActions: map[string]int{}}
}
