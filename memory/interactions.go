package memory

import (
	"context"
	"fmt"
	"log/slog"

	"go-firstresponder/types"
)

// StoreInteraction records an interaction and folds it into the history,
// location and category aggregates. Each aggregate is updated in its own
// transaction. Failures are logged and never returned.
func (s *Store) StoreInteraction(ctx context.Context, id string, ictx types.InteractionContext, plan types.Plan, log types.ExecutionLog) {
	now := s.now().UTC()
	interaction := types.Interaction{
		ID:           id,
		Timestamp:    now,
		Context:      ictx,
		Plan:         plan,
		ExecutionLog: log,
		LocationHash: LocationHash(ictx.Location),
		Category:     ictx.Category,
		Severity:     ictx.Severity,
	}

	err := s.storeInteraction(interaction)
	s.recorder.RecordMemoryOperation("store", err == nil)
	if err != nil {
		s.logger.Error("failed to store interaction",
			slog.String("id", id),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("stored interaction in memory", slog.String("id", id))
}

func (s *Store) storeInteraction(in types.Interaction) error {
	if err := s.set(interactionPrefix+in.ID, in); err != nil {
		return fmt.Errorf("store interaction: %w", err)
	}

	summary := types.InteractionSummary{
		ID:           in.ID,
		Timestamp:    in.Timestamp,
		Category:     in.Category,
		Severity:     in.Severity,
		LocationHash: in.LocationHash,
	}
	err := modify(s, historyKey, func(h *[]types.InteractionSummary, _ bool) {
		next := make([]types.InteractionSummary, 0, len(*h)+1)
		next = append(next, summary)
		next = append(next, *h...)
		if len(next) > s.historySize {
			next = next[:s.historySize]
		}
		*h = next
	})
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}

	err = modify(s, locationPrefix+in.LocationHash, func(p *types.LocationPattern, found bool) {
		if !found {
			p.FirstSeen = in.Timestamp
		}
		if p.Categories == nil {
			p.Categories = map[string]int{}
		}
		if p.Severities == nil {
			p.Severities = map[string]int{}
		}
		p.IncidentCount++
		p.LastSeen = in.Timestamp
		p.Categories[in.Category]++
		p.Severities[in.Severity.Name()]++
	})
	if err != nil {
		return fmt.Errorf("update location pattern: %w", err)
	}

	err = modify(s, categoryKey(in.Category), func(l *types.CategoryLearning, _ bool) {
		if l.CommonActions == nil {
			l.CommonActions = map[string]int{}
		}
		l.TotalIncidents++
		if in.ExecutionLog.FinalStatus == types.StatusCompleted {
			l.SuccessfulPlans++
		}
		for _, a := range in.Plan.ImmediateActions {
			l.CommonActions[a.Action]++
		}
	})
	if err != nil {
		return fmt.Errorf("update category learning: %w", err)
	}
	return nil
}

// Interaction returns a stored interaction.
func (s *Store) Interaction(ctx context.Context, id string) (types.Interaction, bool) {
	var in types.Interaction
	found, err := s.get(interactionPrefix+id, &in)
	if err != nil {
		s.logger.Warn("failed to read interaction", slog.String("id", id), slog.String("error", err.Error()))
		return types.Interaction{}, false
	}
	return in, found
}

// GetInteractionHistory returns the rolling history newest first, truncated
// to limit when limit > 0.
func (s *Store) GetInteractionHistory(ctx context.Context, limit int) []types.InteractionSummary {
	var history []types.InteractionSummary
	_, err := s.get(historyKey, &history)
	s.recorder.RecordMemoryOperation("history", err == nil)
	if err != nil {
		s.logger.Warn("failed to read interaction history", slog.String("error", err.Error()))
		return []types.InteractionSummary{}
	}
	if history == nil {
		history = []types.InteractionSummary{}
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history
}

// RecordFeedback stores a citizen's rating of an interaction and updates the
// feedback counters of its category.
func (s *Store) RecordFeedback(ctx context.Context, id string, fb types.Feedback) error {
	in, found := s.Interaction(ctx, id)
	if !found {
		s.recorder.RecordMemoryOperation("feedback", false)
		return fmt.Errorf("feedback for %s: %w", id, ErrUnknownInteraction)
	}
	if fb.At.IsZero() {
		fb.At = s.now().UTC()
	}

	err := s.set(feedbackPrefix+id, fb)
	if err == nil {
		err = modify(s, categoryKey(in.Category), func(l *types.CategoryLearning, _ bool) {
			if l.CommonActions == nil {
				l.CommonActions = map[string]int{}
			}
			l.FeedbackCount++
			if fb.Positive() {
				l.PositiveFeedback++
			}
		})
	}
	s.recorder.RecordMemoryOperation("feedback", err == nil)
	if err != nil {
		return fmt.Errorf("record feedback for %s: %w", id, err)
	}
	s.logger.Info("learned from feedback", slog.String("id", id), slog.String("category", in.Category))
	return nil
}
