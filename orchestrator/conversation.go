package orchestrator

import (
	"context"
	"fmt"

	"go-firstresponder/db"
	"go-firstresponder/types"
)

// loadConversation rebuilds the turns of a conversation before the current
// report. The current report is never part of its own history.
func (o *Orchestrator) loadConversation(ctx context.Context, current *types.EmergencyReport) (*types.ConversationHistory, error) {
	starter, err := o.store.Get(ctx, current.ParentID)
	if err != nil {
		return nil, fmt.Errorf("load conversation starter: %w", err)
	}
	followUps, err := o.store.ListByParent(ctx, starter.ID)
	if err != nil {
		return nil, fmt.Errorf("load follow-ups: %w", err)
	}

	h := &types.ConversationHistory{
		StarterID:       starter.ID,
		Step:            current.Step,
		Turns:           []types.ConversationTurn{turnOf(starter)},
		CurrentSeverity: starter.Severity,
		CurrentCategory: starter.Category,
		Status:          starter.ConversationStatus,
		SessionID:       starter.SessionID,
	}
	for i := range followUps {
		r := &followUps[i]
		if r.ID == current.ID || r.Step >= current.Step {
			continue
		}
		h.Turns = append(h.Turns, turnOf(r))
	}
	return h, nil
}

func turnOf(r *types.EmergencyReport) types.ConversationTurn {
	return types.ConversationTurn{
		Step:      r.Step,
		Message:   r.Message,
		Category:  r.Category,
		Severity:  r.Severity,
		Timestamp: r.ReceivedAt,
	}
}

// reviseStarter applies the outcome of a follow-up to the conversation
// starter. It runs after the follow-up itself has been written.
func (o *Orchestrator) reviseStarter(ctx context.Context, starterID string, d types.ConversationDirective) error {
	rev := db.StarterRevision{
		Category: d.CategoryUpdate,
		Complete: d.ConversationComplete,
	}
	if d.SeverityUpdate.Valid() {
		rev.Severity = d.SeverityUpdate
	}
	if rev.IsZero() {
		return nil
	}
	if err := o.store.Revise(ctx, starterID, rev); err != nil {
		return fmt.Errorf("revise starter: %w", err)
	}
	return nil
}
