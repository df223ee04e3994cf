package db

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"go-firstresponder/types"
)

// ErrNotFound is returned when a report id does not exist.
var ErrNotFound = errors.New("report not found")

// ReportStore persists emergency reports and their conversation linkage.
type ReportStore interface {
	// Create stores a conversation starter: step 1, no parent.
	Create(ctx context.Context, r *types.EmergencyReport) error
	// CreateFollowUp stores r as the next step of the conversation that
	// parentID belongs to. The step is assigned atomically and ParentID is
	// set to the conversation starter.
	CreateFollowUp(ctx context.Context, parentID string, r *types.EmergencyReport) error
	Update(ctx context.Context, r *types.EmergencyReport) error
	// Revise writes only the assessment columns named by rev, so concurrent
	// revisions of one starter do not overwrite each other.
	Revise(ctx context.Context, id string, rev StarterRevision) error
	Get(ctx context.Context, id string) (*types.EmergencyReport, error)
	// ListByParent returns the follow-ups of a starter ordered by step.
	ListByParent(ctx context.Context, starterID string) ([]types.EmergencyReport, error)
	// Recent returns reports received since the given time, newest first.
	Recent(ctx context.Context, since time.Time, limit int) ([]types.EmergencyReport, error)
	Ping(ctx context.Context) error
	Close() error
}

// StarterRevision is the assessment change a follow-up makes to its
// conversation starter. Zero fields are left untouched.
type StarterRevision struct {
	Severity types.Severity
	Category string
	Complete bool
}

func (r StarterRevision) IsZero() bool {
	return !r.Severity.Valid() && r.Category == "" && !r.Complete
}

// NewID returns a time-ordered report id.
func NewID() string {
	return ulid.Make().String()
}

func prepareStarter(r *types.EmergencyReport) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now()
	}
	r.ReceivedAt = r.ReceivedAt.UTC()
	if r.MessageType == "" {
		r.MessageType = types.TextMessage
	}
	r.ParentID = ""
	r.Step = 1
	r.IsStarter = true
	if r.ConversationStatus == "" {
		r.ConversationStatus = types.Active
	}
}

func prepareFollowUp(r *types.EmergencyReport, starterID string, step int) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now()
	}
	r.ReceivedAt = r.ReceivedAt.UTC()
	if r.MessageType == "" {
		r.MessageType = types.TextMessage
	}
	r.ParentID = starterID
	r.Step = step
	r.IsStarter = false
	r.ConversationStatus = types.Active
}

// starterOf resolves the conversation starter a report belongs to.
func starterOf(r *types.EmergencyReport) string {
	if r.ParentID != "" {
		return r.ParentID
	}
	return r.ID
}
