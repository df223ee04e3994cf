package db

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"go-firstresponder/types"
)

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	gdb, err := Connect(SQLConfig{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)

	store, err := NewSQLStore(gdb)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newReport(msg string) *types.EmergencyReport {
	return &types.EmergencyReport{
		Message:  msg,
		Lat:      45.07,
		Lon:      7.69,
		Language: "en",
	}
}

func TestCreateAssignsStarterFields(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := newReport("There was an earthquake")
	require.NoError(t, store.Create(ctx, r))

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 1, r.Step)
	assert.True(t, r.IsStarter)
	assert.Equal(t, types.Active, r.ConversationStatus)

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "There was an earthquake", got.Message)
	assert.Equal(t, types.TextMessage, got.MessageType)
}

func TestCreateFollowUpStepsIncrease(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	starter := newReport("fire in the kitchen")
	require.NoError(t, store.Create(ctx, starter))

	second := newReport("it is spreading")
	require.NoError(t, store.CreateFollowUp(ctx, starter.ID, second))
	assert.Equal(t, 2, second.Step)
	assert.Equal(t, starter.ID, second.ParentID)
	assert.False(t, second.IsStarter)

	// Replying to a follow-up still attaches to the starter.
	third := newReport("we are outside now")
	require.NoError(t, store.CreateFollowUp(ctx, second.ID, third))
	assert.Equal(t, 3, third.Step)
	assert.Equal(t, starter.ID, third.ParentID)

	list, err := store.ListByParent(ctx, starter.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, third.ID, list[1].ID)
}

func TestCreateFollowUpConcurrentStepsAreUnique(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	starter := newReport("flooding")
	require.NoError(t, store.Create(ctx, starter))

	const n = 8
	var wg sync.WaitGroup
	steps := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := newReport("more water")
			errs[i] = store.CreateFollowUp(ctx, starter.ID, r)
			steps[i] = r.Step
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Ints(steps)
	for i, s := range steps {
		assert.Equal(t, i+2, s)
	}
}

func TestCreateFollowUpUnknownParent(t *testing.T) {
	store := setupTestStore(t)
	err := store.CreateFollowUp(context.Background(), "missing", newReport("hello"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := newReport("smoke")
	require.NoError(t, store.Create(ctx, r))

	now := time.Now().UTC()
	r.Category = "Fire"
	r.Severity = types.High
	r.Instructions = []string{"Leave the building", "Call 112"}
	r.ProcessedAt = &now
	r.ConversationStatus = types.Completed
	require.NoError(t, store.Update(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fire", got.Category)
	assert.Equal(t, types.High, got.Severity)
	assert.Equal(t, []string{"Leave the building", "Call 112"}, got.Instructions)
	assert.Equal(t, types.Completed, got.ConversationStatus)
	require.NotNil(t, got.ProcessedAt)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, &types.EmergencyReport{ID: "nope"}), ErrNotFound)
}

func TestReviseTouchesOnlyAssessmentColumns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	starter := newReport("smoke on the stairs")
	starter.Category = "Fire"
	starter.Severity = types.Medium
	require.NoError(t, store.Create(ctx, starter))

	// A stale copy read before any revision.
	stale, err := store.Get(ctx, starter.ID)
	require.NoError(t, err)

	require.NoError(t, store.Revise(ctx, starter.ID, StarterRevision{Complete: true}))
	require.NoError(t, store.Revise(ctx, starter.ID, StarterRevision{Severity: stale.Severity, Category: "Building fire"}))
	require.NoError(t, store.Revise(ctx, starter.ID, StarterRevision{}))

	got, err := store.Get(ctx, starter.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Completed, got.ConversationStatus, "a later revision keeps the completed status")
	assert.Equal(t, "Building fire", got.Category)
	assert.Equal(t, types.Medium, got.Severity)
	assert.Equal(t, "smoke on the stairs", got.Message)

	err = store.Revise(ctx, "missing", StarterRevision{Complete: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, age := range []time.Duration{10 * time.Hour, 2 * time.Hour, time.Hour, 30 * time.Minute} {
		r := newReport("report")
		r.ID = NewID()
		r.Message = []string{"old", "b", "c", "d"}[i]
		r.ReceivedAt = base.Add(-age)
		require.NoError(t, store.Create(ctx, r))
	}

	recent, err := store.Recent(ctx, base.Add(-6*time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Message)
	assert.Equal(t, "b", recent[2].Message)

	limited, err := store.Recent(ctx, base.Add(-6*time.Hour), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Warn, ParseLogLevel("WARN"))
	assert.Equal(t, logger.Info, ParseLogLevel("info"))
	assert.Equal(t, logger.Silent, ParseLogLevel(""))
}

func TestPing(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
