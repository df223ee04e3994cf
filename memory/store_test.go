package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-firstresponder/types"
)

type opRecorder struct {
	mu  sync.Mutex
	ops map[string][]bool
}

func (r *opRecorder) RecordMemoryOperation(op string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = map[string][]bool{}
	}
	r.ops[op] = append(r.ops[op], success)
}

type fakeReports struct {
	reports []types.EmergencyReport
	err     error
	since   time.Time
	limit   int
}

func (f *fakeReports) Recent(_ context.Context, since time.Time, limit int) ([]types.EmergencyReport, error) {
	f.since, f.limit = since, limit
	return f.reports, f.err
}

func openTestStore(t *testing.T, reports ReportSource) (*Store, *opRecorder) {
	t.Helper()
	rec := &opRecorder{}
	s, err := Open(Options{}, reports, rec, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, rec
}

var turin = types.Location{Lat: 45.0703, Lon: 7.6869}

func interactionFor(category string, sev types.Severity) types.InteractionContext {
	return types.InteractionContext{
		Message:  "help",
		Location: turin,
		Category: category,
		Severity: sev,
	}
}

func completedLog() types.ExecutionLog {
	return types.ExecutionLog{FinalStatus: types.StatusCompleted}
}

func TestStoreInteractionUpdatesAggregates(t *testing.T) {
	s, rec := openTestStore(t, nil)
	ctx := context.Background()
	plan := types.Plan{ImmediateActions: []types.Action{{Action: "Leave the building", Priority: 9}}}

	for i := 0; i < 3; i++ {
		s.StoreInteraction(ctx, fmt.Sprintf("r%d", i), interactionFor("Fire", types.High), plan, completedLog())
	}

	rc := s.GetRelevantContext(ctx, turin, "Fire", types.High)
	assert.Equal(t, 3, rc.CategoryInsights.TotalIncidents)
	assert.Equal(t, 3, rc.CategoryInsights.SuccessfulPlans)
	assert.Equal(t, 3, rc.CategoryInsights.CommonActions["Leave the building"])
	assert.Equal(t, 3, rc.LocationPatterns.IncidentCount)
	assert.Equal(t, 3, rc.LocationPatterns.Categories["Fire"])
	assert.Equal(t, 3, rc.LocationPatterns.Severities["HIGH"])
	assert.Len(t, rc.SimilarIncidents, 2)
	assert.Equal(t, 3, rc.RecentActivity.NearbyIncidents)
	assert.Equal(t, "elevated", rc.RecentActivity.ActivityLevel)
	assert.InDelta(t, 1.0, rc.Effectiveness.SuccessRate, 1e-9)
	assert.Equal(t, 3, rc.Effectiveness.SampleSize)

	assert.Equal(t, []bool{true, true, true}, rec.ops["store"])
}

func TestCategoryKeysIgnoreCase(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()
	s.StoreInteraction(ctx, "a", interactionFor("Fire", types.High), types.Plan{}, completedLog())
	s.StoreInteraction(ctx, "b", interactionFor("fire ", types.High), types.Plan{}, types.ExecutionLog{FinalStatus: types.StatusFailed})

	rc := s.GetRelevantContext(ctx, types.Location{Lat: 10, Lon: 10}, "FIRE", types.High)
	assert.Equal(t, 2, rc.CategoryInsights.TotalIncidents)
	assert.InDelta(t, 0.5, rc.Effectiveness.SuccessRate, 1e-9)
	assert.Len(t, rc.SimilarIncidents, 1, "only the category matches at another location")
}

func TestColdStoreDefaults(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	rc := s.GetRelevantContext(ctx, turin, "Flood", types.Medium)
	assert.Empty(t, rc.SimilarIncidents)
	assert.NotNil(t, rc.SimilarIncidents)
	assert.NotNil(t, rc.LocationPatterns.Categories)
	assert.NotNil(t, rc.CategoryInsights.CommonActions)
	assert.Equal(t, "normal", rc.RecentActivity.ActivityLevel)
	assert.Nil(t, rc.RecentActivity.LastIncident)
	assert.Zero(t, rc.Effectiveness.SuccessRate)

	history := s.GetInteractionHistory(ctx, 10)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	sa := s.GetSituationalAwareness(ctx, turin, 10, "")
	assert.Equal(t, EmptyAwareness(), sa)
}

func TestReadsDoNotMutate(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	s.GetRelevantContext(ctx, turin, "Fire", types.High)
	s.GetInteractionHistory(ctx, 0)
	rc := s.GetRelevantContext(ctx, turin, "Fire", types.High)
	assert.Empty(t, rc.SimilarIncidents)
}

func TestInteractionHistoryNewestFirstAndBounded(t *testing.T) {
	rec := &opRecorder{}
	s, err := Open(Options{HistorySize: 3}, nil, rec, nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		s.StoreInteraction(ctx, fmt.Sprintf("r%d", i), interactionFor("Fire", types.Low), types.Plan{}, completedLog())
	}

	history := s.GetInteractionHistory(ctx, 0)
	require.Len(t, history, 3)
	assert.Equal(t, "r4", history[0].ID)
	assert.Equal(t, "r2", history[2].ID)
	assert.Equal(t, LocationHash(turin), history[0].LocationHash)

	assert.Len(t, s.GetInteractionHistory(ctx, 2), 2)
}

func TestConcurrentStoresKeepEveryIncrement(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.StoreInteraction(ctx, fmt.Sprintf("c%d", i), interactionFor("Earthquake", types.Critical), types.Plan{}, completedLog())
		}(i)
	}
	wg.Wait()

	rc := s.GetRelevantContext(ctx, turin, "Earthquake", types.Critical)
	assert.Equal(t, n, rc.CategoryInsights.TotalIncidents)
	assert.Equal(t, n, rc.LocationPatterns.IncidentCount)
	assert.Len(t, s.GetInteractionHistory(ctx, 0), n)
}

func TestRecordFeedback(t *testing.T) {
	s, _ := openTestStore(t, nil)
	ctx := context.Background()
	s.StoreInteraction(ctx, "r1", interactionFor("Flood", types.Medium), types.Plan{}, completedLog())

	require.NoError(t, s.RecordFeedback(ctx, "r1", types.Feedback{Helpful: true}))
	require.NoError(t, s.RecordFeedback(ctx, "r1", types.Feedback{Rating: 2}))

	rc := s.GetRelevantContext(ctx, turin, "Flood", types.Medium)
	assert.Equal(t, 2, rc.CategoryInsights.FeedbackCount)
	assert.Equal(t, 1, rc.CategoryInsights.PositiveFeedback)
	assert.InDelta(t, 0.5, rc.Effectiveness.FeedbackRate, 1e-9)

	err := s.RecordFeedback(ctx, "missing", types.Feedback{Helpful: true})
	assert.True(t, errors.Is(err, ErrUnknownInteraction))
}

func TestLocationHash(t *testing.T) {
	a := LocationHash(types.Location{Lat: 45.07031, Lon: 7.68689})
	b := LocationHash(types.Location{Lat: 45.07049, Lon: 7.68711})
	c := LocationHash(types.Location{Lat: 45.08, Lon: 7.69})
	assert.Len(t, a, 8)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCollectGarbageInMemoryIsNoop(t *testing.T) {
	s, _ := openTestStore(t, nil)
	assert.NoError(t, s.CollectGarbage())
}
