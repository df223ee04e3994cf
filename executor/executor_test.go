package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-firstresponder/types"
)

type actionRecorder struct {
	calls map[string][]bool
}

func (r *actionRecorder) RecordActionExecution(actionType string, success bool) {
	if r.calls == nil {
		r.calls = map[string][]bool{}
	}
	r.calls[actionType] = append(r.calls[actionType], success)
}

type fakeTool struct {
	name    string
	match   string
	err     error
	panics  bool
	summary string
}

func (f fakeTool) Name() string { return f.name }

func (f fakeTool) Matches(action string) bool { return f.match == "" || action == f.match }

func (f fakeTool) Run(context.Context, types.Action, ExecutionContext) (types.ExecutionResult, error) {
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return types.ExecutionResult{}, f.err
	}
	return types.ExecutionResult{Summary: f.summary}, nil
}

func planOf(actions ...types.Action) types.Plan {
	return types.Plan{ImmediateActions: actions}
}

func TestExecuteRunsInPriorityOrder(t *testing.T) {
	plan := planOf(
		types.Action{Action: "Check on neighbors", Priority: 3},
		types.Action{Action: "Call 112 now", Priority: 10},
		types.Action{Action: "Watch for earthquake aftershocks", Priority: 7},
	)
	ec := ExecutionContext{
		Severity: types.High,
		Feed:     types.FeedContext{Quakes: []types.SeismicEvent{{Magnitude: 5.1, Place: "near Turin"}}},
	}

	log := New().Execute(context.Background(), plan, ec)
	require.Len(t, log.ExecutedActions, 3)
	assert.Equal(t, "emergency_contact", log.ExecutedActions[0].ActionType)
	assert.Equal(t, "disaster_check", log.ExecutedActions[1].ActionType)
	assert.Equal(t, "local_activity", log.ExecutedActions[2].ActionType)
	assert.Equal(t, types.StatusCompleted, log.FinalStatus)
	assert.Contains(t, log.ExecutedActions[1].Result.Summary, "Earthquake activity detected")
}

func TestExecuteIsolatesFailures(t *testing.T) {
	rec := &actionRecorder{}
	e := New(
		WithRecorder(rec),
		WithTools(
			fakeTool{name: "broken", match: "fail", err: errors.New("tool down")},
			fakeTool{name: "explosive", match: "panic", panics: true},
			fakeTool{name: "fine", summary: "Emergency area checked"},
		),
	)
	plan := planOf(
		types.Action{Action: "fail", Priority: 9},
		types.Action{Action: "panic", Priority: 8},
		types.Action{Action: "ok", Priority: 7},
	)

	log := e.Execute(context.Background(), plan, ExecutionContext{})
	require.Len(t, log.ExecutedActions, 3)

	assert.Equal(t, types.StatusFailed, log.ExecutedActions[0].Status)
	assert.Nil(t, log.ExecutedActions[0].Result)
	assert.Equal(t, "tool down", log.ExecutedActions[0].Error)

	assert.Equal(t, types.StatusFailed, log.ExecutedActions[1].Status)
	assert.Nil(t, log.ExecutedActions[1].Result)
	assert.Contains(t, log.ExecutedActions[1].Error, "panicked")

	assert.Equal(t, types.StatusCompleted, log.ExecutedActions[2].Status)
	assert.Equal(t, types.StatusPartial, log.FinalStatus)

	executed, ok, failed := log.Counts()
	assert.Equal(t, []int{3, 1, 2}, []int{executed, ok, failed})
	assert.Equal(t, []bool{false}, rec.calls["broken"])
	assert.Equal(t, []bool{false}, rec.calls["explosive"])
	assert.Equal(t, []bool{true}, rec.calls["fine"])
}

func TestExecuteAllFailed(t *testing.T) {
	e := New(WithTools(fakeTool{name: "broken", err: errors.New("nope")}))
	log := e.Execute(context.Background(), planOf(types.Action{Action: "x", Priority: 1}), ExecutionContext{})
	assert.Equal(t, types.StatusFailed, log.FinalStatus)
}

func TestExecuteSkipsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	log := New().Execute(ctx, planOf(types.Action{Action: "Call 112", Priority: 10}), ExecutionContext{})
	require.Len(t, log.ExecutedActions, 1)
	assert.Equal(t, types.StatusSkipped, log.ExecutedActions[0].Status)
	assert.Equal(t, types.StatusFailed, log.FinalStatus)
}

func TestDefaultToolSummaries(t *testing.T) {
	ctx := context.Background()
	tools := DefaultTools()
	find := func(name string) Tool {
		for _, tl := range tools {
			if tl.Name() == name {
				return tl
			}
		}
		t.Fatalf("tool %s not found", name)
		return nil
	}

	res, err := find("disaster_check").Run(ctx, types.Action{}, ExecutionContext{
		Feed: types.FeedContext{Hazards: []types.HazardEvent{{EventName: "Po flood", AlertLevel: "Orange"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Active disaster alert for your area: Po flood (orange)", res.Summary)

	res, err = find("local_activity").Run(ctx, types.Action{}, ExecutionContext{
		Awareness: types.SituationalAwareness{ActiveIncidents: 4, ResourceStrain: types.ResourceStrain{StrainLevel: "high"}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Summary, "4 other emergency reports")
	assert.Contains(t, res.Summary, "slower")

	res, err = find("weather").Run(ctx, types.Action{}, ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, true, res.Data["simulated"])

	assert.True(t, find("analysis").Matches("anything at all"))
}
