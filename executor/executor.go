// Package executor runs the immediate actions of a plan against a set of
// tools and records what happened.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"go-firstresponder/types"
)

// Recorder receives per-action outcomes.
type Recorder interface {
	RecordActionExecution(actionType string, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordActionExecution(string, bool) {}

// ExecutionContext is the information tools may consult.
type ExecutionContext struct {
	Message   string
	Location  types.Location
	Category  string
	Severity  types.Severity
	Language  string
	Feed      types.FeedContext
	Awareness types.SituationalAwareness
}

type Executor struct {
	tools    []Tool
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*Executor)

// WithTools replaces the default tool set.
func WithTools(tools ...Tool) Option {
	return func(e *Executor) { e.tools = tools }
}

func WithRecorder(r Recorder) Option {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{
		tools:    DefaultTools(),
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the plan's immediate actions in priority order. A failing or
// panicking action is recorded and does not stop the ones after it.
func (e *Executor) Execute(ctx context.Context, plan types.Plan, ec ExecutionContext) types.ExecutionLog {
	actions := plan.PrioritizedImmediate()
	log := types.ExecutionLog{ExecutedActions: make([]types.ExecutionRecord, 0, len(actions))}

	for _, action := range actions {
		tool := e.toolFor(action.Action)
		rec := types.ExecutionRecord{Action: action}
		if tool == nil {
			rec.ActionType = "none"
			rec.Status = types.StatusSkipped
			rec.Error = "no tool matches action"
			log.ExecutedActions = append(log.ExecutedActions, rec)
			continue
		}
		rec.ActionType = tool.Name()

		if ctx.Err() != nil {
			rec.Status = types.StatusSkipped
			rec.Error = ctx.Err().Error()
			log.ExecutedActions = append(log.ExecutedActions, rec)
			continue
		}

		result, err := runIsolated(ctx, tool, action, ec)
		if err != nil {
			rec.Status = types.StatusFailed
			rec.Error = err.Error()
			e.logger.Warn("action failed",
				slog.String("action", action.Action),
				slog.String("tool", tool.Name()),
				slog.String("error", err.Error()))
		} else {
			rec.Status = types.StatusCompleted
			rec.Result = &result
		}
		e.recorder.RecordActionExecution(tool.Name(), err == nil)
		log.ExecutedActions = append(log.ExecutedActions, rec)
	}

	log.FinalStatus = finalStatus(log)
	executed, ok, failed := log.Counts()
	e.logger.Info("plan executed",
		slog.Int("executed", executed),
		slog.Int("successful", ok),
		slog.Int("failed", failed),
		slog.String("final_status", string(log.FinalStatus)))
	return log
}

func (e *Executor) toolFor(action string) Tool {
	for _, t := range e.tools {
		if t.Matches(action) {
			return t
		}
	}
	return nil
}

func runIsolated(ctx context.Context, tool Tool, action types.Action, ec ExecutionContext) (result types.ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = types.ExecutionResult{}
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), r)
		}
	}()
	return tool.Run(ctx, action, ec)
}

// finalStatus is completed when every action succeeded, failed when none
// did and partial otherwise.
func finalStatus(log types.ExecutionLog) types.ExecutionStatus {
	total, ok, _ := log.Counts()
	switch {
	case ok == total:
		return types.StatusCompleted
	case ok == 0:
		return types.StatusFailed
	default:
		return types.StatusPartial
	}
}
