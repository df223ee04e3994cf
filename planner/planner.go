// Package planner decomposes a classified emergency into a structured plan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"go-firstresponder/llm"
	"go-firstresponder/types"
)

const (
	MinPriority = 1
	MaxPriority = 10
)

// Recorder receives the outcome of every planning call.
type Recorder interface {
	RecordPlanGeneration(completeness int, success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordPlanGeneration(int, bool) {}

// Request is everything the planner knows about an emergency.
type Request struct {
	Message  string
	Location types.Location
	Severity types.Severity
	Category string
	Language string
	// History is nil for the first message of a conversation.
	History *types.ConversationHistory
}

type Planner struct {
	gen      llm.Generator
	recorder Recorder
	logger   *slog.Logger
}

func New(gen llm.Generator, recorder Recorder, logger *slog.Logger) *Planner {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{gen: gen, recorder: recorder, logger: logger}
}

// Plan asks the generator for a plan. Any failure, including an invalid
// plan, returns FallbackPlan. Plan never returns an empty plan.
func (p *Planner) Plan(ctx context.Context, req Request) types.Plan {
	plan, err := p.generate(ctx, req)
	if err != nil {
		p.logger.Error("planning failed, using fallback plan",
			slog.String("category", req.Category),
			slog.String("error", err.Error()))
		fallback := FallbackPlan()
		p.recorder.RecordPlanGeneration(fallback.Completeness(), false)
		return fallback
	}

	p.recorder.RecordPlanGeneration(plan.Completeness(), true)
	p.logger.Info("emergency plan generated",
		slog.String("category", req.Category),
		slog.Float64("lat", req.Location.Lat),
		slog.Float64("lon", req.Location.Lon),
		slog.Int("completeness", plan.Completeness()))
	return plan
}

func (p *Planner) generate(ctx context.Context, req Request) (types.Plan, error) {
	if p.gen == nil {
		return types.Plan{}, fmt.Errorf("no generator configured")
	}
	raw, err := p.gen.Generate(ctx, BuildPrompt(req))
	if err != nil {
		return types.Plan{}, fmt.Errorf("generate plan: %w", err)
	}
	plan, err := ParsePlan(raw)
	if err != nil {
		return types.Plan{}, err
	}
	if req.History == nil {
		// A first message has nothing to revise.
		plan.ConversationManagement.SeverityUpdate = ""
		plan.ConversationManagement.CategoryUpdate = ""
	}
	return plan, nil
}

// FallbackPlan is the deterministic plan used whenever generation fails.
func FallbackPlan() types.Plan {
	return types.Plan{
		ImmediateActions: []types.Action{{
			Action:        "Contact emergency services",
			Priority:      MaxPriority,
			EstimatedTime: "immediate",
			Responsible:   "user",
		}},
		FollowUpActions: []types.Action{},
		ResourcesNeeded: []types.Resource{{
			Resource: "Emergency services",
			Quantity: "1",
			Urgency:  "high",
		}},
		MonitoringTasks: []types.MonitoringTask{{
			Task:      "Monitor situation",
			Frequency: "continuous",
			Duration:  "until resolved",
		}},
		ConversationManagement: types.ConversationDirective{ConversationComplete: true},
		Fallback:               true,
	}
}

type rawAction struct {
	Action        string `json:"action"`
	Priority      any    `json:"priority"`
	EstimatedTime string `json:"estimated_time"`
	Responsible   string `json:"responsible"`
}

type rawDirective struct {
	NeedsFollowUp        bool   `json:"needs_follow_up"`
	FollowUpQuestion     string `json:"follow_up_question"`
	ConversationComplete *bool  `json:"conversation_complete"`
	SeverityUpdate       string `json:"severity_update"`
	CategoryUpdate       string `json:"category_update"`
	ReasonForFollowUp    string `json:"reason_for_follow_up"`
}

type rawPlan struct {
	ImmediateActions       []rawAction            `json:"immediate_actions"`
	FollowUpActions        []rawAction            `json:"followup_actions"`
	ResourcesNeeded        []types.Resource       `json:"resources_needed"`
	MonitoringTasks        []types.MonitoringTask `json:"monitoring_tasks"`
	ConversationManagement *rawDirective          `json:"conversation_management"`
}

// ParsePlan decodes and validates generator output. The plan must have at
// least one immediate action, every action needs text and a priority in
// 1..10.
func ParsePlan(text string) (types.Plan, error) {
	payload := llm.ExtractJSON(text)
	if payload == "" {
		return types.Plan{}, fmt.Errorf("no json object in plan output")
	}
	var raw rawPlan
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return types.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(raw.ImmediateActions) == 0 {
		return types.Plan{}, fmt.Errorf("plan has no immediate actions")
	}

	immediate, err := convertActions(raw.ImmediateActions)
	if err != nil {
		return types.Plan{}, fmt.Errorf("immediate actions: %w", err)
	}
	followUp, err := convertActions(raw.FollowUpActions)
	if err != nil {
		return types.Plan{}, fmt.Errorf("followup actions: %w", err)
	}

	plan := types.Plan{
		ImmediateActions:       immediate,
		FollowUpActions:        followUp,
		ResourcesNeeded:        nonNil(raw.ResourcesNeeded),
		MonitoringTasks:        nonNil(raw.MonitoringTasks),
		ConversationManagement: convertDirective(raw.ConversationManagement),
	}
	return plan, nil
}

func convertActions(in []rawAction) ([]types.Action, error) {
	out := make([]types.Action, 0, len(in))
	for i, a := range in {
		text := strings.TrimSpace(a.Action)
		if text == "" {
			return nil, fmt.Errorf("action %d has no text", i)
		}
		prio, err := parsePriority(a.Priority)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, types.Action{
			Action:        text,
			Priority:      prio,
			EstimatedTime: a.EstimatedTime,
			Responsible:   a.Responsible,
		})
	}
	return out, nil
}

func parsePriority(v any) (int, error) {
	var f float64
	switch p := v.(type) {
	case float64:
		f = p
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, fmt.Errorf("priority %q is not a number", p)
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("priority missing")
	default:
		return 0, fmt.Errorf("priority has unexpected type %T", v)
	}
	if f != math.Trunc(f) || f < MinPriority || f > MaxPriority {
		return 0, fmt.Errorf("priority %v outside %d..%d", f, MinPriority, MaxPriority)
	}
	return int(f), nil
}

func convertDirective(raw *rawDirective) types.ConversationDirective {
	if raw == nil {
		return types.ConversationDirective{ConversationComplete: true}
	}
	d := types.ConversationDirective{
		NeedsFollowUp:        raw.NeedsFollowUp,
		FollowUpQuestion:     strings.TrimSpace(raw.FollowUpQuestion),
		ConversationComplete: !raw.NeedsFollowUp,
		CategoryUpdate:       strings.TrimSpace(raw.CategoryUpdate),
		ReasonForFollowUp:    raw.ReasonForFollowUp,
	}
	if raw.ConversationComplete != nil {
		d.ConversationComplete = *raw.ConversationComplete
	}
	// Only a recognized label may revise the severity.
	if sev, ok := types.ParseSeverity(raw.SeverityUpdate); ok {
		d.SeverityUpdate = sev
	}
	if d.NeedsFollowUp && d.FollowUpQuestion == "" {
		d.NeedsFollowUp = false
	}
	return d
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
