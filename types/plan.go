package types

import "sort"

// Action is one step in a plan. Priority runs 1 (lowest) to 10 (highest).
type Action struct {
	Action        string `json:"action"`
	Priority      int    `json:"priority"`
	EstimatedTime string `json:"estimated_time"`
	Responsible   string `json:"responsible"`
}

type Resource struct {
	Resource string `json:"resource"`
	Quantity string `json:"quantity"`
	Urgency  string `json:"urgency"`
}

type MonitoringTask struct {
	Task      string `json:"task"`
	Frequency string `json:"frequency"`
	Duration  string `json:"duration"`
}

// ConversationDirective tells the caller whether to keep the conversation going
// and whether the assessment of the incident changed.
type ConversationDirective struct {
	NeedsFollowUp        bool     `json:"needs_follow_up"`
	FollowUpQuestion     string   `json:"follow_up_question"`
	ConversationComplete bool     `json:"conversation_complete"`
	SeverityUpdate       Severity `json:"severity_update,omitempty"`
	CategoryUpdate       string   `json:"category_update,omitempty"`
	ReasonForFollowUp    string   `json:"reason_for_follow_up,omitempty"`
}

type Plan struct {
	ImmediateActions       []Action              `json:"immediate_actions"`
	FollowUpActions        []Action              `json:"followup_actions"`
	ResourcesNeeded        []Resource            `json:"resources_needed"`
	MonitoringTasks        []MonitoringTask      `json:"monitoring_tasks"`
	ConversationManagement ConversationDirective `json:"conversation_management"`

	// Fallback is set when the plan was not produced by the generator.
	Fallback bool `json:"fallback"`
}

// Completeness counts the non-empty plan sections (0-4).
func (p Plan) Completeness() int {
	score := 0
	if len(p.ImmediateActions) > 0 {
		score++
	}
	if len(p.FollowUpActions) > 0 {
		score++
	}
	if len(p.ResourcesNeeded) > 0 {
		score++
	}
	if len(p.MonitoringTasks) > 0 {
		score++
	}
	return score
}

// CompletenessLabel maps a 0-4 score to its qualitative label.
func CompletenessLabel(score int) string {
	switch {
	case score >= 4:
		return "comprehensive"
	case score == 3:
		return "good"
	case score == 2:
		return "adequate"
	default:
		return "basic"
	}
}

// SortByPriority returns a copy of actions ordered by descending priority.
// Ties keep their input order.
func SortByPriority(actions []Action) []Action {
	sorted := make([]Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

func (p Plan) PrioritizedImmediate() []Action {
	return SortByPriority(p.ImmediateActions)
}

type ResourceRequirement struct {
	TotalQuantity string `json:"total_quantity"`
	UrgencyLevel  string `json:"urgency_level"`
}

// ResourceSummary collapses resources by name; the first mention wins.
func (p Plan) ResourceSummary() map[string]ResourceRequirement {
	out := make(map[string]ResourceRequirement)
	for _, r := range p.ResourcesNeeded {
		name := r.Resource
		if name == "" {
			name = "unknown"
		}
		if _, seen := out[name]; seen {
			continue
		}
		qty := r.Quantity
		if qty == "" {
			qty = "1"
		}
		urgency := r.Urgency
		if urgency == "" {
			urgency = "medium"
		}
		out[name] = ResourceRequirement{TotalQuantity: qty, UrgencyLevel: urgency}
	}
	return out
}

type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusSkipped   ExecutionStatus = "skipped"
	// StatusPartial is only used as a final status.
	StatusPartial ExecutionStatus = "partial"
)

type ExecutionResult struct {
	Summary string         `json:"summary"`
	Data    map[string]any `json:"data,omitempty"`
}

type ExecutionRecord struct {
	Action     Action           `json:"action"`
	ActionType string           `json:"action_type"`
	Status     ExecutionStatus  `json:"status"`
	Result     *ExecutionResult `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type ExecutionLog struct {
	ExecutedActions []ExecutionRecord `json:"executed_actions"`
	FinalStatus     ExecutionStatus   `json:"final_status"`
}

// Counts returns (executed, successful, failed).
func (l ExecutionLog) Counts() (int, int, int) {
	var ok, failed int
	for _, r := range l.ExecutedActions {
		switch r.Status {
		case StatusCompleted:
			ok++
		case StatusFailed:
			failed++
		}
	}
	return len(l.ExecutedActions), ok, failed
}
