package orchestrator

import (
	"go-firstresponder/types"
)

// Conversation is the conversational part of a response.
type Conversation struct {
	ConversationID       string         `json:"conversation_id"`
	NeedsFollowUp        bool           `json:"needs_follow_up"`
	FollowUpQuestion     string         `json:"follow_up_question,omitempty"`
	ConversationComplete bool           `json:"conversation_complete"`
	IsFollowUp           bool           `json:"is_follow_up"`
	Step                 int            `json:"step"`
	ReasonForFollowUp    string         `json:"reason,omitempty"`
	SeverityUpdate       types.Severity `json:"severity_update,omitempty"`
	CategoryUpdate       string         `json:"category_update,omitempty"`
}

type ExecutionSummary struct {
	ActionsExecuted   int                   `json:"actions_executed"`
	SuccessfulActions int                   `json:"successful_actions"`
	FailedActions     int                   `json:"failed_actions"`
	FinalStatus       types.ExecutionStatus `json:"final_status"`
}

type ContextualAwareness struct {
	DisasterFeedActive  bool                       `json:"disaster_feed_active"`
	PlaceLabel          string                     `json:"place_label,omitempty"`
	HistoricalIncidents int                        `json:"historical_incidents"`
	ActivityLevel       string                     `json:"activity_level"`
	Situation           types.SituationalAwareness `json:"situational_factors"`
}

// Response is what the caller gets back for one message.
type Response struct {
	MessageID        string                               `json:"message_id"`
	Category         string                               `json:"category"`
	Severity         types.Severity                       `json:"severity"`
	Instructions     []string                             `json:"instructions"`
	Language         string                               `json:"language"`
	FeedSnippet      string                               `json:"disaster_feed"`
	Mode             string                               `json:"processing_mode"`
	Conversation     Conversation                         `json:"conversation"`
	PlanCompleteness string                               `json:"plan_completeness"`
	Execution        ExecutionSummary                     `json:"execution_summary"`
	Plan             *types.Plan                          `json:"comprehensive_plan,omitempty"`
	Resources        map[string]types.ResourceRequirement `json:"resource_requirements,omitempty"`
	Monitoring       []types.MonitoringTask               `json:"monitoring_plan,omitempty"`
	Awareness        *ContextualAwareness                 `json:"contextual_awareness,omitempty"`
	ResponseMS       int64                                `json:"response_time_ms"`
}

func conversationID(report *types.EmergencyReport) string {
	if report.ParentID != "" {
		return report.ParentID
	}
	return report.ID
}

func conversationFor(report *types.EmergencyReport, d types.ConversationDirective) Conversation {
	return Conversation{
		ConversationID:       conversationID(report),
		NeedsFollowUp:        d.NeedsFollowUp,
		FollowUpQuestion:     d.FollowUpQuestion,
		ConversationComplete: d.ConversationComplete,
		IsFollowUp:           report.ParentID != "",
		Step:                 report.Step,
		ReasonForFollowUp:    d.ReasonForFollowUp,
		SeverityUpdate:       d.SeverityUpdate,
		CategoryUpdate:       d.CategoryUpdate,
	}
}

// assemble builds the full response. Assessment updates from the plan's
// conversation directive take precedence over the classifier.
func assemble(report *types.EmergencyReport, language string, cls types.Classification, feed types.FeedContext,
	awareness types.SituationalAwareness, relevant types.RelevantContext, plan types.Plan, log types.ExecutionLog) Response {
	d := plan.ConversationManagement

	severity := cls.Severity
	if d.SeverityUpdate.Valid() {
		severity = d.SeverityUpdate
	}
	category := cls.Category
	if d.CategoryUpdate != "" {
		category = d.CategoryUpdate
	}

	executed, ok, failed := log.Counts()
	completeness := plan.Completeness()
	return Response{
		MessageID:        report.ID,
		Category:         category,
		Severity:         severity,
		Instructions:     MergeInstructions(cls.Instructions, plan, log),
		Language:         language,
		FeedSnippet:      feed.Snippet,
		Mode:             ModeAgentic,
		Conversation:     conversationFor(report, d),
		PlanCompleteness: types.CompletenessLabel(completeness),
		Execution: ExecutionSummary{
			ActionsExecuted:   executed,
			SuccessfulActions: ok,
			FailedActions:     failed,
			FinalStatus:       log.FinalStatus,
		},
		Plan:       &plan,
		Resources:  plan.ResourceSummary(),
		Monitoring: plan.MonitoringTasks,
		Awareness: &ContextualAwareness{
			DisasterFeedActive:  len(feed.Quakes) > 0 || len(feed.Hazards) > 0,
			PlaceLabel:          feed.PlaceLabel,
			HistoricalIncidents: len(relevant.SimilarIncidents),
			ActivityLevel:       relevant.RecentActivity.ActivityLevel,
			Situation:           awareness,
		},
	}
}

// classificationOnly is the degraded response used when the pipeline fails.
// The conversation ends here.
func classificationOnly(report *types.EmergencyReport, language string, cls types.Classification) Response {
	return Response{
		MessageID:        report.ID,
		Category:         cls.Category,
		Severity:         cls.Severity,
		Instructions:     MergeInstructions(cls.Instructions, types.Plan{}, types.ExecutionLog{}),
		Language:         language,
		Mode:             ModeClassificationOnly,
		Conversation:     conversationFor(report, types.ConversationDirective{ConversationComplete: true}),
		PlanCompleteness: types.CompletenessLabel(0),
		Execution:        ExecutionSummary{FinalStatus: types.StatusFailed},
	}
}
