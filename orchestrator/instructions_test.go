package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-firstresponder/types"
)

func TestIsCitizenAppropriate(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{"Activate emergency protocols", false},
		{"Deploy resources to the area", false},
		{"Coordinate with authorities on evacuation", false},
		{"Call 112 immediately", true},
		{"Move to higher ground", true},
		{"Contact emergency services", true},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCitizenAppropriate(tt.action))
		})
	}
}

func TestIsMeaningfulSummary(t *testing.T) {
	tests := []struct {
		summary string
		want    bool
	}{
		{"Earthquake activity detected in your area: M5.8 near Turin", true},
		{"Active disaster alert for your area: Flood in Po valley (orange)", true},
		{"Action analyzed and executed", false},
		{"Simulated weather check", false},
		{"Task finished", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMeaningfulSummary(tt.summary))
		})
	}
}

func completed(summary string) types.ExecutionRecord {
	return types.ExecutionRecord{Status: types.StatusCompleted, Result: &types.ExecutionResult{Summary: summary}}
}

func TestMergeInstructions(t *testing.T) {
	plan := types.Plan{ImmediateActions: []types.Action{
		{Action: "Move to higher ground", Priority: 7},
		{Action: "Deploy resources", Priority: 10},
		{Action: "Call 112 immediately", Priority: 9},
		{Action: "Turn off electricity", Priority: 8},
	}}
	log := types.ExecutionLog{ExecutedActions: []types.ExecutionRecord{
		completed("Emergency situation: call 112 now"),
		completed("Emergency situation: call 112 now"),
		completed("Action analyzed and executed"),
		{Status: types.StatusFailed, Error: "boom"},
		completed("Active disaster alert for your area: Flood (red)"),
		completed("Earthquake activity detected in your area: M4.0"),
	}}

	got := MergeInstructions([]string{"Stay calm", "", "Leave the basement", "Avoid flood water", "Extra"}, plan, log)

	assert.Equal(t, []string{
		"Stay calm",
		"Leave the basement",
		"Avoid flood water",
		"🔥 Priority Action: Call 112 immediately",
		"🔥 Priority Action: Turn off electricity",
		"✅ System Analysis: Emergency situation: call 112 now",
		"✅ System Analysis: Active disaster alert for your area: Flood (red)",
	}, got)
}

func TestMergeInstructionsNeverEmpty(t *testing.T) {
	got := MergeInstructions(nil, types.Plan{}, types.ExecutionLog{})
	assert.Equal(t, []string{DefaultInstruction}, got)

	onlyInstitutional := types.Plan{ImmediateActions: []types.Action{{Action: "Activate emergency protocols", Priority: 10}}}
	got = MergeInstructions([]string{" "}, onlyInstitutional, types.ExecutionLog{})
	assert.Equal(t, []string{DefaultInstruction}, got)
}

func TestMergeInstructionsBounds(t *testing.T) {
	many := make([]types.Action, 0, 10)
	for i := 1; i <= 10; i++ {
		many = append(many, types.Action{Action: "Check the stairs", Priority: i})
	}
	log := types.ExecutionLog{}
	for _, s := range []string{"Flood alert one", "Flood alert two", "Flood alert three"} {
		log.ExecutedActions = append(log.ExecutedActions, completed(s))
	}

	got := MergeInstructions([]string{"a", "b", "c", "d", "e"}, types.Plan{ImmediateActions: many}, log)
	assert.GreaterOrEqual(t, len(got), 1)
	assert.LessOrEqual(t, len(got), MaxInstructions)
	assert.Len(t, got, 7)
}

func TestCompletenessLabelsInResponse(t *testing.T) {
	report := &types.EmergencyReport{ID: "r1", Step: 1}
	cls := types.Classification{Category: "Fire", Severity: types.High, Instructions: []string{"Get out"}}

	full := types.Plan{
		ImmediateActions: []types.Action{{Action: "Leave the building", Priority: 10}},
		FollowUpActions:  []types.Action{{Action: "Wait outside", Priority: 5}},
		ResourcesNeeded:  []types.Resource{{Resource: "Fire brigade"}},
		MonitoringTasks:  []types.MonitoringTask{{Task: "Watch the smoke"}},
	}
	res := assemble(report, "en", cls, types.FeedContext{}, types.SituationalAwareness{}, types.RelevantContext{}, full, types.ExecutionLog{})
	assert.Equal(t, "comprehensive", res.PlanCompleteness)

	partial := types.Plan{ImmediateActions: full.ImmediateActions, ResourcesNeeded: full.ResourcesNeeded}
	res = assemble(report, "en", cls, types.FeedContext{}, types.SituationalAwareness{}, types.RelevantContext{}, partial, types.ExecutionLog{})
	assert.Equal(t, "adequate", res.PlanCompleteness)
	assert.Equal(t, types.High, res.Severity)
	assert.Equal(t, "r1", res.Conversation.ConversationID)
}
