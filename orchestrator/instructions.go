package orchestrator

import (
	"strings"

	"go-firstresponder/types"
)

const (
	maxClassificationInstructions = 3
	maxPriorityActions            = 2
	maxSystemAnalyses             = 2
	MaxInstructions               = 8

	priorityActionPrefix = "🔥 Priority Action: "
	systemAnalysisPrefix = "✅ System Analysis: "

	// DefaultInstruction is used when nothing else produced an instruction.
	DefaultInstruction = "If you or anyone else is in danger, call 112 immediately."
)

// institutionalPhrases mark actions meant for agencies, not citizens.
var institutionalPhrases = []string{
	"activate emergency protocols",
	"issue public announcements",
	"coordinate with authorities",
	"deploy resources",
	"notify agencies",
	"activate response plan",
	"issue safety announcement",
	"alert emergency services",
	"coordinate response",
	"establish command",
	"deploy personnel",
	"activate sirens",
	"broadcast alerts",
	"mobilize teams",
}

// genericSummaries are tool outputs that carry no information for a citizen.
var genericSummaries = []string{
	"action analyzed and executed",
	"generated instruction steps",
	"weather data would be fetched",
	"found nearby emergency resources",
	"simulated weather check",
	"action analyzed with ai",
}

var meaningfulKeywords = []string{
	"disaster", "active", "detected", "area", "earthquake",
	"flood", "fire", "emergency", "alert", "warning",
}

// IsCitizenAppropriate rejects actions phrased for institutions. Anything
// not on the blocklist is accepted.
func IsCitizenAppropriate(action string) bool {
	lower := strings.ToLower(action)
	for _, phrase := range institutionalPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// IsMeaningfulSummary keeps execution summaries that mention the emergency
// and are not boilerplate.
func IsMeaningfulSummary(summary string) bool {
	lower := strings.ToLower(strings.TrimSpace(summary))
	if lower == "" {
		return false
	}
	for _, phrase := range genericSummaries {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	for _, k := range meaningfulKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// MergeInstructions builds the citizen-facing list: classification
// instructions first, then plan priorities, then execution insights. The
// result holds between 1 and MaxInstructions entries.
func MergeInstructions(classification []string, plan types.Plan, log types.ExecutionLog) []string {
	out := make([]string, 0, MaxInstructions)
	for _, s := range classification {
		if len(out) == maxClassificationInstructions {
			break
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	var citizen []types.Action
	for _, a := range plan.ImmediateActions {
		if IsCitizenAppropriate(a.Action) {
			citizen = append(citizen, a)
		}
	}
	for i, a := range types.SortByPriority(citizen) {
		if i == maxPriorityActions {
			break
		}
		out = append(out, priorityActionPrefix+a.Action)
	}

	seen := map[string]bool{}
	added := 0
	for _, rec := range log.ExecutedActions {
		if added == maxSystemAnalyses {
			break
		}
		if rec.Status != types.StatusCompleted || rec.Result == nil {
			continue
		}
		summary := rec.Result.Summary
		if seen[summary] || !IsMeaningfulSummary(summary) {
			continue
		}
		seen[summary] = true
		out = append(out, systemAnalysisPrefix+summary)
		added++
	}

	if len(out) > MaxInstructions {
		out = out[:MaxInstructions]
	}
	if len(out) == 0 {
		out = append(out, DefaultInstruction)
	}
	return out
}
