package planner

import (
	"fmt"
	"strings"
)

const planSchema = `{
  "immediate_actions": [
    {"action": "...", "priority": 1-10, "estimated_time": "...", "responsible": "..."}
  ],
  "followup_actions": [
    {"action": "...", "priority": 1-10, "estimated_time": "...", "responsible": "..."}
  ],
  "resources_needed": [
    {"resource": "...", "quantity": "...", "urgency": "..."}
  ],
  "monitoring_tasks": [
    {"task": "...", "frequency": "...", "duration": "..."}
  ],
  "conversation_management": {
    "needs_follow_up": true,
    "follow_up_question": "...",
    "conversation_complete": false,
    "severity_update": "",
    "category_update": "",
    "reason_for_follow_up": "..."
  }
}`

// BuildPrompt renders the planning prompt, folding in earlier turns when the
// request continues a conversation.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are an Emergency Response Planner. Decompose the emergency into actions a single untrained citizen can take right now.\n\n")
	b.WriteString("EMERGENCY DETAILS:\n")
	fmt.Fprintf(&b, "- Message: %q\n", req.Message)
	fmt.Fprintf(&b, "- Location: lat=%g, lon=%g\n", req.Location.Lat, req.Location.Lon)
	fmt.Fprintf(&b, "- Severity: %s\n", req.Severity.Name())
	fmt.Fprintf(&b, "- Category: %s\n", req.Category)
	fmt.Fprintf(&b, "- Language: %s\n", languageOrDefault(req.Language))

	if h := req.History; h != nil && len(h.Turns) > 0 {
		b.WriteString("\nCONVERSATION SO FAR:\n")
		for _, t := range h.Turns {
			fmt.Fprintf(&b, "- Step %d (%s, %s): %q\n", t.Step, t.Category, t.Severity.Name(), t.Message)
		}
		fmt.Fprintf(&b, "Current assessment: category %s, severity %s. This message is step %d.\n",
			h.CurrentCategory, h.CurrentSeverity.Name(), h.Step)
		b.WriteString("Set severity_update or category_update only if the new message changes the assessment.\n")
	}

	b.WriteString("\nReply with JSON only, using this structure:\n")
	b.WriteString(planSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Prioritize life-safety first, then property protection, then recovery.\n")
	b.WriteString("- Every action must be something one person can do. Never ask the citizen to coordinate agencies, deploy resources or activate protocols.\n")
	b.WriteString("- Ask a follow-up question only when the answer would change what the citizen should do.\n")
	b.WriteString("- Write action text in the requested language.\n")
	return b.String()
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}
