package orchestrator

import "time"

const (
	SystemName = "firstresponder"
	Version    = "2.0.0"
)

type ComponentStatus struct {
	Status string `json:"status"`
}

// SystemStatus describes which pipeline stages are wired in.
type SystemStatus struct {
	SystemName    string                     `json:"system_name"`
	Version       string                     `json:"version"`
	Architecture  string                     `json:"architecture"`
	Uptime        string                     `json:"uptime"`
	Budget        string                     `json:"pipeline_budget"`
	Components    map[string]ComponentStatus `json:"components"`
	Capabilities  []string                   `json:"capabilities"`
	AgenticActive bool                       `json:"agentic_active"`
}

func stageStatus(enabled bool) ComponentStatus {
	if enabled {
		return ComponentStatus{Status: "active"}
	}
	return ComponentStatus{Status: "disabled"}
}

func (o *Orchestrator) SystemStatus() SystemStatus {
	components := map[string]ComponentStatus{
		"report_store":       stageStatus(true),
		"classifier":         stageStatus(true),
		"planner":            stageStatus(o.planner != nil),
		"executor":           stageStatus(o.executor != nil),
		"memory":             stageStatus(o.memory != nil),
		"disaster_feeds":     stageStatus(o.feeds != nil),
		"language_detection": stageStatus(o.language != nil),
	}

	capabilities := []string{"emergency_classification", "conversation_tracking"}
	if o.planner != nil {
		capabilities = append(capabilities, "multi_step_planning")
	}
	if o.executor != nil {
		capabilities = append(capabilities, "action_execution")
	}
	if o.memory != nil {
		capabilities = append(capabilities, "situational_awareness", "learning_from_feedback")
	}
	if o.feeds != nil {
		capabilities = append(capabilities, "disaster_feed_integration")
	}

	return SystemStatus{
		SystemName:    SystemName,
		Version:       Version,
		Architecture:  "agentic",
		Uptime:        o.now().Sub(o.started).Truncate(time.Second).String(),
		Budget:        o.cfg.Budget.String(),
		Components:    components,
		Capabilities:  capabilities,
		AgenticActive: o.planner != nil && o.executor != nil,
	}
}
