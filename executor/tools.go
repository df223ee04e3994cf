package executor

import (
	"context"
	"fmt"
	"strings"

	"go-firstresponder/types"
)

// Tool carries out one kind of plan action.
type Tool interface {
	Name() string
	Matches(action string) bool
	Run(ctx context.Context, action types.Action, ec ExecutionContext) (types.ExecutionResult, error)
}

// keywordTool matches when the action text contains any of its keywords.
type keywordTool struct {
	name     string
	keywords []string
	run      func(ctx context.Context, action types.Action, ec ExecutionContext) (types.ExecutionResult, error)
}

func (t keywordTool) Name() string { return t.name }

func (t keywordTool) Matches(action string) bool {
	lower := strings.ToLower(action)
	for _, k := range t.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (t keywordTool) Run(ctx context.Context, action types.Action, ec ExecutionContext) (types.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ExecutionResult{}, err
	}
	return t.run(ctx, action, ec)
}

// DefaultTools returns the built-in tools in match order. The generic
// analysis tool matches everything and must stay last.
func DefaultTools() []Tool {
	return []Tool{
		keywordTool{
			name:     "emergency_contact",
			keywords: []string{"call", "contact", "112", "ambulance", "police", "emergency services", "dial"},
			run:      emergencyContact,
		},
		keywordTool{
			name:     "disaster_check",
			keywords: []string{"earthquake", "flood", "disaster", "hazard", "tsunami", "wildfire", "aftershock", "alert", "feed"},
			run:      disasterCheck,
		},
		keywordTool{
			name:     "local_activity",
			keywords: []string{"neighbor", "neighbour", "nearby", "area", "local", "surroundings", "community"},
			run:      localActivity,
		},
		keywordTool{
			name:     "weather",
			keywords: []string{"weather", "storm", "rain", "wind", "temperature", "forecast", "heat"},
			run:      weatherCheck,
		},
		analysisTool{},
	}
}

func emergencyContact(_ context.Context, _ types.Action, ec ExecutionContext) (types.ExecutionResult, error) {
	summary := "Emergency number 112 connects you to ambulance, fire and police services"
	if ec.Severity.Urgent() {
		summary = "Emergency situation: call 112 now and keep your phone line free afterwards"
	}
	return types.ExecutionResult{
		Summary: summary,
		Data: map[string]any{
			"number":   "112",
			"severity": ec.Severity.Name(),
		},
	}, nil
}

func disasterCheck(_ context.Context, _ types.Action, ec ExecutionContext) (types.ExecutionResult, error) {
	data := map[string]any{
		"quakes":  len(ec.Feed.Quakes),
		"hazards": len(ec.Feed.Hazards),
	}
	switch {
	case len(ec.Feed.Quakes) > 0:
		q := ec.Feed.Quakes[0]
		data["magnitude"] = q.Magnitude
		return types.ExecutionResult{
			Summary: fmt.Sprintf("Earthquake activity detected in your area: M%.1f %s", q.Magnitude, q.Place),
			Data:    data,
		}, nil
	case len(ec.Feed.Hazards) > 0:
		h := ec.Feed.Hazards[0]
		return types.ExecutionResult{
			Summary: fmt.Sprintf("Active disaster alert for your area: %s (%s)", h.EventName, strings.ToLower(h.AlertLevel)),
			Data:    data,
		}, nil
	case ec.Feed.Snippet != "":
		return types.ExecutionResult{Summary: "Disaster feed reports: " + ec.Feed.Snippet, Data: data}, nil
	default:
		return types.ExecutionResult{
			Summary: "No active disaster alerts detected near your location",
			Data:    data,
		}, nil
	}
}

func localActivity(_ context.Context, _ types.Action, ec ExecutionContext) (types.ExecutionResult, error) {
	sa := ec.Awareness
	data := map[string]any{
		"active_incidents": sa.ActiveIncidents,
		"clusters":         len(sa.GeographicClusters),
		"strain_level":     sa.ResourceStrain.StrainLevel,
	}
	if sa.ActiveIncidents == 0 {
		return types.ExecutionResult{Summary: "No other emergency reports in your area in the last hours", Data: data}, nil
	}
	summary := fmt.Sprintf("%d other emergency reports active in your area", sa.ActiveIncidents)
	if sa.ResourceStrain.StrainLevel == "high" {
		summary += "; emergency services may be slower than usual"
	}
	return types.ExecutionResult{Summary: summary, Data: data}, nil
}

// weatherCheck has no live data source.
func weatherCheck(_ context.Context, _ types.Action, ec ExecutionContext) (types.ExecutionResult, error) {
	return types.ExecutionResult{
		Summary: "Simulated weather check",
		Data: map[string]any{
			"simulated": true,
			"lat":       ec.Location.Lat,
			"lon":       ec.Location.Lon,
		},
	}, nil
}

type analysisTool struct{}

func (analysisTool) Name() string        { return "analysis" }
func (analysisTool) Matches(string) bool { return true }

func (analysisTool) Run(ctx context.Context, action types.Action, _ ExecutionContext) (types.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.ExecutionResult{}, err
	}
	return types.ExecutionResult{
		Summary: "Action analyzed and executed",
		Data:    map[string]any{"action": action.Action, "priority": action.Priority},
	}, nil
}
