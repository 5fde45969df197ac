package domain

import "encoding/json"

// ActionType is an operator action forwarded to the orchestrator
type ActionType string

const (
	ActionStart     ActionType = "start"
	ActionStop      ActionType = "stop"
	ActionRestart   ActionType = "restart"
	ActionConfigure ActionType = "configure"
	ActionSpawn     ActionType = "spawn"
	ActionTask      ActionType = "task"
)

// Valid reports whether a is a known action
func (a ActionType) Valid() bool {
	switch a {
	case ActionStart, ActionStop, ActionRestart, ActionConfigure, ActionSpawn, ActionTask:
		return true
	}
	return false
}

// ActionRequest is sent to the orchestrator
type ActionRequest struct {
	AgentID string         `json:"agentId"`
	Action  ActionType     `json:"action"`
	Params  map[string]any `json:"params,omitempty"`
}

// ActionResult is the orchestrator's answer. A false Success is a normal
// outcome carrying an operator-facing message, not a transport error.
type ActionResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DetectedGap suggests an agent the graph appears to be missing.
// It is advisory only and never changes the graph.
type DetectedGap struct {
	SuggestedType string   `json:"suggestedType"`
	Category      Category `json:"category"`
	Description   string   `json:"description"`
	AutoSpawn     bool     `json:"autoSpawnRecommended"`
}
