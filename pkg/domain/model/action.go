package model

import "github.com/secmon-lab/stratagem/pkg/domain/types"

// Action is one tool invocation proposed by the reasoning collaborator
type Action struct {
	Tool      string
	Arguments map[string]any
	// Reasoning is free text explaining the choice, stored with the event
	Reasoning string
	// Raw is the unparsed proposal, kept for failure records
	Raw string
}

// ToolResult is the structured result of a primitive tool invocation
type ToolResult struct {
	Tool    string            `json:"tool"`
	Actor   string            `json:"actor"`
	Success bool              `json:"success"`
	Payload map[string]any    `json:"payload,omitempty"`
	Failure types.FailureKind `json:"failure,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	EventID EventID           `json:"event_id"`
}

// Map renders the result for prompts
func (r *ToolResult) Map() map[string]any {
	out := map[string]any{
		"tool":    r.Tool,
		"success": r.Success,
	}
	if r.Success {
		out["result"] = r.Payload
	} else {
		out["error"] = string(r.Failure)
		out["reason"] = r.Reason
	}
	return out
}
