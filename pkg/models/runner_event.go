package models

import "encoding/json"

// RunnerEventType identifies the kind of runner event.
type RunnerEventType string

const (
	// RunnerEventText carries partial or complete model text.
	RunnerEventText RunnerEventType = "text"

	// RunnerEventToolCall signals the agent invoked a tool.
	RunnerEventToolCall RunnerEventType = "tool_call"

	// RunnerEventToolResult signals a tool returned to the agent.
	RunnerEventToolResult RunnerEventType = "tool_result"

	// RunnerEventTransfer signals a handoff to another agent.
	RunnerEventTransfer RunnerEventType = "transfer"

	// RunnerEventError signals the run failed upstream. The stream ends
	// after an error event.
	RunnerEventError RunnerEventType = "error"
)

// RunnerEvent is one element of the ordered event sequence a Runner
// produces for a conversation turn. Exactly one payload field is set
// for a given Type.
type RunnerEvent struct {
	Type RunnerEventType `json:"type"`

	// Text for RunnerEventText.
	Text string `json:"text,omitempty"`

	// Tool for RunnerEventToolCall and RunnerEventToolResult.
	Tool *ToolPayload `json:"tool,omitempty"`

	// Transfer names the receiving agent for RunnerEventTransfer.
	Transfer string `json:"transfer,omitempty"`

	// Err is the upstream failure (runtime only, never serialized; the
	// wire representation is sanitized before it reaches a client).
	Err error `json:"-"`
}

// ToolPayload describes a tool invocation or its completion. Args stays
// opaque JSON to avoid coupling to tool schemas.
type ToolPayload struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}
