// Package coach implements the coaching agent core: context assembly,
// the tool-calling orchestration loop, safety policy enforcement, and
// the session-owning service on top of them.
package coach

import (
	"context"
	"encoding/json"

	"github.com/stridefit/coach-api/internal/coach/tools"
)

// Message roles on the chat wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one provider-agnostic chat message. ToolCalls is set on
// assistant messages that request tools; ToolCallID correlates a tool
// role message with the request it answers.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCallRequest
	ToolCallID string
	Name       string
}

// ToolCallRequest is one tool invocation requested by the model.
// Arguments is the raw JSON string as produced by the model.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string
}

// ParseArguments decodes the argument JSON defensively: malformed or
// empty arguments yield an empty map, never an error, because the model
// occasionally emits truncated JSON and the tool layer applies its own
// defaults anyway.
func (t ToolCallRequest) ParseArguments() map[string]any {
	if t.Arguments == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(t.Arguments), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

// Usage is the token accounting for one model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ModelResponse is one completed model call.
type ModelResponse struct {
	Content      string
	ToolCalls    []ToolCallRequest
	FinishReason string
	Usage        Usage
}

// Stream event types emitted during a streamed turn.
const (
	EventToken     = "token"
	EventToolStart = "tool_start"
	EventToolEnd   = "tool_end"
	EventDone      = "done"
	EventError     = "error"
)

// StreamEvent is one incremental event in a streamed turn.
type StreamEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// TokenEvent wraps one text delta.
func TokenEvent(text string) StreamEvent {
	return StreamEvent{Type: EventToken, Data: map[string]any{"text": text}}
}

// ChatRequest is one model call: the full message array, the tool
// definitions the model may invoke (nil to forbid tools), and the
// per-tier model settings.
type ChatRequest struct {
	Messages []Message
	Tools    []tools.Definition
	Settings ModelSettings
}

// ModelProvider abstracts the LLM backend. ChatStream forwards text
// deltas through emit as they arrive and returns the fully accumulated
// response, including any tool-call requests, once the stream ends.
type ModelProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*ModelResponse, error)
	ChatStream(ctx context.Context, req ChatRequest, emit func(StreamEvent)) (*ModelResponse, error)
}
