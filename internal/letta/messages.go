package letta

import (
	"encoding/json"
	"strings"
)

// Message types emitted on the agent stream that the bridge acts on.
const (
	MessageTypeAssistant       = "assistant_message"
	MessageTypeApprovalRequest = "approval_request_message"
	MessageTypeReasoning       = "reasoning_message"
	MessageTypeToolCall        = "tool_call_message"
	MessageTypeToolReturn      = "tool_return_message"
	MessageTypeStopReason      = "stop_reason"
	MessageTypeUsage           = "usage_statistics"
	MessageTypeError           = "error_message"
)

// Approval statuses.
const (
	ApprovalSuccess = "success"
	ApprovalError   = "error"
)

// ClientTool declares a tool the agent may ask the client to run.
type ClientTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Approval carries a client-side tool result back to the agent.
type Approval struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Status     string `json:"status"`
	ToolReturn string `json:"tool_return"`
}

// ApprovalMessage is the message form used to resubmit approvals.
type ApprovalMessage struct {
	Type      string     `json:"type"`
	Approvals []Approval `json:"approvals"`
}

// MessageRequest is the body of a streaming message request. Exactly one of
// Input or Messages is set.
type MessageRequest struct {
	Input       string            `json:"input,omitempty"`
	Messages    []ApprovalMessage `json:"messages,omitempty"`
	Streaming   bool              `json:"streaming"`
	StreamToken bool              `json:"stream_tokens"`
	ClientTools []ClientTool      `json:"client_tools,omitempty"`
}

// NewInputRequest builds a request submitting user text.
func NewInputRequest(text string, tools []ClientTool) MessageRequest {
	return MessageRequest{Input: text, Streaming: true, StreamToken: true, ClientTools: tools}
}

// NewApprovalRequest builds a request resubmitting tool results. The
// approvals list is sent even when empty.
func NewApprovalRequest(approvals []Approval, tools []ClientTool) MessageRequest {
	if approvals == nil {
		approvals = []Approval{}
	}
	return MessageRequest{
		Messages:    []ApprovalMessage{{Type: "approval", Approvals: approvals}},
		Streaming:   true,
		StreamToken: true,
		ClientTools: tools,
	}
}

// ToolCallDelta is a complete tool call or a fragment of one. Fragments of
// the same call share ToolCallID.
type ToolCallDelta struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

// ToolCalls decodes either a single tool call object or an array of them.
type ToolCalls []ToolCallDelta

func (t *ToolCalls) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*t = nil
		return nil
	}
	if data[0] == '[' {
		var many []ToolCallDelta
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*t = many
		return nil
	}
	var one ToolCallDelta
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*t = ToolCalls{one}
	return nil
}

// Content is assistant message content: a plain string or an ordered list of
// parts, each a string or an object with a text field.
type Content []string

func (c *Content) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*c = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{s}
		return nil
	}
	if data[0] != '[' {
		*c = nil
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	out := make(Content, 0, len(parts))
	for _, p := range parts {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(p, &obj); err == nil && obj.Text != nil {
			out = append(out, *obj.Text)
		}
	}
	*c = out
	return nil
}

// Event is one decoded item of the message stream.
type Event struct {
	ID          string    `json:"id,omitempty"`
	MessageType string    `json:"message_type"`
	Content     Content   `json:"content,omitempty"`
	ToolCall    ToolCalls `json:"tool_call,omitempty"`
	ToolCalls   ToolCalls `json:"tool_calls,omitempty"`
	StopReason  string    `json:"stop_reason,omitempty"`
	// Message and Detail are populated on error events.
	Message string          `json:"message,omitempty"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}

// AllToolCalls returns tool_call followed by tool_calls.
func (e Event) AllToolCalls() []ToolCallDelta {
	if len(e.ToolCalls) == 0 {
		return e.ToolCall
	}
	out := make([]ToolCallDelta, 0, len(e.ToolCall)+len(e.ToolCalls))
	out = append(out, e.ToolCall...)
	return append(out, e.ToolCalls...)
}
