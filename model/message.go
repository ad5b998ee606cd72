package model

import "fmt"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}

// Message represents one conversation turn.
//
// Content may be empty while a response is streaming. ToolCallID links a tool
// result back to the assistant tool call that requested it.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// IsEmpty reports whether the message has neither content nor tool calls.
// Empty messages are never sent upstream or persisted.
func (m Message) IsEmpty() bool {
	return m.Content == "" && len(m.ToolCalls) == 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

// ToolCall is a function invocation requested by an assistant turn.
//
// Function.Arguments is built from fragments; it is only valid JSON once every
// fragment for the call has arrived.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and raw JSON arguments of a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolTypeFunction is the only tool call type currently emitted by providers.
const ToolTypeFunction = "function"

// CloneMessages deep-copies a message list. A nil input stays nil.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

// ValidateToolResults checks that every tool message refers to a tool call
// emitted earlier in the same conversation.
func ValidateToolResults(messages []Message) error {
	seen := make(map[string]bool)
	for i, m := range messages {
		for _, tc := range m.ToolCalls {
			if tc.ID != "" {
				seen[tc.ID] = true
			}
		}
		if m.Role != RoleTool {
			continue
		}
		if m.ToolCallID == "" {
			return fmt.Errorf("message %d: tool result without tool_call_id", i)
		}
		if !seen[m.ToolCallID] {
			return fmt.Errorf("message %d: tool_call_id %q does not match any earlier tool call", i, m.ToolCallID)
		}
	}
	return nil
}
