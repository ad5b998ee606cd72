package playground

import (
	"fmt"
	"strings"

	"playground/model"
)

// The Apply functions compute the record a request starts from. They never
// modify their argument and all of them leave the session loading with its
// output and call metadata cleared.

// ApplySend appends the selected choice of the current output to the history,
// then the new message, and starts a request. Blank content adds no message;
// the request still goes out with the existing history.
func ApplySend(st *model.PlaygroundState, role model.Role, content, toolCallID string) (*model.PlaygroundState, error) {
	next := st.Clone()
	next.Messages = appendSelectedChoice(next.Messages, st)

	if strings.TrimSpace(content) != "" {
		if !role.Valid() {
			return nil, &Error{Kind: KindValidationNoop, Message: fmt.Sprintf("unknown role %q", role)}
		}
		next.Messages = append(next.Messages, model.Message{
			Role:       role,
			Content:    content,
			ToolCallID: toolCallID,
		})
		if role == model.RoleTool {
			if err := model.ValidateToolResults(next.Messages); err != nil {
				return nil, &Error{Kind: KindValidationNoop, Message: "tool result rejected", Err: err}
			}
		}
	}

	startRequest(next)
	return FilterNullMessages(next), nil
}

// ToolResult answers one tool call of the selected choice.
type ToolResult struct {
	CallID  string
	Content string
}

// ApplyToolResults appends the selected choice and one tool message per
// result, then starts a request. Every result must answer a tool call made
// earlier in the session.
func ApplyToolResults(st *model.PlaygroundState, results []ToolResult) (*model.PlaygroundState, error) {
	if len(results) == 0 {
		return nil, &Error{Kind: KindValidationNoop, Message: "no tool results"}
	}
	next := st.Clone()
	next.Messages = appendSelectedChoice(next.Messages, st)
	for _, r := range results {
		next.Messages = append(next.Messages, model.Message{
			Role:       model.RoleTool,
			Content:    r.Content,
			ToolCallID: r.CallID,
		})
	}
	if err := model.ValidateToolResults(next.Messages); err != nil {
		return nil, &Error{Kind: KindValidationNoop, Message: "tool result rejected", Err: err}
	}

	startRequest(next)
	return FilterNullMessages(next), nil
}

// ApplyRetryFromMessage keeps the history up to and including messageIndex
// and starts a request from there.
func ApplyRetryFromMessage(st *model.PlaygroundState, messageIndex int) (*model.PlaygroundState, error) {
	if messageIndex < 0 || messageIndex >= len(st.Messages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidMessageIndex, messageIndex, len(st.Messages))
	}
	next := st.Clone()
	next.Messages = next.Messages[:messageIndex+1]

	startRequest(next)
	return FilterNullMessages(next), nil
}

// ApplyRetryFromChoice appends the given choice of the current output to the
// history and starts a request. Earlier history is untouched.
func ApplyRetryFromChoice(st *model.PlaygroundState, choiceIndex int) (*model.PlaygroundState, error) {
	choice, ok := st.Output.Choice(choiceIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoiceIndex, choiceIndex)
	}
	next := st.Clone()
	if !choice.Message.IsEmpty() {
		next.Messages = append(next.Messages, asHistory(choice.Message))
	}

	startRequest(next)
	return FilterNullMessages(next), nil
}

// EditMessage replaces the content of one history message.
func EditMessage(st *model.PlaygroundState, messageIndex int, content string) (*model.PlaygroundState, error) {
	if messageIndex < 0 || messageIndex >= len(st.Messages) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageIndex, messageIndex)
	}
	next := st.Clone()
	next.Messages[messageIndex].Content = content
	return next, nil
}

// SetMessageRole changes the role of one history message.
func SetMessageRole(st *model.PlaygroundState, messageIndex int, role model.Role) (*model.PlaygroundState, error) {
	if messageIndex < 0 || messageIndex >= len(st.Messages) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageIndex, messageIndex)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	next := st.Clone()
	next.Messages[messageIndex].Role = role
	return next, nil
}

// DeleteMessage removes one history message.
func DeleteMessage(st *model.PlaygroundState, messageIndex int) (*model.PlaygroundState, error) {
	if messageIndex < 0 || messageIndex >= len(st.Messages) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMessageIndex, messageIndex)
	}
	next := st.Clone()
	next.Messages = append(next.Messages[:messageIndex], next.Messages[messageIndex+1:]...)
	return next, nil
}

// AddMessage appends a message without sending. Empty messages are allowed
// here so the user can fill them in later; they are filtered on send.
func AddMessage(st *model.PlaygroundState, role model.Role, content string) (*model.PlaygroundState, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	next := st.Clone()
	next.Messages = append(next.Messages, model.Message{Role: role, Content: content})
	return next, nil
}

// EditChoice replaces the content of one output choice.
func EditChoice(st *model.PlaygroundState, choiceIndex int, content string) (*model.PlaygroundState, error) {
	if _, ok := st.Output.Choice(choiceIndex); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoiceIndex, choiceIndex)
	}
	next := st.Clone()
	next.Output.Choices[choiceIndex].Message.Content = content
	return next, nil
}

// DeleteChoice removes one output choice, keeping the selection on a
// remaining choice.
func DeleteChoice(st *model.PlaygroundState, choiceIndex int) (*model.PlaygroundState, error) {
	if _, ok := st.Output.Choice(choiceIndex); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoiceIndex, choiceIndex)
	}
	next := st.Clone()
	choices := next.Output.Choices
	next.Output.Choices = append(choices[:choiceIndex], choices[choiceIndex+1:]...)

	switch {
	case len(next.Output.Choices) == 0:
		next.SelectedChoiceIndex = 0
	case next.SelectedChoiceIndex > choiceIndex:
		next.SelectedChoiceIndex--
	case next.SelectedChoiceIndex >= len(next.Output.Choices):
		next.SelectedChoiceIndex = len(next.Output.Choices) - 1
	}
	return next, nil
}

// SelectChoice marks one output choice as the one carried into history on
// the next send.
func SelectChoice(st *model.PlaygroundState, choiceIndex int) (*model.PlaygroundState, error) {
	if _, ok := st.Output.Choice(choiceIndex); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoiceIndex, choiceIndex)
	}
	next := *st
	next.SelectedChoiceIndex = choiceIndex
	return &next, nil
}

func appendSelectedChoice(messages []model.Message, st *model.PlaygroundState) []model.Message {
	choice, ok := st.SelectedChoice()
	if !ok || choice.Message.IsEmpty() {
		return messages
	}
	return append(messages, asHistory(choice.Message))
}

func asHistory(m model.Message) model.Message {
	out := m.Clone()
	if out.Role == "" {
		out.Role = model.RoleAssistant
	}
	return out
}

func startRequest(st *model.PlaygroundState) {
	st.Output = nil
	st.SelectedChoiceIndex = 0
	st.Loading = true
	clearTraceCall(st)
}

// clearTraceCall drops call metadata that belongs to the output being
// replaced.
func clearTraceCall(st *model.PlaygroundState) {
	st.CallID = ""
	st.Summary = nil
}
