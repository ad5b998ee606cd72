package playground

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/model"
)

func stateWith(messages ...model.Message) *model.PlaygroundState {
	st := model.NewPlaygroundState("openai/gpt-4o-mini")
	st.Messages = messages
	return st
}

func assistantOutput(contents ...string) *model.Response {
	resp := &model.Response{}
	for i, c := range contents {
		resp.Choices = append(resp.Choices, model.Choice{
			Index:   i,
			Message: model.Message{Role: model.RoleAssistant, Content: c},
		})
	}
	return resp
}

func TestApplySend(t *testing.T) {
	sys := model.Message{Role: model.RoleSystem, Content: "be brief"}

	tests := []struct {
		name    string
		state   func() *model.PlaygroundState
		role    model.Role
		content string
		want    []string
	}{
		{
			name:    "appends message",
			state:   func() *model.PlaygroundState { return stateWith(sys) },
			role:    model.RoleUser,
			content: "Hello",
			want:    []string{"be brief", "Hello"},
		},
		{
			name: "selected choice goes before the message",
			state: func() *model.PlaygroundState {
				st := stateWith(sys)
				st.Output = assistantOutput("first", "second")
				st.SelectedChoiceIndex = 1
				return st
			},
			role:    model.RoleUser,
			content: "more",
			want:    []string{"be brief", "second", "more"},
		},
		{
			name: "blank content adds no message",
			state: func() *model.PlaygroundState {
				st := stateWith(sys)
				st.Output = assistantOutput("answer")
				return st
			},
			role:    model.RoleUser,
			content: "   ",
			want:    []string{"be brief", "answer"},
		},
		{
			name:    "empty history messages are dropped",
			state:   func() *model.PlaygroundState { return stateWith(sys, model.Message{Role: model.RoleUser}) },
			role:    model.RoleUser,
			content: "Hello",
			want:    []string{"be brief", "Hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.state()
			before.CallID = "old-call"
			before.Summary = &model.CallSummary{LatencyMS: 10}
			snapshot := before.Clone()

			next, err := ApplySend(before, tt.role, tt.content, "")
			require.NoError(t, err)

			var got []string
			for _, m := range next.Messages {
				got = append(got, m.Content)
			}
			assert.Equal(t, tt.want, got)
			assert.True(t, next.Loading)
			assert.Nil(t, next.Output)
			assert.Zero(t, next.SelectedChoiceIndex)
			assert.Empty(t, next.CallID)
			assert.Nil(t, next.Summary)
			assert.Equal(t, snapshot, before, "input record is not modified")
		})
	}
}

func TestApplySendRejects(t *testing.T) {
	_, err := ApplySend(stateWith(), model.Role("robot"), "hi", "")
	require.ErrorIs(t, err, ErrValidationNoop)

	_, err = ApplySend(stateWith(), model.RoleTool, "result", "call_unknown")
	require.ErrorIs(t, err, ErrValidationNoop)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.False(t, e.Surfaced())
}

func TestApplySendToolResult(t *testing.T) {
	st := stateWith(model.Message{Role: model.RoleUser, Content: "weather?"})
	st.Output = &model.Response{Choices: []model.Choice{{Message: model.Message{
		Role: model.RoleAssistant,
		ToolCalls: []model.ToolCall{{
			ID: "call_1", Type: model.ToolTypeFunction,
			Function: model.ToolCallFunction{Name: "get_weather", Arguments: `{}`},
		}},
	}}}}

	next, err := ApplySend(st, model.RoleTool, "sunny", "call_1")
	require.NoError(t, err)
	require.Len(t, next.Messages, 3)
	assert.Equal(t, "call_1", next.Messages[2].ToolCallID)
	assert.Len(t, next.Messages[1].ToolCalls, 1, "the tool-calling choice is kept in history")
}

func TestApplyToolResults(t *testing.T) {
	st := stateWith(model.Message{Role: model.RoleUser, Content: "compare"})
	st.Output = &model.Response{Choices: []model.Choice{{Message: model.Message{
		Role: model.RoleAssistant,
		ToolCalls: []model.ToolCall{
			{ID: "a", Type: model.ToolTypeFunction, Function: model.ToolCallFunction{Name: "lookup", Arguments: `{"q":"x"}`}},
			{ID: "b", Type: model.ToolTypeFunction, Function: model.ToolCallFunction{Name: "lookup", Arguments: `{"q":"y"}`}},
		},
	}}}}

	next, err := ApplyToolResults(st, []ToolResult{{CallID: "a", Content: "1"}, {CallID: "b", Content: "2"}})
	require.NoError(t, err)
	require.Len(t, next.Messages, 4)
	assert.Equal(t, "a", next.Messages[2].ToolCallID)
	assert.Equal(t, "b", next.Messages[3].ToolCallID)
	assert.True(t, next.Loading)
	assert.Nil(t, next.Output)

	_, err = ApplyToolResults(st, []ToolResult{{CallID: "zzz", Content: "1"}})
	assert.ErrorIs(t, err, ErrValidationNoop)
	_, err = ApplyToolResults(st, nil)
	assert.ErrorIs(t, err, ErrValidationNoop)
}

func TestApplyRetryFromMessage(t *testing.T) {
	st := stateWith(
		model.Message{Role: model.RoleSystem, Content: "s"},
		model.Message{Role: model.RoleUser, Content: "u1"},
		model.Message{Role: model.RoleAssistant, Content: "a1"},
		model.Message{Role: model.RoleUser, Content: "u2"},
	)
	st.Output = assistantOutput("a2")

	next, err := ApplyRetryFromMessage(st, 1)
	require.NoError(t, err)
	require.Len(t, next.Messages, 2)
	assert.Equal(t, "u1", next.Messages[1].Content)
	assert.True(t, next.Loading)
	assert.Nil(t, next.Output)
	assert.Len(t, st.Messages, 4, "input record is not modified")

	for _, idx := range []int{-1, 4} {
		_, err := ApplyRetryFromMessage(st, idx)
		assert.ErrorIs(t, err, ErrInvalidMessageIndex)
	}
}

func TestApplyRetryFromChoice(t *testing.T) {
	st := stateWith(model.Message{Role: model.RoleUser, Content: "u1"})
	st.Output = assistantOutput("c0", "c1")
	st.SelectedChoiceIndex = 0

	next, err := ApplyRetryFromChoice(st, 1)
	require.NoError(t, err)
	require.Len(t, next.Messages, 2)
	assert.Equal(t, "c1", next.Messages[1].Content, "the named choice is appended, not the selected one")
	assert.Equal(t, model.RoleAssistant, next.Messages[1].Role)
	assert.True(t, next.Loading)
	assert.Nil(t, next.Output)

	_, err = ApplyRetryFromChoice(st, 2)
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex)

	_, err = ApplyRetryFromChoice(stateWith(), 0)
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex, "no output at all")
}

func TestEdits(t *testing.T) {
	st := stateWith(
		model.Message{Role: model.RoleUser, Content: "a"},
		model.Message{Role: model.RoleUser, Content: "b"},
	)
	st.Output = assistantOutput("x", "y", "z")
	st.SelectedChoiceIndex = 2

	next, err := EditMessage(st, 0, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", next.Messages[0].Content)
	assert.Equal(t, "a", st.Messages[0].Content)

	next, err = SetMessageRole(st, 1, model.RoleAssistant)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, next.Messages[1].Role)
	_, err = SetMessageRole(st, 1, "nobody")
	assert.Error(t, err)

	next, err = DeleteMessage(st, 0)
	require.NoError(t, err)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, "b", next.Messages[0].Content)
	assert.Len(t, st.Messages, 2)

	next, err = AddMessage(st, model.RoleUser, "")
	require.NoError(t, err)
	assert.Len(t, next.Messages, 3, "empty messages may be added for later editing")

	next, err = EditChoice(st, 1, "Y")
	require.NoError(t, err)
	assert.Equal(t, "Y", next.Output.Choices[1].Message.Content)
	assert.Equal(t, "y", st.Output.Choices[1].Message.Content)

	next, err = DeleteChoice(st, 0)
	require.NoError(t, err)
	assert.Len(t, next.Output.Choices, 2)
	assert.Equal(t, 1, next.SelectedChoiceIndex, "selection follows its choice")

	next, err = SelectChoice(st, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, next.SelectedChoiceIndex)
	_, err = SelectChoice(st, 3)
	assert.ErrorIs(t, err, ErrInvalidChoiceIndex)
}

func TestFilterNullMessages(t *testing.T) {
	st := stateWith(
		model.Message{Role: model.RoleUser, Content: "keep"},
		model.Message{Role: model.RoleUser},
		model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "c"}}},
	)

	once := FilterNullMessages(st)
	require.Len(t, once.Messages, 2)
	assert.Len(t, st.Messages, 3, "input record is not modified")

	twice := FilterNullMessages(once)
	assert.Same(t, once, twice, "filtering is a fixed point")

	assert.Nil(t, FilterNullMessages(nil))
}

func TestBuildRequest(t *testing.T) {
	st := stateWith(
		model.Message{Role: model.RoleUser, Content: "hi"},
		model.Message{Role: model.RoleUser},
	)
	st.Params.Temperature = 0.2
	st.Params.MaxTokens = 256

	req := BuildRequest(st)
	assert.Equal(t, "openai/gpt-4o-mini", req.Model)
	assert.Len(t, req.Messages, 1)
	assert.Equal(t, 0.2, req.Temperature)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Nil(t, req.Stop)
	assert.Nil(t, req.ResponseFormat)
	assert.Nil(t, req.Tools)
	assert.NotEmpty(t, req.Nonce)
	assert.NotEqual(t, req.Nonce, BuildRequest(st).Nonce, "every request gets a fresh nonce")

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	for _, key := range []string{"stop", "response_format", "tools"} {
		assert.NotContains(t, wire, key)
	}
	assert.Contains(t, wire, "nonce")

	st.Params.StopSequences = []string{"END"}
	st.Params.ResponseFormat = model.ResponseFormatJSONObject
	st.Params.Tools = []model.ToolDefinition{{Type: model.ToolTypeFunction, Function: model.FunctionDefinition{Name: "lookup"}}}

	req = BuildRequest(st)
	assert.Equal(t, []string{"END"}, req.Stop)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, model.ResponseFormatJSONObject, req.ResponseFormat.Type)
	assert.Len(t, req.Tools, 1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp *model.Response
		kind ErrorKind
	}{
		{"success", assistantOutput("ok"), ""},
		{"missing credential", &model.Response{APIKeyName: "OPENAI_API_KEY", Reason: "not set"}, KindMissingCredential},
		{"key name without reason", &model.Response{APIKeyName: "OPENAI_API_KEY"}, ""},
		{"upstream error", &model.Response{Error: "rate limited"}, KindUpstreamError},
		{"nil response", nil, KindUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Classify(tt.resp, "")
			if tt.kind == "" {
				assert.Nil(t, e)
				return
			}
			require.NotNil(t, e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.True(t, e.Surfaced())
		})
	}
}

func TestClassifyMissingCredentialLink(t *testing.T) {
	e := Classify(&model.Response{APIKeyName: "ANTHROPIC_API_KEY", Reason: "not set"}, "https://example.test/settings")
	require.NotNil(t, e)
	assert.Equal(t, "https://example.test/settings#ANTHROPIC_API_KEY", e.Link)
	assert.Equal(t, "ANTHROPIC_API_KEY", e.APIKeyName)
	assert.ErrorIs(t, e, ErrMissingCredential)
	assert.NotErrorIs(t, e, ErrUpstream)

	assert.True(t, AnyMissingCredential(nil, assistantOutput("x"), &model.Response{APIKeyName: "K", Reason: "r"}))
	assert.False(t, AnyMissingCredential(assistantOutput("x")))
	assert.True(t, IsGenericError(nil))
	assert.False(t, IsGenericError(assistantOutput("x")))
}

func TestTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	e := transportError(cause)
	assert.ErrorIs(t, e, cause)
	assert.ErrorIs(t, e, ErrTransport)
	assert.Contains(t, e.Error(), "connection reset")
}
