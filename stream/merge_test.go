package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/model"
)

func TestMergeContentDelta(t *testing.T) {
	tests := []struct {
		name   string
		deltas []string
		want   string
	}{
		{name: "single delta", deltas: []string{"Hello"}, want: "Hello"},
		{name: "two deltas", deltas: []string{"Hi", " there"}, want: "Hi there"},
		{name: "split boundary", deltas: []string{"H", "i", " th", "ere"}, want: "Hi there"},
		{name: "empty deltas keep content", deltas: []string{"", "a", "", "b"}, want: "ab"},
		{name: "whitespace is not normalised", deltas: []string{"  ", "\n", "x  "}, want: "  \nx  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf model.Response
			for _, d := range tt.deltas {
				MergeContentDelta(&buf, d)
			}
			require.Len(t, buf.Choices, 1)
			assert.Equal(t, tt.want, buf.Choices[0].Message.Content)
			assert.Equal(t, model.RoleAssistant, buf.Choices[0].Message.Role)
		})
	}
}

func TestMergeContentDeltaBoundaryIndependence(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog"

	for split := 0; split <= len(text); split++ {
		var whole, parts model.Response
		MergeContentDelta(&whole, text)
		MergeContentDelta(&parts, text[:split])
		MergeContentDelta(&parts, text[split:])

		if whole.Choices[0].Message.Content != parts.Choices[0].Message.Content {
			t.Fatalf("split at %d: got %q, want %q", split, parts.Choices[0].Message.Content, whole.Choices[0].Message.Content)
		}
	}
}

func TestMergeToolCallDeltaFragments(t *testing.T) {
	var calls []model.ToolCall
	deltas := []model.ToolCallDelta{
		{ID: "x", Function: model.ToolCallFunction{Name: "lookup"}},
		{ID: "x", Function: model.ToolCallFunction{Arguments: `{"q":`}},
		{ID: "x", Function: model.ToolCallFunction{Arguments: `"cat"}`}},
	}
	for _, d := range deltas {
		calls = MergeToolCallDelta(calls, []model.ToolCallDelta{d})
	}

	require.Len(t, calls, 1)
	assert.Equal(t, "x", calls[0].ID)
	assert.Equal(t, "lookup", calls[0].Function.Name)
	assert.Equal(t, `{"q":"cat"}`, calls[0].Function.Arguments)

	var args map[string]string
	require.NoError(t, json.Unmarshal([]byte(calls[0].Function.Arguments), &args))
	assert.Equal(t, "cat", args["q"])
	assert.True(t, IsValidToolCall(calls[0]))
}

func TestMergeToolCallDeltaInterleavedIDs(t *testing.T) {
	a := []model.ToolCallDelta{
		{ID: "a", Type: model.ToolTypeFunction, Function: model.ToolCallFunction{Name: "first"}},
		{ID: "a", Function: model.ToolCallFunction{Arguments: `{"n":`}},
		{ID: "a", Function: model.ToolCallFunction{Arguments: `1}`}},
	}
	b := []model.ToolCallDelta{
		{ID: "b", Type: model.ToolTypeFunction, Function: model.ToolCallFunction{Name: "second"}},
		{ID: "b", Function: model.ToolCallFunction{Arguments: `{"s":"`}},
		{ID: "b", Function: model.ToolCallFunction{Arguments: `ok"}`}},
	}

	orders := map[string][]model.ToolCallDelta{
		"a then b":    append(append([]model.ToolCallDelta{}, a...), b...),
		"b then a":    append(append([]model.ToolCallDelta{}, b...), a...),
		"interleaved": {a[0], b[0], b[1], a[1], a[2], b[2]},
	}

	for name, seq := range orders {
		t.Run(name, func(t *testing.T) {
			var calls []model.ToolCall
			for _, d := range seq {
				calls = MergeToolCallDelta(calls, []model.ToolCallDelta{d})
			}

			byID := map[string]model.ToolCall{}
			for _, c := range calls {
				byID[c.ID] = c
			}
			require.Len(t, byID, 2)
			assert.Equal(t, `{"n":1}`, byID["a"].Function.Arguments)
			assert.Equal(t, "first", byID["a"].Function.Name)
			assert.Equal(t, `{"s":"ok"}`, byID["b"].Function.Arguments)
			assert.Equal(t, "second", byID["b"].Function.Name)
		})
	}
}

func TestMergeToolCallDeltaWithoutID(t *testing.T) {
	calls := MergeToolCallDelta(nil, []model.ToolCallDelta{
		{ID: "call_1", Function: model.ToolCallFunction{Name: "lookup", Arguments: `{"q":`}},
	})
	calls = MergeToolCallDelta(calls, []model.ToolCallDelta{
		{Function: model.ToolCallFunction{Arguments: `"cat"}`}},
	})

	require.Len(t, calls, 2, "id-less delta must not be merged into an existing call")
	assert.Equal(t, `{"q":`, calls[0].Function.Arguments)
	assert.Equal(t, "", calls[1].ID)
	assert.Equal(t, `"cat"}`, calls[1].Function.Arguments)
	assert.False(t, AllToolCallsValid(calls))
}

func TestMergeToolCallDeltaDoesNotMutateInput(t *testing.T) {
	existing := []model.ToolCall{{ID: "x", Function: model.ToolCallFunction{Name: "lookup", Arguments: `{"q":`}}}
	merged := MergeToolCallDelta(existing, []model.ToolCallDelta{
		{ID: "x", Function: model.ToolCallFunction{Arguments: `"cat"}`}},
	})

	assert.Equal(t, `{"q":`, existing[0].Function.Arguments)
	assert.Equal(t, `{"q":"cat"}`, merged[0].Function.Arguments)
}

func TestMergeToolCallDeltaNameReplacedTypeKept(t *testing.T) {
	calls := MergeToolCallDelta(nil, []model.ToolCallDelta{
		{ID: "x", Type: "function", Function: model.ToolCallFunction{Name: "draft"}},
	})
	calls = MergeToolCallDelta(calls, []model.ToolCallDelta{
		{ID: "x", Type: "other", Function: model.ToolCallFunction{Name: "final"}},
	})

	require.Len(t, calls, 1)
	assert.Equal(t, "final", calls[0].Function.Name)
	assert.Equal(t, "function", calls[0].Type)
}

func TestIsValidToolCall(t *testing.T) {
	tests := []struct {
		name string
		call model.ToolCall
		want bool
	}{
		{
			name: "complete",
			call: model.ToolCall{ID: "x", Function: model.ToolCallFunction{Name: "f", Arguments: `{}`}},
			want: true,
		},
		{
			name: "missing id",
			call: model.ToolCall{Function: model.ToolCallFunction{Name: "f", Arguments: `{}`}},
		},
		{
			name: "missing name",
			call: model.ToolCall{ID: "x", Function: model.ToolCallFunction{Arguments: `{}`}},
		},
		{
			name: "empty arguments",
			call: model.ToolCall{ID: "x", Function: model.ToolCallFunction{Name: "f"}},
		},
		{
			name: "partial arguments",
			call: model.ToolCall{ID: "x", Function: model.ToolCallFunction{Name: "f", Arguments: `{"q":"ca`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidToolCall(tt.call); got != tt.want {
				t.Errorf("IsValidToolCall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllToolCallsValidEmpty(t *testing.T) {
	if !AllToolCallsValid(nil) {
		t.Error("no tool calls should count as valid")
	}
}
