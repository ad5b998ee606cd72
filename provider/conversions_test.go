package provider

import (
	"strings"
	"testing"

	"github.com/ollama/ollama/api"

	"playground/model"
	"playground/provider/testutil"
)

func TestConvertToOllamaMessages(t *testing.T) {
	tests := []struct {
		name     string
		input    []model.Message
		expected []api.Message
	}{
		{
			name:     "empty slice",
			input:    []model.Message{},
			expected: []api.Message{},
		},
		{
			name:     "single message",
			input:    testutil.SingleUserMessage("Hello"),
			expected: []api.Message{{Role: "user", Content: "Hello"}},
		},
		{
			name:  "multiple messages",
			input: testutil.TestMessages(),
			expected: []api.Message{
				{Role: "user", Content: "Hello, how are you?"},
				{Role: "assistant", Content: "I'm doing well, thank you!"},
				{Role: "user", Content: "Can you help me with a task?"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToOllamaMessages(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}

			for i, msg := range result {
				if msg.Role != tt.expected[i].Role {
					t.Errorf("message %d role: got %q, want %q", i, msg.Role, tt.expected[i].Role)
				}
				if msg.Content != tt.expected[i].Content {
					t.Errorf("message %d content: got %q, want %q", i, msg.Content, tt.expected[i].Content)
				}
			}
		})
	}
}

func TestConvertToOllamaMessagesKeepsToolCalls(t *testing.T) {
	result := ConvertToOllamaMessages(testutil.ToolConversation())

	if len(result[1].ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result[1].ToolCalls))
	}
	fn := result[1].ToolCalls[0].Function
	if fn.Name != "get_weather" {
		t.Errorf("name: got %q", fn.Name)
	}
	if fn.Arguments["location"] != "Paris" {
		t.Errorf("arguments not parsed: %v", fn.Arguments)
	}
}

func TestConvertFromOllamaMessages(t *testing.T) {
	input := []api.Message{
		{Role: "user", Content: "Question 1"},
		{Role: "assistant", Content: "Answer 1"},
	}

	result := ConvertFromOllamaMessages(input)

	if len(result) != 2 {
		t.Fatalf("length mismatch: got %d, want 2", len(result))
	}
	if result[0].Role != model.RoleUser || result[1].Role != model.RoleAssistant {
		t.Errorf("roles: got %q, %q", result[0].Role, result[1].Role)
	}
	if result[1].Content != "Answer 1" {
		t.Errorf("content: got %q", result[1].Content)
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"object", `{"a":1,"b":"x"}`, 2},
		{"empty", ``, 0},
		{"partial", `{"a":`, 0},
		{"array", `[1,2]`, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolArguments(tt.in)
			if got == nil {
				t.Fatal("expected non-nil map")
			}
			if len(got) != tt.want {
				t.Errorf("got %d keys, want %d", len(got), tt.want)
			}
		})
	}
}

func TestConvertToProviderToolCalls(t *testing.T) {
	tests := []struct {
		name     string
		input    []api.ToolCall
		expected []string
	}{
		{name: "nil slice", input: nil},
		{name: "empty slice", input: []api.ToolCall{}},
		{
			name: "single tool call",
			input: []api.ToolCall{
				{Function: api.ToolCallFunction{Name: "get_weather", Arguments: map[string]any{"city": "San Francisco"}}},
			},
			expected: []string{"get_weather"},
		},
		{
			name: "multiple tool calls",
			input: []api.ToolCall{
				{Function: api.ToolCallFunction{Name: "search", Arguments: map[string]any{"query": "golang"}}},
				{Function: api.ToolCallFunction{Name: "calculate"}},
			},
			expected: []string{"search", "calculate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToProviderToolCalls(tt.input)

			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}

			seen := map[string]bool{}
			for i, call := range result {
				if call.Function.Name != tt.expected[i] {
					t.Errorf("tool call %d name: got %q, want %q", i, call.Function.Name, tt.expected[i])
				}
				if !strings.HasPrefix(call.ID, "call_") || seen[call.ID] {
					t.Errorf("tool call %d id %q is not a fresh call id", i, call.ID)
				}
				seen[call.ID] = true
				if !strings.HasPrefix(call.Function.Arguments, "{") {
					t.Errorf("tool call %d arguments not a JSON object: %q", i, call.Function.Arguments)
				}
			}
		})
	}
}

func TestConvertFromProviderToolCalls(t *testing.T) {
	input := []model.ToolCall{
		{ID: "a", Function: model.ToolCallFunction{Name: "read_file", Arguments: `{"path":"/tmp/test.txt"}`}},
		{ID: "b", Function: model.ToolCallFunction{Name: "write_file", Arguments: `{"path":"/tmp/out.txt","content":"data"}`}},
	}

	result := ConvertFromProviderToolCalls(input)

	if len(result) != 2 {
		t.Fatalf("length mismatch: got %d, want 2", len(result))
	}
	if result[1].Function.Index != 1 {
		t.Errorf("index: got %d, want 1", result[1].Function.Index)
	}
	if len(result[1].Function.Arguments) != 2 {
		t.Errorf("arguments length: got %d, want 2", len(result[1].Function.Arguments))
	}
	if ConvertFromProviderToolCalls(nil) != nil {
		t.Error("expected nil for nil input")
	}
}

// TestRoundTripConversions verifies that converting back and forth preserves data
func TestRoundTripConversions(t *testing.T) {
	t.Run("messages round trip", func(t *testing.T) {
		original := testutil.TestMessages()

		result := ConvertFromOllamaMessages(ConvertToOllamaMessages(original))

		if len(result) != len(original) {
			t.Fatalf("length mismatch: got %d, want %d", len(result), len(original))
		}
		for i := range result {
			if result[i].Role != original[i].Role || result[i].Content != original[i].Content {
				t.Errorf("message %d changed: got {%q, %q}, want {%q, %q}",
					i, result[i].Role, result[i].Content, original[i].Role, original[i].Content)
			}
		}
	})

	t.Run("tool calls round trip", func(t *testing.T) {
		original := []model.ToolCall{
			{ID: "x", Function: model.ToolCallFunction{Name: "test_tool", Arguments: `{"key":"value"}`}},
		}

		result := ConvertToProviderToolCalls(ConvertFromProviderToolCalls(original))

		if len(result) != 1 {
			t.Fatalf("length mismatch: got %d, want 1", len(result))
		}
		if result[0].Function.Name != "test_tool" {
			t.Errorf("tool name changed: got %q", result[0].Function.Name)
		}
		if result[0].Function.Arguments != `{"key":"value"}` {
			t.Errorf("arguments changed: got %q", result[0].Function.Arguments)
		}
	})
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := append([]model.Message{testutil.SystemMessage("be brief")}, testutil.ToolConversation()...)

	result := ConvertToOpenAIMessages(msgs)

	if len(result) != 4 {
		t.Fatalf("length mismatch: got %d, want 4", len(result))
	}
	if result[0].OfSystem == nil {
		t.Error("message 0 should be a system message")
	}
	if result[1].OfUser == nil {
		t.Error("message 1 should be a user message")
	}
	assistant := result[2].OfAssistant
	if assistant == nil || len(assistant.ToolCalls) != 1 {
		t.Fatalf("message 2 should be an assistant message with one tool call")
	}
	if fn := assistant.ToolCalls[0].OfFunction; fn == nil || fn.ID != "call_1" || fn.Function.Name != "get_weather" {
		t.Errorf("tool call not carried over: %+v", assistant.ToolCalls[0])
	}
	if tool := result[3].OfTool; tool == nil || tool.ToolCallID != "call_1" {
		t.Error("message 3 should be a tool result for call_1")
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	msgs := append([]model.Message{testutil.SystemMessage("be brief")}, testutil.ToolConversation()...)
	msgs = append(msgs, model.Message{Role: model.RoleTool, ToolCallID: "call_2", Content: "more"})

	result, system := convertToAnthropicMessages(msgs)

	if len(system) != 1 || system[0].Text != "be brief" {
		t.Fatalf("system: got %+v", system)
	}
	// user, assistant(tool_use), user(two tool results)
	if len(result) != 3 {
		t.Fatalf("length mismatch: got %d, want 3", len(result))
	}
	if result[1].Content[0].OfToolUse == nil || result[1].Content[0].OfToolUse.ID != "call_1" {
		t.Error("assistant turn should carry the tool_use block")
	}
	if len(result[2].Content) != 2 {
		t.Fatalf("consecutive tool results should share a turn, got %d blocks", len(result[2].Content))
	}
	if r := result[2].Content[1].OfToolResult; r == nil || r.ToolUseID != "call_2" {
		t.Error("second tool result missing")
	}
}

func TestConvertToGeminiContents(t *testing.T) {
	msgs := append([]model.Message{testutil.SystemMessage("be brief")}, testutil.ToolConversation()...)

	contents, system := convertToGeminiContents(msgs)

	if system == nil || system.Parts[0].Text != "be brief" {
		t.Fatal("system instruction missing")
	}
	if len(contents) != 3 {
		t.Fatalf("length mismatch: got %d, want 3", len(contents))
	}
	if contents[1].Role != "model" || contents[1].Parts[0].FunctionCall == nil {
		t.Error("assistant turn should be a model function call")
	}
	resp := contents[2].Parts[0].FunctionResponse
	if resp == nil || resp.Name != "get_weather" || resp.Response["output"] != "18C and sunny" {
		t.Errorf("function response not matched to its call: %+v", resp)
	}
}

func TestUsageFromCounts(t *testing.T) {
	if usageFromCounts(0, 0, 0) != nil {
		t.Error("expected nil usage when nothing was counted")
	}
	u := usageFromCounts(3, 4, 0)
	if u == nil || u.TotalTokens != 7 {
		t.Errorf("total should default to prompt+completion, got %+v", u)
	}
}
