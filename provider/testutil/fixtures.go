package testutil

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"playground/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "Hello, how are you?"},
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!"},
		{Role: model.RoleUser, Content: "Can you help me with a task?"},
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{{Role: model.RoleUser, Content: content}}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	return model.Message{Role: model.RoleSystem, Content: content}
}

// ToolConversation returns a history in which the assistant called a tool
// and the tool answered.
func ToolConversation() []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: "What's the weather in Paris?"},
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				ID:   "call_1",
				Type: model.ToolTypeFunction,
				Function: model.ToolCallFunction{
					Name:      "get_weather",
					Arguments: `{"location":"Paris"}`,
				},
			}},
		},
		{Role: model.RoleTool, ToolCallID: "call_1", Content: "18C and sunny"},
	}
}

// TextChunks returns one chunk per content fragment, all for choice 0.
func TextChunks(parts ...string) []model.Chunk {
	chunks := make([]model.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = model.Chunk{Choices: []model.ChunkChoice{{Delta: model.Delta{Content: p}}}}
	}
	return chunks
}

// ToolCallChunk returns a chunk carrying one tool-call fragment for choice 0.
func ToolCallChunk(id, name, args string) model.Chunk {
	return model.Chunk{Choices: []model.ChunkChoice{{
		Delta: model.Delta{ToolCalls: []model.ToolCallDelta{{
			ID:       id,
			Type:     model.ToolTypeFunction,
			Function: model.ToolCallFunction{Name: name, Arguments: args},
		}}},
	}}}
}

// TextResponse returns a one-choice assistant response.
func TextResponse(content string) *model.Response {
	return &model.Response{
		Choices: []model.Choice{{
			Message: model.Message{Role: model.RoleAssistant, Content: content},
		}},
	}
}

// MissingCredentialMeta returns stream metadata reporting a missing key.
func MissingCredentialMeta(keyName string) model.StreamMeta {
	return model.StreamMeta{APIKeyName: keyName, Reason: keyName + " is not set"}
}

// TestMCPTools returns sample MCP tools for testing
func TestMCPTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		{
			Name:        "get_weather",
			Description: "Get the current weather for a location",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "The city and state, e.g. San Francisco, CA",
					},
				},
				Required: []string{"location"},
			},
		},
		{
			Name:        "calculate",
			Description: "Perform a mathematical calculation",
			InputSchema: mcptypes.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "The mathematical expression to evaluate",
					},
				},
				Required: []string{"expression"},
			},
		},
	}
}
