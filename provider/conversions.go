package provider

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"

	"playground/model"
)

// ConvertToOllamaMessages converts model.Message to Ollama api.Message.
//
// Tool calls of assistant turns are carried over with their arguments parsed
// back into a map. Ollama has no tool call ids; tool results are matched by
// position.
//
// Example:
//
//	ollamaMessages := ConvertToOllamaMessages([]model.Message{
//	    {Role: model.RoleUser, Content: "Hello"},
//	})
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, len(messages))
	for i, msg := range messages {
		result[i] = api.Message{
			Role:      string(msg.Role),
			Content:   msg.Content,
			ToolCalls: ConvertFromProviderToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ConvertFromOllamaMessages converts Ollama api.Message to model.Message.
func ConvertFromOllamaMessages(messages []api.Message) []model.Message {
	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = model.Message{
			Role:      model.Role(msg.Role),
			Content:   msg.Content,
			ToolCalls: ConvertToProviderToolCalls(msg.ToolCalls),
		}
	}
	return result
}

// ParseToolArguments parses JSON arguments string into a map.
// Returns an empty map when the arguments are not a JSON object.
func ParseToolArguments(argsJSON string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return make(map[string]any)
	}
	return args
}

// ConvertToProviderToolCalls converts Ollama api.ToolCall to model.ToolCall.
//
// Ollama delivers each call whole and without an id, so a fresh id is
// assigned and the arguments are encoded as one JSON fragment.
//
// Returns nil if the input is nil or empty.
func ConvertToProviderToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		args, err := json.Marshal(map[string]any(call.Function.Arguments))
		if err != nil || call.Function.Arguments == nil {
			args = []byte("{}")
		}
		result[i] = model.ToolCall{
			ID:   "call_" + uuid.NewString(),
			Type: model.ToolTypeFunction,
			Function: model.ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: string(args),
			},
		}
	}
	return result
}

// ConvertFromProviderToolCalls converts model.ToolCall to Ollama api.ToolCall.
//
// Returns nil if the input is nil or empty.
func ConvertFromProviderToolCalls(providerCalls []model.ToolCall) []api.ToolCall {
	if len(providerCalls) == 0 {
		return nil
	}

	result := make([]api.ToolCall, len(providerCalls))
	for i, call := range providerCalls {
		result[i] = api.ToolCall{
			Function: api.ToolCallFunction{
				Index:     i,
				Name:      call.Function.Name,
				Arguments: ParseToolArguments(call.Function.Arguments),
			},
		}
	}
	return result
}

// ConvertToOpenAIMessages converts model messages to OpenAI format.
//
// Assistant turns keep their tool calls and tool turns are sent as tool
// results so the API can match them to the calls that requested them.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleUser:
			result[i] = openai.UserMessage(msg.Content)
		case model.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result[i] = openai.AssistantMessage(msg.Content)
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToOpenAIToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			result[i] = openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
		case model.RoleTool:
			result[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}

func convertToOpenAIToolCalls(calls []model.ToolCall) []openai.ChatCompletionMessageToolCallUnionParam {
	result := make([]openai.ChatCompletionMessageToolCallUnionParam, len(calls))
	for i, call := range calls {
		result[i] = openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				},
			},
		}
	}
	return result
}

// usageFromCounts builds a Usage, or nil when nothing was counted.
func usageFromCounts(prompt, completion, total int64) *model.Usage {
	if prompt == 0 && completion == 0 && total == 0 {
		return nil
	}
	if total == 0 {
		total = prompt + completion
	}
	return &model.Usage{
		PromptTokens:     int(prompt),
		CompletionTokens: int(completion),
		TotalTokens:      int(total),
	}
}
