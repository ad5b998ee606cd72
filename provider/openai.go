package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"playground/mcp"
	"playground/model"
	"playground/ollama"
)

// OpenAIProvider implements Backend using OpenAI's official Go SDK. It also
// serves OpenAI-compatible endpoints (see OpenRouterProvider).
type OpenAIProvider struct {
	client  openai.Client
	name    string
	baseURL string

	// legacyMaxTokens sends max_tokens instead of max_completion_tokens.
	legacyMaxTokens bool
	// toolName maps tool names to the form accepted upstream; fromToolName
	// reverses it.
	toolName     func(string) string
	fromToolName func(string) string
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// Parameters:
//   - baseURL: OpenAI API base URL (default: "https://api.openai.com/v1")
//   - apiKey: OpenAI API key (required)
//
// Returns an error if the API key is missing.
func NewOpenAIProvider(baseURL, apiKey string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	client := openai.NewClient(append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)...)

	return &OpenAIProvider{
		client:  client,
		name:    "openai",
		baseURL: baseURL,
	}, nil
}

// buildParams projects a completion request onto the SDK parameters.
func (p *OpenAIProvider) buildParams(req model.CompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(req.Model),
		Messages:         ConvertToOpenAIMessages(p.renameToolCalls(req.Messages)),
		Temperature:      openai.Float(req.Temperature),
		TopP:             openai.Float(req.TopP),
		FrequencyPenalty: openai.Float(req.FrequencyPenalty),
		PresencePenalty:  openai.Float(req.PresencePenalty),
	}
	if req.MaxTokens > 0 {
		if p.legacyMaxTokens {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		} else {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
		}
	}
	if req.N > 1 {
		params.N = openai.Int(int64(req.N))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type != model.ResponseFormatText {
		// Without a schema in the request json_schema degrades to json_object.
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = mcp.ConvertToolsToOpenAIFormat(req.Tools, p.toolName)
	}
	return params
}

// CompletionsCreate implements model.Transport with a single request.
func (p *OpenAIProvider) CompletionsCreate(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("%s completion error: %w", p.name, err)
	}

	resp := &model.Response{
		ID:      completion.ID,
		Model:   completion.Model,
		Choices: make([]model.Choice, 0, len(completion.Choices)),
		Usage: usageFromCounts(
			completion.Usage.PromptTokens,
			completion.Usage.CompletionTokens,
			completion.Usage.TotalTokens,
		),
	}
	for _, c := range completion.Choices {
		msg := model.Message{
			Role:    model.RoleAssistant,
			Content: c.Message.Content,
		}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:   tc.ID,
				Type: model.ToolTypeFunction,
				Function: model.ToolCallFunction{
					Name:      p.upstreamToolName(tc.Function.Name),
					Arguments: tc.Function.Arguments,
				},
			})
		}
		resp.Choices = append(resp.Choices, model.Choice{
			Index:        int(c.Index),
			Message:      msg,
			FinishReason: c.FinishReason,
		})
	}
	return resp, nil
}

// CompletionsCreateStream implements model.Transport with streaming support.
//
// OpenAI identifies a tool call by id only on its first fragment; later
// fragments carry just the call's index. The id is filled in here so every
// delta handed out names its call.
func (p *OpenAIProvider) CompletionsCreateStream(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
	params := p.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	return produce(ctx, func(ctx context.Context, out *pipe) (model.StreamMeta, error) {
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var meta model.StreamMeta
		// choice index -> tool call index -> id
		ids := map[int64]map[int64]string{}

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Usage.TotalTokens > 0 {
				meta.Usage = usageFromCounts(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens, chunk.Usage.TotalTokens)
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			c := model.Chunk{ID: chunk.ID, Model: chunk.Model}
			for _, choice := range chunk.Choices {
				cc := model.ChunkChoice{
					Index:        int(choice.Index),
					FinishReason: choice.FinishReason,
					Delta: model.Delta{
						Role:    model.Role(choice.Delta.Role),
						Content: choice.Delta.Content,
					},
				}
				for _, tc := range choice.Delta.ToolCalls {
					byIndex := ids[choice.Index]
					if byIndex == nil {
						byIndex = map[int64]string{}
						ids[choice.Index] = byIndex
					}
					id := tc.ID
					if id != "" {
						byIndex[tc.Index] = id
					} else {
						id = byIndex[tc.Index]
					}
					cc.Delta.ToolCalls = append(cc.Delta.ToolCalls, model.ToolCallDelta{
						Index: int(tc.Index),
						ID:    id,
						Type:  tc.Type,
						Function: model.ToolCallFunction{
							Name:      p.upstreamToolName(tc.Function.Name),
							Arguments: tc.Function.Arguments,
						},
					})
				}
				c.Choices = append(c.Choices, cc)
			}
			if !out.send(c) {
				return meta, ctx.Err()
			}
		}

		if err := stream.Err(); err != nil {
			return meta, fmt.Errorf("%s streaming error: %w", p.name, err)
		}
		return meta, nil
	}), nil
}

func (p *OpenAIProvider) upstreamToolName(name string) string {
	if p.fromToolName == nil || name == "" {
		return name
	}
	return p.fromToolName(name)
}

// renameToolCalls applies the upstream tool naming to tool calls already in
// the history.
func (p *OpenAIProvider) renameToolCalls(messages []model.Message) []model.Message {
	if p.toolName == nil {
		return messages
	}
	out := model.CloneMessages(messages)
	for i := range out {
		for j := range out[i].ToolCalls {
			out[i].ToolCalls[j].Function.Name = p.toolName(out[i].ToolCalls[j].Function.Name)
		}
	}
	return out
}

// ListModels implements Backend.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", p.name, err)
	}

	result := make([]ollama.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, ollama.ModelInfo{
			Name:         m.ID,
			InternalName: m.ID,
			Provider:     p.name, // Must match provider ID
		})
	}

	return result, nil
}

// Ping implements Backend.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
