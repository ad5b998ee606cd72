package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"playground/mcp"
	"playground/model"
	"playground/ollama"
)

// AnthropicProvider implements Backend using Anthropic's official Go SDK.
type AnthropicProvider struct {
	client  *anthropic.Client
	baseURL string
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// Parameters:
//   - baseURL: Anthropic API base URL (default: "https://api.anthropic.com")
//   - apiKey: Anthropic API key (required)
//
// Returns an error if the API key is missing.
func NewAnthropicProvider(baseURL, apiKey string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)...)

	return &AnthropicProvider{
		client:  &client,
		baseURL: baseURL,
	}, nil
}

func (p *AnthropicProvider) buildParams(req model.CompletionRequest) anthropic.MessageNewParams {
	messages, system := convertToAnthropicMessages(req.Messages)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096 // Required by Anthropic API
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	if len(req.Tools) > 0 {
		params.Tools = mcp.ConvertToolsToAnthropicFormat(req.Tools)
	}
	return params
}

// CompletionsCreate implements model.Transport with a single request.
// Anthropic produces exactly one choice.
func (p *AnthropicProvider) CompletionsCreate(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("Anthropic completion error: %w", err)
	}

	out := model.Message{Role: model.RoleAssistant}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += b.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:   b.ID,
				Type: model.ToolTypeFunction,
				Function: model.ToolCallFunction{
					Name:      b.Name,
					Arguments: string(b.Input),
				},
			})
		}
	}

	return &model.Response{
		ID:    msg.ID,
		Model: string(msg.Model),
		Choices: []model.Choice{{
			Message:      out,
			FinishReason: string(msg.StopReason),
		}},
		Usage: usageFromCounts(msg.Usage.InputTokens, msg.Usage.OutputTokens, 0),
	}, nil
}

// CompletionsCreateStream implements model.Transport with streaming support.
//
// Tool use arrives as a content block start carrying the call's id and name,
// followed by partial JSON deltas for the same block index. Each delta is
// tagged with the id of its block.
func (p *AnthropicProvider) CompletionsCreateStream(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
	params := p.buildParams(req)

	return produce(ctx, func(ctx context.Context, out *pipe) (model.StreamMeta, error) {
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		var (
			meta          model.StreamMeta
			id, modelName string
			input         int64
			// content block index -> tool call position
			toolBlocks = map[int64]int{}
			toolIDs    []string
		)

		emit := func(cc model.ChunkChoice) bool {
			return out.send(model.Chunk{ID: id, Model: modelName, Choices: []model.ChunkChoice{cc}})
		}

		for stream.Next() {
			var cc *model.ChunkChoice

			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				id, modelName = ev.Message.ID, string(ev.Message.Model)
				input = ev.Message.Usage.InputTokens
				cc = &model.ChunkChoice{Delta: model.Delta{Role: model.RoleAssistant}}

			case anthropic.ContentBlockStartEvent:
				if ev.ContentBlock.Type != "tool_use" {
					continue
				}
				pos := len(toolIDs)
				toolBlocks[ev.Index] = pos
				toolIDs = append(toolIDs, ev.ContentBlock.ID)
				cc = &model.ChunkChoice{Delta: model.Delta{ToolCalls: []model.ToolCallDelta{{
					Index:    pos,
					ID:       ev.ContentBlock.ID,
					Type:     model.ToolTypeFunction,
					Function: model.ToolCallFunction{Name: ev.ContentBlock.Name},
				}}}}

			case anthropic.ContentBlockDeltaEvent:
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					cc = &model.ChunkChoice{Delta: model.Delta{Content: d.Text}}
				case anthropic.InputJSONDelta:
					pos, ok := toolBlocks[ev.Index]
					if !ok || d.PartialJSON == "" {
						continue
					}
					cc = &model.ChunkChoice{Delta: model.Delta{ToolCalls: []model.ToolCallDelta{{
						Index:    pos,
						ID:       toolIDs[pos],
						Function: model.ToolCallFunction{Arguments: d.PartialJSON},
					}}}}
				}

			case anthropic.MessageDeltaEvent:
				meta.Usage = usageFromCounts(input, ev.Usage.OutputTokens, 0)
				if ev.Delta.StopReason != "" {
					cc = &model.ChunkChoice{FinishReason: string(ev.Delta.StopReason)}
				}
			}

			if cc != nil && !emit(*cc) {
				return meta, ctx.Err()
			}
		}

		if err := stream.Err(); err != nil {
			return meta, fmt.Errorf("Anthropic streaming error: %w", err)
		}
		return meta, nil
	}), nil
}

// ListModels implements Backend.ListModels.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Anthropic models: %w", err)
	}

	result := make([]ollama.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, ollama.ModelInfo{
			Name:         m.DisplayName,
			InternalName: m.ID,
			Provider:     "anthropic", // Must match provider ID
		})
	}

	return result, nil
}

// Ping implements Backend.Ping by listing models.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}

// convertToAnthropicMessages converts session messages to Anthropic format.
// Returns the message array and any system prompt found.
//
// Tool results become tool_result blocks in a user turn; consecutive results
// share one turn, as the API requires all results for an assistant turn to
// follow it together.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			// Anthropic uses a separate system parameter, not in messages array
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: msg.Content,
			})

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(toolInput(tc.Function.Arguments)), tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			block := anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if i > 0 && messages[i-1].Role == model.RoleTool {
				last := &anthropicMsgs[len(anthropicMsgs)-1]
				last.Content = append(last.Content, block)
				continue
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(block))

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}

// toolInput returns arguments as a JSON object, "{}" when they are not one.
func toolInput(args string) string {
	var v map[string]any
	if json.Unmarshal([]byte(args), &v) != nil {
		return "{}"
	}
	return args
}
