package provider

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"playground/mcp"
	"playground/model"
	"playground/ollama"
)

// OllamaProvider wraps ollama.Client to implement Backend.
//
// This provider handles all type conversions between the session types and
// Ollama's API types. Ollama delivers tool calls whole and without ids, so
// each one is given a fresh id when it arrives.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL (e.g., "http://localhost:11434").
//     If empty, defaults to "http://localhost:11434".
//
// Returns an error if the baseURL is invalid.
//
// Example:
//
//	provider, err := NewOllamaProvider("http://localhost:11434")
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewOllamaProvider(baseURL string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{
		client: client,
	}, nil
}

func (p *OllamaProvider) chatRequest(req model.CompletionRequest, stream bool) ollama.ChatRequest {
	options := map[string]any{
		"temperature":       req.Temperature,
		"top_p":             req.TopP,
		"frequency_penalty": req.FrequencyPenalty,
		"presence_penalty":  req.PresencePenalty,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}

	cr := ollama.ChatRequest{
		Model:    req.Model,
		Messages: ConvertToOllamaMessages(req.Messages),
		Stream:   stream,
		Options:  options,
	}
	if len(req.Tools) > 0 && ollama.ModelSupportsToolCalling(req.Model) {
		cr.Tools = mcp.ConvertToolsToOllama(req.Tools)
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type != model.ResponseFormatText {
		cr.Format = "json"
	}
	return cr
}

// CompletionsCreate implements model.Transport with a single request.
// Ollama answers with exactly one choice.
func (p *OllamaProvider) CompletionsCreate(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
	var final api.ChatResponse
	err := p.client.Chat(ctx, p.chatRequest(req, false), func(resp api.ChatResponse) error {
		final = resp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama completion error: %w", err)
	}

	return &model.Response{
		Model: final.Model,
		Choices: []model.Choice{{
			Message: model.Message{
				Role:      model.RoleAssistant,
				Content:   final.Message.Content,
				ToolCalls: ConvertToProviderToolCalls(final.Message.ToolCalls),
			},
			FinishReason: final.DoneReason,
		}},
		Usage: usageFromCounts(int64(final.PromptEvalCount), int64(final.EvalCount), 0),
	}, nil
}

// CompletionsCreateStream implements model.Transport with streaming support.
func (p *OllamaProvider) CompletionsCreateStream(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
	chatReq := p.chatRequest(req, true)

	return produce(ctx, func(ctx context.Context, out *pipe) (model.StreamMeta, error) {
		var (
			meta  model.StreamMeta
			calls int
		)
		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Done {
				meta.Usage = usageFromCounts(int64(resp.PromptEvalCount), int64(resp.EvalCount), 0)
			}

			cc := model.ChunkChoice{
				Delta:        model.Delta{Content: resp.Message.Content},
				FinishReason: resp.DoneReason,
			}
			for _, tc := range ConvertToProviderToolCalls(resp.Message.ToolCalls) {
				cc.Delta.ToolCalls = append(cc.Delta.ToolCalls, model.ToolCallDelta{
					Index:    calls,
					ID:       tc.ID,
					Type:     tc.Type,
					Function: tc.Function,
				})
				calls++
			}
			if cc.Delta.Content == "" && len(cc.Delta.ToolCalls) == 0 && cc.FinishReason == "" {
				return nil
			}

			if !out.send(model.Chunk{Model: resp.Model, Choices: []model.ChunkChoice{cc}}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			return meta, fmt.Errorf("ollama streaming error: %w", err)
		}
		return meta, nil
	}), nil
}

// ListModels implements Backend.ListModels (direct passthrough).
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// Ping implements Backend.Ping (direct passthrough).
//
// Returns an error if the server is not reachable or times out.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
