package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"playground/model"
	"playground/ollama"
)

// GeminiProvider implements Backend on the Google Gen AI SDK.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini API backend. baseURL may be empty.
func NewGeminiProvider(baseURL, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) buildConfig(req model.CompletionRequest, system *genai.Content) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(req.Temperature)),
		TopP:              genai.Ptr(float32(req.TopP)),
		FrequencyPenalty:  genai.Ptr(float32(req.FrequencyPenalty)),
		PresencePenalty:   genai.Ptr(float32(req.PresencePenalty)),
		StopSequences:     req.Stop,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.N > 1 {
		cfg.CandidateCount = int32(req.N)
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type != model.ResponseFormatText {
		cfg.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// CompletionsCreate implements model.Transport with a single request.
func (p *GeminiProvider) CompletionsCreate(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
	contents, system := convertToGeminiContents(req.Messages)
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, p.buildConfig(req, system))
	if err != nil {
		return nil, fmt.Errorf("Gemini completion error: %w", err)
	}

	out := &model.Response{
		ID:    resp.ResponseID,
		Model: resp.ModelVersion,
		Usage: geminiUsage(resp.UsageMetadata),
	}
	for i, cand := range resp.Candidates {
		msg := model.Message{Role: model.RoleAssistant}
		if d, ok := geminiDelta(cand); ok {
			msg.Content = d.Content
			for _, tc := range d.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{ID: tc.ID, Type: tc.Type, Function: tc.Function})
			}
		}
		out.Choices = append(out.Choices, model.Choice{
			Index:        i,
			Message:      msg,
			FinishReason: strings.ToLower(string(cand.FinishReason)),
		})
	}
	return out, nil
}

// CompletionsCreateStream implements model.Transport with streaming support.
// Gemini delivers function calls whole; each gets an id if it has none.
func (p *GeminiProvider) CompletionsCreateStream(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
	contents, system := convertToGeminiContents(req.Messages)
	cfg := p.buildConfig(req, system)

	return produce(ctx, func(ctx context.Context, out *pipe) (model.StreamMeta, error) {
		var meta model.StreamMeta
		// candidate index -> tool calls seen so far
		calls := map[int]int{}

		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				return meta, fmt.Errorf("Gemini streaming error: %w", err)
			}
			if u := geminiUsage(resp.UsageMetadata); u != nil {
				meta.Usage = u
			}

			c := model.Chunk{ID: resp.ResponseID, Model: resp.ModelVersion}
			for pos, cand := range resp.Candidates {
				index := pos
				if cand.Index > 0 {
					index = int(cand.Index)
				}
				d, ok := geminiDelta(cand)
				if !ok {
					continue
				}
				for i := range d.ToolCalls {
					d.ToolCalls[i].Index = calls[index]
					calls[index]++
				}
				c.Choices = append(c.Choices, model.ChunkChoice{
					Index:        index,
					Delta:        d,
					FinishReason: strings.ToLower(string(cand.FinishReason)),
				})
			}
			if len(c.Choices) == 0 {
				continue
			}
			if !out.send(c) {
				return meta, ctx.Err()
			}
		}
		return meta, nil
	}), nil
}

// geminiDelta returns the text and function calls of one candidate as a
// delta.
func geminiDelta(cand *genai.Candidate) (model.Delta, bool) {
	if cand == nil || cand.Content == nil {
		return model.Delta{}, false
	}
	d := model.Delta{Role: model.RoleAssistant}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			args, err := json.Marshal(fc.Args)
			if err != nil || fc.Args == nil {
				args = []byte("{}")
			}
			d.ToolCalls = append(d.ToolCalls, model.ToolCallDelta{
				ID:   id,
				Type: model.ToolTypeFunction,
				Function: model.ToolCallFunction{
					Name:      fc.Name,
					Arguments: string(args),
				},
			})
		}
	}
	d.Content = text.String()
	return d, true
}

func geminiUsage(u *genai.GenerateContentResponseUsageMetadata) *model.Usage {
	if u == nil {
		return nil
	}
	return usageFromCounts(int64(u.PromptTokenCount), int64(u.CandidatesTokenCount), int64(u.TotalTokenCount))
}

// convertToGeminiContents converts session messages to Gemini contents and a
// system instruction. Tool results are sent as function responses; the
// function name is looked up from the call they answer.
func convertToGeminiContents(messages []model.Message) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   *genai.Content
		names    = map[string]string{}
	)

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})

		case model.RoleAssistant:
			c := &genai.Content{Role: "model"}
			if msg.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				names[tc.ID] = tc.Function.Name
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: ParseToolArguments(tc.Function.Arguments),
				}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}

		case model.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     names[msg.ToolCallID],
				Response: map[string]any{"output": msg.Content},
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == "user" && contents[n-1].Parts[0].FunctionResponse != nil {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})

		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		}
	}
	return contents, system
}

// ListModels implements Backend.ListModels.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	page, err := p.client.Models.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list Gemini models: %w", err)
	}

	result := make([]ollama.ModelInfo, 0, len(page.Items))
	for _, m := range page.Items {
		name := strings.TrimPrefix(m.Name, "models/")
		result = append(result, ollama.ModelInfo{
			Name:         name,
			InternalName: name,
			Provider:     "gemini",
		})
	}
	return result, nil
}

// Ping implements Backend.Ping by listing models.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, nil); err != nil {
		return fmt.Errorf("Gemini ping failed: %w", err)
	}
	return nil
}
