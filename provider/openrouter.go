package provider

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3/option"
)

// OpenRouterProvider talks to OpenRouter's API, which is OpenAI-compatible,
// through the OpenAI SDK.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a new OpenRouter provider instance.
//
// Parameters:
//   - baseURL: OpenRouter API base URL ("https://openrouter.ai/api/v1")
//   - apiKey: OpenRouter API key
//
// Returns an error if the API key is missing.
func NewOpenRouterProvider(baseURL, apiKey string, opts ...option.RequestOption) (*OpenRouterProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}

	p, err := NewOpenAIProvider(baseURL, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	p.name = "openrouter"
	p.legacyMaxTokens = true
	p.toolName = convertToolNameForOpenRouter
	p.fromToolName = convertToolNameFromOpenRouter
	return &OpenRouterProvider{OpenAIProvider: p}, nil
}

// convertToolNameForOpenRouter converts a tool name from dotted notation to underscore notation.
// OpenRouter API requires tool names matching ^[a-zA-Z0-9_-]{1,64}$ (no dots allowed).
// Example: "server-filesystem.read_file" → "server-filesystem__read_file"
func convertToolNameForOpenRouter(toolName string) string {
	return strings.ReplaceAll(toolName, ".", "__")
}

// convertToolNameFromOpenRouter converts a tool name from underscore notation back to dotted notation.
// This reverses the conversion applied by convertToolNameForOpenRouter.
// Example: "server-filesystem__read_file" → "server-filesystem.read_file"
func convertToolNameFromOpenRouter(toolName string) string {
	return strings.ReplaceAll(toolName, "__", ".")
}

// stripProviderPrefix removes vendor prefixes from OpenRouter model names.
// "meta-llama/llama-3.2-90b-instruct" → "llama-3.2-90b-instruct"
// "anthropic/claude-sonnet-4" → "claude-sonnet-4"
func stripProviderPrefix(modelName string) string {
	if idx := strings.Index(modelName, "/"); idx != -1 {
		return modelName[idx+1:]
	}
	return modelName
}
