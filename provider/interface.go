// Package provider implements the completion transport on top of the
// vendor SDKs.
//
// Each backend (Ollama, OpenAI, OpenRouter, Anthropic, Gemini) implements
// model.Transport for one vendor. The Router dispatches a request to a
// backend by the provider prefix of its model id ("openai/gpt-4o-mini",
// "ollama/llama3.1") so that sessions bound to different vendors can run side
// by side.
//
// # Streams
//
// Every backend turns its SDK's stream into a model.ChunkStream through a
// bounded channel (see pipe.go). Chunks are normalised before they are handed
// out:
//   - only the first choice's deltas matter to callers, but all are passed on
//   - every tool-call delta carries the id of the call it belongs to, even when
//     the vendor only sent the id on the call's first fragment
//   - usage, when reported, is delivered through StreamMeta
//
// # Credentials
//
// A backend that needs an API key is only created when the key is present.
// Requests for a provider whose key is missing are answered by the Router
// with a response naming the missing key instead of an error.
//
// # Type Conversions
//
// Conversions between model types and SDK types live in conversions.go and
// in the mcp package (tool definitions).
package provider

import (
	"context"

	"playground/model"
	"playground/ollama"
)

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeGemini     ProviderType = "gemini"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	APIKey  string // Unused for Ollama
}

// Backend is a transport for one vendor.
type Backend interface {
	model.Transport

	// ListModels returns the models the backend can serve.
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)

	// Ping checks that the backend is reachable and the credentials work.
	Ping(ctx context.Context) error
}
