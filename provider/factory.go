package provider

import (
	"fmt"
)

// NewBackend creates a backend based on configuration.
//
// This is the centralized factory function for creating any backend type.
// It dispatches to the matching constructor based on Config.Type.
//
// Returns an error if:
//   - The provider type is unknown
//   - The backend-specific constructor fails (missing key, invalid URL)
//
// Example:
//
//	b, err := provider.NewBackend(provider.Config{
//	    Type:   provider.ProviderTypeOpenAI,
//	    APIKey: "sk-...",
//	})
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Type {
	case ProviderTypeOllama:
		return asBackend(NewOllamaProvider(cfg.BaseURL))
	case ProviderTypeOpenRouter:
		return asBackend(NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey))
	case ProviderTypeOpenAI:
		return asBackend(NewOpenAIProvider(cfg.BaseURL, cfg.APIKey))
	case ProviderTypeAnthropic:
		return asBackend(NewAnthropicProvider(cfg.BaseURL, cfg.APIKey))
	case ProviderTypeGemini:
		return asBackend(NewGeminiProvider(cfg.BaseURL, cfg.APIKey))
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// asBackend keeps a failed constructor's typed nil out of the interface.
func asBackend[T Backend](b T, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// MapProviderIDToType converts a config provider ID to a ProviderType.
//
// For unknown IDs, returns the ID cast as ProviderType (factory will error).
func MapProviderIDToType(id string) ProviderType {
	switch id {
	case "ollama":
		return ProviderTypeOllama
	case "openrouter":
		return ProviderTypeOpenRouter
	case "openai":
		return ProviderTypeOpenAI
	case "anthropic":
		return ProviderTypeAnthropic
	case "gemini", "google":
		return ProviderTypeGemini
	default:
		return ProviderType(id)
	}
}

// CredentialName returns the name of the API key a provider needs, or "" when
// it needs none.
func CredentialName(t ProviderType) string {
	switch t {
	case ProviderTypeOpenAI:
		return "OPENAI_API_KEY"
	case ProviderTypeAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderTypeOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderTypeGemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

// KnownProviders lists every provider type the factory can build.
func KnownProviders() []ProviderType {
	return []ProviderType{
		ProviderTypeOllama,
		ProviderTypeOpenAI,
		ProviderTypeAnthropic,
		ProviderTypeOpenRouter,
		ProviderTypeGemini,
	}
}
