package config

import (
	"fmt"
	"strconv"
)

type providerInfo struct {
	name    string
	baseURL string // empty: the SDK picks its own endpoint
	enabled bool
}

// providerOrder is the order DefaultProviders returns.
var providerOrder = []string{"openai", "anthropic", "openrouter", "gemini", "ollama"}

var knownProviders = map[string]providerInfo{
	"openai":     {name: "OpenAI", baseURL: "https://api.openai.com/v1", enabled: true},
	"anthropic":  {name: "Anthropic", baseURL: "https://api.anthropic.com", enabled: true},
	"openrouter": {name: "OpenRouter", baseURL: "https://openrouter.ai/api/v1", enabled: true},
	"gemini":     {name: "Gemini", enabled: true},
	"ollama":     {name: "Ollama", baseURL: "http://localhost:11434"},
}

// DefaultProviders lists every supported provider. Ollama starts disabled
// since it needs a local server.
func DefaultProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(providerOrder))
	for _, id := range providerOrder {
		out = append(out, defaultProvider(id))
	}
	return out
}

func defaultProvider(id string) ProviderConfig {
	info := knownProviders[id]
	return ProviderConfig{ID: id, Name: info.name, Enabled: info.enabled, BaseURL: info.baseURL}
}

// UpdateProviderField sets "base_url" or "enabled" for one provider in
// <dataDir>/config.toml. API keys are not provider settings; they live in
// the CredentialStore.
func UpdateProviderField(dataDir, providerID, field, value string) error {
	if _, ok := knownProviders[providerID]; !ok {
		return fmt.Errorf("unknown provider: %s", providerID)
	}

	cfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	p := findOrAddProvider(cfg, providerID)

	switch field {
	case "base_url":
		p.BaseURL = value
	case "enabled":
		if p.Enabled, err = strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid value for enabled: %q", value)
		}
	default:
		return fmt.Errorf("unknown field for %s: %s", providerID, field)
	}
	return SaveUserConfig(cfg, dataDir)
}

// findOrAddProvider returns the entry for providerID, appending a disabled
// default when the file does not list it.
func findOrAddProvider(cfg *UserConfig, providerID string) *ProviderConfig {
	for i := range cfg.Providers {
		if cfg.Providers[i].ID == providerID {
			return &cfg.Providers[i]
		}
	}
	p := defaultProvider(providerID)
	p.Enabled = false
	cfg.Providers = append(cfg.Providers, p)
	return &cfg.Providers[len(cfg.Providers)-1]
}
