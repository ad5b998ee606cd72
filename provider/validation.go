package provider

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"playground/logx"
	"playground/ollama"
)

// pingTimeout bounds a credential check.
const pingTimeout = 10 * time.Second

// PingProviderMsg is sent when provider ping completes
type PingProviderMsg struct {
	ProviderID string
	Valid      bool
	Err        error
}

// ModelsMsg is sent when the model list has been fetched.
type ModelsMsg struct {
	Models []ollama.ModelInfo
	Err    error
}

// PingProvider validates a provider's credentials by calling Ping.
func PingProvider(providerID, baseURL, apiKey string) tea.Cmd {
	return func() tea.Msg {
		b, err := NewBackend(Config{
			Type:    MapProviderIDToType(providerID),
			BaseURL: baseURL,
			APIKey:  apiKey,
		})
		if err != nil {
			return PingProviderMsg{
				ProviderID: providerID,
				Err:        fmt.Errorf("failed to create provider: %w", err),
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := b.Ping(ctx); err != nil {
			return PingProviderMsg{
				ProviderID: providerID,
				Err:        fmt.Errorf("connection failed: %w", err),
			}
		}

		logx.Debug().Str("provider", providerID).Msg("ping successful")
		return PingProviderMsg{ProviderID: providerID, Valid: true}
	}
}

// FetchModels lists the models of every provider the router can reach.
func FetchModels(r *Router) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		models, err := r.ListModels(ctx)
		logx.Debug().Int("models", len(models)).Msg("fetched models")
		return ModelsMsg{Models: models, Err: err}
	}
}
