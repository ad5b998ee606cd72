package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"playground/config"
	"playground/logx"
	"playground/mcp"
	"playground/model"
	"playground/playground"
	"playground/provider"
	"playground/session"
	"playground/storage"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "playground",
	Short: "Playground - compare LLM answers side by side",
	Long: `Playground sends the same conversation to several models at once and
shows their answers next to each other.

Key commands:
  playground                      Open the interactive playground
  playground send "prompt"        Send one prompt and print the answers
  playground configs list         List saved model configurations
  playground credentials set KEY  Store a provider API key`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := 1
		var exitErr ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
			err = exitErr.Err
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
}

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}

func (e ExitError) Unwrap() error { return e.Err }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// loadConfig and newTransport are replaced in tests.
var (
	loadConfig   = config.Load
	newTransport = func(cfg *config.Config) model.Transport { return newRouter(cfg) }
)

// newRouter builds a router over the enabled providers. Keys are read
// through cfg on every request.
func newRouter(cfg *config.Config) *provider.Router {
	var providers []provider.Config
	for _, p := range cfg.EnabledProviders() {
		providers = append(providers, provider.Config{
			Type:    provider.MapProviderIDToType(p.ID),
			BaseURL: p.BaseURL,
		})
	}
	return provider.NewRouter(providers, cfg.APIKey)
}

func newPlayground(cfg *config.Config, store *session.Store, transport model.Transport, notifier playground.Notifier) *playground.Playground {
	opts := []playground.Option{
		playground.WithStreaming(cfg.Streaming),
		playground.WithNotifier(notifier),
		playground.WithWindow(cfg.ThrottleWindow),
	}
	if cfg.SettingsLink != "" {
		opts = append(opts, playground.WithSettingsLink(cfg.SettingsLink))
	}
	return playground.New(store, transport, opts...)
}

// openConfigStore opens the configured backend for saved model configs.
func openConfigStore(ctx context.Context, cfg *config.Config) (storage.ConfigStore, error) {
	switch cfg.StorageBackend {
	case config.StorageRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("storage_backend is redis but no redis url is set")
		}
		s, err := storage.OpenRedisConfigStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageSQLite, "":
		s, err := storage.OpenSQLiteConfigStore(cfg.DataDir())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// startTools launches the configured MCP servers in parallel. Servers that
// fail to start are logged and left out; nil is returned when none run.
func startTools(ctx context.Context, cfg *config.Config) *mcp.Manager {
	if len(cfg.MCPServers) == 0 {
		return nil
	}
	m := mcp.NewManager()
	var g errgroup.Group
	for _, sc := range cfg.MCPServers {
		g.Go(func() error {
			if err := m.Start(ctx, sc); err != nil {
				logx.Warn().Str("server", sc.ID).Err(err).Msg("failed to start MCP server")
			}
			return nil
		})
	}
	g.Wait()
	if len(m.Tools()) == 0 {
		m.Shutdown(context.Background())
		return nil
	}
	return m
}
