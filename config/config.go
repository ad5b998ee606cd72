package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"playground/logx"
	"playground/mcp"
)

const (
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type PlaygroundConfig struct {
	DefaultModel        string `toml:"default_model"`
	DefaultSystemPrompt string `toml:"default_system_prompt,omitempty"`
	Streaming           bool   `toml:"streaming"`
	// ThrottleWindow is a duration string such as "80ms".
	ThrottleWindow string `toml:"throttle_window"`
	SettingsLink   string `toml:"settings_link,omitempty"`
	StorageBackend string `toml:"storage_backend"`
}

type ProviderConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Enabled bool   `toml:"enabled"`
	BaseURL string `toml:"base_url,omitempty"`
}

type RedisConfig struct {
	URL string `toml:"url,omitempty"`
}

type SecurityConfig struct {
	CredentialStorage SecurityMethod `toml:"credential_storage"`
	SSHKeyPath        string         `toml:"ssh_key_path,omitempty"`
}

type UserConfig struct {
	Playground PlaygroundConfig `toml:"playground"`
	Providers  []ProviderConfig   `toml:"providers"`
	MCPServers []mcp.ServerConfig `toml:"mcp_servers,omitempty"`
	Redis      RedisConfig        `toml:"redis"`
	Security   SecurityConfig     `toml:"security"`
}

// Config is the resolved configuration: files, then environment.
type Config struct {
	DataDirectory       string
	DefaultModel        string
	DefaultSystemPrompt string
	Streaming           bool
	ThrottleWindow      time.Duration
	SettingsLink        string
	StorageBackend      string
	RedisURL            string
	Providers           []ProviderConfig
	MCPServers          []mcp.ServerConfig
	Debug               bool

	CredentialStore *CredentialStore
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// DatabasePath is where the sqlite config store lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "playground.db")
}

// WorkspacePath is where the open sessions are saved between runs.
func (c *Config) WorkspacePath() string {
	return filepath.Join(c.DataDir(), "workspace.json")
}

// EnabledProviders returns the providers that are switched on.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// APIKey looks up a credential by name. The environment wins over the
// credential store.
func (c *Config) APIKey(name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if c.CredentialStore == nil {
		return ""
	}
	return c.CredentialStore.Get(name)
}

// InitLogging points the global logger at <data>/debug.log when debug is on
// and silences it otherwise, unless console output is requested.
func (c *Config) InitLogging(console bool) error {
	switch {
	case c.Debug:
		return logx.Init(logx.Options{Debug: true, File: filepath.Join(c.DataDir(), "debug.log")})
	case console:
		return logx.Init(logx.Options{Console: true})
	default:
		logx.Disable()
		return nil
	}
}

// Load reads settings.toml and <data>/config.toml, creating both with
// defaults when missing, then applies .env and PLAYGROUND_* overrides and
// loads the credential store.
func Load() (*Config, error) {
	LoadDotEnv(".env")

	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	if env.DataDir != "" {
		cfg.DataDirectory = env.DataDir
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	LoadDotEnv(filepath.Join(dataDir, ".env"))

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	if err := cfg.apply(userCfg); err != nil {
		return nil, err
	}
	env.apply(cfg)

	keyPath := ExpandPath(userCfg.Security.SSHKeyPath)
	if keyPath == "" && userCfg.Security.CredentialStorage == SecuritySSHKey {
		keyPath = DefaultSSHKey()
	}
	store := NewCredentialStore(userCfg.Security.CredentialStorage, keyPath)
	store.SetPassphrase(env.SSHPassphrase)
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	cfg.CredentialStore = store

	return cfg, nil
}

func (c *Config) apply(u *UserConfig) error {
	c.DefaultModel = u.Playground.DefaultModel
	c.DefaultSystemPrompt = u.Playground.DefaultSystemPrompt
	c.Streaming = u.Playground.Streaming
	c.SettingsLink = u.Playground.SettingsLink
	c.StorageBackend = u.Playground.StorageBackend
	c.RedisURL = u.Redis.URL
	c.Providers = u.Providers
	c.MCPServers = u.MCPServers

	// An explicit "0s" turns coalescing off; only a missing key gets the default.
	c.ThrottleWindow = DefaultThrottleWindow
	if u.Playground.ThrottleWindow != "" {
		d, err := time.ParseDuration(u.Playground.ThrottleWindow)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid throttle_window %q", u.Playground.ThrottleWindow)
		}
		c.ThrottleWindow = d
	}
	if c.StorageBackend == "" {
		c.StorageBackend = StorageSQLite
	}
	return nil
}
