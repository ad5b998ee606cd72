package config

import "time"

// DefaultModel is used for new sessions when nothing else is configured.
const DefaultModel = "openai/gpt-4o-mini"

// DefaultThrottleWindow paces streamed UI commits.
const DefaultThrottleWindow = 80 * time.Millisecond

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/playground",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Playground: PlaygroundConfig{
			DefaultModel:   DefaultModel,
			Streaming:      true,
			ThrottleWindow: "80ms",
			StorageBackend: StorageSQLite,
		},
		Providers: DefaultProviders(),
		Security: SecurityConfig{
			CredentialStorage: SecurityPlainText,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# Playground System Configuration
# Location: ~/.config/playground/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the config database, workspace and user config are stored
data_directory = "~/.local/share/playground"
`
}

func GenerateUserConfigTemplate() string {
	return `# Playground User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io
# Every value can be overridden with PLAYGROUND_* environment variables.

[playground]
# Model for new sessions, as <provider>/<model>
default_model = "openai/gpt-4o-mini"

# System prompt added to new sessions (optional)
default_system_prompt = ""

# Stream answers as they are generated
streaming = true

# Minimum time between two screen updates while streaming
throttle_window = "80ms"

# Where named model configs are kept: "sqlite" or "redis"
storage_backend = "sqlite"

[redis]
# url = "redis://localhost:6379/0"

[security]
# "plaintext" or "ssh_key"
credential_storage = "plaintext"
# ssh_key_path = "~/.ssh/id_ed25519"

[[providers]]
id = "openai"
name = "OpenAI"
enabled = true
base_url = "https://api.openai.com/v1"

[[providers]]
id = "anthropic"
name = "Anthropic"
enabled = true
base_url = "https://api.anthropic.com"

[[providers]]
id = "openrouter"
name = "OpenRouter"
enabled = true
base_url = "https://openrouter.ai/api/v1"

[[providers]]
id = "gemini"
name = "Gemini"
enabled = true

[[providers]]
id = "ollama"
name = "Ollama"
enabled = false
base_url = "http://localhost:11434"

# MCP servers whose tools are offered to the model (optional)
# [[mcp_servers]]
# id = "fs"
# command = "mcp-server-filesystem"
# args = ["/tmp"]
#
# [[mcp_servers]]
# id = "web"
# url = "http://localhost:8080/mcp"
`
}
