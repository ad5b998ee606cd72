package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// isolate points HOME and the data directory at fresh temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	dataDir := filepath.Join(home, "data")
	t.Setenv("PLAYGROUND_DATA_DIR", dataDir)
	for _, name := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"PLAYGROUND_DEBUG", "PLAYGROUND_DEFAULT_MODEL", "PLAYGROUND_STREAMING",
		"PLAYGROUND_THROTTLE_WINDOW", "PLAYGROUND_STORAGE_BACKEND", "PLAYGROUND_REDIS_URL",
	} {
		// Setenv first so the original value is restored after the test.
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return dataDir
}

func TestLoadCreatesDefaults(t *testing.T) {
	dataDir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir())
	assert.Equal(t, DefaultModel, cfg.DefaultModel)
	assert.True(t, cfg.Streaming)
	assert.Equal(t, 80*time.Millisecond, cfg.ThrottleWindow)
	assert.Equal(t, StorageSQLite, cfg.StorageBackend)
	assert.FileExists(t, GetSettingsFilePath())
	assert.FileExists(t, filepath.Join(dataDir, "config.toml"))

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	// Loading again parses the template that was just written.
	again, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultModel, again.DefaultModel)
	assert.Equal(t, cfg.ThrottleWindow, again.ThrottleWindow)
	assert.Len(t, again.Providers, 5)
	var enabled []string
	for _, p := range again.EnabledProviders() {
		enabled = append(enabled, p.ID)
	}
	assert.Equal(t, []string{"openai", "anthropic", "openrouter", "gemini"}, enabled)
}

func TestEnvOverridesFiles(t *testing.T) {
	dataDir := isolate(t)
	require.NoError(t, EnsureDir(dataDir))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(`
[playground]
default_model = "ollama/llama3.1"
streaming = true
throttle_window = "120ms"
`), 0600))

	t.Setenv("PLAYGROUND_DEFAULT_MODEL", "anthropic/claude-sonnet-4-5")
	t.Setenv("PLAYGROUND_STREAMING", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.DefaultModel)
	assert.False(t, cfg.Streaming)
	assert.Equal(t, 120*time.Millisecond, cfg.ThrottleWindow)
	assert.Len(t, cfg.Providers, 5, "missing [[providers]] falls back to the defaults")
}

func TestMCPServersFromUserConfig(t *testing.T) {
	dataDir := isolate(t)
	require.NoError(t, EnsureDir(dataDir))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(`
[[mcp_servers]]
id = "fs"
command = "mcp-server-filesystem"
args = ["/tmp"]

[[mcp_servers]]
id = "web"
url = "http://localhost:8080/mcp"
`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.MCPServers, 2)
	assert.Equal(t, "mcp-server-filesystem", cfg.MCPServers[0].Command)
	assert.Equal(t, []string{"/tmp"}, cfg.MCPServers[0].Args)
	assert.Equal(t, "http://localhost:8080/mcp", cfg.MCPServers[1].URL)
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dataDir := isolate(t)
	require.NoError(t, EnsureDir(dataDir))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ".env"), []byte("OPENAI_API_KEY=from-dotenv\nANTHROPIC_API_KEY=dotenv-anthropic\n"), 0600))
	t.Setenv("OPENAI_API_KEY", "from-shell")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-shell", cfg.APIKey("OPENAI_API_KEY"))
	assert.Equal(t, "dotenv-anthropic", cfg.APIKey("ANTHROPIC_API_KEY"))
}

func TestInvalidThrottleWindow(t *testing.T) {
	dataDir := isolate(t)
	require.NoError(t, EnsureDir(dataDir))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("[playground]\nthrottle_window = \"soon\"\n"), 0600))

	_, err := Load()
	assert.ErrorContains(t, err, "throttle_window")
}

func TestZeroThrottleWindowIsKept(t *testing.T) {
	dataDir := isolate(t)
	require.NoError(t, EnsureDir(dataDir))
	path := filepath.Join(dataDir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[playground]\nthrottle_window = \"0s\"\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.ThrottleWindow)

	require.NoError(t, os.WriteFile(path, []byte("[playground]\ndefault_model = \"ollama/llama3.1\"\n"), 0600))
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultThrottleWindow, cfg.ThrottleWindow)
}

func TestAPIKeyPrefersEnvironment(t *testing.T) {
	isolate(t)
	store := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, store.Set("OPENAI_API_KEY", "stored"))
	cfg := &Config{CredentialStore: store}

	assert.Equal(t, "stored", cfg.APIKey("OPENAI_API_KEY"))
	t.Setenv("OPENAI_API_KEY", "env")
	assert.Equal(t, "env", cfg.APIKey("OPENAI_API_KEY"))
	assert.Empty(t, cfg.APIKey("GEMINI_API_KEY"))
	assert.Empty(t, (&Config{}).APIKey("GEMINI_API_KEY"))
}

func TestPlainTextCredentials(t *testing.T) {
	dir := t.TempDir()
	store := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, store.Set("OPENAI_API_KEY", "sk-1"))
	require.NoError(t, store.Set("GEMINI_API_KEY", "g-1"))
	require.Error(t, store.Set("", "x"))
	require.NoError(t, store.Save(dir))

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, []string{"GEMINI_API_KEY", "OPENAI_API_KEY"}, loaded.Names())
	assert.Equal(t, "sk-1", loaded.Get("OPENAI_API_KEY"))

	require.NoError(t, loaded.Delete("OPENAI_API_KEY"))
	assert.Empty(t, loaded.Get("OPENAI_API_KEY"))
}

func writeSSHKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestSSHEncryptedCredentials(t *testing.T) {
	keyPath := writeSSHKey(t, "")
	dir := t.TempDir()

	store := NewCredentialStore(SecuritySSHKey, keyPath)
	require.NoError(t, store.Set("ANTHROPIC_API_KEY", "sk-ant"))
	require.NoError(t, store.Save(dir))

	raw, err := os.ReadFile(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-ant")

	loaded := NewCredentialStore(SecuritySSHKey, keyPath)
	require.NoError(t, loaded.Load(dir))
	assert.Equal(t, "sk-ant", loaded.Get("ANTHROPIC_API_KEY"))

	wrongKey := NewCredentialStore(SecuritySSHKey, writeSSHKey(t, ""))
	assert.Error(t, wrongKey.Load(dir))
}

func TestSSHKeyPassphrase(t *testing.T) {
	keyPath := writeSSHKey(t, "hunter2")

	encrypted, err := IsSSHKeyEncrypted(keyPath)
	require.NoError(t, err)
	assert.True(t, encrypted)

	_, err = NewKeyCipher(keyPath, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)
	_, err = NewKeyCipher(keyPath, "wrong")
	assert.Error(t, err)

	k, err := NewKeyCipher(keyPath, "hunter2")
	require.NoError(t, err)
	sealed, err := k.Seal([]byte("secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secret")

	// A fresh cipher from the same key opens what the first one sealed.
	again, err := NewKeyCipher(keyPath, "hunter2")
	require.NoError(t, err)
	opened, err := again.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(opened))

	_, err = k.Open(sealed[:4])
	assert.Error(t, err)
}

func TestDefaultSSHKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	assert.Empty(t, DefaultSSHKey())

	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0700))
	data, err := os.ReadFile(writeSSHKey(t, ""))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "id_rsa"), data, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(sshDir, "id_ed25519"), data, 0600))

	assert.Equal(t, filepath.Join(sshDir, "id_ed25519"), DefaultSSHKey())
}

func TestUpdateProviderField(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	require.NoError(t, UpdateProviderField(dir, "ollama", "enabled", "true"))
	require.NoError(t, UpdateProviderField(dir, "ollama", "base_url", "http://gpu-box:11434"))

	cfg, err := LoadUserConfig(dir)
	require.NoError(t, err)
	p := findOrAddProvider(cfg, "ollama")
	assert.True(t, p.Enabled)
	assert.Equal(t, "http://gpu-box:11434", p.BaseURL)

	assert.Error(t, UpdateProviderField(dir, "ollama", "enabled", "maybe"))
	assert.Error(t, UpdateProviderField(dir, "ollama", "apikey", "x"))
	assert.Error(t, UpdateProviderField(dir, "mystery", "enabled", "true"))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("PG_TEST_DIR", "/srv/pg")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~", "/home/tester"},
		{"~/data", "/home/tester/data"},
		{"$PG_TEST_DIR/x", "/srv/pg/x"},
		{"/a/../b", "/b"},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
