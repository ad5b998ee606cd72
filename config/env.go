package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"playground/logx"
)

// EnvPrefix is prepended to every variable in Env.
const EnvPrefix = "PLAYGROUND"

// Env holds the PLAYGROUND_* overrides. Unset variables leave the file
// configuration alone.
type Env struct {
	Debug          bool           `envconfig:"DEBUG"`
	DataDir        string         `envconfig:"DATA_DIR"`
	DefaultModel   string         `envconfig:"DEFAULT_MODEL"`
	Streaming      *bool          `envconfig:"STREAMING"`
	ThrottleWindow *time.Duration `envconfig:"THROTTLE_WINDOW"`
	StorageBackend string         `envconfig:"STORAGE_BACKEND"`
	RedisURL       string         `envconfig:"REDIS_URL"`
	SSHPassphrase  string         `envconfig:"SSH_PASSPHRASE"`
}

// LoadEnv reads the PLAYGROUND_* variables.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("failed to process environment config: %w", err)
	}
	return env, nil
}

// LoadDotEnv loads a .env file into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logx.Warn().Err(err).Str("path", path).Msg("could not load .env file")
	}
}

func (e Env) apply(c *Config) {
	if e.Debug {
		c.Debug = true
	}
	if e.DefaultModel != "" {
		c.DefaultModel = e.DefaultModel
	}
	if e.Streaming != nil {
		c.Streaming = *e.Streaming
	}
	if e.ThrottleWindow != nil {
		c.ThrottleWindow = *e.ThrottleWindow
	}
	if e.StorageBackend != "" {
		c.StorageBackend = e.StorageBackend
	}
	if e.RedisURL != "" {
		c.RedisURL = e.RedisURL
	}
}
