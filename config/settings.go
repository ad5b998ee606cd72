package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// decodeOrCreate decodes the TOML file at path into v. A missing file is
// created from template and v keeps its defaults.
func decodeOrCreate(path, template string, v any) (created bool, err error) {
	_, err = toml.DecodeFile(path, v)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(template), 0600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// LoadSystemConfig reads ~/.config/playground/settings.toml.
func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	if _, err := decodeOrCreate(GetSettingsFilePath(), GenerateSystemConfigTemplate(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func userConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}

// LoadUserConfig reads <dataDir>/config.toml, writing the default template
// first when it does not exist. Keys missing from the file keep their
// defaults; a file without [[providers]] gets the default provider list.
func LoadUserConfig(dataDir string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	cfg.Providers = nil
	if _, err := decodeOrCreate(userConfigPath(dataDir), GenerateUserConfigTemplate(), cfg); err != nil {
		return nil, err
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}
	if cfg.Security.CredentialStorage == "" {
		cfg.Security.CredentialStorage = SecurityPlainText
	}
	return cfg, nil
}

// SaveUserConfig rewrites <dataDir>/config.toml from cfg. Comments from the
// template are not preserved.
func SaveUserConfig(cfg *UserConfig, dataDir string) error {
	if err := EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config.toml: %w", err)
	}
	return os.WriteFile(userConfigPath(dataDir), data, 0600)
}
