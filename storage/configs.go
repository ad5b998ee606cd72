package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"playground/model"
)

// ErrConfigNotFound is returned when no config matches a name or version.
var ErrConfigNotFound = errors.New("model config not found")

// ModelConfig is one saved version of a named model configuration: the model
// a session is bound to, its generation parameters and system prompt.
type ModelConfig struct {
	Name         string       `json:"name" yaml:"name"`
	Version      int          `json:"version" yaml:"version"`
	Model        string       `json:"model" yaml:"model"`
	SystemPrompt string       `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Params       model.Params `json:"params" yaml:"params"`
	CreatedAt    time.Time    `json:"created_at" yaml:"created_at"`
}

// Validate checks the fields a config must have to be saved.
func (c ModelConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("config name is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("config %q: model is required", c.Name)
	}
	return nil
}

// ConfigStore creates and queries named, versioned model configurations.
// Saving under an existing name adds a version; versions are never changed.
type ConfigStore interface {
	// Save stores c as the next version of c.Name and returns it as stored.
	Save(ctx context.Context, c ModelConfig) (ModelConfig, error)
	// Get returns one version of a config; version 0 means the latest.
	Get(ctx context.Context, name string, version int) (ModelConfig, error)
	// Versions returns every version of a config, oldest first.
	Versions(ctx context.Context, name string) ([]ModelConfig, error)
	// List returns the latest version of every config, by name.
	List(ctx context.Context) ([]ModelConfig, error)
	// Delete removes all versions of a config.
	Delete(ctx context.Context, name string) error
	Close() error
}

// SQLiteConfigStore keeps model configs in <dataDir>/playground.db.
type SQLiteConfigStore struct {
	db *sql.DB
}

// NewSQLiteConfigStore opens (creating if needed) the database at path.
func NewSQLiteConfigStore(path string) (*SQLiteConfigStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps version assignment race free.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteConfigStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// OpenSQLiteConfigStore opens the store in dataDir.
func OpenSQLiteConfigStore(dataDir string) (*SQLiteConfigStore, error) {
	return NewSQLiteConfigStore(filepath.Join(dataDir, "playground.db"))
}

func (s *SQLiteConfigStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS model_configs (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		model TEXT NOT NULL,
		system_prompt TEXT NOT NULL DEFAULT '',
		params TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (name, version)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteConfigStore) Save(ctx context.Context, c ModelConfig) (ModelConfig, error) {
	if err := c.Validate(); err != nil {
		return ModelConfig{}, err
	}
	params, err := json.Marshal(c.Params)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to marshal params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM model_configs WHERE name = ?`, c.Name,
	).Scan(&latest)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to read latest version: %w", err)
	}

	c.Version = latest + 1
	c.CreatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO model_configs (name, version, model, system_prompt, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Version, c.Model, c.SystemPrompt, string(params), c.CreatedAt,
	)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to save config: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ModelConfig{}, fmt.Errorf("failed to commit config: %w", err)
	}
	return c, nil
}

const configColumns = `name, version, model, system_prompt, params, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanConfig(row scanner) (ModelConfig, error) {
	var (
		c      ModelConfig
		params string
	)
	if err := row.Scan(&c.Name, &c.Version, &c.Model, &c.SystemPrompt, &params, &c.CreatedAt); err != nil {
		return ModelConfig{}, err
	}
	if err := json.Unmarshal([]byte(params), &c.Params); err != nil {
		return ModelConfig{}, fmt.Errorf("config %s v%d: invalid params: %w", c.Name, c.Version, err)
	}
	return c, nil
}

func (s *SQLiteConfigStore) Get(ctx context.Context, name string, version int) (ModelConfig, error) {
	var row *sql.Row
	if version <= 0 {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+configColumns+` FROM model_configs WHERE name = ? ORDER BY version DESC LIMIT 1`, name)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+configColumns+` FROM model_configs WHERE name = ? AND version = ?`, name, version)
	}

	c, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, versionLabel(name, version))
	}
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	return c, nil
}

func (s *SQLiteConfigStore) Versions(ctx context.Context, name string) ([]ModelConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM model_configs WHERE name = ? ORDER BY version`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	out, err := collectConfigs(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return out, nil
}

func (s *SQLiteConfigStore) List(ctx context.Context) ([]ModelConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+configColumns+` FROM model_configs AS c
		WHERE version = (SELECT MAX(version) FROM model_configs WHERE name = c.name)
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	return collectConfigs(rows)
}

func collectConfigs(rows *sql.Rows) ([]ModelConfig, error) {
	defer rows.Close()
	var out []ModelConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteConfigStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM model_configs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return nil
}

func (s *SQLiteConfigStore) Close() error {
	return s.db.Close()
}

// ParseConfigRef splits "name" or "name@version". Version 0 means the
// latest.
func ParseConfigRef(ref string) (string, int, error) {
	name, v, hasVersion := strings.Cut(strings.TrimSpace(ref), "@")
	if name == "" {
		return "", 0, fmt.Errorf("config name is required")
	}
	if !hasVersion {
		return name, 0, nil
	}
	version, err := strconv.Atoi(v)
	if err != nil || version < 1 {
		return "", 0, fmt.Errorf("invalid config version %q", v)
	}
	return name, version, nil
}

func versionLabel(name string, version int) string {
	if version <= 0 {
		return name
	}
	return fmt.Sprintf("%s v%d", name, version)
}

// ConfigFromSession captures a session's model, parameters and leading
// system message under name.
func ConfigFromSession(name string, st *model.PlaygroundState) ModelConfig {
	c := ModelConfig{Name: name, Model: st.Model, Params: st.Params.Clone()}
	if len(st.Messages) > 0 && st.Messages[0].Role == model.RoleSystem {
		c.SystemPrompt = st.Messages[0].Content
	}
	return c
}

// NewSession returns a fresh session seeded from the config.
func (c ModelConfig) NewSession() *model.PlaygroundState {
	st := model.NewPlaygroundState(c.Model)
	st.Params = c.Params.Clone()
	if c.SystemPrompt != "" {
		st.Messages = []model.Message{{Role: model.RoleSystem, Content: c.SystemPrompt}}
	}
	return st
}
