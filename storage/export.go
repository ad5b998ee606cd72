package storage

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// configExport is the YAML document written by ExportConfigs.
type configExport struct {
	Configs []ModelConfig `yaml:"configs"`
}

// ExportConfigs writes the latest version of the named configs, or of every
// config when names is empty, as YAML.
func ExportConfigs(ctx context.Context, store ConfigStore, w io.Writer, names ...string) error {
	var doc configExport
	if len(names) == 0 {
		all, err := store.List(ctx)
		if err != nil {
			return err
		}
		doc.Configs = all
	}
	for _, name := range names {
		c, err := store.Get(ctx, name, 0)
		if err != nil {
			return err
		}
		doc.Configs = append(doc.Configs, c)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode configs: %w", err)
	}
	return enc.Close()
}

// ImportConfigs reads a YAML document written by ExportConfigs and saves
// every config in it as a new version. Versions and timestamps in the file
// are ignored. Nothing is saved if any entry is invalid.
func ImportConfigs(ctx context.Context, store ConfigStore, r io.Reader) ([]ModelConfig, error) {
	var doc configExport
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse configs: %w", err)
	}

	for i, c := range doc.Configs {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	saved := make([]ModelConfig, 0, len(doc.Configs))
	for _, c := range doc.Configs {
		s, err := store.Save(ctx, c)
		if err != nil {
			return saved, err
		}
		saved = append(saved, s)
	}
	return saved, nil
}
