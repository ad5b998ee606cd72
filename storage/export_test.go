package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/model"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newSQLiteStore(t)

	params := model.DefaultParams()
	params.ResponseFormat = model.ResponseFormatJSONObject
	params.Tools = []model.ToolDefinition{{
		Type: model.ToolTypeFunction,
		Function: model.FunctionDefinition{
			Name:       "lookup",
			Parameters: map[string]any{"type": "object"},
		},
	}}
	_, err := src.Save(ctx, ModelConfig{Name: "json", Model: "openai/gpt-4o", Params: params})
	require.NoError(t, err)
	_, err = src.Save(ctx, ModelConfig{Name: "local", Model: "ollama/llama3.1", SystemPrompt: "hi"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportConfigs(ctx, src, &buf))
	assert.Contains(t, buf.String(), "name: json")
	assert.Contains(t, buf.String(), "response_format: json_object")

	dst := newSQLiteStore(t)
	_, err = dst.Save(ctx, ModelConfig{Name: "local", Model: "ollama/phi3"})
	require.NoError(t, err)

	saved, err := ImportConfigs(ctx, dst, &buf)
	require.NoError(t, err)
	require.Len(t, saved, 2)

	local, err := dst.Get(ctx, "local", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, local.Version, "imports add a version")
	assert.Equal(t, "hi", local.SystemPrompt)

	j, err := dst.Get(ctx, "json", 0)
	require.NoError(t, err)
	require.Len(t, j.Params.Tools, 1)
	assert.Equal(t, "lookup", j.Params.Tools[0].Function.Name)
}

func TestExportNamed(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	_, err := s.Save(ctx, ModelConfig{Name: "one", Model: "openai/gpt-4o"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ExportConfigs(ctx, s, &buf, "one"))
	assert.Contains(t, buf.String(), "name: one")

	assert.ErrorIs(t, ExportConfigs(ctx, s, &buf, "two"), ErrConfigNotFound)
}

func TestImportRejects(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "configs:\n  - name: a\n    model: m\n    colour: red\n"},
		{"missing model", "configs:\n  - name: a\n"},
		{"not yaml", "configs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportConfigs(ctx, s, strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing is saved from a rejected document")
}
