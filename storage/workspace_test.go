package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/model"
)

func TestWorkspaceSaveLoad(t *testing.T) {
	ws, err := NewWorkspaceStorage(t.TempDir())
	require.NoError(t, err)

	none, err := ws.Load()
	require.NoError(t, err)
	assert.Nil(t, none)

	a := model.NewPlaygroundState("openai/gpt-4o")
	a.Loading = true
	a.Messages = []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant},
	}
	a.Output = &model.Response{Choices: []model.Choice{{Message: model.Message{Role: model.RoleAssistant, Content: "hello"}}}}
	b := model.NewPlaygroundState("ollama/llama3.1")

	require.NoError(t, ws.Save([]*model.PlaygroundState{a, nil, b}))
	assert.True(t, a.Loading, "the live session is not modified")
	assert.Len(t, a.Messages, 2)

	info, err := os.Stat(ws.path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := ws.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID)
	assert.False(t, got[0].Loading)
	assert.Len(t, got[0].Messages, 1, "empty messages are not persisted")
	assert.Equal(t, "hello", got[0].Output.Choices[0].Message.Content)
	assert.Equal(t, "ollama/llama3.1", got[1].Model)
}

func TestWorkspaceLoadRepairsIDs(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspaceStorage(dir)
	require.NoError(t, err)
	doc := `{"version":1,"sessions":[{"id":"same","model":"m"},{"id":"same","model":"m"},{"model":"m"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workspace.json"), []byte(doc), 0600))

	got, err := ws.Load()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "same", got[0].ID)
	assert.NotEqual(t, "same", got[1].ID)
	assert.NotEmpty(t, got[2].ID)
	assert.NotEqual(t, got[1].ID, got[2].ID)
}

func TestWorkspaceRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspaceStorage(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workspace.json"), []byte(`{"version":99}`), 0600))

	_, err = ws.Load()
	assert.Error(t, err)
}

func TestWorkspaceLock(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspaceStorage(dir)
	require.NoError(t, err)

	locked, _, err := ws.CheckLock()
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, ws.Lock())
	locked, pid, err := ws.CheckLock()
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, os.Getpid(), pid)
	require.NoError(t, ws.Lock(), "relocking by the same process is fine")

	require.NoError(t, os.WriteFile(ws.lockPath(), []byte(strconv.Itoa(os.Getpid()+1)), 0600))
	assert.ErrorIs(t, ws.Lock(), ErrWorkspaceLocked)

	require.NoError(t, ws.Unlock())
	require.NoError(t, ws.Unlock())

	require.NoError(t, os.WriteFile(ws.lockPath(), []byte("garbage"), 0600))
	locked, _, err = ws.CheckLock()
	require.NoError(t, err)
	assert.False(t, locked)
	assert.NoFileExists(t, ws.lockPath())
}
