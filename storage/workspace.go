package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"playground/model"
)

// workspaceVersion is bumped when the file layout changes incompatibly.
const workspaceVersion = 1

// ErrWorkspaceLocked is returned when another running instance holds the
// workspace.
var ErrWorkspaceLocked = errors.New("workspace is in use by another instance")

// Workspace is the set of open sessions saved between runs.
type Workspace struct {
	Version  int                      `json:"version"`
	SavedAt  time.Time                `json:"saved_at"`
	Sessions []*model.PlaygroundState `json:"sessions"`
}

// WorkspaceStorage saves and restores the open sessions as
// <dataDir>/workspace.json.
type WorkspaceStorage struct {
	dataDir string
}

// NewWorkspaceStorage creates the data directory if needed.
func NewWorkspaceStorage(dataDir string) (*WorkspaceStorage, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &WorkspaceStorage{dataDir: dataDir}, nil
}

func (w *WorkspaceStorage) path() string {
	return filepath.Join(w.dataDir, "workspace.json")
}

func (w *WorkspaceStorage) lockPath() string {
	return filepath.Join(w.dataDir, "playground.lock")
}

// Save writes the sessions. Empty messages are dropped and nothing is saved
// as loading. The file is replaced atomically.
func (w *WorkspaceStorage) Save(sessions []*model.PlaygroundState) error {
	ws := Workspace{
		Version:  workspaceVersion,
		SavedAt:  time.Now().UTC(),
		Sessions: make([]*model.PlaygroundState, 0, len(sessions)),
	}
	for _, st := range sessions {
		if st == nil {
			continue
		}
		c := st.Clone()
		c.Loading = false
		c.Messages = withoutEmpty(c.Messages)
		ws.Sessions = append(ws.Sessions, c)
	}

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	// 0600: the workspace holds conversation history.
	tmp, err := os.CreateTemp(w.dataDir, "workspace-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create workspace file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set workspace permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path()); err != nil {
		return fmt.Errorf("failed to replace workspace: %w", err)
	}
	return nil
}

// Load returns the saved sessions, or nil when nothing has been saved yet.
func (w *WorkspaceStorage) Load() ([]*model.PlaygroundState, error) {
	data, err := os.ReadFile(w.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}

	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace: %w", err)
	}
	if ws.Version > workspaceVersion {
		return nil, fmt.Errorf("workspace version %d is newer than supported (%d)", ws.Version, workspaceVersion)
	}

	seen := make(map[string]bool, len(ws.Sessions))
	out := ws.Sessions[:0]
	for _, st := range ws.Sessions {
		if st == nil {
			continue
		}
		if st.ID == "" || seen[st.ID] {
			st.ID = uuid.NewString()
		}
		seen[st.ID] = true
		st.Messages = withoutEmpty(st.Messages)
		out = append(out, st)
	}
	return out, nil
}

func withoutEmpty(messages []model.Message) []model.Message {
	var out []model.Message
	for _, m := range messages {
		if !m.IsEmpty() {
			out = append(out, m)
		}
	}
	return out
}

// Lock marks the workspace as used by this process.
// Lock file: <data_dir>/playground.lock, content: PID.
func (w *WorkspaceStorage) Lock() error {
	locked, pid, err := w.CheckLock()
	if err != nil {
		return err
	}
	if locked && pid != os.Getpid() {
		return fmt.Errorf("%w (pid %d)", ErrWorkspaceLocked, pid)
	}
	return os.WriteFile(w.lockPath(), []byte(strconv.Itoa(os.Getpid())), 0600)
}

// Unlock removes the lock file.
func (w *WorkspaceStorage) Unlock() error {
	err := os.Remove(w.lockPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CheckLock reports whether the workspace is locked and by which PID. A lock
// file that cannot be parsed is removed.
func (w *WorkspaceStorage) CheckLock() (bool, int, error) {
	data, err := os.ReadFile(w.lockPath())
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(w.lockPath())
		return false, 0, nil
	}

	// os.FindProcess always succeeds on Unix; it only rules out dead PIDs on
	// Windows.
	if _, err := os.FindProcess(pid); err != nil {
		_ = os.Remove(w.lockPath())
		return false, 0, nil
	}
	return true, pid, nil
}
