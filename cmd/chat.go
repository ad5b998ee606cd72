package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"playground/config"
	"playground/logx"
	"playground/model"
	"playground/provider"
	"playground/session"
	"playground/storage"
	"playground/ui"
)

func showError(title, message string) error {
	p := tea.NewProgram(ui.NewErrorModal(title, message), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// runChat opens the interactive playground on the saved workspace.
func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if errors.Is(err, config.ErrPassphraseRequired) {
			return fmt.Errorf("%w: set PLAYGROUND_SSH_PASSPHRASE", err)
		}
		if merr := showError("Configuration Error", err.Error()); merr != nil {
			return err
		}
		return ExitError{Code: 1}
	}
	if err := cfg.InitLogging(false); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	workspace, err := storage.NewWorkspaceStorage(cfg.DataDir())
	if err != nil {
		return err
	}
	locked, pid, err := workspace.CheckLock()
	if err != nil {
		return fmt.Errorf("failed to check instance lock: %w", err)
	}
	if locked {
		msg := fmt.Sprintf(
			"Another playground instance is already running (PID %d).\n\n"+
				"Both would write the same workspace.\n"+
				"Close the other instance, or point this one at\n"+
				"another PLAYGROUND_DATA_DIR.", pid)
		if err := showError("Playground Already Running", msg); err != nil {
			return storage.ErrWorkspaceLocked
		}
		return ExitError{Code: 1}
	}
	if err := workspace.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := workspace.Unlock(); err != nil {
			logx.Warn().Err(err).Msg("failed to remove lock file")
		}
	}()

	sessions := initialSessions(cfg, workspace)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	configs, err := openConfigStore(ctx, cfg)
	if err != nil {
		logx.Warn().Err(err).Msg("config store unavailable, /save and /load are disabled")
	} else {
		defer configs.Close()
	}

	tools := startTools(ctx, cfg)
	if tools != nil {
		defer tools.Shutdown(context.Background())
	}

	notices := ui.NewNotices()
	transport := newTransport(cfg)
	router, _ := transport.(*provider.Router)
	p := newPlayground(cfg, session.NewStore(sessions...), transport, notices)

	opts := ui.Options{
		Playground: p,
		Router:     router,
		Notices:    notices,
		Config:     cfg,
		Workspace:  workspace,
		Configs:    configs,
		Tools:      tools,
	}

	program := tea.NewProgram(ui.NewAppView(ctx, opts), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running playground: %w", err)
	}
	return nil
}

// initialSessions restores the saved workspace or starts one session on the
// default model.
func initialSessions(cfg *config.Config, workspace *storage.WorkspaceStorage) []*model.PlaygroundState {
	sessions, err := workspace.Load()
	if err != nil {
		logx.Warn().Err(err).Msg("failed to load workspace, starting fresh")
	}
	if len(sessions) > 0 {
		return sessions
	}
	return []*model.PlaygroundState{newSession(cfg.DefaultModel, cfg.DefaultSystemPrompt)}
}

func newSession(modelID, system string) *model.PlaygroundState {
	st := model.NewPlaygroundState(modelID)
	if system != "" {
		st.Messages = []model.Message{{Role: model.RoleSystem, Content: system}}
	}
	return st
}
