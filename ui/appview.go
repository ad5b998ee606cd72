// Package ui is the terminal front-end: one column per session, a shared
// input line and slash commands for everything that has no key.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"playground/config"
	"playground/logx"
	"playground/mcp"
	"playground/model"
	"playground/ollama"
	"playground/playground"
	"playground/provider"
	"playground/storage"
)

// Options wires the view to the engine. Workspace, Configs and Tools are
// optional.
type Options struct {
	Playground *playground.Playground
	Router     *provider.Router
	Notices    *Notices
	Config     *config.Config
	Workspace  *storage.WorkspaceStorage
	Configs    storage.ConfigStore
	Tools      *mcp.Manager
}

type AppView struct {
	opts Options
	ctx  context.Context

	feed *changeFeed

	sessions []*model.PlaygroundState
	focused  int

	textarea  textarea.Model
	spinner   spinner.Model
	inputRole model.Role
	broadcast bool

	width  int
	height int

	status    string
	statusErr bool
	// errors holds the last surfaced error per session id.
	errors map[string]string

	showHelp bool

	showSelector   bool
	models         []ollama.ModelInfo
	filteredModels []ollama.ModelInfo
	selectorIdx    int
	selectorFilter textinput.Model
	modelsLoading  bool
}

// NewAppView builds the view. The caller owns opts.Playground; the view only
// subscribes to it.
func NewAppView(ctx context.Context, opts Options) AppView {
	ta := textarea.New()
	ta.Placeholder = "Message every session, or /help for commands..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	// Enter sends; Alt+Enter inserts a newline.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	filter := textinput.New()
	filter.Prompt = "Filter: "
	filter.CharLimit = 64

	return AppView{
		opts:           opts,
		ctx:            ctx,
		feed:           newChangeFeed(opts.Playground),
		sessions:       opts.Playground.Sessions(),
		textarea:       ta,
		spinner:        sp,
		inputRole:      model.RoleUser,
		broadcast:      true,
		errors:         make(map[string]string),
		selectorFilter: filter,
	}
}

func (a AppView) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, a.spinner.Tick, a.feed.wait()}
	if a.opts.Notices != nil {
		cmds = append(cmds, a.opts.Notices.wait())
	}
	return tea.Batch(cmds...)
}

// focusedSession returns the record of the focused column.
func (a AppView) focusedSession() *model.PlaygroundState {
	if a.focused < 0 || a.focused >= len(a.sessions) {
		return nil
	}
	return a.sessions[a.focused]
}

// targets returns the sessions an input goes to.
func (a AppView) targets() []int {
	if a.broadcast {
		return nil
	}
	return []int{a.focused}
}

func (a AppView) anyLoading() bool {
	for _, st := range a.sessions {
		if st.Loading {
			return true
		}
	}
	return false
}

// shutdown saves the open sessions and stops listening to the store.
func (a AppView) shutdown() {
	a.feed.cancel()
	if a.opts.Workspace == nil {
		return
	}
	if err := a.opts.Workspace.Save(a.opts.Playground.Sessions()); err != nil {
		logx.Error().Err(err).Msg("failed to save workspace")
	}
}
