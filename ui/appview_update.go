package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"playground/logx"
	"playground/model"
	"playground/playground"
	"playground/provider"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.textarea.SetWidth(max(msg.Width-2, 10))
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case sessionsChangedMsg:
		a.sessions = a.opts.Playground.Sessions()
		a.focused = clampIndex(a.focused, len(a.sessions))
		return a, a.feed.wait()

	case noticeMsg:
		a = a.applyNotice(msg)
		return a, a.opts.Notices.wait()

	case requestDoneMsg:
		if msg.err != nil {
			a.status, a.statusErr = msg.err.Error(), true
		}
		return a, nil

	case toolsDoneMsg:
		if msg.err != nil {
			a.status, a.statusErr = fmt.Sprintf("session %d: %v", msg.index+1, msg.err), true
		}
		return a, nil

	case statusMsg:
		a.status, a.statusErr = msg.text, msg.isErr
		return a, nil

	case provider.ModelsMsg:
		a.modelsLoading = false
		if msg.Err != nil {
			a.status, a.statusErr = "listing models failed: "+msg.Err.Error(), true
			return a, nil
		}
		a.models = msg.Models
		a.filterModels()
		return a, nil

	case provider.PingProviderMsg:
		if msg.Valid {
			a.status, a.statusErr = msg.ProviderID+": credentials ok", false
		} else {
			a.status, a.statusErr = fmt.Sprintf("%s: %v", msg.ProviderID, msg.Err), true
		}
		return a, nil

	case tea.KeyMsg:
		if a.showHelp {
			switch msg.String() {
			case "esc", "f1", "q":
				a.showHelp = false
			}
			return a, nil
		}
		if a.showSelector {
			return a.updateSelector(msg)
		}
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a AppView) applyNotice(msg noticeMsg) AppView {
	if msg.index < 0 || msg.index >= len(a.sessions) {
		return a
	}
	text := msg.err.Error()
	if msg.err.Kind == playground.KindMissingCredential {
		text = fmt.Sprintf("%s is not set. Run: playground credentials set %s (%s)",
			msg.err.APIKeyName, msg.err.APIKeyName, msg.err.Link)
	}
	a.errors[a.sessions[msg.index].ID] = text
	a.status, a.statusErr = fmt.Sprintf("session %d: %s", msg.index+1, text), true
	return a
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := a.opts.Playground

	switch msg.String() {
	case "ctrl+c":
		a.shutdown()
		return a, tea.Quit

	case "esc":
		if a.textarea.Value() != "" {
			a.textarea.Reset()
			return a, nil
		}
		a.shutdown()
		return a, tea.Quit

	case "f1":
		a.showHelp = true
		return a, nil

	case "enter":
		input := strings.TrimSpace(a.textarea.Value())
		a.textarea.Reset()
		if input == "" {
			return a, nil
		}
		if strings.HasPrefix(input, "/") {
			return a.runCommand(input)
		}
		a.clearErrors(a.targets())
		return a, a.sendCmd(a.inputRole, input, a.targets())

	case "tab":
		a.focused = (a.focused + 1) % max(len(a.sessions), 1)
		return a, nil

	case "shift+tab":
		a.focused = (a.focused - 1 + len(a.sessions)) % max(len(a.sessions), 1)
		return a, nil

	case "ctrl+b":
		a.broadcast = !a.broadcast
		return a, nil

	case "ctrl+n":
		modelID := a.opts.Config.DefaultModel
		if st := a.focusedSession(); st != nil {
			modelID = st.Model
		}
		a.focused = p.AddSession(modelID)
		return a, nil

	case "ctrl+d":
		i, err := p.DuplicateSession(a.focused)
		if err != nil {
			return a.fail(err)
		}
		a.focused = i
		return a, nil

	case "ctrl+w":
		if err := p.RemoveSession(a.focused); err != nil {
			return a.fail(err)
		}
		return a, nil

	case "ctrl+r":
		st := a.focusedSession()
		if st == nil || len(st.Messages) == 0 {
			return a, nil
		}
		a.clearErrors([]int{a.focused})
		return a, a.retryCmd(a.focused, len(st.Messages)-1)

	case "ctrl+x":
		if err := p.Cancel(a.focused); err != nil {
			return a.fail(err)
		}
		return a, nil

	case "ctrl+y":
		st := a.focusedSession()
		choice, ok := st.SelectedChoice()
		if !ok {
			return a, nil
		}
		if err := clipboard.WriteAll(choiceText(choice.Message)); err != nil {
			return a.fail(fmt.Errorf("copy failed: %w", err))
		}
		a.status, a.statusErr = "copied answer of session "+fmt.Sprint(a.focused+1), false
		return a, nil

	case "ctrl+t":
		if a.opts.Tools == nil {
			return a.fail(errors.New("no MCP servers configured"))
		}
		return a, a.runToolsCmd(a.focused)

	case "ctrl+p":
		return a.openSelector()

	case "alt+left", "alt+right":
		st := a.focusedSession()
		if st == nil || st.Output == nil || len(st.Output.Choices) < 2 {
			return a, nil
		}
		step := 1
		if msg.String() == "alt+left" {
			step = -1
		}
		n := len(st.Output.Choices)
		next := (st.SelectedChoiceIndex + step + n) % n
		if err := p.SelectChoice(a.focused, next); err != nil {
			return a.fail(err)
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a AppView) fail(err error) (tea.Model, tea.Cmd) {
	logx.Debug().Err(err).Msg("ui action failed")
	a.status, a.statusErr = err.Error(), true
	return a, nil
}

func (a AppView) clearErrors(indices []int) {
	if indices == nil {
		clear(a.errors)
		return
	}
	for _, i := range indices {
		if i >= 0 && i < len(a.sessions) {
			delete(a.errors, a.sessions[i].ID)
		}
	}
}

func (a AppView) sendCmd(role model.Role, content string, indices []int) tea.Cmd {
	p, ctx := a.opts.Playground, a.ctx
	return func() tea.Msg {
		return requestDoneMsg{err: p.SendMessage(ctx, role, content, indices...)}
	}
}

func (a AppView) retryCmd(index, messageIndex int) tea.Cmd {
	p, ctx := a.opts.Playground, a.ctx
	return func() tea.Msg {
		return requestDoneMsg{err: p.RetryFromMessage(ctx, index, messageIndex)}
	}
}

func (a AppView) retryChoiceCmd(index, choiceIndex int) tea.Cmd {
	p, ctx := a.opts.Playground, a.ctx
	return func() tea.Msg {
		return requestDoneMsg{err: p.RetryFromChoice(ctx, index, choiceIndex)}
	}
}

func (a AppView) toolResultCmd(index int, callID, content string) tea.Cmd {
	p, ctx := a.opts.Playground, a.ctx
	return func() tea.Msg {
		return requestDoneMsg{err: p.SendToolResult(ctx, index, callID, content)}
	}
}

func (a AppView) runToolsCmd(index int) tea.Cmd {
	p, ctx, tools := a.opts.Playground, a.ctx, a.opts.Tools
	return func() tea.Msg {
		return toolsDoneMsg{index: index, err: p.RunToolCalls(ctx, index, tools)}
	}
}

func clampIndex(i, n int) int {
	switch {
	case n == 0:
		return 0
	case i >= n:
		return n - 1
	case i < 0:
		return 0
	}
	return i
}
