package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"playground/logx"
	"playground/playground"
	"playground/session"
)

// sessionsChangedMsg tells the view to re-read the session store.
type sessionsChangedMsg struct{}

// noticeMsg carries an error the playground surfaced for one session.
type noticeMsg struct {
	index int
	err   *playground.Error
}

// requestDoneMsg is sent when a send or retry has settled.
type requestDoneMsg struct {
	err error
}

// statusMsg replaces the status line.
type statusMsg struct {
	text  string
	isErr bool
}

// toolsDoneMsg is sent when pending tool calls have been answered.
type toolsDoneMsg struct {
	index int
	err   error
}

// Notices is a playground.Notifier that hands errors to the UI.
type Notices struct {
	ch chan noticeMsg
}

func NewNotices() *Notices {
	return &Notices{ch: make(chan noticeMsg, 64)}
}

// Notify queues err for display. It never blocks the request that reported
// it; when the queue is full the notice is only logged.
func (n *Notices) Notify(index int, err *playground.Error) {
	select {
	case n.ch <- noticeMsg{index: index, err: err}:
	default:
		logx.Warn().Int("session", index).Err(err).Msg("notice queue full, dropping")
	}
}

func (n *Notices) wait() tea.Cmd {
	return func() tea.Msg { return <-n.ch }
}

// changeFeed turns store notifications into at most one pending
// sessionsChangedMsg; the view reads the latest snapshot when it arrives.
type changeFeed struct {
	ch     chan struct{}
	cancel func()
}

func newChangeFeed(p *playground.Playground) *changeFeed {
	f := &changeFeed{ch: make(chan struct{}, 1)}
	f.cancel = p.Subscribe(func(session.Change) {
		select {
		case f.ch <- struct{}{}:
		default:
		}
	})
	return f
}

func (f *changeFeed) wait() tea.Cmd {
	return func() tea.Msg {
		<-f.ch
		return sessionsChangedMsg{}
	}
}
