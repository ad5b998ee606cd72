// Package playground runs chat requests against a set of independent
// sessions.
//
// A request starts by computing the session's new record (send, retry from a
// message, retry from a choice), publishing it with loading set, and then
// streaming the answer into the session's output. Requests for several
// sessions run concurrently and never affect each other; a newer request on a
// session fences off whatever an older one still writes.
package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"playground/logx"
	"playground/model"
	"playground/session"
	"playground/stream"
)

var (
	// ErrLastSession is returned when removing the only remaining session.
	ErrLastSession = errors.New("cannot remove the last session")

	// ErrNoToolCalls is returned by RunToolCalls when the selected choice
	// requested no tool.
	ErrNoToolCalls = errors.New("selected choice has no tool calls")
)

// ToolRunner executes one tool call and returns its output.
type ToolRunner interface {
	CallTool(ctx context.Context, name, arguments string) (string, error)
}

// Notifier receives errors that should be shown to the user.
type Notifier interface {
	Notify(index int, err *Error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(index int, err *Error)

// Notify calls f.
func (f NotifierFunc) Notify(index int, err *Error) { f(index, err) }

type logNotifier struct{}

func (logNotifier) Notify(index int, err *Error) {
	logx.Warn().Int("session", index).Str("kind", string(err.Kind)).Str("link", err.Link).Msg(err.Error())
}

// Option configures a Playground.
type Option func(*Playground)

// WithWindow sets the minimum interval between partial output commits.
func WithWindow(d time.Duration) Option {
	return func(p *Playground) { p.window = d }
}

// Window returns the commit window used for streamed output.
func (p *Playground) Window() time.Duration { return p.window }

// WithStreaming selects streamed (default) or single-shot completions.
func WithStreaming(on bool) Option {
	return func(p *Playground) { p.streaming = on }
}

// WithNotifier sets where surfaced errors go. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(p *Playground) { p.notifier = n }
}

// WithSettingsLink sets the base link used to point at missing credentials.
func WithSettingsLink(link string) Option {
	return func(p *Playground) { p.settingsLink = link }
}

type inflight struct {
	generation uint64
	cancel     context.CancelFunc
}

// Playground is the entry point used by front-ends.
type Playground struct {
	store     *session.Store
	transport model.Transport
	coord     *Coordinator

	window       time.Duration
	streaming    bool
	notifier     Notifier
	settingsLink string

	mu       sync.Mutex
	inflight map[string]inflight
}

// New returns a Playground driving store through transport.
func New(store *session.Store, transport model.Transport, opts ...Option) *Playground {
	p := &Playground{
		store:        store,
		transport:    transport,
		coord:        NewCoordinator(store),
		window:       stream.DefaultWindow,
		streaming:    true,
		notifier:     logNotifier{},
		settingsLink: DefaultSettingsLink,
		inflight:     make(map[string]inflight),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.coord.OnPanic = p.report
	return p
}

// Store returns the underlying session store.
func (p *Playground) Store() *session.Store { return p.store }

// Sessions returns the current sessions for rendering.
func (p *Playground) Sessions() []*model.PlaygroundState { return p.store.Snapshot() }

// Subscribe registers fn for every session change.
func (p *Playground) Subscribe(fn func(session.Change)) (cancel func()) {
	return p.store.Subscribe(fn)
}

// SendMessage sends content to the given sessions, or to every session when
// none is given, and waits until all of them have settled.
func (p *Playground) SendMessage(ctx context.Context, role model.Role, content string, sessionIndices ...int) error {
	return p.send(ctx, role, content, "", sessionIndices)
}

// SendToolResult answers a tool call in one session.
func (p *Playground) SendToolResult(ctx context.Context, sessionIndex int, toolCallID, content string) error {
	return p.send(ctx, model.RoleTool, content, toolCallID, []int{sessionIndex})
}

// SendToolResults answers several tool calls of one session in a single
// request.
func (p *Playground) SendToolResults(ctx context.Context, sessionIndex int, results []ToolResult) error {
	return p.start(ctx, []int{sessionIndex}, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return ApplyToolResults(cur, results)
	})
}

// RunToolCalls executes the tool calls of the selected choice of one session
// with r and sends all results in one request. A failing tool answers with
// its error so the model can react to it.
func (p *Playground) RunToolCalls(ctx context.Context, sessionIndex int, r ToolRunner) error {
	st, err := p.store.At(sessionIndex)
	if err != nil {
		return err
	}
	choice, ok := st.SelectedChoice()
	if !ok || len(choice.Message.ToolCalls) == 0 {
		return ErrNoToolCalls
	}

	results := make([]ToolResult, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		out, err := r.CallTool(ctx, tc.Function.Name, tc.Function.Arguments)
		if err != nil {
			logx.Warn().Int("session", sessionIndex).Str("tool", tc.Function.Name).Err(err).Msg("tool call failed")
			out = "error: " + err.Error()
		}
		if out == "" {
			out = "(no output)"
		}
		results = append(results, ToolResult{CallID: tc.ID, Content: out})
	}
	return p.SendToolResults(ctx, sessionIndex, results)
}

func (p *Playground) send(ctx context.Context, role model.Role, content, toolCallID string, indices []int) error {
	if len(indices) == 0 {
		indices = make([]int, p.store.Len())
		for i := range indices {
			indices[i] = i
		}
	}
	return p.start(ctx, indices, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return ApplySend(cur, role, content, toolCallID)
	})
}

// RetryFromMessage regenerates the answer following messageIndex, dropping
// everything after it.
func (p *Playground) RetryFromMessage(ctx context.Context, sessionIndex, messageIndex int) error {
	return p.start(ctx, []int{sessionIndex}, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return ApplyRetryFromMessage(cur, messageIndex)
	})
}

// RetryFromChoice keeps the given choice as context and asks for a new answer.
func (p *Playground) RetryFromChoice(ctx context.Context, sessionIndex, choiceIndex int) error {
	return p.start(ctx, []int{sessionIndex}, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return ApplyRetryFromChoice(cur, choiceIndex)
	})
}

// start begins a request on every index and runs them. Sessions whose
// transition is skipped do not take part; other transition errors are
// returned once the remaining sessions have settled.
func (p *Playground) start(ctx context.Context, indices []int, transition func(*model.PlaygroundState) (*model.PlaygroundState, error)) error {
	var (
		targets []Target
		errs    []error
	)
	for _, i := range indices {
		fence, st, err := p.store.Begin(i, transition)
		if err != nil {
			var e *Error
			if errors.As(err, &e) && !e.Surfaced() {
				logx.Debug().Int("session", i).Err(err).Msg("request skipped")
				continue
			}
			errs = append(errs, fmt.Errorf("session %d: %w", i, err))
			continue
		}
		targets = append(targets, Target{Fence: fence, State: st})
	}

	if len(targets) > 0 {
		unit := p.runStream
		if !p.streaming {
			unit = p.runOnce
		}
		if err := p.coord.Run(ctx, targets, unit); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cancel aborts the in-flight request of the session at index, if any.
func (p *Playground) Cancel(sessionIndex int) error {
	st, err := p.store.At(sessionIndex)
	if err != nil {
		return err
	}
	p.mu.Lock()
	f, ok := p.inflight[st.ID]
	p.mu.Unlock()
	if ok {
		f.cancel()
	}
	return nil
}

// track derives the context of one request and cancels the request it
// supersedes on the same session.
func (p *Playground) track(ctx context.Context, f session.Fence) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if prev, ok := p.inflight[f.ID]; ok && prev.generation < f.Generation {
		prev.cancel()
	}
	p.inflight[f.ID] = inflight{generation: f.Generation, cancel: cancel}
	p.mu.Unlock()

	return ctx, func() {
		cancel()
		p.mu.Lock()
		if cur, ok := p.inflight[f.ID]; ok && cur.generation == f.Generation {
			delete(p.inflight, f.ID)
		}
		p.mu.Unlock()
	}
}

// SetModel binds the session at index to another model.
func (p *Playground) SetModel(sessionIndex int, modelID string) error {
	return session.Set(p.store, sessionIndex, session.Model, modelID)
}

// SetParams applies fn to the generation parameters of the session at index.
func (p *Playground) SetParams(sessionIndex int, fn func(model.Params) model.Params) error {
	return session.Update(p.store, sessionIndex, session.Params, func(cur model.Params) model.Params {
		return fn(cur.Clone())
	})
}

// AddSession appends a fresh session bound to modelID.
func (p *Playground) AddSession(modelID string) int {
	return p.store.Append(model.NewPlaygroundState(modelID))
}

// DuplicateSession appends a copy of the session at index.
func (p *Playground) DuplicateSession(sessionIndex int) (int, error) {
	return p.store.Duplicate(sessionIndex)
}

// RemoveSession cancels any request on the session at index and removes it.
func (p *Playground) RemoveSession(sessionIndex int) error {
	if p.store.Len() <= 1 {
		return ErrLastSession
	}
	if err := p.Cancel(sessionIndex); err != nil {
		return err
	}
	return p.store.Remove(sessionIndex)
}

// EditMessage replaces the content of a history message.
func (p *Playground) EditMessage(sessionIndex, messageIndex int, content string) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return EditMessage(cur, messageIndex, content)
	})
}

// SetMessageRole changes the role of a history message.
func (p *Playground) SetMessageRole(sessionIndex, messageIndex int, role model.Role) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return SetMessageRole(cur, messageIndex, role)
	})
}

// DeleteMessage removes a history message.
func (p *Playground) DeleteMessage(sessionIndex, messageIndex int) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return DeleteMessage(cur, messageIndex)
	})
}

// AddMessage appends a message to the history without sending it.
func (p *Playground) AddMessage(sessionIndex int, role model.Role, content string) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return AddMessage(cur, role, content)
	})
}

// EditChoice replaces the content of an output choice.
func (p *Playground) EditChoice(sessionIndex, choiceIndex int, content string) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return EditChoice(cur, choiceIndex, content)
	})
}

// DeleteChoice removes an output choice.
func (p *Playground) DeleteChoice(sessionIndex, choiceIndex int) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return DeleteChoice(cur, choiceIndex)
	})
}

// SelectChoice marks which output choice is carried into the next send.
func (p *Playground) SelectChoice(sessionIndex, choiceIndex int) error {
	return p.store.Modify(sessionIndex, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		return SelectChoice(cur, choiceIndex)
	})
}

// SetField replaces one field of the session at index. Front-ends use it for
// fields without a dedicated operation.
func SetField[T any](p *Playground, sessionIndex int, f session.Field[T], v T) error {
	return session.Set(p.store, sessionIndex, f, v)
}
