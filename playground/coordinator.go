package playground

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"playground/logx"
	"playground/model"
	"playground/session"
)

// Target is one session taking part in a request, as it was when the request
// began.
type Target struct {
	Fence session.Fence
	State *model.PlaygroundState
}

// Unit is the work run for one target. It is responsible for clearing the
// session's loading flag on every exit path it handles itself.
type Unit func(ctx context.Context, t Target) error

// Coordinator runs one unit per target concurrently.
type Coordinator struct {
	store *session.Store

	// OnPanic, when set, receives the error a panicking unit was turned into.
	OnPanic func(t Target, e *Error)
}

// NewCoordinator returns a coordinator writing cleanup into store.
func NewCoordinator(store *session.Store) *Coordinator {
	return &Coordinator{store: store}
}

// Run starts unit for every target and waits for all of them. A failing unit
// never cancels its siblings. A panic is contained to the target that raised
// it. When any unit fails, every target's loading flag is forced off.
func (c *Coordinator) Run(ctx context.Context, targets []Target, unit Unit) error {
	var g errgroup.Group

	for _, t := range targets {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logx.Error().
						Str("session", t.Fence.ID).
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("session unit panicked")
					e := transportError(fmt.Errorf("panic: %v", r))
					if c.OnPanic != nil {
						c.OnPanic(t, e)
					}
					err = e
				}
			}()
			return unit(ctx, t)
		})
	}

	err := g.Wait()
	if err != nil {
		logx.Warn().Err(err).Int("targets", len(targets)).Msg("request group failed, clearing loading state")
		c.clearLoading(targets)
	}
	return err
}

func (c *Coordinator) clearLoading(targets []Target) {
	for _, t := range targets {
		err := session.Set(c.store, -1, session.Loading, false, session.Fenced(t.Fence))
		if err != nil && !errors.Is(err, session.ErrStale) {
			logx.Error().Err(err).Str("session", t.Fence.ID).Msg("failed to clear loading state")
		}
	}
}
