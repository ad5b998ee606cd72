package playground

import (
	"context"
	"errors"
	"time"

	"playground/logx"
	"playground/model"
	"playground/session"
	"playground/stream"
)

// runStream streams one completion into the target session.
func (p *Playground) runStream(ctx context.Context, t Target) error {
	ctx, done := p.track(ctx, t.Fence)
	defer done()

	req := BuildRequest(t.State)
	start := time.Now()
	logx.Debug().
		Str("session", t.Fence.ID).
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("opening completion stream")

	s, err := p.transport.CompletionsCreateStream(ctx, req)
	if err != nil {
		p.fail(t, err)
		return nil
	}
	defer s.Close()

	agg := stream.NewAggregator()
	co := stream.NewCoalescer(p.window, func(resp *model.Response) {
		if err := session.Set(p.store, -1, session.Output, resp, session.Fenced(t.Fence)); err != nil && !errors.Is(err, session.ErrStale) {
			logx.Warn().Err(err).Str("session", t.Fence.ID).Msg("partial commit failed")
		}
	})
	defer co.Stop()

	var firstToken time.Duration
	for s.Next() {
		if agg.Apply(s.Current()) {
			if firstToken == 0 {
				firstToken = time.Since(start)
			}
			co.Trigger(agg.Snapshot())
		}
	}

	if err := s.Err(); err != nil {
		// Keep what already arrived.
		co.Flush()
		p.fail(t, err)
		return nil
	}

	meta := s.Meta()
	resp := agg.Response(meta)
	if e := Classify(resp, p.settingsLink); e != nil {
		co.Stop()
		p.report(t, e)
		return nil
	}

	co.Stop()
	p.commit(t, resp, meta.CallID, summarize(resp.Usage, start, firstToken))
	logx.Debug().
		Str("session", t.Fence.ID).
		Int("chunks", agg.Chunks()).
		Int64("commits", co.Commits()).
		Dur("elapsed", time.Since(start)).
		Msg("completion stream finished")
	return nil
}

// runOnce requests one non-streamed completion for the target session.
func (p *Playground) runOnce(ctx context.Context, t Target) error {
	ctx, done := p.track(ctx, t.Fence)
	defer done()

	start := time.Now()
	resp, err := p.transport.CompletionsCreate(ctx, BuildRequest(t.State))
	if err != nil {
		p.fail(t, err)
		return nil
	}
	if e := Classify(resp, p.settingsLink); e != nil {
		p.report(t, e)
		return nil
	}

	elapsed := time.Since(start)
	p.commit(t, resp, "", summarize(resp.Usage, start, elapsed))
	return nil
}

// commit publishes the terminal response and ends the request.
func (p *Playground) commit(t Target, resp *model.Response, callID string, summary *model.CallSummary) {
	err := session.SetMany(p.store, -1, []session.Fields{
		session.With(session.Output, resp),
		session.With(session.CallID, callID),
		session.With(session.Summary, summary),
		session.With(session.SelectedChoiceIndex, 0),
		session.With(session.Loading, false),
	}, session.Fenced(t.Fence))
	if err != nil && !errors.Is(err, session.ErrStale) {
		logx.Error().Err(err).Str("session", t.Fence.ID).Msg("failed to commit response")
	}
}

// fail ends the request after the call itself failed.
func (p *Playground) fail(t Target, err error) {
	if errors.Is(err, context.Canceled) {
		logx.Debug().Str("session", t.Fence.ID).Msg("request cancelled")
		p.clearLoading(t)
		return
	}
	logx.Warn().Err(err).Str("session", t.Fence.ID).Msg("completion request failed")
	p.report(t, transportError(err))
}

// report ends the request and surfaces e for the session.
func (p *Playground) report(t Target, e *Error) {
	p.clearLoading(t)

	// A superseded request has nothing left to tell the user.
	if !p.store.Current(t.Fence) {
		return
	}
	if !e.Surfaced() {
		logx.Debug().Str("session", t.Fence.ID).Str("reason", e.Message).Msg("request skipped")
		return
	}
	p.notifier.Notify(p.store.IndexOf(t.Fence.ID), e)
}

func (p *Playground) clearLoading(t Target) {
	err := session.Set(p.store, -1, session.Loading, false, session.Fenced(t.Fence))
	if err != nil && !errors.Is(err, session.ErrStale) {
		logx.Error().Err(err).Str("session", t.Fence.ID).Msg("failed to clear loading state")
	}
}

func summarize(usage *model.Usage, start time.Time, firstToken time.Duration) *model.CallSummary {
	sum := &model.CallSummary{
		LatencyMS:  time.Since(start).Milliseconds(),
		FirstToken: firstToken.Milliseconds(),
	}
	if usage != nil {
		sum.Usage = *usage
	}
	return sum
}
