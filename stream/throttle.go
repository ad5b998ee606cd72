package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultWindow is the commit cadence used for streamed responses.
const DefaultWindow = 80 * time.Millisecond

// Coalescer collapses rapid triggers into at most one commit per window.
//
// The first trigger in an open window commits immediately. Triggers arriving
// while the window is closed replace a single pending value, which is committed
// once when the window reopens. Commits are serialised and never reordered.
//
// The commit callback must not call back into the Coalescer.
type Coalescer[T any] struct {
	limiter *rate.Limiter
	commit  func(T)

	mu          sync.Mutex
	seq         uint64
	pending     T
	pendingSeq  uint64
	hasPending  bool
	timer       *time.Timer
	timerGen    uint64
	reservation *rate.Reservation

	commitMu sync.Mutex
	lastSeq  uint64
	stopped  atomic.Bool
	commits  atomic.Int64
}

// NewCoalescer returns a Coalescer committing through commit at most once per
// window. A non-positive window disables coalescing.
func NewCoalescer[T any](window time.Duration, commit func(T)) *Coalescer[T] {
	limit := rate.Inf
	if window > 0 {
		limit = rate.Every(window)
	}
	return &Coalescer[T]{
		limiter: rate.NewLimiter(limit, 1),
		commit:  commit,
	}
}

// Trigger submits v. It either commits v now or keeps it as the pending value.
func (c *Coalescer[T]) Trigger(v T) {
	if c.stopped.Load() {
		return
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq

	if c.timer == nil && c.limiter.Allow() {
		c.mu.Unlock()
		c.fire(v, seq)
		return
	}

	c.pending, c.pendingSeq, c.hasPending = v, seq, true
	if c.timer == nil {
		c.timerGen++
		gen := c.timerGen
		c.reservation = c.limiter.Reserve()
		c.timer = time.AfterFunc(c.reservation.Delay(), func() { c.onTimer(gen) })
	}
	c.mu.Unlock()
}

// Flush commits the pending value, if any, before returning.
func (c *Coalescer[T]) Flush() {
	c.mu.Lock()
	v, seq, ok := c.takePendingLocked()
	// The reserved token stays spent so the window keeps its cadence.
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.reservation = nil
	}
	c.mu.Unlock()

	if ok {
		c.fire(v, seq)
	}
}

// Stop discards the pending value. Once Stop returns no further commit runs,
// including one that was already in flight.
func (c *Coalescer[T]) Stop() {
	c.stopped.Store(true)

	c.mu.Lock()
	c.takePendingLocked()
	c.cancelTimerLocked()
	c.mu.Unlock()

	// Wait out a commit that raced with Stop.
	c.commitMu.Lock()
	c.commitMu.Unlock()
}

// Commits returns how many commits have run.
func (c *Coalescer[T]) Commits() int64 {
	return c.commits.Load()
}

func (c *Coalescer[T]) onTimer(gen uint64) {
	c.mu.Lock()
	if c.timer == nil || gen != c.timerGen {
		// Superseded by Flush or Stop.
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.reservation = nil
	v, seq, ok := c.takePendingLocked()
	c.mu.Unlock()

	if ok {
		c.fire(v, seq)
	}
}

func (c *Coalescer[T]) fire(v T, seq uint64) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if c.stopped.Load() || seq <= c.lastSeq {
		return
	}
	c.lastSeq = seq
	c.commits.Add(1)
	c.commit(v)
}

func (c *Coalescer[T]) takePendingLocked() (T, uint64, bool) {
	var zero T
	if !c.hasPending {
		return zero, 0, false
	}
	v, seq := c.pending, c.pendingSeq
	c.pending, c.pendingSeq, c.hasPending = zero, 0, false
	return v, seq, true
}

func (c *Coalescer[T]) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.reservation != nil {
		c.reservation.Cancel()
		c.reservation = nil
	}
}
