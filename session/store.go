// Package session owns the ordered list of playground sessions.
//
// Every mutation goes through the Store. Records are never modified in place:
// an update copies the targeted record, replaces one field and publishes a new
// list in which all other records keep their identity. Readers may therefore
// hold on to a snapshot for as long as they like.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"playground/logx"
	"playground/model"
)

var (
	// ErrIndexOutOfRange is returned when a session index does not exist.
	ErrIndexOutOfRange = errors.New("session index out of range")

	// ErrStale is returned by fenced writes whose request has been superseded
	// or whose session has been removed. Callers treat it as a no-op.
	ErrStale = errors.New("stale session write")
)

// Op describes the kind of mutation reported to subscribers.
type Op string

const (
	OpField   Op = "field"
	OpReplace Op = "replace"
	OpAppend  Op = "append"
	OpRemove  Op = "remove"
)

// Change is delivered to subscribers after a mutation has been published.
type Change struct {
	Op    Op
	Index int
	ID    string
	Field string
}

// Fence identifies one request against one session. Writes carrying a fence
// are routed by session id, so they survive index shifts, and are dropped once
// a newer request has begun on the same session.
type Fence struct {
	ID         string
	Generation uint64
}

// Store is the sole owner of the session list.
type Store struct {
	mu       sync.Mutex
	sessions []*model.PlaygroundState

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewStore returns a store holding the given sessions in order.
func NewStore(initial ...*model.PlaygroundState) *Store {
	s := &Store{subs: make(map[int]func(Change))}
	for _, st := range initial {
		s.sessions = append(s.sessions, st.Clone())
	}
	return s
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns the current list. The records and the slice must be treated
// as read-only.
func (s *Store) Snapshot() []*model.PlaygroundState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[:len(s.sessions):len(s.sessions)]
}

// At returns the session at index.
func (s *Store) At(index int) (*model.PlaygroundState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.sessions) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return s.sessions[index], nil
}

// IndexOf returns the index of the session with the given id, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOfLocked(id)
}

// Append adds a session at the end and returns its index.
func (s *Store) Append(st *model.PlaygroundState) int {
	rec := st.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.mu.Lock()
	next := make([]*model.PlaygroundState, len(s.sessions), len(s.sessions)+1)
	copy(next, s.sessions)
	s.sessions = append(next, rec)
	index := len(s.sessions) - 1
	s.mu.Unlock()

	s.notify(Change{Op: OpAppend, Index: index, ID: rec.ID})
	return index
}

// Duplicate appends a copy of the session at index. The copy gets a new id and
// does not inherit in-flight state.
func (s *Store) Duplicate(index int) (int, error) {
	src, err := s.At(index)
	if err != nil {
		return -1, err
	}
	dup := src.Clone()
	dup.ID = uuid.NewString()
	dup.Generation = 0
	dup.Loading = false
	return s.Append(dup), nil
}

// Remove deletes the session at index. In-flight fenced writes for it become
// stale.
func (s *Store) Remove(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.sessions) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	id := s.sessions[index].ID
	next := make([]*model.PlaygroundState, 0, len(s.sessions)-1)
	next = append(next, s.sessions[:index]...)
	next = append(next, s.sessions[index+1:]...)
	s.sessions = next
	s.mu.Unlock()

	s.notify(Change{Op: OpRemove, Index: index, ID: id})
	return nil
}

// Replace swaps the whole record at index. The store keeps the session's
// generation; everything else comes from st.
func (s *Store) Replace(index int, st *model.PlaygroundState, opts ...WriteOption) error {
	return s.mutate(index, OpReplace, "", opts, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		rec := st.Clone()
		rec.Generation = cur.Generation
		if rec.ID == "" {
			rec.ID = cur.ID
		}
		return rec, nil
	})
}

// Modify replaces the record at index with fn applied to it. fn must return a
// new record rather than modify its argument. The session keeps its id and
// generation.
func (s *Store) Modify(index int, fn func(*model.PlaygroundState) (*model.PlaygroundState, error), opts ...WriteOption) error {
	return s.mutate(index, OpReplace, "", opts, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == cur {
			cp := *cur
			next = &cp
		}
		next.ID = cur.ID
		next.Generation = cur.Generation
		return next, nil
	})
}

// Begin starts a new request on the session at index. fn, when non-nil,
// computes the record the request starts from; it must return a new record
// rather than modify its argument. The session's generation is bumped so that
// writes fenced by earlier requests become stale.
func (s *Store) Begin(index int, fn func(*model.PlaygroundState) (*model.PlaygroundState, error)) (Fence, *model.PlaygroundState, error) {
	var (
		fence Fence
		out   *model.PlaygroundState
	)
	err := s.mutate(index, OpReplace, "", nil, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		next := cur
		if fn != nil {
			var err error
			if next, err = fn(cur); err != nil {
				return nil, err
			}
		}
		if next == cur {
			cp := *cur
			next = &cp
		}
		next.ID = cur.ID
		next.Generation = cur.Generation + 1
		fence = Fence{ID: next.ID, Generation: next.Generation}
		out = next
		return next, nil
	})
	if err != nil {
		return Fence{}, nil, err
	}
	return fence, out, nil
}

// Current reports whether f still identifies the latest request of its
// session.
func (s *Store) Current(f Fence) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfLocked(f.ID)
	return i >= 0 && s.sessions[i].Generation == f.Generation
}

// Subscribe registers fn to be called after every published mutation. fn runs
// on the mutating goroutine and must not block for long.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// mutate applies fn to the record addressed by index (or by fence) and
// publishes the result.
func (s *Store) mutate(index int, op Op, field string, opts []WriteOption, fn func(*model.PlaygroundState) (*model.PlaygroundState, error)) error {
	o := collect(opts)

	s.mu.Lock()
	i, err := s.resolveLocked(index, o)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	cur := s.sessions[i]
	rec, err := fn(cur)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next := make([]*model.PlaygroundState, len(s.sessions))
	copy(next, s.sessions)
	next[i] = rec
	s.sessions = next
	s.mu.Unlock()

	s.notify(Change{Op: op, Index: i, ID: rec.ID, Field: field})
	return nil
}

func (s *Store) resolveLocked(index int, o writeOptions) (int, error) {
	if o.fence != nil {
		i := s.indexOfLocked(o.fence.ID)
		if i < 0 || s.sessions[i].Generation != o.fence.Generation {
			logx.Debug().
				Str("session", o.fence.ID).
				Uint64("generation", o.fence.Generation).
				Msg("dropping stale session write")
			return -1, ErrStale
		}
		return i, nil
	}
	if index < 0 || index >= len(s.sessions) {
		return -1, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return index, nil
}

func (s *Store) indexOfLocked(id string) int {
	for i, st := range s.sessions {
		if st.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
