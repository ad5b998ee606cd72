package session

import (
	"playground/model"
)

// Field addresses one field of a session record.
type Field[T any] struct {
	name string
	get  func(*model.PlaygroundState) T
	set  func(*model.PlaygroundState, T)
}

// Name returns the field's name as reported in Change.Field.
func (f Field[T]) Name() string { return f.name }

// Get reads the field from st.
func (f Field[T]) Get(st *model.PlaygroundState) T { return f.get(st) }

var (
	Loading = Field[bool]{
		name: "loading",
		get:  func(s *model.PlaygroundState) bool { return s.Loading },
		set:  func(s *model.PlaygroundState, v bool) { s.Loading = v },
	}
	Output = Field[*model.Response]{
		name: "output",
		get:  func(s *model.PlaygroundState) *model.Response { return s.Output },
		set:  func(s *model.PlaygroundState, v *model.Response) { s.Output = v },
	}
	Messages = Field[[]model.Message]{
		name: "messages",
		get:  func(s *model.PlaygroundState) []model.Message { return s.Messages },
		set:  func(s *model.PlaygroundState, v []model.Message) { s.Messages = v },
	}
	CallID = Field[string]{
		name: "call_id",
		get:  func(s *model.PlaygroundState) string { return s.CallID },
		set:  func(s *model.PlaygroundState, v string) { s.CallID = v },
	}
	Summary = Field[*model.CallSummary]{
		name: "summary",
		get:  func(s *model.PlaygroundState) *model.CallSummary { return s.Summary },
		set:  func(s *model.PlaygroundState, v *model.CallSummary) { s.Summary = v },
	}
	SelectedChoiceIndex = Field[int]{
		name: "selected_choice_index",
		get:  func(s *model.PlaygroundState) int { return s.SelectedChoiceIndex },
		set:  func(s *model.PlaygroundState, v int) { s.SelectedChoiceIndex = v },
	}
	Model = Field[string]{
		name: "model",
		get:  func(s *model.PlaygroundState) string { return s.Model },
		set:  func(s *model.PlaygroundState, v string) { s.Model = v },
	}
	Params = Field[model.Params]{
		name: "params",
		get:  func(s *model.PlaygroundState) model.Params { return s.Params },
		set:  func(s *model.PlaygroundState, v model.Params) { s.Params = v },
	}
)

type writeOptions struct {
	fence *Fence
}

// WriteOption modifies how a write is addressed.
type WriteOption func(*writeOptions)

// Fenced routes the write by the fence's session id instead of the index and
// drops it with ErrStale once the fence is no longer current.
func Fenced(f Fence) WriteOption {
	return func(o *writeOptions) {
		o.fence = &f
	}
}

func collect(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Set replaces one field of the session at index with v.
func Set[T any](s *Store, index int, f Field[T], v T, opts ...WriteOption) error {
	return Update(s, index, f, func(T) T { return v }, opts...)
}

// Update replaces one field of the session at index with fn applied to its
// current value. fn runs under the store lock; it must not call back into the
// store and must return a new value instead of modifying a shared one.
func Update[T any](s *Store, index int, f Field[T], fn func(T) T, opts ...WriteOption) error {
	return s.mutate(index, OpField, f.name, opts, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		next := *cur
		f.set(&next, fn(f.get(cur)))
		return &next, nil
	})
}

// Fields is one field assignment for SetMany.
type Fields func(*model.PlaygroundState)

// With builds a SetMany assignment for f.
func With[T any](f Field[T], v T) Fields {
	return func(s *model.PlaygroundState) { f.set(s, v) }
}

// SetMany applies several field assignments to the session at index as one
// published change.
func SetMany(s *Store, index int, assign []Fields, opts ...WriteOption) error {
	return s.mutate(index, OpField, "*", opts, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		next := *cur
		for _, a := range assign {
			a(&next)
		}
		return &next, nil
	})
}
