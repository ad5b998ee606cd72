package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/model"
)

func newTestStore(n int) *Store {
	states := make([]*model.PlaygroundState, n)
	for i := range states {
		states[i] = model.NewPlaygroundState("openai/gpt-4o-mini")
	}
	return NewStore(states...)
}

func TestSetReplacesOnlyTargetField(t *testing.T) {
	s := newTestStore(2)
	before := s.Snapshot()

	require.NoError(t, Set(s, 0, Loading, true))

	after := s.Snapshot()
	assert.True(t, after[0].Loading)
	assert.NotSame(t, before[0], after[0], "targeted record must be replaced")
	assert.Same(t, before[1], after[1], "other records keep identity")
	assert.False(t, before[0].Loading, "published records are never modified")
	assert.Equal(t, before[0].Model, after[0].Model)
	assert.Equal(t, before[0].ID, after[0].ID)
}

func TestUpdateFunctional(t *testing.T) {
	s := newTestStore(1)

	require.NoError(t, Set(s, 0, Messages, []model.Message{{Role: model.RoleSystem, Content: "be brief"}}))
	require.NoError(t, Update(s, 0, Messages, func(ms []model.Message) []model.Message {
		out := model.CloneMessages(ms)
		return append(out, model.Message{Role: model.RoleUser, Content: "Hello"})
	}))

	st, err := s.At(0)
	require.NoError(t, err)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "Hello", st.Messages[1].Content)
}

func TestUpdateSameIndexAppliesInOrder(t *testing.T) {
	s := newTestStore(1)
	require.NoError(t, Set(s, 0, CallID, ""))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Update(s, 0, CallID, func(v string) string { return v + "x" })
		}()
	}
	wg.Wait()

	st, _ := s.At(0)
	assert.Len(t, st.CallID, 100, "no functional update may be lost")
}

func TestConcurrentDifferentIndices(t *testing.T) {
	s := newTestStore(4)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				_ = Update(s, i, SelectedChoiceIndex, func(v int) int { return v + 1 })
			}
		}(i)
	}
	wg.Wait()

	for i, st := range s.Snapshot() {
		assert.Equal(t, 50, st.SelectedChoiceIndex, "session %d", i)
	}
}

func TestIndexOutOfRange(t *testing.T) {
	s := newTestStore(1)

	err := Set(s, 3, Loading, true)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))

	_, err = s.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	assert.ErrorIs(t, s.Remove(1), ErrIndexOutOfRange)
}

func TestFencedWrites(t *testing.T) {
	s := newTestStore(2)

	first, _, err := s.Begin(1, nil)
	require.NoError(t, err)
	require.NoError(t, Set(s, 1, CallID, "first", Fenced(first)))

	second, _, err := s.Begin(1, nil)
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)

	err = Set(s, 1, CallID, "late", Fenced(first))
	assert.ErrorIs(t, err, ErrStale)
	assert.False(t, s.Current(first))
	assert.True(t, s.Current(second))

	require.NoError(t, Set(s, 1, CallID, "second", Fenced(second)))
	st, _ := s.At(1)
	assert.Equal(t, "second", st.CallID)
}

func TestFencedWriteFollowsIndexShift(t *testing.T) {
	s := newTestStore(3)

	fence, _, err := s.Begin(2, nil)
	require.NoError(t, err)
	require.NoError(t, s.Remove(0))

	// The index argument is ignored for fenced writes.
	require.NoError(t, Set(s, 2, Loading, true, Fenced(fence)))

	st, err := s.At(1)
	require.NoError(t, err)
	assert.Equal(t, fence.ID, st.ID)
	assert.True(t, st.Loading)
}

func TestFencedWriteAfterRemove(t *testing.T) {
	s := newTestStore(2)

	fence, _, err := s.Begin(0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Remove(0))

	assert.ErrorIs(t, Set(s, 0, Loading, false, Fenced(fence)), ErrStale)
	assert.Equal(t, 1, s.Len())
}

func TestBeginAppliesTransition(t *testing.T) {
	s := newTestStore(1)
	orig, _ := s.At(0)

	fence, st, err := s.Begin(0, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		next := cur.Clone()
		next.Loading = true
		next.ID = "ignored"
		return next, nil
	})
	require.NoError(t, err)

	assert.True(t, st.Loading)
	assert.Equal(t, orig.ID, st.ID, "session id is owned by the store")
	assert.Equal(t, orig.Generation+1, st.Generation)
	assert.Equal(t, Fence{ID: orig.ID, Generation: st.Generation}, fence)

	boom := errors.New("boom")
	_, _, err = s.Begin(0, func(*model.PlaygroundState) (*model.PlaygroundState, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	cur, _ := s.At(0)
	assert.Same(t, st, cur, "failed transition publishes nothing")
}

func TestReplaceKeepsGeneration(t *testing.T) {
	s := newTestStore(1)
	fence, _, err := s.Begin(0, nil)
	require.NoError(t, err)

	repl := model.NewPlaygroundState("anthropic/claude-sonnet-4-5")
	repl.ID = ""
	require.NoError(t, s.Replace(0, repl))

	st, _ := s.At(0)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", st.Model)
	assert.Equal(t, fence.ID, st.ID)
	assert.True(t, s.Current(fence))
}

func TestAppendDuplicateRemove(t *testing.T) {
	s := newTestStore(1)
	require.NoError(t, Set(s, 0, Loading, true))
	require.NoError(t, Set(s, 0, Messages, []model.Message{{Role: model.RoleUser, Content: "hi"}}))

	idx, err := s.Duplicate(0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	src, _ := s.At(0)
	dup, _ := s.At(1)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.False(t, dup.Loading)
	assert.Equal(t, src.Messages, dup.Messages)
	assert.Equal(t, 1, s.IndexOf(dup.ID))

	require.NoError(t, s.Remove(0))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.IndexOf(dup.ID))
	assert.Equal(t, -1, s.IndexOf(src.ID))
}

func TestSetMany(t *testing.T) {
	s := newTestStore(1)
	resp := &model.Response{Choices: []model.Choice{{Message: model.Message{Role: model.RoleAssistant, Content: "ok"}}}}

	require.NoError(t, SetMany(s, 0, []Fields{
		With(Output, resp),
		With(CallID, "call-1"),
		With(Loading, false),
	}))

	st, _ := s.At(0)
	assert.Same(t, resp, st.Output)
	assert.Equal(t, "call-1", st.CallID)
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(1)

	var got []Change
	cancel := s.Subscribe(func(c Change) { got = append(got, c) })

	require.NoError(t, Set(s, 0, Loading, true))
	s.Append(model.NewPlaygroundState("ollama/llama3.1"))
	cancel()
	require.NoError(t, Set(s, 0, Loading, false))

	require.Len(t, got, 2)
	assert.Equal(t, OpField, got[0].Op)
	assert.Equal(t, "loading", got[0].Field)
	assert.Equal(t, OpAppend, got[1].Op)
	assert.Equal(t, 1, got[1].Index)
}

func TestModifyKeepsIdentity(t *testing.T) {
	s := newTestStore(1)
	fence, _, err := s.Begin(0, nil)
	require.NoError(t, err)

	require.NoError(t, s.Modify(0, func(cur *model.PlaygroundState) (*model.PlaygroundState, error) {
		next := cur.Clone()
		next.ID = "other"
		next.Generation = 99
		next.Model = "ollama/llama3.1"
		return next, nil
	}))

	st, _ := s.At(0)
	assert.Equal(t, fence.ID, st.ID)
	assert.Equal(t, fence.Generation, st.Generation)
	assert.Equal(t, "ollama/llama3.1", st.Model)
}
