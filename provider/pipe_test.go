package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground/model"
)

func TestProduceDeliversInOrder(t *testing.T) {
	s := produce(context.Background(), func(ctx context.Context, p *pipe) (model.StreamMeta, error) {
		for _, text := range []string{"a", "b", "c"} {
			if !p.send(model.Chunk{Choices: []model.ChunkChoice{{Delta: model.Delta{Content: text}}}}) {
				return model.StreamMeta{}, ctx.Err()
			}
		}
		return model.StreamMeta{CallID: "call-1"}, nil
	})
	defer s.Close()

	var got string
	for s.Next() {
		got += s.Current().Choices[0].Delta.Content
	}
	require.NoError(t, s.Err())
	assert.Equal(t, "abc", got)
	assert.Equal(t, "call-1", s.Meta().CallID)
}

func TestProduceReportsError(t *testing.T) {
	boom := errors.New("boom")
	s := produce(context.Background(), func(ctx context.Context, p *pipe) (model.StreamMeta, error) {
		p.send(model.Chunk{})
		return model.StreamMeta{}, boom
	})
	defer s.Close()

	for s.Next() {
	}
	assert.ErrorIs(t, s.Err(), boom)
}

func TestCloseStopsProducer(t *testing.T) {
	stopped := make(chan error, 1)
	s := produce(context.Background(), func(ctx context.Context, p *pipe) (model.StreamMeta, error) {
		for p.send(model.Chunk{}) {
		}
		stopped <- ctx.Err()
		return model.StreamMeta{}, ctx.Err()
	})

	require.True(t, s.Next())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after Close")
	}
}

func TestStaticStream(t *testing.T) {
	s := staticStream(model.StreamMeta{APIKeyName: "OPENAI_API_KEY"})
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.Equal(t, "OPENAI_API_KEY", s.Meta().APIKeyName)
}
