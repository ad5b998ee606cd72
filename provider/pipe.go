package provider

import (
	"context"
	"sync"

	"playground/model"
)

// pipeBuffer bounds how far a producer may run ahead of the consumer.
const pipeBuffer = 32

// pipe adapts a producer goroutine to model.ChunkStream over a bounded
// channel. The producer calls send for each chunk and finish exactly once.
type pipe struct {
	ch   chan model.Chunk
	done chan struct{}
	cur  model.Chunk

	mu   sync.Mutex
	meta model.StreamMeta
	err  error

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// newPipe returns a pipe and the context its producer must use. The context is
// cancelled when the consumer closes the stream.
func newPipe(ctx context.Context) (*pipe, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &pipe{
		ch:     make(chan model.Chunk, pipeBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}, ctx
}

// send hands c to the consumer. It reports false once the consumer has gone
// away, in which case the producer should stop.
func (p *pipe) send(c model.Chunk) bool {
	select {
	case p.ch <- c:
		return true
	case <-p.done:
		return false
	}
}

// finish ends the stream with its metadata and error.
func (p *pipe) finish(meta model.StreamMeta, err error) {
	p.mu.Lock()
	p.meta, p.err = meta, err
	p.mu.Unlock()
	close(p.ch)
}

func (p *pipe) Next() bool {
	c, ok := <-p.ch
	if !ok {
		return false
	}
	p.cur = c
	return true
}

func (p *pipe) Current() model.Chunk { return p.cur }

func (p *pipe) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *pipe) Meta() model.StreamMeta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta
}

func (p *pipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.cancel()
	})
	return nil
}

// produce runs fn on its own goroutine feeding a new pipe.
func produce(ctx context.Context, fn func(ctx context.Context, p *pipe) (model.StreamMeta, error)) model.ChunkStream {
	p, pctx := newPipe(ctx)
	go func() {
		meta, err := fn(pctx, p)
		p.finish(meta, err)
	}()
	return p
}

// staticStream yields no chunks and ends with meta.
func staticStream(meta model.StreamMeta) model.ChunkStream {
	p, _ := newPipe(context.Background())
	p.finish(meta, nil)
	return p
}
