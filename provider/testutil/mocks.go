package testutil

import (
	"context"
	"sync"

	"playground/model"
	"playground/ollama"
)

// ScriptedStream implements model.ChunkStream over a fixed list of chunks.
//
// Gate, when set, is received from before each chunk is handed out so a test
// can pace the stream. Blocking on Gate honours Ctx.
type ScriptedStream struct {
	Chunks []model.Chunk
	End    model.StreamMeta
	Fail   error
	Gate   <-chan struct{}
	Ctx    context.Context

	mu     sync.Mutex
	pos    int
	cur    model.Chunk
	err    error
	closed bool
}

// NewScriptedStream returns a stream yielding chunks and ending with meta.
func NewScriptedStream(meta model.StreamMeta, chunks ...model.Chunk) *ScriptedStream {
	return &ScriptedStream{Chunks: chunks, End: meta}
}

func (s *ScriptedStream) Next() bool {
	if s.Gate != nil {
		ctx := s.Ctx
		if ctx == nil {
			ctx = context.Background()
		}
		select {
		case <-s.Gate:
		case <-ctx.Done():
			s.mu.Lock()
			s.err = ctx.Err()
			s.mu.Unlock()
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return false
	}
	if s.pos >= len(s.Chunks) {
		s.err = s.Fail
		return false
	}
	s.cur = s.Chunks[s.pos]
	s.pos++
	return true
}

func (s *ScriptedStream) Current() model.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *ScriptedStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ScriptedStream) Meta() model.StreamMeta { return s.End }

func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockTransport implements model.Transport for testing. Requests are
// recorded in order.
type MockTransport struct {
	CreateFunc func(ctx context.Context, req model.CompletionRequest) (*model.Response, error)
	StreamFunc func(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error)

	mu       sync.Mutex
	requests []model.CompletionRequest
}

// NewMockTransport creates a mock transport that streams "Mock response".
func NewMockTransport() *MockTransport {
	m := &MockTransport{}
	m.CreateFunc = func(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
		return TextResponse("Mock response"), nil
	}
	m.StreamFunc = func(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
		return NewScriptedStream(model.StreamMeta{}, TextChunks("Mock ", "response")...), nil
	}
	return m
}

func (m *MockTransport) record(req model.CompletionRequest) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
}

func (m *MockTransport) CompletionsCreate(ctx context.Context, req model.CompletionRequest) (*model.Response, error) {
	m.record(req)
	return m.CreateFunc(ctx, req)
}

func (m *MockTransport) CompletionsCreateStream(ctx context.Context, req model.CompletionRequest) (model.ChunkStream, error) {
	m.record(req)
	return m.StreamFunc(ctx, req)
}

// Requests returns the requests seen so far.
func (m *MockTransport) Requests() []model.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CompletionRequest(nil), m.requests...)
}

// MockBackend adds model listing and ping to MockTransport.
type MockBackend struct {
	*MockTransport
	ListModelsFunc func(ctx context.Context) ([]ollama.ModelInfo, error)
	PingFunc       func(ctx context.Context) error
}

// NewMockBackend creates a mock backend listing two models of providerID.
func NewMockBackend(providerID string) *MockBackend {
	return &MockBackend{
		MockTransport: NewMockTransport(),
		ListModelsFunc: func(ctx context.Context) ([]ollama.ModelInfo, error) {
			return []ollama.ModelInfo{
				{Name: "mock-model-1", InternalName: "mock-model-1", Provider: providerID},
				{Name: "mock-model-2", InternalName: "mock-model-2", Provider: providerID},
			}, nil
		},
		PingFunc: func(ctx context.Context) error { return nil },
	}
}

func (m *MockBackend) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockBackend) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
