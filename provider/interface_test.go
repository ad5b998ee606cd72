package provider_test

import (
	"context"
	"testing"
	"time"

	"playground/model"
	"playground/provider"
	"playground/provider/testutil"
	"playground/stream"
)

// TestBackendContract defines the contract ALL backends must satisfy.
// Live backends need credentials and a server, so the contract runs against
// the mock here.
func TestBackendContract(t *testing.T) {
	tests := []struct {
		name    string
		backend provider.Backend
	}{
		{"Mock", testutil.NewMockBackend("mock")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Run("Create", func(t *testing.T) {
				testBackendCreate(t, tt.backend)
			})
			t.Run("Stream", func(t *testing.T) {
				testBackendStream(t, tt.backend)
			})
			t.Run("ListModels", func(t *testing.T) {
				testBackendListModels(t, tt.backend)
			})
			t.Run("HealthCheck", func(t *testing.T) {
				testBackendHealthCheck(t, tt.backend)
			})
		})
	}
}

func request(content string) model.CompletionRequest {
	return model.CompletionRequest{
		Model:    "mock-model-1",
		Messages: testutil.SingleUserMessage(content),
		N:        1,
	}
}

func testBackendCreate(t *testing.T, b provider.Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := b.CompletionsCreate(ctx, request("Hello"))
	if err != nil {
		t.Fatalf("CompletionsCreate() error = %v", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		t.Error("CompletionsCreate() returned no content")
	}
}

func testBackendStream(t *testing.T, b provider.Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := b.CompletionsCreateStream(ctx, request("What's the weather?"))
	if err != nil {
		t.Fatalf("CompletionsCreateStream() error = %v", err)
	}
	defer s.Close()

	agg := stream.NewAggregator()
	for s.Next() {
		agg.Apply(s.Current())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if agg.Content() == "" {
		t.Error("stream did not deliver any content")
	}
}

func testBackendListModels(t *testing.T, b provider.Backend) {
	models, err := b.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	for _, m := range models {
		if m.Provider == "" || m.InternalName == "" {
			t.Errorf("model %+v lacks provider or internal name", m)
		}
	}
}

func testBackendHealthCheck(t *testing.T, b provider.Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
