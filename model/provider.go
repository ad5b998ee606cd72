package model

import (
	"context"
)

// Transport abstracts the completion API behind the playground engine.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the playground engine
// depends only on Transport without importing the provider package.
type Transport interface {
	// CompletionsCreate performs a single-shot completion.
	CompletionsCreate(ctx context.Context, req CompletionRequest) (*Response, error)

	// CompletionsCreateStream opens a streamed completion. The returned stream
	// yields chunks until Next returns false; Meta is valid afterwards.
	CompletionsCreateStream(ctx context.Context, req CompletionRequest) (ChunkStream, error)
}

// ChunkStream is a pull iterator over the chunks of one streamed completion.
//
//	for s.Next() {
//	    chunk := s.Current()
//	}
//	if err := s.Err(); err != nil { ... }
//	meta := s.Meta()
type ChunkStream interface {
	Next() bool
	Current() Chunk
	Err() error
	Meta() StreamMeta
	Close() error
}

// ResponseFormatSpec is the wire form of a non-text response format.
type ResponseFormatSpec struct {
	Type ResponseFormat `json:"type"`
}

// CompletionRequest is the outbound payload built from a session.
//
// Optional fields are omitted from the JSON encoding when they carry no
// information: Stop when empty, ResponseFormat for plain text, Tools when none.
type CompletionRequest struct {
	Model            string              `json:"model"`
	Messages         []Message           `json:"messages"`
	Temperature      float64             `json:"temperature"`
	MaxTokens        int                 `json:"max_tokens"`
	Stop             []string            `json:"stop,omitempty"`
	TopP             float64             `json:"top_p"`
	FrequencyPenalty float64             `json:"frequency_penalty"`
	PresencePenalty  float64             `json:"presence_penalty"`
	N                int                 `json:"n"`
	ResponseFormat   *ResponseFormatSpec `json:"response_format,omitempty"`
	Tools            []ToolDefinition    `json:"tools,omitempty"`

	// Nonce keeps structurally identical requests from being coalesced or
	// cached by an intermediary.
	Nonce string `json:"nonce"`
}
