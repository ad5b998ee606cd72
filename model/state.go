package model

import (
	"github.com/google/uuid"
)

// ResponseFormat selects how the model should format its answer.
type ResponseFormat string

const (
	ResponseFormatText       ResponseFormat = "text"
	ResponseFormatJSONObject ResponseFormat = "json_object"
	ResponseFormatJSONSchema ResponseFormat = "json_schema"
)

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Type     string             `json:"type" yaml:"type"`
	Function FunctionDefinition `json:"function" yaml:"function"`
}

// FunctionDefinition is the JSON-schema description of a callable function.
type FunctionDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Params is the bag of generation parameters bound to a session. The core
// passes them through to the request builder without interpreting them.
type Params struct {
	Temperature      float64          `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens        int              `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	StopSequences    []string         `json:"stop_sequences,omitempty" yaml:"stop_sequences,omitempty" toml:"stop_sequences"`
	TopP             float64          `json:"top_p" yaml:"top_p" toml:"top_p"`
	FrequencyPenalty float64          `json:"frequency_penalty" yaml:"frequency_penalty" toml:"frequency_penalty"`
	PresencePenalty  float64          `json:"presence_penalty" yaml:"presence_penalty" toml:"presence_penalty"`
	N                int              `json:"n" yaml:"n" toml:"n"`
	ResponseFormat   ResponseFormat   `json:"response_format" yaml:"response_format" toml:"response_format"`
	Tools            []ToolDefinition `json:"tools,omitempty" yaml:"tools,omitempty" toml:"-"`
}

// DefaultParams returns the parameters a fresh session starts with.
func DefaultParams() Params {
	return Params{
		Temperature:    1,
		MaxTokens:      4096,
		TopP:           1,
		N:              1,
		ResponseFormat: ResponseFormatText,
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	out := p
	if p.StopSequences != nil {
		out.StopSequences = append([]string(nil), p.StopSequences...)
	}
	if p.Tools != nil {
		out.Tools = append([]ToolDefinition(nil), p.Tools...)
	}
	return out
}

// CallSummary holds usage and cost metadata of the last completed call.
type CallSummary struct {
	Usage      Usage   `json:"usage"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	LatencyMS  int64   `json:"latency_ms,omitempty"`
	FirstToken int64   `json:"first_token_ms,omitempty"`
}

// PlaygroundState is one independent chat session: history, the in-flight or
// last completed output, and the generation parameters it is bound to.
//
// Records are treated as immutable once published by the session store;
// mutations always produce a new record.
type PlaygroundState struct {
	ID         string `json:"id"`
	Generation uint64 `json:"-"`

	Messages            []Message    `json:"messages"`
	Output              *Response    `json:"output,omitempty"`
	Loading             bool         `json:"-"`
	SelectedChoiceIndex int          `json:"selected_choice_index"`
	CallID              string       `json:"call_id,omitempty"`
	Summary             *CallSummary `json:"summary,omitempty"`

	Model  string `json:"model"`
	Params Params `json:"params"`
}

// NewPlaygroundState creates a session bound to modelID with default params.
func NewPlaygroundState(modelID string) *PlaygroundState {
	return &PlaygroundState{
		ID:     uuid.NewString(),
		Model:  modelID,
		Params: DefaultParams(),
	}
}

// Clone returns a deep copy of the session record.
func (s *PlaygroundState) Clone() *PlaygroundState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = CloneMessages(s.Messages)
	out.Output = s.Output.Clone()
	out.Params = s.Params.Clone()
	if s.Summary != nil {
		sum := *s.Summary
		out.Summary = &sum
	}
	return &out
}

// SelectedChoice returns the currently selected choice of the output, if any.
func (s *PlaygroundState) SelectedChoice() (Choice, bool) {
	if s == nil {
		return Choice{}, false
	}
	return s.Output.Choice(s.SelectedChoiceIndex)
}
