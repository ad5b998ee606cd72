package model

// Choice is one candidate answer within a completion response.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completion response as committed into session output.
//
// Error, APIKeyName and Reason are only set when the transport returned a
// domain error body instead of a completion.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	Error      string `json:"error,omitempty"`
	APIKeyName string `json:"api_key_name,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Clone returns a deep copy of the response. A nil response stays nil.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	if r.Choices != nil {
		out.Choices = make([]Choice, len(r.Choices))
		for i, c := range r.Choices {
			c.Message = c.Message.Clone()
			out.Choices[i] = c
		}
	}
	if r.Usage != nil {
		u := *r.Usage
		out.Usage = &u
	}
	return &out
}

// Choice returns the choice at index i, if present.
func (r *Response) Choice(i int) (Choice, bool) {
	if r == nil || i < 0 || i >= len(r.Choices) {
		return Choice{}, false
	}
	return r.Choices[i], true
}

// Chunk is one incremental unit of a streamed completion.
type Chunk struct {
	ID      string        `json:"id,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice carries the delta for one choice index.
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta is the partial-update payload inside a chunk.
type Delta struct {
	Role      Role            `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is one fragment of a tool call. An empty ID means the
// provider did not identify the call in this fragment.
type ToolCallDelta struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// StreamMeta is resolved by a stream once it has ended.
type StreamMeta struct {
	// CallID identifies the upstream call, when the transport tracks one.
	CallID string
	Usage  *Usage

	// Domain error fields, mirrored from Response.
	Error      string
	APIKeyName string
	Reason     string
}
