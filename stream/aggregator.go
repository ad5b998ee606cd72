package stream

import (
	"playground/model"
)

// Aggregator is the working buffer of one in-flight request. It is owned by a
// single goroutine and must not be shared across requests.
type Aggregator struct {
	buf    model.Response
	chunks int
}

// NewAggregator returns an empty buffer with one assistant choice under
// construction.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	ensureChoice(&a.buf)
	return a
}

// Apply folds one chunk into the buffer. It reports whether the change should
// become visible: a chunk that only advanced tool calls is invisible while any
// tool call is still partial.
func (a *Aggregator) Apply(chunk model.Chunk) bool {
	a.chunks++

	if chunk.ID != "" {
		a.buf.ID = chunk.ID
	}
	if chunk.Model != "" {
		a.buf.Model = chunk.Model
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.buf.Usage = &u
	}

	visible := false
	for _, c := range chunk.Choices {
		// Only the first choice is assembled while streaming.
		if c.Index != 0 {
			continue
		}
		if c.Delta.Content != "" {
			MergeContentDelta(&a.buf, c.Delta.Content)
			visible = true
		}
		if len(c.Delta.ToolCalls) > 0 {
			msg := &a.buf.Choices[0].Message
			msg.ToolCalls = MergeToolCallDelta(msg.ToolCalls, c.Delta.ToolCalls)
			if AllToolCallsValid(msg.ToolCalls) {
				visible = true
			}
		}
		if c.FinishReason != "" {
			a.buf.Choices[0].FinishReason = c.FinishReason
		}
	}
	return visible
}

// Content returns the text accumulated so far.
func (a *Aggregator) Content() string {
	return a.buf.Choices[0].Message.Content
}

// ToolCalls returns the tool calls accumulated so far. The slice must not be
// modified.
func (a *Aggregator) ToolCalls() []model.ToolCall {
	return a.buf.Choices[0].Message.ToolCalls
}

// Chunks returns how many chunks have been applied.
func (a *Aggregator) Chunks() int {
	return a.chunks
}

// Snapshot returns a copy of the buffer suitable for publishing. Tool calls
// whose arguments are still partial are left out until they complete.
// Content strings are immutable and tool-call slices are replaced, never
// modified, by later merges, so only the choice list is copied.
func (a *Aggregator) Snapshot() *model.Response {
	out := a.buf
	out.Choices = append([]model.Choice(nil), a.buf.Choices...)
	if calls := out.Choices[0].Message.ToolCalls; !AllToolCallsValid(calls) {
		var complete []model.ToolCall
		for _, tc := range calls {
			if IsValidToolCall(tc) {
				complete = append(complete, tc)
			}
		}
		out.Choices[0].Message.ToolCalls = complete
	}
	if a.buf.Usage != nil {
		u := *a.buf.Usage
		out.Usage = &u
	}
	return &out
}

// Response assembles the terminal response, carrying through the stream's
// resolved metadata.
func (a *Aggregator) Response(meta model.StreamMeta) *model.Response {
	resp := a.buf.Clone()
	if meta.Usage != nil {
		u := *meta.Usage
		resp.Usage = &u
	}
	if resp.Choices[0].FinishReason == "" && (len(resp.Choices[0].Message.Content) > 0 || len(resp.Choices[0].Message.ToolCalls) > 0) {
		resp.Choices[0].FinishReason = "stop"
		if len(resp.Choices[0].Message.ToolCalls) > 0 {
			resp.Choices[0].FinishReason = "tool_calls"
		}
	}
	resp.Error = meta.Error
	resp.APIKeyName = meta.APIKeyName
	resp.Reason = meta.Reason
	return resp
}
