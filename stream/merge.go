// Package stream folds streamed completion chunks into a render-ready
// response and paces how often that response is published.
//
// Merging is split in two shapes:
//   - content deltas are appended verbatim to the first choice's message
//   - tool-call deltas are merged into existing calls by id, appending
//     argument fragments in arrival order
//
// A tool-call delta without an id is never matched against an existing call.
// Providers that only identify a call on its first fragment are expected to
// fill the id in before handing chunks to this package.
package stream

import (
	"encoding/json"

	"playground/model"
)

// MergeContentDelta appends delta to the content of the first choice of buf,
// creating the choice if needed.
func MergeContentDelta(buf *model.Response, delta string) {
	ensureChoice(buf)
	buf.Choices[0].Message.Content += delta
}

// MergeToolCallDelta folds deltas into existing and returns the merged list.
//
// existing is not modified; callers may keep publishing it while the next
// merge is in progress.
func MergeToolCallDelta(existing []model.ToolCall, deltas []model.ToolCallDelta) []model.ToolCall {
	if len(deltas) == 0 {
		return existing
	}

	merged := make([]model.ToolCall, len(existing), len(existing)+len(deltas))
	copy(merged, existing)

	for _, d := range deltas {
		idx := -1
		if d.ID != "" {
			for i := range merged {
				if merged[i].ID == d.ID {
					idx = i
					break
				}
			}
		}

		if idx < 0 {
			merged = append(merged, model.ToolCall{
				ID:   d.ID,
				Type: d.Type,
				Function: model.ToolCallFunction{
					Name:      d.Function.Name,
					Arguments: d.Function.Arguments,
				},
			})
			continue
		}

		// Names arrive whole; arguments arrive as fragments.
		if d.Function.Name != "" {
			merged[idx].Function.Name = d.Function.Name
		}
		if d.Type != "" && merged[idx].Type == "" {
			merged[idx].Type = d.Type
		}
		merged[idx].Function.Arguments += d.Function.Arguments
	}

	return merged
}

// IsValidToolCall reports whether tc is complete enough to display: it has an
// id, a name, and arguments that parse as JSON.
func IsValidToolCall(tc model.ToolCall) bool {
	if tc.ID == "" || tc.Function.Name == "" || tc.Function.Arguments == "" {
		return false
	}
	return json.Valid([]byte(tc.Function.Arguments))
}

// AllToolCallsValid reports whether every call in calls is valid.
func AllToolCallsValid(calls []model.ToolCall) bool {
	for _, tc := range calls {
		if !IsValidToolCall(tc) {
			return false
		}
	}
	return true
}

func ensureChoice(buf *model.Response) {
	if len(buf.Choices) == 0 {
		buf.Choices = []model.Choice{{
			Index:   0,
			Message: model.Message{Role: model.RoleAssistant},
		}}
	}
}
