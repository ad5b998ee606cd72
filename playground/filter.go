package playground

import (
	"playground/model"
)

// FilterNullMessages drops messages with neither content nor tool calls.
// When nothing is dropped st itself is returned, so filtering an already
// filtered session is a no-op by identity.
func FilterNullMessages(st *model.PlaygroundState) *model.PlaygroundState {
	if st == nil {
		return nil
	}
	kept, changed := filterMessages(st.Messages)
	if !changed {
		return st
	}
	next := *st
	next.Messages = kept
	return &next
}

func filterMessages(messages []model.Message) ([]model.Message, bool) {
	empty := 0
	for _, m := range messages {
		if m.IsEmpty() {
			empty++
		}
	}
	if empty == 0 {
		return messages, false
	}

	kept := make([]model.Message, 0, len(messages)-empty)
	for _, m := range messages {
		if !m.IsEmpty() {
			kept = append(kept, m)
		}
	}
	return kept, true
}
