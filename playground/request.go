package playground

import (
	"github.com/google/uuid"

	"playground/model"
)

// BuildRequest projects a session into the outbound completion payload.
// Empty optional parts are left out: stop sequences, a plain text response
// format and an empty tool list.
func BuildRequest(st *model.PlaygroundState) model.CompletionRequest {
	st = FilterNullMessages(st)
	p := st.Params

	req := model.CompletionRequest{
		Model:            st.Model,
		Messages:         model.CloneMessages(st.Messages),
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		N:                p.N,
		Nonce:            uuid.NewString(),
	}
	if req.Messages == nil {
		req.Messages = []model.Message{}
	}
	if len(p.StopSequences) > 0 {
		req.Stop = append([]string(nil), p.StopSequences...)
	}
	if p.ResponseFormat != "" && p.ResponseFormat != model.ResponseFormatText {
		req.ResponseFormat = &model.ResponseFormatSpec{Type: p.ResponseFormat}
	}
	if len(p.Tools) > 0 {
		req.Tools = append([]model.ToolDefinition(nil), p.Tools...)
	}
	return req
}
