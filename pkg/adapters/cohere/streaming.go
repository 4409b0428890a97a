package cohere

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
)

// streamEvent is one newline-delimited stream event.
type streamEvent struct {
	EventType    string        `json:"event_type"`
	Text         string        `json:"text"`
	GenerationID string        `json:"generation_id"`
	FinishReason string        `json:"finish_reason"`
	Response     *wireResponse `json:"response"`
}

// accumulator rebuilds a completion from Cohere stream events. The
// stream-end event embeds the complete response, which takes precedence over
// the concatenated text-generation fragments.
type accumulator struct {
	generationID string
	text         strings.Builder
	final        *wireResponse
	finishReason string
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// EndOfStream is always false: stream-end is a parseable event handled by
// Feed.
func (a *accumulator) EndOfStream(raw []byte) bool {
	return false
}

// Feed merges one event.
func (a *accumulator) Feed(raw []byte) (streaming.Delta, error) {
	var event streamEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return streaming.Delta{}, fmt.Errorf("malformed stream event: %w", err)
	}

	switch event.EventType {
	case "stream-start":
		a.generationID = event.GenerationID

	case "text-generation":
		a.text.WriteString(event.Text)
		return streaming.Delta{Text: event.Text}, nil

	case "stream-end":
		a.final = event.Response
		a.finishReason = event.FinishReason
		return streaming.Delta{Done: true}, nil
	}
	return streaming.Delta{}, nil
}

// Finalize assembles the canonical buffered-completion shape, preferring the
// embedded stream-end response when present.
func (a *accumulator) Finalize() *chat.ChatCompletionResponse {
	if a.final != nil {
		if a.final.FinishReason == "" {
			a.final.FinishReason = a.finishReason
		}
		if a.final.Text == "" {
			a.final.Text = a.text.String()
		}
		return canonical(a.final)
	}
	reason := a.finishReason
	if reason == "" {
		// Connection ended without a stream-end event.
		reason = "COMPLETE"
	}
	return canonical(&wireResponse{
		ResponseID:   a.generationID,
		Text:         a.text.String(),
		FinishReason: reason,
	})
}
