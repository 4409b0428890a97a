// Package tokens provides a provider-independent token count estimate used
// when a provider exposes no counting endpoint. It is a character-ratio
// heuristic, not a tokenizer: good enough for context budgeting, not billing.
package tokens

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
)

const (
	// defaultCharsPerToken approximates English text under BPE tokenizers.
	defaultCharsPerToken = 4.0

	// perMessageOverhead covers the role and framing tokens each chat turn
	// costs on top of its content.
	perMessageOverhead = 4
)

// Estimator estimates token counts from character length.
type Estimator struct {
	charsPerToken float64
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithCharsPerToken overrides the character-to-token ratio.
func WithCharsPerToken(ratio float64) Option {
	return func(e *Estimator) {
		if ratio > 0 {
			e.charsPerToken = ratio
		}
	}
}

// NewEstimator creates an estimator with the default ratio.
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{charsPerToken: defaultCharsPerToken}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CountText estimates tokens for a plain string. Non-empty text counts at
// least one token.
func (e *Estimator) CountText(s string) int {
	if s == "" {
		return 0
	}
	n := int(float64(utf8.RuneCountInString(s)) / e.charsPerToken)
	if n < 1 {
		n = 1
	}
	return n
}

// CountRequest estimates the prompt tokens of a full request: message
// content, tool-call arguments, and serialized tool definitions, plus a
// fixed per-message overhead.
func (e *Estimator) CountRequest(req *chat.ChatRequest) int {
	if req == nil {
		return 0
	}

	total := 0
	for _, msg := range req.Messages {
		total += perMessageOverhead
		total += e.CountText(msg.Content.Text())
		total += e.CountText(msg.Name)
		for _, call := range msg.ToolCalls {
			total += e.CountText(call.Function.Name)
			total += e.CountText(call.Function.Arguments)
		}
	}
	for _, tool := range req.Tools {
		total += e.CountText(tool.Function.Name)
		total += e.CountText(tool.Function.Description)
		if tool.Function.Parameters != nil {
			if blob, err := json.Marshal(tool.Function.Parameters); err == nil {
				total += e.CountText(string(blob))
			}
		}
	}
	return total
}
