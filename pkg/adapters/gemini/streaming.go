package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
)

// accumulator rebuilds a completion from streamGenerateContent chunks. Each
// chunk is a full-shaped response with incremental candidate text; a chunk
// carrying a finishReason terminates the stream.
type accumulator struct {
	model        string
	text         strings.Builder
	toolCalls    []chat.ToolCall
	finishReason string
	usage        *chat.Usage
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// EndOfStream is always false: termination is signaled inside a parseable
// chunk via finishReason.
func (a *accumulator) EndOfStream(raw []byte) bool {
	return false
}

// Feed merges one chunk.
func (a *accumulator) Feed(raw []byte) (streaming.Delta, error) {
	var probe map[string]interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return streaming.Delta{}, fmt.Errorf("malformed stream chunk: %w", err)
	}
	if _, hasError := probe["error"]; hasError {
		return streaming.Delta{}, chat.Normalize(probe)
	}

	var chunk wireResponse
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return streaming.Delta{}, fmt.Errorf("malformed stream chunk: %w", err)
	}

	if chunk.ModelVersion != "" {
		a.model = chunk.ModelVersion
	}
	if chunk.UsageMetadata != nil {
		a.usage = &chat.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
		}
	}

	var delta streaming.Delta
	for _, cand := range chunk.Candidates {
		if cand.Index != 0 {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				a.text.WriteString(part.Text)
				delta.Text += part.Text
			}
			if part.FunctionCall != nil {
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					return streaming.Delta{}, fmt.Errorf("failed to encode function args: %w", err)
				}
				a.toolCalls = append(a.toolCalls, chat.ToolCall{
					ID:   "call_" + part.FunctionCall.Name,
					Type: chat.ToolTypeFunction,
					Function: chat.FunctionCall{
						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					},
				})
			}
		}
		if cand.FinishReason != "" {
			a.finishReason = cand.FinishReason
			delta.Done = true
		}
	}
	return delta, nil
}

// Finalize assembles the canonical buffered-completion shape.
func (a *accumulator) Finalize() *chat.ChatCompletionResponse {
	msg := chat.ChatMessage{
		Role:      chat.RoleAssistant,
		Content:   chat.Text(a.text.String()),
		ToolCalls: a.toolCalls,
	}
	resp := &chat.ChatCompletionResponse{
		Object: "chat.completion",
		Model:  a.model,
		Choices: []chat.Choice{{
			Message:      msg,
			FinishReason: streamFinish(a.finishReason, len(a.toolCalls)),
		}},
	}
	if a.usage != nil {
		resp.Usage = *a.usage
	}
	return resp
}

func streamFinish(reason string, toolCalls int) string {
	if mapped := finishReason(reason, toolCalls); mapped != "" {
		return mapped
	}
	return chat.FinishReasonStop
}
