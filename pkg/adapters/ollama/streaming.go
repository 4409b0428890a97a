package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
)

// accumulator rebuilds a completion from newline-delimited /api/chat chunks.
// The terminal chunk carries done:true together with the evaluation counts.
type accumulator struct {
	model      string
	text       strings.Builder
	toolCalls  []chat.ToolCall
	doneReason string
	usage      chat.Usage
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// EndOfStream is always false: termination travels inside the done:true
// chunk, which also carries usage and must be merged by Feed.
func (a *accumulator) EndOfStream(raw []byte) bool {
	return false
}

// Feed merges one chunk.
func (a *accumulator) Feed(raw []byte) (streaming.Delta, error) {
	var chunk wireResponse
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return streaming.Delta{}, fmt.Errorf("malformed stream chunk: %w", err)
	}
	if chunk.Error != "" {
		return streaming.Delta{}, chat.Normalize(chunk.Error)
	}

	if chunk.Model != "" {
		a.model = chunk.Model
	}

	var delta streaming.Delta
	if chunk.Message.Content != "" {
		a.text.WriteString(chunk.Message.Content)
		delta.Text = chunk.Message.Content
	}
	for i, wc := range chunk.Message.ToolCalls {
		args, err := json.Marshal(wc.Function.Arguments)
		if err != nil {
			return streaming.Delta{}, fmt.Errorf("failed to encode tool arguments: %w", err)
		}
		a.toolCalls = append(a.toolCalls, chat.ToolCall{
			ID:   fmt.Sprintf("call_%d_%s", i, wc.Function.Name),
			Type: chat.ToolTypeFunction,
			Function: chat.FunctionCall{
				Name:      wc.Function.Name,
				Arguments: string(args),
			},
		})
	}

	if chunk.Done {
		a.doneReason = chunk.DoneReason
		a.usage = chat.Usage{
			PromptTokens:     chunk.PromptEvalCount,
			CompletionTokens: chunk.EvalCount,
			TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
		}
		delta.Done = true
	}
	return delta, nil
}

// Finalize assembles the canonical buffered-completion shape.
func (a *accumulator) Finalize() *chat.ChatCompletionResponse {
	return &chat.ChatCompletionResponse{
		Object: "chat.completion",
		Model:  a.model,
		Choices: []chat.Choice{{
			Message: chat.ChatMessage{
				Role:      chat.RoleAssistant,
				Content:   chat.Text(a.text.String()),
				ToolCalls: a.toolCalls,
			},
			FinishReason: finishReason(a.doneReason, len(a.toolCalls)),
		}},
		Usage: a.usage,
	}
}
