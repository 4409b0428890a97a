package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
)

var doneSentinel = []byte("[DONE]")

// chunkPayload is one chat.completion.chunk event.
type chunkPayload struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chat.Usage            `json:"usage"`
	Error map[string]interface{} `json:"error"`
}

// choiceState is the reconstruction buffer for one choice index.
type choiceState struct {
	role         string
	content      strings.Builder
	toolCalls    map[int]*chat.ToolCall
	finishReason string
}

// accumulator rebuilds a buffered completion from chat.completion.chunk
// events: content by string concatenation, tool-call arguments by per-index
// concatenation, usage by replacement with the last value seen.
type accumulator struct {
	id      string
	model   string
	created int64
	choices map[int]*choiceState
	usage   *chat.Usage
}

func newAccumulator() *accumulator {
	return &accumulator{choices: make(map[int]*choiceState)}
}

// EndOfStream matches the non-JSON "[DONE]" sentinel.
func (a *accumulator) EndOfStream(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), doneSentinel)
}

// Feed merges one chunk into the buffer.
func (a *accumulator) Feed(raw []byte) (streaming.Delta, error) {
	var chunk chunkPayload
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return streaming.Delta{}, fmt.Errorf("malformed stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return streaming.Delta{}, chat.Normalize(map[string]interface{}{"error": chunk.Error})
	}

	if a.id == "" {
		a.id = chunk.ID
	}
	if a.model == "" {
		a.model = chunk.Model
	}
	if a.created == 0 {
		a.created = chunk.Created
	}
	if chunk.Usage != nil {
		usage := *chunk.Usage
		a.usage = &usage
	}

	var delta streaming.Delta
	for _, choice := range chunk.Choices {
		state := a.choice(choice.Index)
		if choice.Delta.Role != "" {
			state.role = choice.Delta.Role
		}
		if choice.Delta.Content != "" {
			state.content.WriteString(choice.Delta.Content)
			if choice.Index == 0 {
				delta.Text = choice.Delta.Content
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			call, ok := state.toolCalls[tc.Index]
			if !ok {
				call = &chat.ToolCall{Type: chat.ToolTypeFunction}
				state.toolCalls[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Type != "" {
				call.Type = tc.Type
			}
			if tc.Function.Name != "" {
				call.Function.Name = tc.Function.Name
			}
			// Arguments arrive as JSON fragments; valid only once complete.
			call.Function.Arguments += tc.Function.Arguments
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			state.finishReason = *choice.FinishReason
		}
	}
	return delta, nil
}

// Finalize assembles the canonical buffered-completion shape.
func (a *accumulator) Finalize() *chat.ChatCompletionResponse {
	resp := &chat.ChatCompletionResponse{
		ID:      a.id,
		Object:  "chat.completion",
		Created: a.created,
		Model:   a.model,
	}
	if a.usage != nil {
		resp.Usage = *a.usage
	}

	indices := make([]int, 0, len(a.choices))
	for idx := range a.choices {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		state := a.choices[idx]
		msg := chat.ChatMessage{
			Role:    state.role,
			Content: chat.Text(state.content.String()),
		}
		if msg.Role == "" {
			msg.Role = chat.RoleAssistant
		}

		callIndices := make([]int, 0, len(state.toolCalls))
		for ci := range state.toolCalls {
			callIndices = append(callIndices, ci)
		}
		sort.Ints(callIndices)
		for _, ci := range callIndices {
			msg.ToolCalls = append(msg.ToolCalls, *state.toolCalls[ci])
		}

		finish := state.finishReason
		if finish == "" {
			if len(msg.ToolCalls) > 0 {
				finish = chat.FinishReasonToolCalls
			} else {
				finish = chat.FinishReasonStop
			}
		}
		resp.Choices = append(resp.Choices, chat.Choice{
			Index:        idx,
			Message:      msg,
			FinishReason: finish,
		})
	}
	return resp
}

func (a *accumulator) choice(idx int) *choiceState {
	state, ok := a.choices[idx]
	if !ok {
		state = &choiceState{toolCalls: make(map[int]*chat.ToolCall)}
		a.choices[idx] = state
	}
	return state
}
