package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
)

// streamEvent is the union of Messages API SSE event payloads; Type selects
// which fields are meaningful.
type streamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`

	// content_block_start / content_block_delta / content_block_stop
	Index        int `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta json.RawMessage `json:"delta"`

	// message_delta
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`

	// error
	Error map[string]interface{} `json:"error"`
}

type blockState struct {
	kind string // text or tool_use
	text strings.Builder
	call chat.ToolCall
	args strings.Builder
}

// accumulator rebuilds a completion from Messages API stream events: text
// from text_delta, tool arguments from input_json_delta, termination from
// message_stop.
type accumulator struct {
	id           string
	model        string
	blocks       map[int]*blockState
	order        []int
	stopReason   string
	inputTokens  int
	outputTokens int
}

func newAccumulator() *accumulator {
	return &accumulator{blocks: make(map[int]*blockState)}
}

// EndOfStream is always false: the Messages API terminal marker is the
// message_stop event, a parseable chunk handled by Feed.
func (a *accumulator) EndOfStream(raw []byte) bool {
	return false
}

// Feed merges one SSE event.
func (a *accumulator) Feed(raw []byte) (streaming.Delta, error) {
	var event streamEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return streaming.Delta{}, fmt.Errorf("malformed stream event: %w", err)
	}

	switch event.Type {
	case "message_start":
		if event.Message != nil {
			a.id = event.Message.ID
			a.model = event.Message.Model
			a.inputTokens = event.Message.Usage.InputTokens
		}

	case "content_block_start":
		state := &blockState{kind: "text"}
		if event.ContentBlock != nil {
			state.kind = event.ContentBlock.Type
			if state.kind == "tool_use" {
				state.call = chat.ToolCall{
					ID:   event.ContentBlock.ID,
					Type: chat.ToolTypeFunction,
					Function: chat.FunctionCall{
						Name: event.ContentBlock.Name,
					},
				}
			}
		}
		a.blocks[event.Index] = state
		a.order = append(a.order, event.Index)

	case "content_block_delta":
		state, ok := a.blocks[event.Index]
		if !ok {
			state = &blockState{kind: "text"}
			a.blocks[event.Index] = state
			a.order = append(a.order, event.Index)
		}
		var delta struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			PartialJSON string `json:"partial_json"`
		}
		if err := json.Unmarshal(event.Delta, &delta); err != nil {
			return streaming.Delta{}, fmt.Errorf("malformed content delta: %w", err)
		}
		switch delta.Type {
		case "text_delta":
			state.text.WriteString(delta.Text)
			return streaming.Delta{Text: delta.Text}, nil
		case "input_json_delta":
			state.args.WriteString(delta.PartialJSON)
		}

	case "message_delta":
		var delta struct {
			StopReason string `json:"stop_reason"`
		}
		if len(event.Delta) > 0 {
			if err := json.Unmarshal(event.Delta, &delta); err == nil && delta.StopReason != "" {
				a.stopReason = delta.StopReason
			}
		}
		if event.Usage != nil {
			a.outputTokens = event.Usage.OutputTokens
		}

	case "message_stop":
		return streaming.Delta{Done: true}, nil

	case "error":
		return streaming.Delta{}, chat.Normalize(map[string]interface{}{"error": event.Error})

	case "ping", "content_block_stop":
		// Nothing to merge.
	}
	return streaming.Delta{}, nil
}

// Finalize assembles the canonical buffered-completion shape.
func (a *accumulator) Finalize() *chat.ChatCompletionResponse {
	msg := chat.ChatMessage{Role: chat.RoleAssistant}
	var text strings.Builder
	for _, idx := range a.order {
		state := a.blocks[idx]
		switch state.kind {
		case "text":
			text.WriteString(state.text.String())
		case "tool_use":
			call := state.call
			call.Function.Arguments = state.args.String()
			if call.Function.Arguments == "" {
				call.Function.Arguments = "{}"
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	msg.Content = chat.Text(text.String())

	return &chat.ChatCompletionResponse{
		ID:     a.id,
		Object: "chat.completion",
		Model:  a.model,
		Choices: []chat.Choice{{
			Message:      msg,
			FinishReason: defaultFinish(finishReason(a.stopReason), len(msg.ToolCalls)),
		}},
		Usage: chat.Usage{
			PromptTokens:     a.inputTokens,
			CompletionTokens: a.outputTokens,
			TotalTokens:      a.inputTokens + a.outputTokens,
		},
	}
}

func defaultFinish(reason string, toolCalls int) string {
	if reason != "" {
		return reason
	}
	if toolCalls > 0 {
		return chat.FinishReasonToolCalls
	}
	return chat.FinishReasonStop
}
