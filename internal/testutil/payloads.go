package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAIChatResponse builds a buffered chat.completion payload.
func OpenAIChatResponse(model, content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

// OpenAIStreamChunk builds one chat.completion.chunk data payload. An empty
// finishReason is sent as null.
func OpenAIStreamChunk(model, delta, finishReason string) string {
	choice := map[string]interface{}{
		"index": 0,
		"delta": map[string]interface{}{},
	}
	if delta != "" {
		choice["delta"] = map[string]interface{}{"content": delta}
	}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	}
	chunk := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]interface{}{choice},
	}
	b, _ := json.Marshal(chunk)
	return string(b)
}

// OpenAIModelList builds a /models payload.
func OpenAIModelList(ids ...string) map[string]interface{} {
	data := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]interface{}{
			"id":     id,
			"object": "model",
		})
	}
	return map[string]interface{}{"object": "list", "data": data}
}

// AnthropicMessage builds a buffered messages payload.
func AnthropicMessage(model, content string) map[string]interface{} {
	return map[string]interface{}{
		"id":   "msg_test",
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{"type": "text", "text": content},
		},
		"model":       model,
		"stop_reason": "end_turn",
		"usage": map[string]interface{}{
			"input_tokens":  10,
			"output_tokens": 20,
		},
	}
}

// AnthropicStreamEvent encodes one event as a data payload.
func AnthropicStreamEvent(eventType string, fields map[string]interface{}) string {
	event := map[string]interface{}{"type": eventType}
	for k, v := range fields {
		event[k] = v
	}
	b, _ := json.Marshal(event)
	return string(b)
}

// AnthropicTextDelta builds a content_block_delta event carrying text.
func AnthropicTextDelta(text string) string {
	return AnthropicStreamEvent("content_block_delta", map[string]interface{}{
		"index": 0,
		"delta": map[string]interface{}{"type": "text_delta", "text": text},
	})
}

// OllamaStreamChunk builds one NDJSON chat line. done:true lines carry
// eval counts.
func OllamaStreamChunk(model, content string, done bool) string {
	chunk := map[string]interface{}{
		"model":   model,
		"message": map[string]interface{}{"role": "assistant", "content": content},
		"done":    done,
	}
	if done {
		chunk["done_reason"] = "stop"
		chunk["prompt_eval_count"] = 10
		chunk["eval_count"] = 20
	}
	b, _ := json.Marshal(chunk)
	return string(b)
}

// ErrorResponse builds a provider error reply in the common
// {"error": {...}} envelope.
func ErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
				"type":    "invalid_request_error",
				"code":    statusCode,
			},
		},
	}
}

// AuthError builds a 401 reply.
func AuthError() MockResponse {
	return ErrorResponse(http.StatusUnauthorized, "Invalid API key")
}

// RateLimitError builds a 429 reply with a Retry-After header.
func RateLimitError(retryAfter int) MockResponse {
	response := ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded")
	response.Headers = map[string]string{"Retry-After": fmt.Sprintf("%d", retryAfter)}
	return response
}
