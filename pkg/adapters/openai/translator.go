// Package openai implements the OpenAI chat-completions dialect. Groq,
// OpenRouter, xAI, and LM Studio speak the same wire format and share this
// translator, differing only in their endpoint table entries.
package openai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// Translator converts between the canonical schema and the OpenAI wire
// format. It is stateless and safe for concurrent use.
type Translator struct {
	cfg     adapters.ProviderConfig
	headers map[string]string
}

// New creates a translator for any OpenAI-family provider.
func New(cfg adapters.ProviderConfig, settings adapters.Settings, logger *slog.Logger) *Translator {
	return &Translator{
		cfg:     cfg,
		headers: adapters.BuildHeaders(cfg, settings.APIKey, logger),
	}
}

type wireMessage struct {
	Role       string              `json:"role"`
	Content    chat.MessageContent `json:"content"`
	Name       string              `json:"name,omitempty"`
	ToolCalls  []chat.ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string              `json:"tool_call_id,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireRequest struct {
	Model               string         `json:"model"`
	Messages            []wireMessage  `json:"messages"`
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	StreamOptions       *streamOptions `json:"stream_options,omitempty"`
	Tools               []chat.Tool    `json:"tools,omitempty"`
	ToolChoice          interface{}    `json:"tool_choice,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	FrequencyPenalty    *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64       `json:"presence_penalty,omitempty"`
}

// TranslateRequest builds the wire request. Reasoning models (o-series) take
// max_completion_tokens instead of max_tokens, reject sampling parameters,
// and do not accept the system role.
func (t *Translator) TranslateRequest(req *chat.ChatRequest, stream bool) (*transport.Request, error) {
	reasoning := isReasoningModel(req.Model)

	body := wireRequest{
		Model:    req.Model,
		Messages: make([]wireMessage, 0, len(req.Messages)),
		Stream:   stream,
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	for _, msg := range req.Messages {
		wm := wireMessage{
			Role:       msg.Role,
			Content:    foldImage(msg),
			Name:       msg.Name,
			ToolCalls:  msg.ToolCalls,
			ToolCallID: msg.ToolCallID,
		}
		if wm.Role == chat.RoleFunction {
			wm.Role = chat.RoleTool
		}
		if reasoning && wm.Role == chat.RoleSystem {
			wm.Role = chat.RoleUser
		}
		body.Messages = append(body.Messages, wm)
	}

	if reasoning {
		body.MaxCompletionTokens = req.MaxTokens
	} else {
		body.MaxTokens = req.MaxTokens
		body.Temperature = req.Temperature
		body.TopP = req.TopP
		body.FrequencyPenalty = req.FrequencyPenalty
		body.PresencePenalty = req.PresencePenalty
	}

	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = req.ToolChoice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	return &transport.Request{
		URL:     t.cfg.Endpoint,
		Method:  "POST",
		Headers: t.headers,
		Body:    payload,
		Framing: t.cfg.Framing,
	}, nil
}

// TranslateResponse decodes a buffered completion response. Error payloads
// (error status or an "error" key in the body) come back as a canonical
// response with Error set.
func (t *Translator) TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error) {
	if ne := errorPayload(resp); ne != nil {
		return &chat.ChatCompletionResponse{Error: ne}, nil
	}

	var out chat.ChatCompletionResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	return &out, nil
}

// NewAccumulator returns the streaming reconstruction state.
func (t *Translator) NewAccumulator() streaming.Accumulator {
	return newAccumulator()
}

// ModelsRequest builds the model listing request.
func (t *Translator) ModelsRequest() (*transport.Request, error) {
	if t.cfg.ModelsEndpoint == "" {
		return nil, &adapters.CapabilityError{Provider: t.cfg.ID, Capability: "model listing"}
	}
	return &transport.Request{
		URL:     t.cfg.ModelsEndpoint,
		Method:  t.cfg.ModelsMethod,
		Headers: t.headers,
	}, nil
}

// TranslateModels decodes the /models listing.
func (t *Translator) TranslateModels(resp transport.Response) ([]chat.ModelInfo, error) {
	if ne := errorPayload(resp); ne != nil {
		return nil, ne
	}

	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]chat.ModelInfo, 0, len(payload.Data))
	for _, entry := range payload.Data {
		id, _ := entry["id"].(string)
		if id == "" {
			continue
		}
		info := chat.ModelInfo{ID: id, Name: id, Raw: entry}
		// OpenRouter enriches entries with display names and limits.
		if name, ok := entry["name"].(string); ok && name != "" {
			info.Name = name
		}
		if ctx, ok := entry["context_length"].(float64); ok {
			info.ContextWindow = int(ctx)
		}
		models = append(models, info)
	}
	return models, nil
}

// errorPayload returns the normalized error when the response carries one,
// nil for a clean success.
func errorPayload(resp transport.Response) *chat.NormalizedError {
	var probe map[string]interface{}
	if err := resp.JSON(&probe); err != nil {
		if resp.Status() >= 400 {
			return chat.NormalizeWithStatus(resp.Text(), resp.Status())
		}
		return nil
	}
	if _, hasError := probe["error"]; hasError || resp.Status() >= 400 {
		return chat.NormalizeWithStatus(probe, resp.Status())
	}
	return nil
}

// foldImage merges the convenience ImageURL field into multimodal content.
func foldImage(msg chat.ChatMessage) chat.MessageContent {
	if msg.ImageURL == "" {
		return msg.Content
	}
	parts := msg.Content.PartList()
	if parts == nil && msg.Content.Text() != "" {
		parts = []chat.ContentPart{chat.TextPart(msg.Content.Text())}
	}
	return chat.Parts(append(parts, chat.ImagePart(msg.ImageURL))...)
}

// isReasoningModel matches the o-series model families (o1, o3, o4-mini).
func isReasoningModel(model string) bool {
	if len(model) < 2 || model[0] != 'o' {
		return false
	}
	if model[1] < '0' || model[1] > '9' {
		return false
	}
	return len(model) == 2 || model[2] == '-' || strings.HasPrefix(model[2:], ".")
}
