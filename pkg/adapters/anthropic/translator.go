// Package anthropic implements the Anthropic Messages API dialect: system
// prompt extraction, content block translation, and SSE event accumulation.
package anthropic

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

// defaultMaxTokens is sent when the request sets none; the Messages API
// requires the field.
const defaultMaxTokens = 4096

// Translator converts between the canonical schema and the Messages API.
type Translator struct {
	cfg     adapters.ProviderConfig
	headers map[string]string
}

// New creates the Anthropic translator.
func New(cfg adapters.ProviderConfig, settings adapters.Settings, logger *slog.Logger) *Translator {
	return &Translator{
		cfg:     cfg,
		headers: adapters.BuildHeaders(cfg, settings.APIKey, logger),
	}
}

type contentBlock struct {
	Type string `json:"type"`

	// text blocks
	Text string `json:"text,omitempty"`

	// image blocks
	Source *imageSource `json:"source,omitempty"`

	// tool_use blocks
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type wireTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type wireRequest struct {
	Model       string                 `json:"model"`
	System      string                 `json:"system,omitempty"`
	Messages    []wireMessage          `json:"messages"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature *float64               `json:"temperature,omitempty"`
	TopP        *float64               `json:"top_p,omitempty"`
	Stream      bool                   `json:"stream,omitempty"`
	Tools       []wireTool             `json:"tools,omitempty"`
	ToolChoice  map[string]interface{} `json:"tool_choice,omitempty"`
}

// TranslateRequest builds the Messages API request. System messages are
// extracted into the top-level system field; tool role messages become
// tool_result blocks inside a user turn.
func (t *Translator) TranslateRequest(req *chat.ChatRequest, stream bool) (*transport.Request, error) {
	body := wireRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = defaultMaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleSystem:
			system = append(system, msg.Content.Text())
		case chat.RoleTool, chat.RoleFunction:
			body.Messages = append(body.Messages, wireMessage{
				Role: chat.RoleUser,
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content.Text(),
				}},
			})
		default:
			wm, err := translateMessage(msg)
			if err != nil {
				return nil, err
			}
			body.Messages = append(body.Messages, wm)
		}
	}
	body.System = strings.Join(system, "\n\n")

	if len(req.Tools) > 0 {
		for _, tool := range req.Tools {
			body.Tools = append(body.Tools, wireTool{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				InputSchema: tool.Function.Parameters,
			})
		}
		body.ToolChoice = translateToolChoice(req.ToolChoice)
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

// translateMessage converts one user or assistant turn into content blocks.
func translateMessage(msg chat.ChatMessage) (wireMessage, error) {
	wm := wireMessage{Role: msg.Role}

	if msg.Content.Multipart() {
		for _, part := range msg.Content.PartList() {
			switch part.Type {
			case chat.ContentTypeText:
				wm.Content = append(wm.Content, contentBlock{Type: "text", Text: part.Text})
			case chat.ContentTypeImageURL:
				src, err := translateImage(part.ImageURL.URL)
				if err != nil {
					return wireMessage{}, err
				}
				wm.Content = append(wm.Content, contentBlock{Type: "image", Source: src})
			}
		}
	} else if text := msg.Content.Text(); text != "" {
		wm.Content = append(wm.Content, contentBlock{Type: "text", Text: text})
	}

	if msg.ImageURL != "" {
		src, err := translateImage(msg.ImageURL)
		if err != nil {
			return wireMessage{}, err
		}
		wm.Content = append(wm.Content, contentBlock{Type: "image", Source: src})
	}

	for _, call := range msg.ToolCalls {
		var input map[string]interface{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return wireMessage{}, fmt.Errorf("tool call %s has non-JSON arguments: %w", call.ID, err)
			}
		}
		wm.Content = append(wm.Content, contentBlock{
			Type:  "tool_use",
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return wm, nil
}

// translateImage converts a data URI into a base64 source, anything else
// into a url source.
func translateImage(url string) (*imageSource, error) {
	if !strings.HasPrefix(url, "data:") {
		return &imageSource{Type: "url", URL: url}, nil
	}
	rest := strings.TrimPrefix(url, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return nil, fmt.Errorf("unsupported image data URI")
	}
	return &imageSource{
		Type:      "base64",
		MediaType: rest[:semi],
		Data:      rest[semi+len(";base64,"):],
	}, nil
}

// translateToolChoice maps the OpenAI-shaped tool_choice values onto the
// Messages API equivalents.
func translateToolChoice(choice interface{}) map[string]interface{} {
	switch v := choice.(type) {
	case nil:
		return nil
	case string:
		switch v {
		case "auto":
			return map[string]interface{}{"type": "auto"}
		case "required":
			return map[string]interface{}{"type": "any"}
		case "none":
			return nil
		}
	case map[string]interface{}:
		if fn, ok := v["function"].(map[string]interface{}); ok {
			if name, ok := fn["name"].(string); ok {
				return map[string]interface{}{"type": "tool", "name": name}
			}
		}
	}
	return nil
}

type wireResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// TranslateResponse decodes a buffered Messages API response.
func (t *Translator) TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error) {
	if ne := errorPayload(resp); ne != nil {
		return &chat.ChatCompletionResponse{Error: ne}, nil
	}

	var wire wireResponse
	if err := resp.JSON(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}

	msg := chat.ChatMessage{Role: chat.RoleAssistant}
	var text strings.Builder
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tool input: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				ID:   block.ID,
				Type: chat.ToolTypeFunction,
				Function: chat.FunctionCall{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}
	msg.Content = chat.Text(text.String())

	usage := chat.Usage{
		PromptTokens:     wire.Usage.InputTokens,
		CompletionTokens: wire.Usage.OutputTokens,
		TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
	}

	return &chat.ChatCompletionResponse{
		ID:     wire.ID,
		Object: "chat.completion",
		Model:  wire.Model,
		Choices: []chat.Choice{{
			Message:      msg,
			FinishReason: finishReason(wire.StopReason),
		}},
		Usage: usage,
	}, nil
}

// NewAccumulator returns the streaming reconstruction state.
func (t *Translator) NewAccumulator() streaming.Accumulator {
	return newAccumulator()
}

// ModelsRequest builds the model listing request.
func (t *Translator) ModelsRequest() (*transport.Request, error) {
	return &transport.Request{
		URL:     t.cfg.ModelsEndpoint,
		Method:  t.cfg.ModelsMethod,
		Headers: t.headers,
	}, nil
}

// TranslateModels decodes the model listing.
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
		info := chat.ModelInfo{ID: id, Name: id, Multimodal: true, Raw: entry}
		if name, ok := entry["display_name"].(string); ok && name != "" {
			info.Name = name
		}
		models = append(models, info)
	}
	return models, nil
}

// finishReason maps Messages API stop reasons onto the canonical set.
func finishReason(stop string) string {
	switch stop {
	case "max_tokens":
		return chat.FinishReasonLength
	case "tool_use":
		return chat.FinishReasonToolCalls
	case "":
		return ""
	default:
		// end_turn, stop_sequence
		return chat.FinishReasonStop
	}
}

// errorPayload returns the normalized error for error responses.
func errorPayload(resp transport.Response) *chat.NormalizedError {
	var probe map[string]interface{}
	if err := resp.JSON(&probe); err != nil {
		if resp.Status() >= 400 {
			return chat.NormalizeWithStatus(resp.Text(), resp.Status())
		}
		return nil
	}
	if probe["type"] == "error" || resp.Status() >= 400 {
		return chat.NormalizeWithStatus(probe, resp.Status())
	}
	return nil
}
