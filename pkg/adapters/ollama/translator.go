// Package ollama implements the Ollama native chat dialect (/api/chat with
// newline-delimited JSON streaming and /api/tags for the local model list).
package ollama

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

// Translator converts between the canonical schema and the Ollama API.
type Translator struct {
	cfg     adapters.ProviderConfig
	headers map[string]string
}

// New creates the Ollama translator.
func New(cfg adapters.ProviderConfig, settings adapters.Settings, logger *slog.Logger) *Translator {
	return &Translator{
		cfg:     cfg,
		headers: adapters.BuildHeaders(cfg, settings.APIKey, logger),
	}
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Images    []string       `json:"images,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	Function struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"function"`
}

type wireOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *wireOptions  `json:"options,omitempty"`
	Tools    []chat.Tool   `json:"tools,omitempty"`
}

// TranslateRequest builds the /api/chat request. Image parts become raw
// base64 entries in the message's images array; sampling knobs move under
// options. The stream field is always explicit because the API defaults to
// streaming.
func (t *Translator) TranslateRequest(req *chat.ChatRequest, stream bool) (*transport.Request, error) {
	body := wireRequest{
		Model:  req.Model,
		Stream: stream,
	}

	for _, msg := range req.Messages {
		wm := wireMessage{
			Role:    msg.Role,
			Content: msg.Content.Text(),
		}
		if wm.Role == chat.RoleFunction {
			wm.Role = chat.RoleTool
		}
		for _, part := range msg.Content.PartList() {
			if part.Type == chat.ContentTypeImageURL {
				wm.Images = append(wm.Images, stripDataURI(part.ImageURL.URL))
			}
		}
		if msg.ImageURL != "" {
			wm.Images = append(wm.Images, stripDataURI(msg.ImageURL))
		}
		for _, call := range msg.ToolCalls {
			var wc wireToolCall
			wc.Function.Name = call.Function.Name
			if call.Function.Arguments != "" {
				if err := json.Unmarshal([]byte(call.Function.Arguments), &wc.Function.Arguments); err != nil {
					return nil, fmt.Errorf("tool call %s has non-JSON arguments: %w", call.ID, err)
				}
			}
			wm.ToolCalls = append(wm.ToolCalls, wc)
		}
		body.Messages = append(body.Messages, wm)
	}

	if req.Temperature != nil || req.TopP != nil || req.MaxTokens > 0 {
		body.Options = &wireOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		}
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
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

// stripDataURI reduces a data URI to its raw base64 payload; the API takes
// bare base64, not URIs.
func stripDataURI(url string) string {
	if idx := strings.Index(url, ";base64,"); idx >= 0 {
		return url[idx+len(";base64,"):]
	}
	return url
}

type wireResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		ToolCalls []wireToolCall `json:"tool_calls"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// TranslateResponse decodes a buffered /api/chat response.
func (t *Translator) TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error) {
	var wire wireResponse
	if err := resp.JSON(&wire); err != nil {
		if resp.Status() >= 400 {
			return &chat.ChatCompletionResponse{
				Error: chat.NormalizeWithStatus(resp.Text(), resp.Status()),
			}, nil
		}
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if wire.Error != "" || resp.Status() >= 400 {
		message := wire.Error
		if message == "" {
			message = resp.Text()
		}
		return &chat.ChatCompletionResponse{
			Error: chat.NormalizeWithStatus(message, resp.Status()),
		}, nil
	}

	msg, err := canonicalMessage(&wire)
	if err != nil {
		return nil, err
	}
	return &chat.ChatCompletionResponse{
		Object: "chat.completion",
		Model:  wire.Model,
		Choices: []chat.Choice{{
			Message:      msg,
			FinishReason: finishReason(wire.DoneReason, len(msg.ToolCalls)),
		}},
		Usage: chat.Usage{
			PromptTokens:     wire.PromptEvalCount,
			CompletionTokens: wire.EvalCount,
			TotalTokens:      wire.PromptEvalCount + wire.EvalCount,
		},
	}, nil
}

// canonicalMessage converts the wire message, re-encoding structured tool
// arguments into the canonical JSON string form.
func canonicalMessage(wire *wireResponse) (chat.ChatMessage, error) {
	msg := chat.ChatMessage{
		Role:    chat.RoleAssistant,
		Content: chat.Text(wire.Message.Content),
	}
	for i, wc := range wire.Message.ToolCalls {
		args, err := json.Marshal(wc.Function.Arguments)
		if err != nil {
			return chat.ChatMessage{}, fmt.Errorf("failed to encode tool arguments: %w", err)
		}
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:   fmt.Sprintf("call_%d_%s", i, wc.Function.Name),
			Type: chat.ToolTypeFunction,
			Function: chat.FunctionCall{
				Name:      wc.Function.Name,
				Arguments: string(args),
			},
		})
	}
	return msg, nil
}

// NewAccumulator returns the streaming reconstruction state.
func (t *Translator) NewAccumulator() streaming.Accumulator {
	return newAccumulator()
}

// ModelsRequest builds the local model listing request.
func (t *Translator) ModelsRequest() (*transport.Request, error) {
	return &transport.Request{
		URL:     t.cfg.ModelsEndpoint,
		Method:  t.cfg.ModelsMethod,
		Headers: t.headers,
	}, nil
}

// TranslateModels decodes the /api/tags listing.
func (t *Translator) TranslateModels(resp transport.Response) ([]chat.ModelInfo, error) {
	if resp.Status() >= 400 {
		var probe interface{}
		if err := resp.JSON(&probe); err != nil {
			return nil, chat.NormalizeWithStatus(resp.Text(), resp.Status())
		}
		return nil, chat.NormalizeWithStatus(probe, resp.Status())
	}

	var payload struct {
		Models []map[string]interface{} `json:"models"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]chat.ModelInfo, 0, len(payload.Models))
	for _, entry := range payload.Models {
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		models = append(models, chat.ModelInfo{ID: name, Name: name, Raw: entry})
	}
	return models, nil
}

// finishReason maps done_reason onto the canonical set.
func finishReason(reason string, toolCalls int) string {
	if toolCalls > 0 {
		return chat.FinishReasonToolCalls
	}
	switch reason {
	case "length":
		return chat.FinishReasonLength
	default:
		return chat.FinishReasonStop
	}
}
