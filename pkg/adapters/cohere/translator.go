// Package cohere implements the Cohere v1 chat dialect: the latest user
// message travels in the message field with the rest as chat_history, and
// streams arrive as newline-delimited JSON events.
package cohere

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

// Translator converts between the canonical schema and the Cohere v1 chat
// API. The dialect is text-only; image content is rejected before it gets
// here by the adapter's capability check.
type Translator struct {
	cfg     adapters.ProviderConfig
	headers map[string]string
}

// New creates the Cohere translator.
func New(cfg adapters.ProviderConfig, settings adapters.Settings, logger *slog.Logger) *Translator {
	return &Translator{
		cfg:     cfg,
		headers: adapters.BuildHeaders(cfg, settings.APIKey, logger),
	}
}

type historyEntry struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type wireRequest struct {
	Model       string         `json:"model"`
	Message     string         `json:"message"`
	ChatHistory []historyEntry `json:"chat_history,omitempty"`
	Preamble    string         `json:"preamble,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	P           *float64       `json:"p,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
}

// TranslateRequest builds the v1 chat request. The last user message becomes
// the message field; earlier turns become chat_history with upper-cased
// roles; system messages join the preamble.
func (t *Translator) TranslateRequest(req *chat.ChatRequest, stream bool) (*transport.Request, error) {
	if len(req.Tools) > 0 {
		return nil, &adapters.CapabilityError{Provider: t.cfg.ID, Capability: "tool calling"}
	}

	body := wireRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		P:           req.TopP,
		Stream:      stream,
	}

	lastUser := -1
	for i, msg := range req.Messages {
		if msg.Role == chat.RoleUser {
			lastUser = i
		}
	}
	if lastUser < 0 {
		return nil, &chat.ValidationError{Field: "messages", Message: "at least one user message is required"}
	}
	body.Message = req.Messages[lastUser].Content.Text()

	var preamble []string
	for i, msg := range req.Messages {
		if i == lastUser {
			continue
		}
		switch msg.Role {
		case chat.RoleSystem:
			preamble = append(preamble, msg.Content.Text())
		case chat.RoleUser:
			body.ChatHistory = append(body.ChatHistory, historyEntry{Role: "USER", Message: msg.Content.Text()})
		case chat.RoleAssistant:
			body.ChatHistory = append(body.ChatHistory, historyEntry{Role: "CHATBOT", Message: msg.Content.Text()})
		}
	}
	body.Preamble = strings.Join(preamble, "\n\n")

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

type wireResponse struct {
	ResponseID   string `json:"response_id"`
	Text         string `json:"text"`
	GenerationID string `json:"generation_id"`
	FinishReason string `json:"finish_reason"`
	Meta         *struct {
		BilledUnits struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// TranslateResponse decodes a buffered chat response.
func (t *Translator) TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error) {
	if ne := errorPayload(resp); ne != nil {
		return &chat.ChatCompletionResponse{Error: ne}, nil
	}

	var wire wireResponse
	if err := resp.JSON(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	return canonical(&wire), nil
}

// canonical maps a complete Cohere response onto the canonical shape. Shared
// with the stream-end event, which embeds the same payload.
func canonical(wire *wireResponse) *chat.ChatCompletionResponse {
	out := &chat.ChatCompletionResponse{
		ID:     wire.ResponseID,
		Object: "chat.completion",
		Choices: []chat.Choice{{
			Message: chat.ChatMessage{
				Role:    chat.RoleAssistant,
				Content: chat.Text(wire.Text),
			},
			FinishReason: finishReason(wire.FinishReason),
		}},
	}
	if wire.Meta != nil {
		in := wire.Meta.BilledUnits.InputTokens
		outTok := wire.Meta.BilledUnits.OutputTokens
		out.Usage = chat.Usage{
			PromptTokens:     in,
			CompletionTokens: outTok,
			TotalTokens:      in + outTok,
		}
	}
	return out
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

// TranslateModels decodes the model listing, keeping chat-capable models.
func (t *Translator) TranslateModels(resp transport.Response) ([]chat.ModelInfo, error) {
	if ne := errorPayload(resp); ne != nil {
		return nil, ne
	}

	var payload struct {
		Models []struct {
			Name          string   `json:"name"`
			ContextLength float64  `json:"context_length"`
			Endpoints     []string `json:"endpoints"`
		} `json:"models"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	var models []chat.ModelInfo
	for _, entry := range payload.Models {
		if !servesChat(entry.Endpoints) {
			continue
		}
		models = append(models, chat.ModelInfo{
			ID:            entry.Name,
			Name:          entry.Name,
			ContextWindow: int(entry.ContextLength),
		})
	}
	return models, nil
}

func servesChat(endpoints []string) bool {
	for _, e := range endpoints {
		if e == "chat" {
			return true
		}
	}
	return false
}

// finishReason maps Cohere's reasons onto the canonical set.
func finishReason(reason string) string {
	switch reason {
	case "MAX_TOKENS":
		return chat.FinishReasonLength
	case "ERROR_TOXIC":
		return chat.FinishReasonContentFilter
	case "":
		return ""
	default:
		// COMPLETE, STOP_SEQUENCE
		return chat.FinishReasonStop
	}
}

// errorPayload returns the normalized error for error responses. Cohere
// errors are flat {"message": ...} payloads.
func errorPayload(resp transport.Response) *chat.NormalizedError {
	if resp.Status() < 400 {
		return nil
	}
	var probe interface{}
	if err := resp.JSON(&probe); err != nil {
		return chat.NormalizeWithStatus(resp.Text(), resp.Status())
	}
	return chat.NormalizeWithStatus(probe, resp.Status())
}
