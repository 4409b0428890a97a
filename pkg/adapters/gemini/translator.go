// Package gemini implements the Google Generative Language dialect:
// contents/parts translation, model-templated URLs, and SSE accumulation of
// full-shaped incremental responses.
package gemini

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

// Translator converts between the canonical schema and the Generative
// Language API.
type Translator struct {
	cfg     adapters.ProviderConfig
	headers map[string]string
}

// New creates the Gemini translator.
func New(cfg adapters.ProviderConfig, settings adapters.Settings, logger *slog.Logger) *Translator {
	return &Translator{
		cfg:     cfg,
		headers: adapters.BuildHeaders(cfg, settings.APIKey, logger),
	}
}

type wirePart struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *inlineData       `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type wireTools struct {
	FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations"`
}

type wireFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type wireRequest struct {
	Contents          []wireContent     `json:"contents"`
	SystemInstruction *wireContent      `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	Tools             []wireTools       `json:"tools,omitempty"`
}

// TranslateRequest builds the generateContent request. The model is part of
// the URL, not the body; system messages become the systemInstruction.
func (t *Translator) TranslateRequest(req *chat.ChatRequest, stream bool) (*transport.Request, error) {
	body := wireRequest{}

	var system []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleSystem:
			system = append(system, msg.Content.Text())
		case chat.RoleTool, chat.RoleFunction:
			body.Contents = append(body.Contents, wireContent{
				Role: "user",
				Parts: []wirePart{{FunctionResponse: &functionResponse{
					Name:     msg.Name,
					Response: map[string]interface{}{"content": msg.Content.Text()},
				}}},
			})
		default:
			wc, err := translateMessage(msg)
			if err != nil {
				return nil, err
			}
			body.Contents = append(body.Contents, wc)
		}
	}
	if len(system) > 0 {
		body.SystemInstruction = &wireContent{
			Parts: []wirePart{{Text: strings.Join(system, "\n\n")}},
		}
	}

	if req.Temperature != nil || req.TopP != nil || req.MaxTokens > 0 {
		body.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]wireFunctionDecl, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, wireFunctionDecl{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			})
		}
		body.Tools = []wireTools{{FunctionDeclarations: decls}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := t.cfg.Endpoint
	if stream && t.cfg.EndpointStreaming != "" {
		endpoint = t.cfg.EndpointStreaming
	}
	return &transport.Request{
		URL:     strings.ReplaceAll(endpoint, "{model}", req.Model),
		Method:  "POST",
		Headers: t.headers,
		Body:    payload,
		Framing: t.cfg.Framing,
	}, nil
}

// translateMessage converts one user or assistant turn. Assistant maps to
// the "model" role.
func translateMessage(msg chat.ChatMessage) (wireContent, error) {
	role := "user"
	if msg.Role == chat.RoleAssistant {
		role = "model"
	}
	wc := wireContent{Role: role}

	if msg.Content.Multipart() {
		for _, part := range msg.Content.PartList() {
			switch part.Type {
			case chat.ContentTypeText:
				wc.Parts = append(wc.Parts, wirePart{Text: part.Text})
			case chat.ContentTypeImageURL:
				data, err := translateImage(part.ImageURL.URL)
				if err != nil {
					return wireContent{}, err
				}
				wc.Parts = append(wc.Parts, wirePart{InlineData: data})
			}
		}
	} else if text := msg.Content.Text(); text != "" {
		wc.Parts = append(wc.Parts, wirePart{Text: text})
	}

	if msg.ImageURL != "" {
		data, err := translateImage(msg.ImageURL)
		if err != nil {
			return wireContent{}, err
		}
		wc.Parts = append(wc.Parts, wirePart{InlineData: data})
	}

	for _, call := range msg.ToolCalls {
		var args map[string]interface{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return wireContent{}, fmt.Errorf("tool call %s has non-JSON arguments: %w", call.ID, err)
			}
		}
		wc.Parts = append(wc.Parts, wirePart{FunctionCall: &functionCall{
			Name: call.Function.Name,
			Args: args,
		}})
	}
	return wc, nil
}

// translateImage converts a base64 data URI into inlineData. Plain URLs are
// not supported by the API and are rejected up front.
func translateImage(url string) (*inlineData, error) {
	if !strings.HasPrefix(url, "data:") {
		return nil, fmt.Errorf("images must be base64 data URIs")
	}
	rest := strings.TrimPrefix(url, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return nil, fmt.Errorf("unsupported image data URI")
	}
	return &inlineData{
		MimeType: rest[:semi],
		Data:     rest[semi+len(";base64,"):],
	}, nil
}

type wireResponse struct {
	Candidates []struct {
		Content struct {
			Parts []wirePart `json:"parts"`
			Role  string     `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
		Index        int    `json:"index"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// TranslateResponse decodes a buffered generateContent response.
func (t *Translator) TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error) {
	if ne := errorPayload(resp); ne != nil {
		return &chat.ChatCompletionResponse{Error: ne}, nil
	}

	var wire wireResponse
	if err := resp.JSON(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}

	out := &chat.ChatCompletionResponse{
		Object: "chat.completion",
		Model:  wire.ModelVersion,
	}
	if wire.UsageMetadata != nil {
		out.Usage = chat.Usage{
			PromptTokens:     wire.UsageMetadata.PromptTokenCount,
			CompletionTokens: wire.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      wire.UsageMetadata.TotalTokenCount,
		}
	}

	for _, cand := range wire.Candidates {
		msg, err := candidateMessage(cand.Content.Parts)
		if err != nil {
			return nil, err
		}
		out.Choices = append(out.Choices, chat.Choice{
			Index:        cand.Index,
			Message:      msg,
			FinishReason: finishReason(cand.FinishReason, len(msg.ToolCalls)),
		})
	}
	return out, nil
}

// candidateMessage folds candidate parts into one assistant message.
func candidateMessage(parts []wirePart) (chat.ChatMessage, error) {
	msg := chat.ChatMessage{Role: chat.RoleAssistant}
	var text strings.Builder
	for _, part := range parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return chat.ChatMessage{}, fmt.Errorf("failed to encode function args: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				// The API carries no call id; the function name stands in.
				ID:   "call_" + part.FunctionCall.Name,
				Type: chat.ToolTypeFunction,
				Function: chat.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		}
	}
	msg.Content = chat.Text(text.String())
	return msg, nil
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

// TranslateModels decodes the model listing, keeping only models that can
// serve generateContent.
func (t *Translator) TranslateModels(resp transport.Response) ([]chat.ModelInfo, error) {
	if ne := errorPayload(resp); ne != nil {
		return nil, ne
	}

	var payload struct {
		Models []struct {
			Name                       string   `json:"name"`
			DisplayName                string   `json:"displayName"`
			InputTokenLimit            int      `json:"inputTokenLimit"`
			OutputTokenLimit           int      `json:"outputTokenLimit"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	var models []chat.ModelInfo
	for _, entry := range payload.Models {
		if !supportsGeneration(entry.SupportedGenerationMethods) {
			continue
		}
		id := strings.TrimPrefix(entry.Name, "models/")
		name := entry.DisplayName
		if name == "" {
			name = id
		}
		models = append(models, chat.ModelInfo{
			ID:              id,
			Name:            name,
			ContextWindow:   entry.InputTokenLimit,
			MaxOutputTokens: entry.OutputTokenLimit,
			Multimodal:      true,
		})
	}
	return models, nil
}

func supportsGeneration(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

// finishReason maps the API's reasons onto the canonical set.
func finishReason(reason string, toolCalls int) string {
	if toolCalls > 0 {
		return chat.FinishReasonToolCalls
	}
	switch reason {
	case "MAX_TOKENS":
		return chat.FinishReasonLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT":
		return chat.FinishReasonContentFilter
	case "":
		return ""
	default:
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
	if _, hasError := probe["error"]; hasError || resp.Status() >= 400 {
		return chat.NormalizeWithStatus(probe, resp.Status())
	}
	return nil
}
