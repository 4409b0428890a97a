package gemini

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

func testTranslator(t *testing.T) *Translator {
	t.Helper()
	cfg, ok := adapters.Builtin(adapters.ProviderGemini)
	if !ok {
		t.Fatal("gemini missing from builtin table")
	}
	return New(cfg, adapters.Settings{APIKey: "AIza-test"}, nil)
}

func decodeBody(t *testing.T, req *transport.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	return body
}

func TestTranslateRequest_ModelInURL(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model:    "gemini-2.0-flash",
		Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: chat.Text("hi")}},
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	if !strings.Contains(wire.URL, "/models/gemini-2.0-flash:generateContent") {
		t.Errorf("URL = %q, want model substituted", wire.URL)
	}
	if wire.Headers["x-goog-api-key"] != "AIza-test" {
		t.Errorf("x-goog-api-key = %q", wire.Headers["x-goog-api-key"])
	}

	streamWire, err := tr.TranslateRequest(req, true)
	if err != nil {
		t.Fatalf("TranslateRequest(stream) error = %v", err)
	}
	if !strings.Contains(streamWire.URL, ":streamGenerateContent?alt=sse") {
		t.Errorf("streaming URL = %q", streamWire.URL)
	}
}

func TestTranslateRequest_RolesAndSystem(t *testing.T) {
	tr := testTranslator(t)
	temp := 0.3
	req := &chat.ChatRequest{
		Model: "gemini-2.0-flash",
		Messages: []chat.ChatMessage{
			{Role: chat.RoleSystem, Content: chat.Text("be helpful")},
			{Role: chat.RoleUser, Content: chat.Text("question")},
			{Role: chat.RoleAssistant, Content: chat.Text("answer")},
		},
		Temperature: &temp,
		MaxTokens:   100,
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	body := decodeBody(t, wire)

	sys := body["systemInstruction"].(map[string]interface{})
	sysText := sys["parts"].([]interface{})[0].(map[string]interface{})["text"]
	if sysText != "be helpful" {
		t.Errorf("systemInstruction = %v", sysText)
	}

	contents := body["contents"].([]interface{})
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want system extracted", len(contents))
	}
	if contents[1].(map[string]interface{})["role"] != "model" {
		t.Errorf("assistant role = %v, want model", contents[1].(map[string]interface{})["role"])
	}

	gen := body["generationConfig"].(map[string]interface{})
	if gen["temperature"] != 0.3 || gen["maxOutputTokens"] != float64(100) {
		t.Errorf("generationConfig = %v", gen)
	}
}

func TestTranslateRequest_ToolsAndImages(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model: "gemini-2.0-flash",
		Messages: []chat.ChatMessage{{
			Role: chat.RoleUser,
			Content: chat.Parts(
				chat.TextPart("describe"),
				chat.ImagePart("data:image/jpeg;base64,/9j/4A=="),
			),
		}},
		Tools: []chat.Tool{{
			Type: chat.ToolTypeFunction,
			Function: chat.FunctionDefinition{
				Name:       "lookup",
				Parameters: map[string]interface{}{"type": "object"},
			},
		}},
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	body := decodeBody(t, wire)

	parts := body["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
	img := parts[1].(map[string]interface{})["inlineData"].(map[string]interface{})
	if img["mimeType"] != "image/jpeg" || img["data"] != "/9j/4A==" {
		t.Errorf("inlineData = %v", img)
	}

	tools := body["tools"].([]interface{})[0].(map[string]interface{})
	decls := tools["functionDeclarations"].([]interface{})
	if decls[0].(map[string]interface{})["name"] != "lookup" {
		t.Errorf("functionDeclarations = %v", decls)
	}
}

func TestTranslateResponse_Success(t *testing.T) {
	tr := testTranslator(t)
	body := `{
		"candidates": [{
			"content": {"parts": [{"text": "the answer"}], "role": "model"},
			"finishReason": "STOP",
			"index": 0
		}],
		"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 2, "totalTokenCount": 6},
		"modelVersion": "gemini-2.0-flash"
	}`

	resp, err := tr.TranslateResponse(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	if resp.FirstContent() != "the answer" {
		t.Errorf("content = %q", resp.FirstContent())
	}
	if resp.Choices[0].FinishReason != chat.FinishReasonStop {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage.TotalTokens != 6 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", resp.Model)
	}
}

func TestTranslateResponse_FunctionCall(t *testing.T) {
	tr := testTranslator(t)
	body := `{
		"candidates": [{
			"content": {"parts": [{"functionCall": {"name": "lookup", "args": {"x": 1}}}], "role": "model"},
			"finishReason": "STOP",
			"index": 0
		}]
	}`

	resp, err := tr.TranslateResponse(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) != 1 || calls[0].Function.Name != "lookup" {
		t.Fatalf("tool calls = %+v", calls)
	}
	if calls[0].Function.Arguments != `{"x":1}` {
		t.Errorf("arguments = %q", calls[0].Function.Arguments)
	}
	if resp.Choices[0].FinishReason != chat.FinishReasonToolCalls {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
}

func TestTranslateResponse_ErrorPayload(t *testing.T) {
	tr := testTranslator(t)
	body := `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`

	resp, err := tr.TranslateResponse(transport.NewResponse(400, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	if resp.Error == nil || resp.Error.Message != "API key not valid" {
		t.Fatalf("Error = %+v", resp.Error)
	}
	if resp.Error.HTTPStatus != 400 {
		t.Errorf("http status = %d", resp.Error.HTTPStatus)
	}
}

func TestTranslateModels_FiltersAndStripsPrefix(t *testing.T) {
	tr := testTranslator(t)
	body := `{"models":[
		{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash","inputTokenLimit":1048576,"outputTokenLimit":8192,"supportedGenerationMethods":["generateContent","countTokens"]},
		{"name":"models/text-embedding-004","displayName":"Embedding","supportedGenerationMethods":["embedContent"]}
	]}`

	models, err := tr.TranslateModels(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateModels() error = %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("models = %d, want embedding filtered out", len(models))
	}
	if models[0].ID != "gemini-2.0-flash" {
		t.Errorf("id = %q, want prefix stripped", models[0].ID)
	}
	if models[0].ContextWindow != 1048576 || models[0].MaxOutputTokens != 8192 {
		t.Errorf("limits = %d/%d", models[0].ContextWindow, models[0].MaxOutputTokens)
	}
}

func TestAccumulator_Stream(t *testing.T) {
	acc := newAccumulator()
	chunks := []string{
		`{"candidates":[{"content":{"parts":[{"text":"The "}],"role":"model"},"index":0}],"modelVersion":"gemini-2.0-flash"}`,
		`{"candidates":[{"content":{"parts":[{"text":"answer"}],"role":"model"},"index":0}]}`,
	}
	for i, raw := range chunks {
		if acc.EndOfStream([]byte(raw)) {
			t.Fatalf("chunk #%d treated as sentinel", i)
		}
		if _, err := acc.Feed([]byte(raw)); err != nil {
			t.Fatalf("Feed() #%d error = %v", i, err)
		}
	}

	final := `{"candidates":[{"content":{"parts":[{"text":"."}],"role":"model"},"finishReason":"STOP","index":0}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":4,"totalTokenCount":7}}`
	delta, err := acc.Feed([]byte(final))
	if err != nil {
		t.Fatalf("Feed(final) error = %v", err)
	}
	if !delta.Done {
		t.Error("finishReason chunk did not signal done")
	}

	resp := acc.Finalize()
	if resp.FirstContent() != "The answer." {
		t.Errorf("content = %q", resp.FirstContent())
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if resp.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", resp.Model)
	}
}

func TestAccumulator_ErrorChunk(t *testing.T) {
	acc := newAccumulator()
	_, err := acc.Feed([]byte(`{"error":{"code":429,"message":"Resource exhausted"}}`))
	ne, ok := err.(*chat.NormalizedError)
	if !ok {
		t.Fatalf("error = %T, want *chat.NormalizedError", err)
	}
	if ne.Message != "Resource exhausted" {
		t.Errorf("message = %q", ne.Message)
	}
}
