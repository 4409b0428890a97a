package cohere

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

func testTranslator(t *testing.T) *Translator {
	t.Helper()
	cfg, ok := adapters.Builtin(adapters.ProviderCohere)
	if !ok {
		t.Fatal("cohere missing from builtin table")
	}
	return New(cfg, adapters.Settings{APIKey: "co-test"}, nil)
}

func TestTranslateRequest_MessageAndHistorySplit(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model: "command-r-plus",
		Messages: []chat.ChatMessage{
			{Role: chat.RoleSystem, Content: chat.Text("be brief")},
			{Role: chat.RoleUser, Content: chat.Text("first question")},
			{Role: chat.RoleAssistant, Content: chat.Text("first answer")},
			{Role: chat.RoleUser, Content: chat.Text("second question")},
		},
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	if wire.Headers["Authorization"] != "Bearer co-test" {
		t.Errorf("Authorization = %q", wire.Headers["Authorization"])
	}
	if wire.Framing != transport.FramingLines {
		t.Errorf("framing = %q, want lines", wire.Framing)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(wire.Body, &body); err != nil {
		t.Fatalf("body decode: %v", err)
	}
	if body["message"] != "second question" {
		t.Errorf("message = %v, want latest user turn", body["message"])
	}
	if body["preamble"] != "be brief" {
		t.Errorf("preamble = %v", body["preamble"])
	}

	history := body["chat_history"].([]interface{})
	if len(history) != 2 {
		t.Fatalf("chat_history = %d entries", len(history))
	}
	first := history[0].(map[string]interface{})
	second := history[1].(map[string]interface{})
	if first["role"] != "USER" || second["role"] != "CHATBOT" {
		t.Errorf("history roles = %v, %v", first["role"], second["role"])
	}
}

func TestTranslateRequest_RejectsTools(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model:    "command-r-plus",
		Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: chat.Text("hi")}},
		Tools: []chat.Tool{{
			Type:     chat.ToolTypeFunction,
			Function: chat.FunctionDefinition{Name: "lookup"},
		}},
	}

	_, err := tr.TranslateRequest(req, false)
	var capErr *adapters.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("error = %v, want CapabilityError", err)
	}
}

func TestTranslateResponse_Success(t *testing.T) {
	tr := testTranslator(t)
	body := `{
		"response_id": "res_1",
		"text": "the reply",
		"finish_reason": "COMPLETE",
		"meta": {"billed_units": {"input_tokens": 8, "output_tokens": 3}}
	}`

	resp, err := tr.TranslateResponse(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	if resp.FirstContent() != "the reply" {
		t.Errorf("content = %q", resp.FirstContent())
	}
	if resp.Choices[0].FinishReason != chat.FinishReasonStop {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
	if resp.Usage.TotalTokens != 11 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestTranslateResponse_FlatErrorPayload(t *testing.T) {
	tr := testTranslator(t)
	body := `{"message":"invalid api token"}`

	resp, err := tr.TranslateResponse(transport.NewResponse(401, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	if resp.Error == nil || resp.Error.Message != "invalid api token" {
		t.Fatalf("Error = %+v", resp.Error)
	}
	if resp.Error.HTTPStatus != 401 {
		t.Errorf("http status = %d", resp.Error.HTTPStatus)
	}
}

func TestTranslateModels_ChatOnly(t *testing.T) {
	tr := testTranslator(t)
	body := `{"models":[
		{"name":"command-r-plus","context_length":128000,"endpoints":["chat"]},
		{"name":"embed-english-v3.0","endpoints":["embed"]}
	]}`

	models, err := tr.TranslateModels(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateModels() error = %v", err)
	}
	if len(models) != 1 || models[0].ID != "command-r-plus" {
		t.Fatalf("models = %+v", models)
	}
	if models[0].ContextWindow != 128000 {
		t.Errorf("context window = %d", models[0].ContextWindow)
	}
}

func TestAccumulator_Stream(t *testing.T) {
	acc := newAccumulator()
	events := []string{
		`{"event_type":"stream-start","generation_id":"gen_1"}`,
		`{"event_type":"text-generation","text":"par"}`,
		`{"event_type":"text-generation","text":"tial"}`,
	}
	for i, raw := range events {
		if _, err := acc.Feed([]byte(raw)); err != nil {
			t.Fatalf("Feed() #%d error = %v", i, err)
		}
	}

	end := `{"event_type":"stream-end","finish_reason":"COMPLETE","response":{"response_id":"res_9","text":"partial","meta":{"billed_units":{"input_tokens":2,"output_tokens":2}}}}`
	delta, err := acc.Feed([]byte(end))
	if err != nil {
		t.Fatalf("Feed(stream-end) error = %v", err)
	}
	if !delta.Done {
		t.Error("stream-end did not signal done")
	}

	resp := acc.Finalize()
	if resp.FirstContent() != "partial" {
		t.Errorf("content = %q", resp.FirstContent())
	}
	if resp.ID != "res_9" {
		t.Errorf("id = %q, want embedded response to win", resp.ID)
	}
	if resp.Usage.TotalTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestAccumulator_EOFWithoutStreamEnd(t *testing.T) {
	acc := newAccumulator()
	if _, err := acc.Feed([]byte(`{"event_type":"stream-start","generation_id":"gen_2"}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Feed([]byte(`{"event_type":"text-generation","text":"cut off"}`)); err != nil {
		t.Fatal(err)
	}

	resp := acc.Finalize()
	if resp.FirstContent() != "cut off" {
		t.Errorf("content = %q", resp.FirstContent())
	}
	if resp.ID != "gen_2" {
		t.Errorf("id = %q, want generation id fallback", resp.ID)
	}
	if resp.Choices[0].FinishReason != chat.FinishReasonStop {
		t.Errorf("finish_reason = %q", resp.Choices[0].FinishReason)
	}
}
