package anthropic

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

func testTranslator(t *testing.T) *Translator {
	t.Helper()
	cfg, ok := adapters.Builtin(adapters.ProviderAnthropic)
	if !ok {
		t.Fatal("anthropic missing from builtin table")
	}
	return New(cfg, adapters.Settings{APIKey: "sk-ant-test"}, nil)
}

func decodeBody(t *testing.T, req *transport.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	return body
}

func TestTranslateRequest_ExtractsSystem(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []chat.ChatMessage{
			{Role: chat.RoleSystem, Content: chat.Text("you are terse")},
			{Role: chat.RoleUser, Content: chat.Text("hi")},
			{Role: chat.RoleSystem, Content: chat.Text("and polite")},
		},
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	if wire.Headers["x-api-key"] != "sk-ant-test" {
		t.Errorf("x-api-key = %q", wire.Headers["x-api-key"])
	}
	if wire.Headers["anthropic-version"] == "" {
		t.Error("anthropic-version header missing")
	}

	body := decodeBody(t, wire)
	if body["system"] != "you are terse\n\nand polite" {
		t.Errorf("system = %q", body["system"])
	}
	msgs := body["messages"].([]interface{})
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want system turns removed", len(msgs))
	}
	if body["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("max_tokens = %v, want default filled in", body["max_tokens"])
	}
}

func TestTranslateRequest_ToolRoundTrip(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []chat.ChatMessage{
			{Role: chat.RoleUser, Content: chat.Text("look up x")},
			{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{{
				ID:   "toolu_1",
				Type: chat.ToolTypeFunction,
				Function: chat.FunctionCall{
					Name:      "lookup",
					Arguments: `{"x":1}`,
				},
			}}},
			{Role: chat.RoleTool, ToolCallID: "toolu_1", Content: chat.Text("42")},
		},
		Tools: []chat.Tool{{
			Type: chat.ToolTypeFunction,
			Function: chat.FunctionDefinition{
				Name:       "lookup",
				Parameters: map[string]interface{}{"type": "object"},
			},
		}},
		ToolChoice: "auto",
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	body := decodeBody(t, wire)

	tools := body["tools"].([]interface{})
	tool := tools[0].(map[string]interface{})
	if tool["name"] != "lookup" {
		t.Errorf("tool name = %v", tool["name"])
	}
	if _, ok := tool["input_schema"]; !ok {
		t.Error("input_schema missing")
	}
	if body["tool_choice"].(map[string]interface{})["type"] != "auto" {
		t.Errorf("tool_choice = %v", body["tool_choice"])
	}

	msgs := body["messages"].([]interface{})
	assistant := msgs[1].(map[string]interface{})
	blocks := assistant["content"].([]interface{})
	use := blocks[0].(map[string]interface{})
	if use["type"] != "tool_use" || use["name"] != "lookup" {
		t.Errorf("tool_use block = %v", use)
	}
	if use["input"].(map[string]interface{})["x"] != float64(1) {
		t.Errorf("tool input = %v", use["input"])
	}

	result := msgs[2].(map[string]interface{})
	if result["role"] != chat.RoleUser {
		t.Errorf("tool result role = %v, want user turn", result["role"])
	}
	rb := result["content"].([]interface{})[0].(map[string]interface{})
	if rb["type"] != "tool_result" || rb["tool_use_id"] != "toolu_1" {
		t.Errorf("tool_result block = %v", rb)
	}
}

func TestTranslateRequest_ImageDataURI(t *testing.T) {
	tr := testTranslator(t)
	req := &chat.ChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []chat.ChatMessage{{
			Role: chat.RoleUser,
			Content: chat.Parts(
				chat.TextPart("what is this"),
				chat.ImagePart("data:image/png;base64,iVBOR=="),
			),
		}},
	}

	wire, err := tr.TranslateRequest(req, false)
	if err != nil {
		t.Fatalf("TranslateRequest() error = %v", err)
	}
	body := decodeBody(t, wire)
	blocks := body["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
	img := blocks[1].(map[string]interface{})
	src := img["source"].(map[string]interface{})
	if src["type"] != "base64" || src["media_type"] != "image/png" || src["data"] != "iVBOR==" {
		t.Errorf("image source = %v", src)
	}
}

func TestTranslateResponse_TextAndToolUse(t *testing.T) {
	tr := testTranslator(t)
	body := `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [
			{"type":"text","text":"checking"},
			{"type":"tool_use","id":"toolu_9","name":"lookup","input":{"x":1}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 12, "output_tokens": 7}
	}`

	resp, err := tr.TranslateResponse(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	if resp.FirstContent() != "checking" {
		t.Errorf("content = %q", resp.FirstContent())
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
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestTranslateResponse_ErrorPayload(t *testing.T) {
	tr := testTranslator(t)
	body := `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`

	resp, err := tr.TranslateResponse(transport.NewResponse(http.StatusUnauthorized, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateResponse() error = %v", err)
	}
	if resp.Error == nil {
		t.Fatal("Error = nil, want normalized provider error")
	}
	if resp.Error.Message != "invalid x-api-key" {
		t.Errorf("message = %q", resp.Error.Message)
	}
	if resp.Error.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("http status = %d", resp.Error.HTTPStatus)
	}
}

func TestTranslateModels(t *testing.T) {
	tr := testTranslator(t)
	body := `{"data":[{"id":"claude-sonnet-4-20250514","display_name":"Claude Sonnet 4"},{"id":"claude-haiku-3-5"}]}`

	models, err := tr.TranslateModels(transport.NewResponse(200, nil, []byte(body)))
	if err != nil {
		t.Fatalf("TranslateModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("models = %d", len(models))
	}
	if models[0].Name != "Claude Sonnet 4" {
		t.Errorf("display name = %q", models[0].Name)
	}
	if models[1].Name != "claude-haiku-3-5" {
		t.Errorf("name fallback = %q", models[1].Name)
	}
}
