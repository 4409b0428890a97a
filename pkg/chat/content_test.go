package chat

import (
	"encoding/json"
	"testing"
)

func TestMessageContent_DecodeStringOrParts(t *testing.T) {
	var msg ChatMessage
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hi"}`), &msg); err != nil {
		t.Fatalf("decode string content: %v", err)
	}
	if msg.Content.Multipart() {
		t.Error("string content decoded as multipart")
	}
	if msg.Content.Text() != "hi" {
		t.Errorf("text = %q, want %q", msg.Content.Text(), "hi")
	}

	raw := `{"role":"user","content":[{"type":"text","text":"look at "},{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}},{"type":"text","text":"this"}]}`
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode part content: %v", err)
	}
	if !msg.Content.Multipart() {
		t.Fatal("part content decoded as plain string")
	}
	if got := len(msg.Content.PartList()); got != 3 {
		t.Fatalf("parts = %d, want 3", got)
	}
	if msg.Content.Text() != "look at this" {
		t.Errorf("text = %q, want %q", msg.Content.Text(), "look at this")
	}
	if !msg.Content.HasImages() {
		t.Error("HasImages() = false, want true")
	}
}

func TestMessageContent_EncodeRoundTrip(t *testing.T) {
	plain := Text("hello")
	data, err := json.Marshal(plain)
	if err != nil {
		t.Fatalf("marshal plain: %v", err)
	}
	if string(data) != `"hello"` {
		t.Errorf("plain content encoded as %s, want JSON string", data)
	}

	multi := Parts(TextPart("a"), ImagePart("https://example.com/x.png"))
	data, err = json.Marshal(multi)
	if err != nil {
		t.Fatalf("marshal parts: %v", err)
	}
	if data[0] != '[' {
		t.Errorf("multipart content encoded as %s, want JSON array", data)
	}
}

func TestMessageContent_AppendText(t *testing.T) {
	c := Text("hel")
	c.AppendText("lo")
	if c.Text() != "hello" {
		t.Errorf("text = %q, want %q", c.Text(), "hello")
	}

	m := Parts(ImagePart("u"))
	m.AppendText("cap")
	m.AppendText("tion")
	if m.Text() != "caption" {
		t.Errorf("text = %q, want %q", m.Text(), "caption")
	}
	if len(m.PartList()) != 2 {
		t.Errorf("parts = %d, want image plus one text part", len(m.PartList()))
	}
}

func TestModelOptions_SortedByName(t *testing.T) {
	models := []ModelInfo{
		{ID: "z-model", Name: "Zeta"},
		{ID: "a-model", Name: "Alpha"},
		{ID: "unnamed"},
	}

	opts := ModelOptions(models)
	if len(opts) != 3 {
		t.Fatalf("options = %d, want 3", len(opts))
	}
	if opts[0].Name != "Alpha" || opts[1].Name != "Zeta" || opts[2].Name != "unnamed" {
		t.Errorf("options not sorted by name: %#v", opts)
	}
	if opts[2].Value != "unnamed" {
		t.Errorf("missing name should fall back to id, got %#v", opts[2])
	}
}

func TestChatRequest_Validate(t *testing.T) {
	temp := 3.5
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  ChatRequest{Model: "m", Messages: []ChatMessage{{Role: RoleUser, Content: Text("hi")}}},
		},
		{
			name:    "no messages",
			req:     ChatRequest{Model: "m"},
			wantErr: true,
		},
		{
			name:    "temperature out of range",
			req:     ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: Text("hi")}}, Temperature: &temp},
			wantErr: true,
		},
		{
			name:    "message without role",
			req:     ChatRequest{Messages: []ChatMessage{{Content: Text("hi")}}},
			wantErr: true,
		},
		{
			name: "tool call message without content",
			req: ChatRequest{Messages: []ChatMessage{{
				Role:      RoleAssistant,
				ToolCalls: []ToolCall{{ID: "c1", Type: ToolTypeFunction, Function: FunctionCall{Name: "f"}}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
