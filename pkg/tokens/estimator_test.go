package tokens

import (
	"testing"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
)

func TestCountText(t *testing.T) {
	e := NewEstimator()
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"12345678", 2},
		{"a string of exactly forty characters....", 10},
	}
	for _, tt := range tests {
		if got := e.CountText(tt.in); got != tt.want {
			t.Errorf("CountText(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCountText_CustomRatio(t *testing.T) {
	e := NewEstimator(WithCharsPerToken(2))
	if got := e.CountText("12345678"); got != 4 {
		t.Errorf("CountText = %d, want 4 at ratio 2", got)
	}
}

func TestCountRequest(t *testing.T) {
	e := NewEstimator()
	req := &chat.ChatRequest{
		Messages: []chat.ChatMessage{
			{Role: chat.RoleSystem, Content: chat.Text("be helpful and brief")},
			{Role: chat.RoleUser, Content: chat.Text("what is the answer?")},
		},
	}

	got := e.CountRequest(req)
	// Two messages: 2*overhead + ceilings of content estimates.
	want := 2*perMessageOverhead + e.CountText("be helpful and brief") + e.CountText("what is the answer?")
	if got != want {
		t.Errorf("CountRequest = %d, want %d", got, want)
	}
	if e.CountRequest(nil) != 0 {
		t.Error("nil request should count zero")
	}
}

func TestCountRequest_IncludesTools(t *testing.T) {
	e := NewEstimator()
	base := &chat.ChatRequest{
		Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: chat.Text("hi")}},
	}
	withTools := &chat.ChatRequest{
		Messages: base.Messages,
		Tools: []chat.Tool{{
			Type: chat.ToolTypeFunction,
			Function: chat.FunctionDefinition{
				Name:        "lookup",
				Description: "looks things up in the index",
				Parameters:  map[string]interface{}{"type": "object"},
			},
		}},
	}

	if e.CountRequest(withTools) <= e.CountRequest(base) {
		t.Error("tool definitions should add to the estimate")
	}
}
