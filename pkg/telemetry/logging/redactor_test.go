package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"openai key", "key sk-proj-abc123 rejected", "key sk-*** rejected"},
		{"anthropic key", "using sk-ant-api03-xyz", "using sk-***"},
		{"bearer header", "sent Authorization: Bearer abc.def.ghi", "sent Authorization: Bearer ***"},
		{"api_key field", "api_key: deadbeef42", "sk-***"},
		{"clean string", "model list refreshed", "model list refreshed"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.RedactString(tt.in))
		})
	}
}

func TestReplaceAttr_SensitiveKeys(t *testing.T) {
	r := NewRedactor()

	got := r.ReplaceAttr(nil, slog.String("api_key", "supersecretvalue"))
	assert.Equal(t, "supe***", got.Value.String())

	got = r.ReplaceAttr(nil, slog.String("authorization", "Bearer tok"))
	assert.Equal(t, "Bear***", got.Value.String())

	// Non-sensitive keys keep their value apart from pattern scrubbing.
	got = r.ReplaceAttr(nil, slog.String("provider", "openai"))
	assert.Equal(t, "openai", got.Value.String())

	// Non-string values pass through untouched.
	got = r.ReplaceAttr(nil, slog.Int("status", 429))
	assert.Equal(t, int64(429), got.Value.Int64())
}

func TestRedactAPIKey(t *testing.T) {
	assert.Equal(t, "sk-p***", RedactAPIKey("sk-proj-abcdef"))
	assert.Equal(t, "***", RedactAPIKey("abc"))
	assert.Equal(t, "***", RedactAPIKey(""))
}
