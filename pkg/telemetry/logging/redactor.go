package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log output. Provider API keys travel through
// settings, headers, and error messages; none of them belong in logs.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			// Provider API keys (OpenAI/Groq sk-, Anthropic sk-ant-, generic api_key fields).
			{regexp.MustCompile(`(sk-[a-zA-Z0-9\-_]+|api[-_]?key[-_:=]\s*[a-zA-Z0-9\-_]+)`), "sk-***"},
			// Authorization headers.
			{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
		},
	}
}

// RedactString masks credential material inside a string.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// ReplaceAttr is a slog HandlerOptions hook: sensitive keys are masked
// outright, other string values are pattern-scrubbed.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactAPIKey(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{
		"api_key", "apikey", "secret", "token", "authorization", "password",
	} {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey masks an API key, keeping a short prefix for identification.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "***"
	}
	return apiKey[:4] + "***"
}
