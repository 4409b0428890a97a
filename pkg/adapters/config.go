package adapters

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// Builtin provider identifiers.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderCohere     = "cohere"
	ProviderOllama     = "ollama"
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderXAI        = "xai"
	ProviderLMStudio   = "lm_studio"
)

// Translator families. Providers in the same family share a wire dialect.
const (
	FamilyOpenAI    = "openai"
	FamilyAnthropic = "anthropic"
	FamilyGemini    = "gemini"
	FamilyCohere    = "cohere"
	FamilyOllama    = "ollama"
)

// AuthScheme selects how the API key is attached to requests.
type AuthScheme string

const (
	// AuthBearer sends "Authorization: Bearer <key>".
	AuthBearer AuthScheme = "bearer"

	// AuthHeader sends the key in the header named by APIKeyHeader.
	AuthHeader AuthScheme = "header"

	// AuthNone sends no credentials (local runtimes).
	AuthNone AuthScheme = "none"
)

// ProviderConfig is one entry of the builtin endpoint table. Endpoint URLs
// may contain a "{model}" placeholder, substituted by the translator at
// request time.
type ProviderConfig struct {
	// ID is the builtin provider identifier.
	ID string

	// Name is the display name.
	Name string

	// Family selects the translator dialect.
	Family string

	// Endpoint is the chat completion URL.
	Endpoint string

	// EndpointStreaming is the streaming completion URL when it differs from
	// Endpoint ("" means Endpoint with the dialect's stream flag).
	EndpointStreaming string

	// ModelsEndpoint is the model listing URL, "" when the provider has none.
	ModelsEndpoint string

	// ModelsMethod is the HTTP method for the model list (default GET).
	ModelsMethod string

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Auth selects the credential scheme.
	Auth AuthScheme

	// APIKeyHeader names the key header for AuthHeader providers.
	APIKeyHeader string

	// ExtraHeaders are sent on every request (version pins and the like).
	ExtraHeaders map[string]string

	// Multimodal reports whether the provider accepts image content.
	Multimodal bool

	// Framing selects the streaming chunk framing.
	Framing transport.Framing
}

// builtins is the static endpoint table. BaseURL in Settings rewrites the
// scheme://host prefix of every URL, which is how self-hosted gateways and
// OpenAI-compatible proxies are reached.
var builtins = map[string]ProviderConfig{
	ProviderOpenAI: {
		ID:             ProviderOpenAI,
		Name:           "OpenAI",
		Family:         FamilyOpenAI,
		Endpoint:       "https://api.openai.com/v1/chat/completions",
		ModelsEndpoint: "https://api.openai.com/v1/models",
		DefaultModel:   "gpt-4o-mini",
		Auth:           AuthBearer,
		Multimodal:     true,
		Framing:        transport.FramingSSE,
	},
	ProviderAnthropic: {
		ID:             ProviderAnthropic,
		Name:           "Anthropic",
		Family:         FamilyAnthropic,
		Endpoint:       "https://api.anthropic.com/v1/messages",
		ModelsEndpoint: "https://api.anthropic.com/v1/models",
		DefaultModel:   "claude-sonnet-4-20250514",
		Auth:           AuthHeader,
		APIKeyHeader:   "x-api-key",
		ExtraHeaders: map[string]string{
			"anthropic-version": "2023-06-01",
		},
		Multimodal: true,
		Framing:    transport.FramingSSE,
	},
	ProviderGemini: {
		ID:                ProviderGemini,
		Name:              "Google Gemini",
		Family:            FamilyGemini,
		Endpoint:          "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
		EndpointStreaming: "https://generativelanguage.googleapis.com/v1beta/models/{model}:streamGenerateContent?alt=sse",
		ModelsEndpoint:    "https://generativelanguage.googleapis.com/v1beta/models",
		DefaultModel:      "gemini-2.0-flash",
		Auth:              AuthHeader,
		APIKeyHeader:      "x-goog-api-key",
		Multimodal:        true,
		Framing:           transport.FramingSSE,
	},
	ProviderCohere: {
		ID:             ProviderCohere,
		Name:           "Cohere",
		Family:         FamilyCohere,
		Endpoint:       "https://api.cohere.ai/v1/chat",
		ModelsEndpoint: "https://api.cohere.ai/v1/models",
		DefaultModel:   "command-r-plus",
		Auth:           AuthBearer,
		Framing:        transport.FramingLines,
	},
	ProviderOllama: {
		ID:             ProviderOllama,
		Name:           "Ollama",
		Family:         FamilyOllama,
		Endpoint:       "http://localhost:11434/api/chat",
		ModelsEndpoint: "http://localhost:11434/api/tags",
		Auth:           AuthNone,
		Multimodal:     true,
		Framing:        transport.FramingLines,
	},
	ProviderGroq: {
		ID:             ProviderGroq,
		Name:           "Groq",
		Family:         FamilyOpenAI,
		Endpoint:       "https://api.groq.com/openai/v1/chat/completions",
		ModelsEndpoint: "https://api.groq.com/openai/v1/models",
		DefaultModel:   "llama-3.3-70b-versatile",
		Auth:           AuthBearer,
		Framing:        transport.FramingSSE,
	},
	ProviderOpenRouter: {
		ID:             ProviderOpenRouter,
		Name:           "OpenRouter",
		Family:         FamilyOpenAI,
		Endpoint:       "https://openrouter.ai/api/v1/chat/completions",
		ModelsEndpoint: "https://openrouter.ai/api/v1/models",
		DefaultModel:   "openai/gpt-4o-mini",
		Auth:           AuthBearer,
		ExtraHeaders: map[string]string{
			"HTTP-Referer": "https://github.com/GoBeromsu/obsidian-smart-connections-sub001",
			"X-Title":      "smartchat",
		},
		Multimodal: true,
		Framing:    transport.FramingSSE,
	},
	ProviderXAI: {
		ID:             ProviderXAI,
		Name:           "xAI",
		Family:         FamilyOpenAI,
		Endpoint:       "https://api.x.ai/v1/chat/completions",
		ModelsEndpoint: "https://api.x.ai/v1/models",
		DefaultModel:   "grok-2-latest",
		Auth:           AuthBearer,
		Framing:        transport.FramingSSE,
	},
	ProviderLMStudio: {
		ID:             ProviderLMStudio,
		Name:           "LM Studio",
		Family:         FamilyOpenAI,
		Endpoint:       "http://localhost:1234/v1/chat/completions",
		ModelsEndpoint: "http://localhost:1234/v1/models",
		Auth:           AuthNone,
		Framing:        transport.FramingSSE,
	},
}

// Builtin looks up a builtin provider by id.
func Builtin(id string) (ProviderConfig, bool) {
	cfg, ok := builtins[id]
	return cfg, ok
}

// BuiltinIDs returns the builtin provider ids, sorted.
func BuiltinIDs() []string {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Settings are the user-supplied knobs for one provider instance.
type Settings struct {
	// Provider is the builtin provider id.
	Provider string `yaml:"provider"`

	// APIKey is the credential, "" for local runtimes.
	APIKey string `yaml:"api_key"`

	// BaseURL rewrites the scheme://host prefix of all builtin URLs,
	// e.g. "http://10.0.0.5:11434" for a remote Ollama.
	BaseURL string `yaml:"base_url"`

	// Model overrides the builtin default model.
	Model string `yaml:"model"`

	// Headers are merged on top of the builtin extra headers.
	Headers map[string]string `yaml:"headers"`
}

// Resolve applies settings to a builtin config, producing the concrete
// endpoint set a translator works from.
func Resolve(cfg ProviderConfig, settings Settings) (ProviderConfig, error) {
	out := cfg
	if settings.Model != "" {
		out.DefaultModel = settings.Model
	}
	if settings.BaseURL != "" {
		base := strings.TrimRight(settings.BaseURL, "/")
		var err error
		if out.Endpoint, err = rebase(out.Endpoint, base); err != nil {
			return ProviderConfig{}, err
		}
		if out.EndpointStreaming != "" {
			if out.EndpointStreaming, err = rebase(out.EndpointStreaming, base); err != nil {
				return ProviderConfig{}, err
			}
		}
		if out.ModelsEndpoint != "" {
			if out.ModelsEndpoint, err = rebase(out.ModelsEndpoint, base); err != nil {
				return ProviderConfig{}, err
			}
		}
	}
	if len(settings.Headers) > 0 {
		merged := make(map[string]string, len(out.ExtraHeaders)+len(settings.Headers))
		for k, v := range out.ExtraHeaders {
			merged[k] = v
		}
		for k, v := range settings.Headers {
			merged[k] = v
		}
		out.ExtraHeaders = merged
	}
	if out.ModelsMethod == "" {
		out.ModelsMethod = http.MethodGet
	}
	return out, nil
}

// rebase swaps the scheme://host prefix of a builtin URL for base, keeping
// the path and query.
func rebase(rawURL, base string) (string, error) {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return "", fmt.Errorf("malformed endpoint %q", rawURL)
	}
	rest := rawURL[idx+len("://"):]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return base, nil
	}
	return base + rest[slash:], nil
}
