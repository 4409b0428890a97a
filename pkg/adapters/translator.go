package adapters

import (
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// RequestTranslator converts a canonical chat request into a provider wire
// request. The streaming flag selects the streaming endpoint and framing for
// providers that distinguish them.
type RequestTranslator interface {
	TranslateRequest(req *chat.ChatRequest, streaming bool) (*transport.Request, error)
}

// ResponseTranslator converts provider responses back to the canonical
// schema. TranslateResponse must handle error-status responses by returning a
// canonical response whose Error field carries the normalized provider error;
// it only returns a non-nil error when the body cannot be interpreted at all.
type ResponseTranslator interface {
	TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error)

	// NewAccumulator returns a fresh streaming reconstruction state for one
	// stream.
	NewAccumulator() streaming.Accumulator
}

// Translator is the full bidirectional provider dialect.
type Translator interface {
	RequestTranslator
	ResponseTranslator
}

// ModelLister is implemented by translators whose provider exposes a model
// listing endpoint.
type ModelLister interface {
	// ModelsRequest builds the wire request for the provider's model list.
	ModelsRequest() (*transport.Request, error)

	// TranslateModels converts the provider's model list response. An
	// error-status response is returned as a normalized error.
	TranslateModels(resp transport.Response) ([]chat.ModelInfo, error)
}
