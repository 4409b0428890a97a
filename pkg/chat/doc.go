// Package chat defines the canonical chat-completion schema that every
// provider adapter translates to and from, plus the error normalizer that
// collapses arbitrary provider failures into one user-facing shape.
//
// The canonical request/response shapes follow the OpenAI Chat Completions
// wire format (messages, tools, choices, usage). Provider adapters under
// pkg/adapters translate these shapes to each provider's own schema; external
// callers are only ever exposed to the types in this package.
//
// # Canonical shapes
//
//   - ChatRequest / ChatMessage / MessageContent: the request side, including
//     multimodal content parts and tool definitions. Message ordering is
//     significant and preserved verbatim through every translation.
//   - ChatCompletionResponse / Choice / Usage: the response side. A response
//     carrying a non-nil Error field represents a provider API error that was
//     delivered in an otherwise well-formed payload.
//   - ModelInfo / ModelOption: catalog entries and their UI selection form.
//
// # Error normalization
//
// Normalize reduces any value - strings, errors, nested provider error
// envelopes, arrays of errors - to a NormalizedError{Message, Details,
// HTTPStatus}. Normalization is idempotent: normalizing an already
// normalized error returns an equal copy.
package chat
