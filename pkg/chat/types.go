package chat

// Message role constants. RoleFunction is the legacy OpenAI function role,
// kept for callers that still produce it; translators treat it like RoleTool.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
)

// Finish reason constants.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
)

// Tool type constants.
const (
	ToolTypeFunction = "function"
)

// ChatMessage represents a single message in a conversation.
// It is provider-agnostic and is transformed to provider-specific formats
// by the request translators.
type ChatMessage struct {
	// Role identifies the message sender (system, user, assistant, tool).
	Role string `json:"role"`

	// Content is the message payload: plain text or multimodal parts.
	Content MessageContent `json:"content"`

	// Name is an optional name for the message sender.
	Name string `json:"name,omitempty"`

	// ToolCalls contains tool calls made by the assistant (assistant role).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID references the tool call this message responds to (tool role).
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ImageURL is a convenience field some callers attach alongside text
	// content; translators fold it into an image content part.
	ImageURL string `json:"image_url,omitempty"`
}

// ToolCall represents a function/tool call request from the model.
type ToolCall struct {
	// ID is a unique identifier for this tool call.
	ID string `json:"id"`

	// Type is the type of tool call (currently always "function").
	Type string `json:"type"`

	// Function contains the function name and arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a specific function invocation.
//
// During streaming, Arguments is built by string concatenation across chunks
// and is only guaranteed to be valid JSON once the stream reports completion.
type FunctionCall struct {
	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is a JSON string containing the function arguments.
	Arguments string `json:"arguments"`
}

// Tool represents a tool/function definition that the model can call.
type Tool struct {
	// Type is the type of tool (currently always "function").
	Type string `json:"type"`

	// Function contains the function definition.
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition defines a callable function.
type FunctionDefinition struct {
	// Name is the function name.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description,omitempty"`

	// Parameters is a JSON Schema object describing the function parameters.
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ChatRequest represents a canonical chat completion request.
// It is transformed to provider-specific formats by each adapter.
type ChatRequest struct {
	// Model is the model identifier. When empty, the adapter substitutes the
	// provider's configured default model.
	Model string `json:"model,omitempty"`

	// Messages is the conversation history, order-significant.
	Messages []ChatMessage `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0). Optional.
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Stream indicates whether to stream the response.
	Stream bool `json:"stream,omitempty"`

	// Tools is a list of tools the model can call.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice controls which tools can be called. It is omitted from the
	// provider request entirely when Tools is empty.
	// Can be "none", "auto", or {"type": "function", "function": {"name": ...}}.
	ToolChoice interface{} `json:"tool_choice,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0). Optional.
	TopP *float64 `json:"top_p,omitempty"`

	// FrequencyPenalty reduces repetition based on frequency (-2.0 to 2.0).
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`

	// PresencePenalty reduces repetition (-2.0 to 2.0).
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`
}

// Validate validates the chat request before translation.
func (r *ChatRequest) Validate() error {
	if r == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if len(r.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return &ValidationError{Field: "temperature", Message: "temperature must be between 0.0 and 2.0"}
	}
	if r.TopP != nil && (*r.TopP < 0.0 || *r.TopP > 1.0) {
		return &ValidationError{Field: "top_p", Message: "top_p must be between 0.0 and 1.0"}
	}
	if r.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Message: "max_tokens must not be negative"}
	}
	for i, msg := range r.Messages {
		if msg.Role == "" {
			return &ValidationError{Field: "messages", Message: "message role is required", Index: i}
		}
		if msg.Content.Empty() && len(msg.ToolCalls) == 0 && msg.ImageURL == "" {
			return &ValidationError{Field: "messages", Message: "message content is required when no tool_calls present", Index: i}
		}
	}
	return nil
}

// ChatCompletionResponse represents the canonical, OpenAI-shaped completion
// response. Streaming reconstruction finalizes into this same shape.
type ChatCompletionResponse struct {
	// ID is the unique response identifier.
	ID string `json:"id"`

	// Object is the response object type (e.g., "chat.completion").
	Object string `json:"object"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model that generated the response.
	Model string `json:"model,omitempty"`

	// Choices contains the generated completions.
	Choices []Choice `json:"choices"`

	// Usage contains token consumption information.
	Usage Usage `json:"usage"`

	// Error is set when the provider returned a well-formed error payload.
	// A response carrying an error must not be treated as a success.
	Error *NormalizedError `json:"error,omitempty"`
}

// Choice represents one generated completion.
type Choice struct {
	// Index is the choice index within the response.
	Index int `json:"index"`

	// Message is the generated message.
	Message ChatMessage `json:"message"`

	// FinishReason indicates why generation stopped
	// (stop, length, tool_calls, content_filter).
	FinishReason string `json:"finish_reason,omitempty"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used.
	TotalTokens int `json:"total_tokens"`
}

// FirstContent returns the text content of the first choice, or "" when the
// response has no choices.
func (r *ChatCompletionResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content.Text()
}

// ValidationError represents a request validation failure detected before any
// network call.
type ValidationError struct {
	// Field is the name of the invalid field.
	Field string

	// Message describes what is invalid about the field.
	Message string

	// Index is the offending element index for slice fields (-1 when unused).
	Index int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation error for field \"" + e.Field + "\": " + e.Message
}
