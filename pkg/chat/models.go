package chat

import "sort"

// PlaceholderModelID is the id of the synthetic catalog entry returned when a
// provider reports an empty model list. Kept so selection UIs always have at
// least one entry to render.
const PlaceholderModelID = "no_models_available"

// ModelInfo describes one model a provider exposes, with capability and cost
// metadata where known.
type ModelInfo struct {
	// ID is the provider's model identifier, used in requests.
	ID string `json:"id"`

	// Name is the display name; falls back to ID when the provider supplies
	// no separate name.
	Name string `json:"name"`

	// ContextWindow is the maximum combined input+output token count.
	ContextWindow int `json:"context_window,omitempty"`

	// MaxOutputTokens is the maximum tokens one completion can produce.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// Multimodal indicates the model accepts image inputs.
	Multimodal bool `json:"multimodal,omitempty"`

	// InputCost and OutputCost are USD per million tokens, 0 when unknown.
	InputCost  float64 `json:"input_cost,omitempty"`
	OutputCost float64 `json:"output_cost,omitempty"`

	// Raw preserves the provider's original payload for this model.
	Raw map[string]interface{} `json:"-"`
}

// PlaceholderModel returns the synthetic entry used for empty catalogs.
func PlaceholderModel() ModelInfo {
	return ModelInfo{ID: PlaceholderModelID, Name: "No models currently available"}
}

// ModelOption is the {value, name} pair selection UIs consume.
type ModelOption struct {
	// Value is the model id sent in requests.
	Value string `json:"value"`

	// Name is the display label.
	Name string `json:"name"`
}

// ModelOptions converts catalog entries into selection options sorted
// alphabetically by display name.
func ModelOptions(models []ModelInfo) []ModelOption {
	opts := make([]ModelOption, 0, len(models))
	for _, m := range models {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		opts = append(opts, ModelOption{Value: m.ID, Name: name})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Name < opts[j].Name })
	return opts
}
