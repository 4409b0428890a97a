package adapters

import "fmt"

// CapabilityError reports a request that needs a capability the provider
// does not have (image content on a text-only provider, model listing on a
// provider without a catalog endpoint).
type CapabilityError struct {
	// Provider is the provider id.
	Provider string

	// Capability names what was requested.
	Capability string
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Capability)
}

// StreamActiveError reports an attempt to open a second stream on an adapter
// whose previous stream is still live. The caller must stop the live stream
// before opening another.
type StreamActiveError struct {
	// Provider is the provider id.
	Provider string
}

// Error implements the error interface.
func (e *StreamActiveError) Error() string {
	return fmt.Sprintf("provider %s already has a live stream; stop it before starting another", e.Provider)
}

// UnknownProviderError reports a provider id absent from the builtin table.
type UnknownProviderError struct {
	// Provider is the requested id.
	Provider string
}

// Error implements the error interface.
func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Provider)
}
