// Package orchestrator is the top-level entry point of the translation
// layer. It owns the adapter registry, routes each operation to the
// configured provider's adapter, and enforces the cross-cutting rules: a
// response carrying a normalized error is never delivered as a success, and
// an unknown configured provider falls back to the first registered adapter
// with a warning rather than failing.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/catalog"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/telemetry/metrics"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/tokens"
)

// Orchestrator routes chat operations to provider adapters.
type Orchestrator struct {
	logger    *slog.Logger
	estimator *tokens.Estimator
	metrics   *metrics.Collector

	mu       sync.RWMutex
	order    []string
	adapters map[string]*adapters.Adapter
	catalogs map[string]*catalog.Service
	current  string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithEstimator overrides the token estimator.
func WithEstimator(e *tokens.Estimator) Option {
	return func(o *Orchestrator) { o.estimator = e }
}

// WithMetrics enables metric recording.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an empty orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:    slog.Default().With("component", "orchestrator"),
		estimator: tokens.NewEstimator(),
		adapters:  make(map[string]*adapters.Adapter),
		catalogs:  make(map[string]*catalog.Service),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds an adapter and its catalog. Registration order decides the
// fallback adapter; the first registration becomes the current provider.
// Re-registering a provider replaces its adapter in place.
func (o *Orchestrator) Register(adapter *adapters.Adapter, cat *catalog.Service) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := adapter.Provider()
	if _, exists := o.adapters[id]; !exists {
		o.order = append(o.order, id)
	}
	o.adapters[id] = adapter
	o.catalogs[id] = cat
	if o.current == "" {
		o.current = id
	}
}

// Providers returns the registered provider ids in registration order.
func (o *Orchestrator) Providers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// Current returns the active provider id.
func (o *Orchestrator) Current() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

// SetConfigured records the provider key named by configuration without
// validating it. A key that never resolves to a registered adapter makes
// every operation fall back to the first registered adapter.
func (o *Orchestrator) SetConfigured(id string) {
	o.mu.Lock()
	o.current = id
	o.mu.Unlock()
}

// SetProvider switches the active provider: the previous adapter is
// unloaded (stopping its live stream) and the new one loaded.
func (o *Orchestrator) SetProvider(ctx context.Context, id string) error {
	o.mu.Lock()
	next, ok := o.adapters[id]
	if !ok {
		o.mu.Unlock()
		return &adapters.UnknownProviderError{Provider: id}
	}
	prev := o.adapters[o.current]
	o.current = id
	o.mu.Unlock()

	if prev != nil && prev != next {
		if err := prev.Unload(ctx); err != nil {
			o.logger.Warn("failed to unload previous provider",
				"provider", prev.Provider(),
				"error", err,
			)
		}
	}
	if err := next.Load(ctx); err != nil {
		o.logger.Warn("provider load failed, retry scheduled",
			"provider", id,
			"error", err,
		)
	}
	o.logger.Info("provider switched", "provider", id)
	return nil
}

// adapter resolves the active adapter. A current id that no longer resolves
// falls back to the first registered adapter with a warning.
func (o *Orchestrator) adapter() (*adapters.Adapter, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if a, ok := o.adapters[o.current]; ok {
		return a, nil
	}
	if len(o.order) == 0 {
		return nil, fmt.Errorf("no adapters registered")
	}
	first := o.order[0]
	o.logger.Warn("configured provider not registered, falling back",
		"configured", o.current,
		"fallback", first,
	)
	return o.adapters[first], nil
}

// named resolves a specific provider's adapter, or the active one when id
// is empty.
func (o *Orchestrator) named(id string) (*adapters.Adapter, error) {
	if id == "" {
		return o.adapter()
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.adapters[id]
	if !ok {
		return nil, &adapters.UnknownProviderError{Provider: id}
	}
	return a, nil
}

// Complete performs a buffered completion on the active provider. A
// provider error payload is returned as a non-nil error alongside the
// canonical response that carries it.
func (o *Orchestrator) Complete(ctx context.Context, req *chat.ChatRequest) (*chat.ChatCompletionResponse, error) {
	adapter, err := o.adapter()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := adapter.Complete(ctx, req)
	if err != nil {
		o.observe(adapter.Provider(), "complete", "error", start)
		return nil, err
	}
	if resp.Error != nil {
		o.observe(adapter.Provider(), "complete", "provider_error", start)
		return resp, resp.Error
	}

	o.observe(adapter.Provider(), "complete", "ok", start)
	if o.metrics != nil {
		o.metrics.AddTokens(adapter.Provider(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, nil
}

// Stream opens a streaming completion on the active provider.
func (o *Orchestrator) Stream(ctx context.Context, req *chat.ChatRequest, handlers streaming.Handlers) (*streaming.Controller, error) {
	adapter, err := o.adapter()
	if err != nil {
		return nil, err
	}

	provider := adapter.Provider()
	start := time.Now()
	if o.metrics != nil {
		o.metrics.StreamOpened()
		inner := handlers
		handlers.Done = func(resp *chat.ChatCompletionResponse) {
			o.metrics.StreamClosed()
			o.observe(provider, "stream", "ok", start)
			o.metrics.AddTokens(provider, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			if inner.Done != nil {
				inner.Done(resp)
			}
		}
		handlers.Error = func(ne *chat.NormalizedError) {
			o.metrics.StreamClosed()
			o.observe(provider, "stream", "provider_error", start)
			if inner.Error != nil {
				inner.Error(ne)
			}
		}
	}

	ctrl, err := adapter.Stream(ctx, req, handlers)
	if err != nil && o.metrics != nil {
		// The error handler already closed the gauge for rejected opens
		// reported through handlers; guard the pure-translation failures.
		if ctrl == nil {
			o.metrics.StreamClosed()
		}
	}
	return ctrl, err
}

// StopStream stops the active provider's live stream, if any.
func (o *Orchestrator) StopStream() {
	adapter, err := o.adapter()
	if err != nil {
		return
	}
	adapter.StopStream()
}

// CountTokens estimates the prompt tokens of a request.
func (o *Orchestrator) CountTokens(req *chat.ChatRequest) int {
	return o.estimator.CountRequest(req)
}

// CountText estimates tokens for a plain string.
func (o *Orchestrator) CountText(s string) int {
	return o.estimator.CountText(s)
}

// TestCredentials verifies the named provider's key ("" for the active one).
func (o *Orchestrator) TestCredentials(ctx context.Context, provider string) ([]chat.ModelInfo, error) {
	adapter, err := o.named(provider)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	models, err := adapter.TestCredentials(ctx)
	if err != nil {
		o.observe(adapter.Provider(), "test_credentials", "error", start)
		return nil, err
	}
	o.observe(adapter.Provider(), "test_credentials", "ok", start)
	return models, nil
}

// Models returns the named provider's cached model list ("" for the active
// one). refresh bypasses the cache.
func (o *Orchestrator) Models(ctx context.Context, provider string, refresh bool) ([]chat.ModelInfo, error) {
	adapter, err := o.named(provider)
	if err != nil {
		return nil, err
	}

	o.mu.RLock()
	cat := o.catalogs[adapter.Provider()]
	o.mu.RUnlock()

	if cat == nil {
		return adapter.ListModels(ctx)
	}
	if refresh {
		return cat.Refresh(ctx)
	}
	return cat.Models(ctx)
}

// ModelOptions returns the cached models as sorted selection options.
func (o *Orchestrator) ModelOptions(ctx context.Context, provider string) ([]chat.ModelOption, error) {
	models, err := o.Models(ctx, provider, false)
	if err != nil {
		return nil, err
	}
	return chat.ModelOptions(models), nil
}

// Close stops all adapters.
func (o *Orchestrator) Close() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, a := range o.adapters {
		a.Close()
	}
}

func (o *Orchestrator) observe(provider, operation, status string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveRequest(provider, operation, status, time.Since(start))
}
