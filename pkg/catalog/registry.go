package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// Registry fetches model metadata (context windows, costs, modality) from a
// registry document and layers it onto provider-fetched entries. The fetched
// metadata is cached with its own TTL; a failed fetch keeps serving the last
// good snapshot, falling back to the seed when nothing was ever fetched.
type Registry struct {
	url       string
	transport transport.Transport
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu        sync.RWMutex
	entries   map[string]chat.ModelInfo
	fetchedAt time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryTTL overrides the metadata validity window.
func WithRegistryTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.ttl = d }
}

// WithRegistryClock injects the time source.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithRegistryLogger overrides the logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a metadata registry. seed provides entries served
// until the first successful fetch; it may be nil.
func NewRegistry(url string, tr transport.Transport, seed map[string]chat.ModelInfo, opts ...RegistryOption) *Registry {
	r := &Registry{
		url:       url,
		transport: tr,
		ttl:       DefaultTTL,
		now:       time.Now,
		logger:    slog.Default().With("component", "catalog-registry"),
		entries:   make(map[string]chat.ModelInfo, len(seed)),
	}
	for id, info := range seed {
		r.entries[id] = info
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enrich fills metadata gaps on the given models from the registry. Identity
// fields (ID, Name, Raw) are never overwritten; only zero-valued capability
// and cost fields are filled.
func (r *Registry) Enrich(ctx context.Context, models []chat.ModelInfo) []chat.ModelInfo {
	r.ensureFresh(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.ModelInfo, len(models))
	for i, m := range models {
		meta, ok := r.entries[m.ID]
		if !ok {
			out[i] = m
			continue
		}
		if m.ContextWindow == 0 {
			m.ContextWindow = meta.ContextWindow
		}
		if m.MaxOutputTokens == 0 {
			m.MaxOutputTokens = meta.MaxOutputTokens
		}
		if !m.Multimodal {
			m.Multimodal = meta.Multimodal
		}
		if m.InputCost == 0 {
			m.InputCost = meta.InputCost
		}
		if m.OutputCost == 0 {
			m.OutputCost = meta.OutputCost
		}
		out[i] = m
	}
	return out
}

// Seed returns every model the registry knows about, sorted by id. Used to
// populate a catalog when the provider itself reports no models.
func (r *Registry) Seed(ctx context.Context) []chat.ModelInfo {
	r.ensureFresh(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.ModelInfo, 0, len(r.entries))
	for _, info := range r.entries {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ensureFresh refetches the registry document when stale. Failures keep the
// current snapshot.
func (r *Registry) ensureFresh(ctx context.Context) {
	if r.url == "" || r.transport == nil {
		return
	}

	r.mu.RLock()
	fresh := !r.fetchedAt.IsZero() && r.now().Sub(r.fetchedAt) < r.ttl
	r.mu.RUnlock()
	if fresh {
		return
	}

	entries, err := r.fetchEntries(ctx)
	if err != nil {
		r.logger.Warn("registry fetch failed, keeping previous metadata", "error", err)
		return
	}

	r.mu.Lock()
	r.entries = entries
	r.fetchedAt = r.now()
	r.mu.Unlock()
}

// fetchEntries downloads and decodes the registry document, a JSON object
// keyed by model id.
func (r *Registry) fetchEntries(ctx context.Context) (map[string]chat.ModelInfo, error) {
	resp, err := r.transport.Do(ctx, &transport.Request{URL: r.url, Method: "GET"})
	if err != nil {
		return nil, err
	}
	if resp.Status() >= 400 {
		return nil, fmt.Errorf("registry returned status %d", resp.Status())
	}

	var doc map[string]struct {
		Name            string  `json:"name"`
		ContextWindow   int     `json:"context_window"`
		MaxOutputTokens int     `json:"max_output_tokens"`
		Multimodal      bool    `json:"multimodal"`
		InputCost       float64 `json:"input_cost"`
		OutputCost      float64 `json:"output_cost"`
	}
	if err := resp.JSON(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode registry document: %w", err)
	}

	entries := make(map[string]chat.ModelInfo, len(doc))
	for id, e := range doc {
		entries[id] = chat.ModelInfo{
			ID:              id,
			Name:            e.Name,
			ContextWindow:   e.ContextWindow,
			MaxOutputTokens: e.MaxOutputTokens,
			Multimodal:      e.Multimodal,
			InputCost:       e.InputCost,
			OutputCost:      e.OutputCost,
		}
	}
	return entries, nil
}
