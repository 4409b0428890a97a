// Package catalog caches each provider's model list: a TTL'd in-memory cache
// in front of the provider fetch, optional registry enrichment for capability
// and cost metadata, optional SQLite persistence across restarts, and a cron
// refresher for background staleness control.
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
)

// DefaultTTL is how long a fetched model list stays valid.
const DefaultTTL = time.Hour

// Fetcher retrieves the provider's current model list.
type Fetcher func(ctx context.Context) ([]chat.ModelInfo, error)

// Service is the per-provider model catalog cache.
type Service struct {
	provider    string
	fetch       Fetcher
	ttl         time.Duration
	now         func() time.Time
	logger      *slog.Logger
	store       Store
	registry    *Registry
	onUpdate    func([]chat.ModelInfo)
	updateDelay time.Duration

	group singleflight.Group

	mu        sync.RWMutex
	models    []chat.ModelInfo
	fetchedAt time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the cache validity window.
func WithTTL(d time.Duration) Option {
	return func(s *Service) { s.ttl = d }
}

// WithClock injects the time source. Tests use it to age the cache.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStore persists fetched lists and pre-warms the cache on startup.
func WithStore(store Store) Option {
	return func(s *Service) { s.store = store }
}

// WithRegistry enriches fetched entries with metadata.
func WithRegistry(r *Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithUpdateHook registers a callback invoked after each successful refresh,
// delayed so the caller's own response handling settles first.
func WithUpdateHook(fn func([]chat.ModelInfo), delay time.Duration) Option {
	return func(s *Service) {
		s.onUpdate = fn
		s.updateDelay = delay
	}
}

// New creates a catalog service for one provider. When a store is configured
// its last persisted list pre-warms the cache, staleness included, so a UI
// has entries to show before the first network fetch completes.
func New(provider string, fetch Fetcher, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		fetch:    fetch,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   slog.Default().With("component", "catalog", "provider", provider),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store != nil {
		models, fetchedAt, err := s.store.Load(context.Background(), provider)
		if err != nil {
			s.logger.Warn("failed to load persisted catalog", "error", err)
		} else if len(models) > 0 {
			s.models = models
			s.fetchedAt = fetchedAt
		}
	}
	return s
}

// Provider returns the provider id this catalog serves.
func (s *Service) Provider() string {
	return s.provider
}

// Valid reports whether the cached list can be served without a fetch: it
// must be non-empty and younger than the TTL.
func (s *Service) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

func (s *Service) validLocked() bool {
	return len(s.models) > 0 && s.now().Sub(s.fetchedAt) < s.ttl
}

// Models returns the cached list when valid, fetching otherwise. Concurrent
// callers share one in-flight fetch. When the fetch fails and a stale list
// exists, the stale list is served.
func (s *Service) Models(ctx context.Context) ([]chat.ModelInfo, error) {
	s.mu.RLock()
	if s.validLocked() {
		models := s.models
		s.mu.RUnlock()
		return models, nil
	}
	s.mu.RUnlock()
	return s.refresh(ctx)
}

// Refresh bypasses the cache and fetches unconditionally.
func (s *Service) Refresh(ctx context.Context) ([]chat.ModelInfo, error) {
	return s.refresh(ctx)
}

// Options returns the cached models as sorted selection options.
func (s *Service) Options(ctx context.Context) ([]chat.ModelOption, error) {
	models, err := s.Models(ctx)
	if err != nil {
		return nil, err
	}
	return chat.ModelOptions(models), nil
}

func (s *Service) refresh(ctx context.Context) ([]chat.ModelInfo, error) {
	result, err, _ := s.group.Do("fetch", func() (interface{}, error) {
		models, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}

		if s.registry != nil {
			if len(models) == 0 {
				models = s.registry.Seed(ctx)
			}
			models = s.registry.Enrich(ctx, models)
		}
		if len(models) == 0 {
			// Keep one synthetic entry so selection UIs never render an
			// empty list.
			models = []chat.ModelInfo{chat.PlaceholderModel()}
		}

		fetchedAt := s.now()
		s.mu.Lock()
		s.models = models
		s.fetchedAt = fetchedAt
		s.mu.Unlock()

		if s.store != nil {
			if err := s.store.Save(ctx, s.provider, models, fetchedAt); err != nil {
				s.logger.Warn("failed to persist catalog", "error", err)
			}
		}
		s.notify(models)
		return models, nil
	})
	if err != nil {
		s.mu.RLock()
		stale := s.models
		s.mu.RUnlock()
		if len(stale) > 0 {
			s.logger.Warn("model fetch failed, serving stale catalog",
				"error", err,
				"models", len(stale),
			)
			return stale, nil
		}
		return nil, err
	}
	return result.([]chat.ModelInfo), nil
}

// notify schedules the update hook after the configured delay.
func (s *Service) notify(models []chat.ModelInfo) {
	if s.onUpdate == nil {
		return
	}
	if s.updateDelay <= 0 {
		s.onUpdate(models)
		return
	}
	time.AfterFunc(s.updateDelay, func() { s.onUpdate(models) })
}
