package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change describes what a configuration reload altered, so callers can react
// without diffing the whole structure themselves. A changed active provider
// means the orchestrator should switch adapters; changed provider settings
// mean that provider's adapter needs rebuilding.
type Change struct {
	// ActiveProviderChanged is true when active_provider differs.
	ActiveProviderChanged bool

	// ChangedProviders lists provider ids whose settings (key, base URL,
	// model, headers) differ, including providers added or removed.
	ChangedProviders []string
}

// Empty reports whether the reload changed nothing the watcher tracks.
func (c Change) Empty() bool {
	return !c.ActiveProviderChanged && len(c.ChangedProviders) == 0
}

// Diff compares two configurations and reports provider-level changes.
func Diff(old, next *Config) Change {
	var ch Change
	if old.ActiveProvider != next.ActiveProvider {
		ch.ActiveProviderChanged = true
	}
	seen := make(map[string]bool)
	for name, prev := range old.Providers {
		seen[name] = true
		cur, ok := next.Providers[name]
		if !ok || !providerEqual(prev, cur) {
			ch.ChangedProviders = append(ch.ChangedProviders, name)
		}
	}
	for name := range next.Providers {
		if !seen[name] {
			ch.ChangedProviders = append(ch.ChangedProviders, name)
		}
	}
	return ch
}

func providerEqual(a, b ProviderConfig) bool {
	if a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Headers) != len(b.Headers) {
		return false
	}
	for k, v := range a.Headers {
		if b.Headers[k] != v {
			return false
		}
	}
	return true
}

// Watcher observes a configuration file and delivers reloaded configurations.
// Rapid editor write bursts are debounced into a single reload.
type Watcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce *debouncer
	last     *Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

const defaultDebounceInterval = 100 * time.Millisecond

// NewWatcher creates a watcher for the configuration file at path. current
// is the configuration the process started with; diffs are computed against
// the most recently delivered configuration.
func NewWatcher(path string, current *Config, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		path:     path,
		logger:   logger.With("component", "config_watcher"),
		watcher:  fw,
		debounce: newDebouncer(defaultDebounceInterval),
		last:     current,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, delivering each successfully reloaded configuration to
// onChange together with the changes since the previous one. Reloads that
// fail to parse or validate are logged and skipped, keeping the last good
// configuration live. Watch returns when the context is cancelled or Stop
// is called.
func (w *Watcher) Watch(ctx context.Context, onChange func(*Config, Change)) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	// Watch the directory, not the file: editors replace files by rename,
	// which drops a direct file watch.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("configuration watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped", "reason", "context cancelled")
			return nil

		case <-w.stopCh:
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}
			w.logger.Debug("configuration file event", "path", event.Name, "op", event.Op.String())
			w.debounce.trigger(func() { w.reload(onChange) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.debounce.stop()
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

func (w *Watcher) reload(onChange func(*Config, Change)) {
	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.logger.Error("configuration reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}

	change := Diff(w.last, cfg)
	w.last = cfg
	if change.Empty() {
		w.logger.Debug("configuration reloaded with no tracked changes")
		return
	}

	w.logger.Info("configuration reloaded",
		"active_provider_changed", change.ActiveProviderChanged,
		"changed_providers", change.ChangedProviders,
	)
	onChange(cfg, change)
}

// debouncer collapses event bursts into one callback after a quiet period.
type debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()
		if cb != nil && !stopped {
			cb()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
