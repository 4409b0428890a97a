// Package lifecycle implements the load/unload state machine shared by every
// provider adapter and by the orchestrator.
//
// The machine moves through unloaded -> loading -> loaded -> unloading ->
// unloaded. A failed load reverts to unloaded and schedules exactly one
// retry after a fixed delay; pending retries are never stacked.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of an adapter or orchestrator.
type State string

// Recognized lifecycle states.
const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateUnloading State = "unloading"
)

// DefaultRetryDelay is how long a failed load waits before its single
// automatic retry.
const DefaultRetryDelay = 60 * time.Second

// InvalidStateError reports an attempt to set an unrecognized state value.
// This is a programming error and is never swallowed.
type InvalidStateError struct {
	// Value is the rejected state value.
	Value string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid lifecycle state %q", e.Value)
}

// TransitionError reports an operation that is not legal in the current state.
type TransitionError struct {
	// Op is the attempted operation ("load", "unload").
	Op string

	// Current is the state the machine was in.
	Current State
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.Current)
}

// Scheduler defers a function by a delay and returns a cancel function.
// The default is time.AfterFunc; tests inject their own to avoid real waits.
type Scheduler func(d time.Duration, f func()) (cancel func())

// Machine is the lifecycle state machine. The zero value is not usable;
// construct with New.
type Machine struct {
	name       string
	retryDelay time.Duration
	schedule   Scheduler
	logger     *slog.Logger

	mu          sync.Mutex
	state       State
	retryCancel func()
}

// Option configures a Machine.
type Option func(*Machine)

// WithRetryDelay overrides the fixed delay before the single load retry.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Machine) { m.retryDelay = d }
}

// WithScheduler overrides the retry scheduler.
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) { m.schedule = s }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// New creates an unloaded machine named for the component that owns it.
func New(name string, opts ...Option) *Machine {
	m := &Machine{
		name:       name,
		state:      StateUnloaded,
		retryDelay: DefaultRetryDelay,
		schedule: func(d time.Duration, f func()) func() {
			t := time.AfterFunc(d, f)
			return func() { t.Stop() }
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loaded reports whether the machine is in the loaded state.
func (m *Machine) Loaded() bool {
	return m.State() == StateLoaded
}

// Set transitions to an explicit state. Unrecognized values fail with an
// InvalidStateError and leave the state unchanged.
func (m *Machine) Set(s State) error {
	switch s {
	case StateUnloaded, StateLoading, StateLoaded, StateUnloading:
	default:
		return &InvalidStateError{Value: string(s)}
	}
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	return nil
}

// Load runs fn through the loading transition. On success the machine is
// loaded. On failure it reverts to unloaded and schedules exactly one retry
// of fn after the retry delay; if a retry is already pending, no second one
// is scheduled.
//
// Loading an already loaded machine is a no-op. A concurrent load returns a
// TransitionError.
func (m *Machine) Load(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	switch m.state {
	case StateLoaded:
		m.mu.Unlock()
		return nil
	case StateLoading, StateUnloading:
		current := m.state
		m.mu.Unlock()
		return &TransitionError{Op: "load", Current: current}
	}
	m.state = StateLoading
	// A load attempt supersedes any pending retry.
	if m.retryCancel != nil {
		m.retryCancel()
		m.retryCancel = nil
	}
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateUnloaded
		m.scheduleRetryLocked(fn)
		m.logger.Warn("load failed, retry scheduled",
			"component", m.name,
			"retry_delay", m.retryDelay,
			"error", err,
		)
		return err
	}
	m.state = StateLoaded
	m.logger.Debug("loaded", "component", m.name)
	return nil
}

// Unload runs fn through the unloading transition. It only acts when the
// machine is currently loaded; any other state is a no-op.
func (m *Machine) Unload(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	if m.state != StateLoaded {
		m.mu.Unlock()
		return nil
	}
	m.state = StateUnloading
	m.mu.Unlock()

	var err error
	if fn != nil {
		err = fn(ctx)
	}

	m.mu.Lock()
	m.state = StateUnloaded
	m.mu.Unlock()
	if err != nil {
		m.logger.Warn("unload callback failed", "component", m.name, "error", err)
	}
	return err
}

// Close cancels any pending load retry.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retryCancel != nil {
		m.retryCancel()
		m.retryCancel = nil
	}
}

// scheduleRetryLocked arms the single retry timer. Callers hold m.mu.
func (m *Machine) scheduleRetryLocked(fn func(context.Context) error) {
	if m.retryCancel != nil {
		// A retry is already pending; never stack a second one.
		return
	}
	cancel := m.schedule(m.retryDelay, func() {
		m.mu.Lock()
		m.retryCancel = nil
		m.mu.Unlock()
		if err := m.Load(context.Background(), fn); err != nil {
			m.logger.Warn("load retry failed", "component", m.name, "error", err)
		}
	})
	m.retryCancel = cancel
}
