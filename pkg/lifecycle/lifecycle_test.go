package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// manualScheduler collects deferred functions so tests can fire them on demand.
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *manualScheduler) schedule(_ time.Duration, f func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, f)
	return func() {}
}

func (s *manualScheduler) fire(t *testing.T) {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		t.Fatal("no retry scheduled")
	}
	f := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()
	f()
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func TestMachine_LoadUnloadRoundTrip(t *testing.T) {
	m := New("test")
	defer m.Close()

	if m.State() != StateUnloaded {
		t.Fatalf("initial state = %s, want unloaded", m.State())
	}

	if err := m.Load(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.State() != StateLoaded {
		t.Errorf("state after load = %s, want loaded", m.State())
	}

	if err := m.Unload(context.Background(), nil); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if m.State() != StateUnloaded {
		t.Errorf("state after unload = %s, want unloaded", m.State())
	}
}

func TestMachine_UnloadOnlyActsWhenLoaded(t *testing.T) {
	m := New("test")
	defer m.Close()

	called := false
	if err := m.Unload(context.Background(), func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("Unload() error = %v", err)
	}
	if called {
		t.Error("unload callback ran while unloaded")
	}
}

func TestMachine_FailedLoadRevertsAndSchedulesOneRetry(t *testing.T) {
	sched := &manualScheduler{}
	m := New("test", WithScheduler(sched.schedule))
	defer m.Close()

	attempts := 0
	load := func(context.Context) error {
		attempts++
		if attempts == 1 {
			return errors.New("provider unavailable")
		}
		return nil
	}

	if err := m.Load(context.Background(), load); err == nil {
		t.Fatal("Load() expected error on first attempt")
	}
	if m.State() != StateUnloaded {
		t.Errorf("state after failed load = %s, want unloaded", m.State())
	}
	if sched.count() != 1 {
		t.Fatalf("scheduled retries = %d, want 1", sched.count())
	}

	sched.fire(t)
	if m.State() != StateLoaded {
		t.Errorf("state after retry = %s, want loaded", m.State())
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestMachine_SetRejectsUnknownState(t *testing.T) {
	m := New("test")
	defer m.Close()

	err := m.Set(State("hibernating"))
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("Set() error = %v, want InvalidStateError", err)
	}
	if m.State() != StateUnloaded {
		t.Errorf("state changed by invalid Set: %s", m.State())
	}
}

func TestMachine_LoadedLoadIsNoOp(t *testing.T) {
	m := New("test")
	defer m.Close()

	if err := m.Load(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	called := false
	if err := m.Load(context.Background(), func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if called {
		t.Error("load callback ran for already loaded machine")
	}
}
