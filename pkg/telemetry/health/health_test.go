package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReadiness_AllHealthy(t *testing.T) {
	c := New(0)
	c.Register("catalog:openai", func(ctx context.Context) error { return nil })
	c.Register("config", func(ctx context.Context) error { return nil })

	status := c.Readiness(context.Background())
	if status.Overall != "ready" {
		t.Errorf("Overall = %q, want ready", status.Overall)
	}
	if len(status.Checks) != 2 {
		t.Errorf("checks = %d, want 2", len(status.Checks))
	}
	for name, result := range status.Checks {
		if result.Status != "ok" {
			t.Errorf("check %q = %+v", name, result)
		}
	}
}

func TestReadiness_DegradedOnFailure(t *testing.T) {
	c := New(0)
	c.Register("good", func(ctx context.Context) error { return nil })
	c.Register("bad", func(ctx context.Context) error { return errors.New("connection refused") })

	status := c.Readiness(context.Background())
	if status.Overall != "degraded" {
		t.Errorf("Overall = %q, want degraded", status.Overall)
	}
	if status.Checks["bad"].Message != "connection refused" {
		t.Errorf("bad check = %+v", status.Checks["bad"])
	}
	if status.Checks["good"].Status != "ok" {
		t.Errorf("good check = %+v", status.Checks["good"])
	}
}

func TestReadiness_NoChecksIsReady(t *testing.T) {
	status := New(0).Readiness(context.Background())
	if status.Overall != "ready" {
		t.Errorf("Overall = %q", status.Overall)
	}
}

func TestReadiness_Timeout(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	status := c.Readiness(context.Background())
	if status.Overall != "degraded" {
		t.Errorf("Overall = %q, want timeout to degrade", status.Overall)
	}
}

func TestUnregister(t *testing.T) {
	c := New(0)
	c.Register("x", func(ctx context.Context) error { return errors.New("boom") })
	c.Unregister("x")

	if status := c.Readiness(context.Background()); status.Overall != "ready" {
		t.Errorf("Overall = %q after unregister", status.Overall)
	}
	if len(c.Names()) != 0 {
		t.Errorf("Names() = %v", c.Names())
	}
}

func TestLivenessHandler(t *testing.T) {
	c := New(0)
	// Liveness ignores component health entirely.
	c.Register("bad", func(ctx context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if status.Overall != "ok" {
		t.Errorf("Overall = %q", status.Overall)
	}
}

func TestReadinessHandler(t *testing.T) {
	c := New(0)
	c.Register("catalog:ollama", func(ctx context.Context) error { return errors.New("never fetched") })

	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if status.Checks["catalog:ollama"].Status != "unhealthy" {
		t.Errorf("checks = %+v", status.Checks)
	}
}

func TestHandlers_RejectNonGet(t *testing.T) {
	c := New(0)
	rec := httptest.NewRecorder()
	c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodPost, "/readyz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}
