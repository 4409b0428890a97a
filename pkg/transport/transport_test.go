package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_DoReturnsErrorStatusResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Timeout: 2 * time.Second})
	defer client.Close()

	resp, err := client.Do(context.Background(), &Request{URL: server.URL, Method: http.MethodPost, Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Do() error = %v, want response with error status", err)
	}
	if resp.Status() != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.Status())
	}
	if !strings.Contains(resp.Text(), "bad key") {
		t.Errorf("body = %q, want provider error payload", resp.Text())
	}
}

func TestClient_DoRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{Timeout: 10 * time.Second, MaxRetries: 2})
	defer client.Close()

	resp, err := client.Do(context.Background(), &Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if resp.Status() != http.StatusOK {
		t.Errorf("status = %d, want 200 after retry", resp.Status())
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_OpenSSEFraming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": comment to skip\n\n")
		fmt.Fprint(w, "event: message\ndata: {\"a\":1}\n\n")
		fmt.Fprint(w, "data: line one\ndata: line two\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	client := NewClient(ClientConfig{})
	defer client.Close()

	stream, err := client.Open(context.Background(), &Request{URL: server.URL, Method: http.MethodPost, Body: []byte(`{}`)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	want := []string{`{"a":1}`, "line one\nline two", "[DONE]"}
	for i, expected := range want {
		chunk, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv() #%d error = %v", i, err)
		}
		if string(chunk) != expected {
			t.Errorf("chunk #%d = %q, want %q", i, chunk, expected)
		}
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("Recv() after end = %v, want io.EOF", err)
	}
}

func TestClient_OpenLineFraming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{\"done\":false}\n\n{\"done\":true}\n")
	}))
	defer server.Close()

	client := NewClient(ClientConfig{})
	defer client.Close()

	stream, err := client.Open(context.Background(), &Request{URL: server.URL, Framing: FramingLines})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stream.Close()

	first, err := stream.Recv()
	if err != nil || string(first) != `{"done":false}` {
		t.Fatalf("first chunk = %q, %v", first, err)
	}
	second, err := stream.Recv()
	if err != nil || string(second) != `{"done":true}` {
		t.Fatalf("second chunk = %q, %v", second, err)
	}
	if _, err := stream.Recv(); err != io.EOF {
		t.Errorf("Recv() after end = %v, want io.EOF", err)
	}
}

func TestClient_OpenRejectedStreamCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{})
	defer client.Close()

	_, err := client.Open(context.Background(), &Request{URL: server.URL})
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("Open() error = %T, want *StatusError", err)
	}
	if statusErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", statusErr.Status)
	}
	if !strings.Contains(statusErr.Body, "slow down") {
		t.Errorf("body = %q, want provider payload", statusErr.Body)
	}
}
