// Package testutil provides a configurable mock provider server and wire
// payload builders for exercising adapters end to end over real HTTP.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockServer simulates a provider API: buffered responses, SSE streams,
// and NDJSON line streams, with request capture for assertions.
type MockServer struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]MockResponse
	requests  []CapturedRequest
}

// MockResponse configures the reply for one path.
type MockResponse struct {
	StatusCode int
	Body       interface{}
	Headers    map[string]string
	Delay      time.Duration

	// StreamChunks, when set, turns the response into a stream. SSE
	// framing wraps each chunk in a data: line; line framing writes raw
	// newline-terminated lines.
	StreamChunks []string

	// LineFraming selects NDJSON line streaming instead of SSE.
	LineFraming bool

	// Sentinel, when non-empty, is sent as a final data: line after the
	// chunks (e.g. "[DONE]"). Ignored with line framing.
	Sentinel string
}

// CapturedRequest records one request the server received.
type CapturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// NewMockServer starts the server. Callers must Close it.
func NewMockServer() *MockServer {
	ms := &MockServer{responses: make(map[string]MockResponse)}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the server's base URL.
func (ms *MockServer) URL() string { return ms.server.URL }

// Close shuts the server down.
func (ms *MockServer) Close() { ms.server.Close() }

// SetResponse configures the reply for a path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// Requests returns a copy of every captured request.
func (ms *MockServer) Requests() []CapturedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	out := make([]CapturedRequest, len(ms.requests))
	copy(out, ms.requests)
	return out
}

// LastRequest returns the most recent captured request, or nil.
func (ms *MockServer) LastRequest() *CapturedRequest {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.requests) == 0 {
		return nil
	}
	req := ms.requests[len(ms.requests)-1]
	return &req
}

// RequestCount returns the number of requests received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.requests)
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.requests = append(ms.requests, CapturedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		time.Sleep(response.Delay)
	}
	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamChunks) > 0 {
		if response.LineFraming {
			ms.streamLines(w, response)
		} else {
			ms.streamSSE(w, response)
		}
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (ms *MockServer) streamSSE(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, chunk := range response.StreamChunks {
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()
	}
	if response.Sentinel != "" {
		fmt.Fprintf(w, "data: %s\n\n", response.Sentinel)
		flusher.Flush()
	}
}

func (ms *MockServer) streamLines(w http.ResponseWriter, response MockResponse) {
	w.Header().Set("Content-Type", "application/x-ndjson")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, chunk := range response.StreamChunks {
		fmt.Fprintf(w, "%s\n", chunk)
		flusher.Flush()
	}
}
