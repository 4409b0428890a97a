// Package transport defines the HTTP collaborator contract the translation
// layer depends on, together with the default net/http implementation and the
// stream framing readers (SSE and NDJSON).
//
// The core packages never open sockets directly; they build a Request and
// hand it to a Transport or Streamer. Tests substitute in-memory fakes.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
)

// Framing selects how a streaming response body is split into raw chunks.
type Framing string

const (
	// FramingSSE splits the body into Server-Sent Events data payloads.
	FramingSSE Framing = "sse"

	// FramingLines splits the body into newline-delimited JSON chunks.
	FramingLines Framing = "lines"
)

// Request is the wire request a translator produces: everything a transport
// needs to perform one provider call.
type Request struct {
	// URL is the absolute endpoint URL.
	URL string

	// Method is the HTTP method (GET, POST).
	Method string

	// Headers are the request headers, including any authorization header
	// built by the adapter.
	Headers map[string]string

	// Body is the serialized request payload, nil for body-less requests.
	Body []byte

	// Framing selects the chunk framing when the request is streamed.
	// Defaults to FramingSSE.
	Framing Framing
}

// Response is the buffered provider response handed back to translators.
type Response interface {
	// JSON decodes the response body into v.
	JSON(v interface{}) error

	// Text returns the raw response body.
	Text() string

	// Status returns the HTTP status code.
	Status() int

	// Header returns the named response header ("" when absent).
	Header(name string) string
}

// Transport performs one buffered request/response exchange.
// Implementations must return a Response for any HTTP status; they only
// error when no response could be obtained at all (network failure,
// cancellation).
type Transport interface {
	Do(ctx context.Context, req *Request) (Response, error)
}

// Stream is one open streaming response. Recv returns raw chunk payloads in
// arrival order and io.EOF when the connection ends.
type Stream interface {
	Recv() ([]byte, error)
	Close() error
}

// Streamer opens a streaming exchange.
type Streamer interface {
	Open(ctx context.Context, req *Request) (Stream, error)
}

// bufferedResponse is the standard Response implementation.
type bufferedResponse struct {
	status int
	header http.Header
	body   []byte
}

// NewResponse wraps an already-read response body. Exposed for tests and
// in-memory transports.
func NewResponse(status int, header http.Header, body []byte) Response {
	return &bufferedResponse{status: status, header: header, body: body}
}

func (r *bufferedResponse) JSON(v interface{}) error {
	return json.Unmarshal(r.body, v)
}

func (r *bufferedResponse) Text() string {
	return string(r.body)
}

func (r *bufferedResponse) Status() int {
	return r.status
}

func (r *bufferedResponse) Header(name string) string {
	if r.header == nil {
		return ""
	}
	return r.header.Get(name)
}
