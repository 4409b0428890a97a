// Package streaming implements the per-request streaming controller: an
// explicit idle -> open -> accumulating -> {done | error | stopped} state
// machine that owns one network stream, feeds raw chunks to a provider
// accumulator, and guarantees the caller's done/error handlers fire exactly
// once (or not at all after an explicit stop).
package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// State is the controller's stream state.
type State string

// Stream states. Done, error, and stopped are terminal; a controller never
// returns to idle.
const (
	StateIdle         State = "idle"
	StateOpen         State = "open"
	StateAccumulating State = "accumulating"
	StateDone         State = "done"
	StateError        State = "error"
	StateStopped      State = "stopped"
)

// Delta is the incremental result of feeding one chunk to an accumulator.
type Delta struct {
	// Text is the content fragment this chunk contributed, possibly "".
	Text string

	// Done is set when a structured terminal chunk was recognized (for
	// providers whose end-of-stream marker is itself a parseable chunk).
	Done bool
}

// Accumulator is the provider-specific streaming reconstruction state. One
// accumulator instance belongs to exactly one stream; the controller is the
// only goroutine that touches it.
type Accumulator interface {
	// EndOfStream reports whether raw is the provider's terminal sentinel.
	// It runs before Feed so non-JSON sentinels (e.g. "[DONE]") are never
	// parsed as structured data.
	EndOfStream(raw []byte) bool

	// Feed parses one chunk and merges it into the canonical buffer.
	// Content already merged before a failing chunk is retained.
	Feed(raw []byte) (Delta, error)

	// Finalize marks accumulation complete and returns the terminal
	// canonical response.
	Finalize() *chat.ChatCompletionResponse
}

// Handlers receive stream results. Done and Error are mutually exclusive and
// fire exactly once per stream; Chunk may fire any number of times before
// either.
type Handlers struct {
	// Chunk is invoked for each content-bearing delta. Optional.
	Chunk func(delta Delta)

	// Done receives the finalized canonical response.
	Done func(resp *chat.ChatCompletionResponse)

	// Error receives the normalized terminal error.
	Error func(err *chat.NormalizedError)
}

// Controller owns one streaming request from open to termination. It is
// created per stream and never reused; the owning adapter must stop it
// before opening another.
type Controller struct {
	id       string
	acc      Accumulator
	handlers Handlers
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	stopped  bool
	finished bool
	stream   transport.Stream
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewController creates an idle controller around a provider accumulator.
func NewController(acc Accumulator, handlers Handlers) *Controller {
	return &Controller{
		id:       uuid.NewString(),
		acc:      acc,
		handlers: handlers,
		logger:   slog.Default().With("component", "streaming"),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// ID returns the stream's correlation id.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current stream state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the stream has terminated (done, error, or stopped).
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Terminated reports whether the stream has reached a terminal state.
func (c *Controller) Terminated() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Run opens the stream and consumes it until termination. The open happens
// synchronously so transport-level rejections surface as the returned error
// (already delivered to handlers.Error); chunk consumption continues in a
// background goroutine.
func (c *Controller) Run(ctx context.Context, streamer transport.Streamer, req *transport.Request) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		cancel()
		return errors.New("streaming controller already used")
	}
	c.cancel = cancel
	c.mu.Unlock()

	stream, err := streamer.Open(ctx, req)
	if err != nil {
		cancel()
		ne := normalizeOpenError(err)
		c.emitError(ne)
		return ne
	}

	c.mu.Lock()
	if c.stopped {
		// Stopped while the connection was being established.
		c.mu.Unlock()
		stream.Close()
		cancel()
		return nil
	}
	c.stream = stream
	c.state = StateOpen
	c.mu.Unlock()

	c.logger.Debug("stream opened", "stream_id", c.id, "url", req.URL)

	go c.consume(ctx)
	return nil
}

// consume is the single chunk loop; it is the only goroutine that mutates
// the accumulator, so the canonical buffer needs no further locking.
func (c *Controller) consume(ctx context.Context) {
	for {
		raw, err := c.stream.Recv()
		if err != nil {
			if err == io.EOF {
				// Some providers close the connection without a sentinel.
				c.emitDone(c.acc.Finalize())
				return
			}
			if c.isStopped() || ctx.Err() != nil {
				c.release()
				return
			}
			c.emitError(chat.Normalize(err))
			return
		}

		if c.isStopped() {
			c.release()
			return
		}

		if c.acc.EndOfStream(raw) {
			c.emitDone(c.acc.Finalize())
			return
		}

		delta, err := c.acc.Feed(raw)
		if err != nil {
			// Partial content already merged stays in the buffer; it is
			// simply never delivered as a final success.
			c.emitError(chat.Normalize(err))
			return
		}

		c.mu.Lock()
		c.state = StateAccumulating
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			c.release()
			return
		}

		if delta.Done {
			c.emitDone(c.acc.Finalize())
			return
		}
		if c.handlers.Chunk != nil && delta.Text != "" {
			c.handlers.Chunk(delta)
		}
	}
}

// Stop cancels the stream and releases the buffer. Handlers already queued
// for this controller are suppressed: after Stop returns, neither Done nor
// Error will fire.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped || c.finished {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	stream := c.stream
	cancel := c.cancel
	c.state = StateStopped
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Close()
	}
	c.closeDone()
	c.logger.Debug("stream stopped", "stream_id", c.id)
}

// emitDone delivers the terminal response exactly once.
func (c *Controller) emitDone(resp *chat.ChatCompletionResponse) {
	c.mu.Lock()
	if c.finished || c.stopped {
		c.mu.Unlock()
		c.release()
		return
	}
	c.finished = true
	c.state = StateDone
	c.mu.Unlock()

	c.release()
	if c.handlers.Done != nil {
		c.handlers.Done(resp)
	}
	c.closeDone()
}

// emitError delivers the terminal error exactly once and force-closes the
// stream.
func (c *Controller) emitError(ne *chat.NormalizedError) {
	c.mu.Lock()
	if c.finished || c.stopped {
		c.mu.Unlock()
		c.release()
		return
	}
	c.finished = true
	c.state = StateError
	c.mu.Unlock()

	c.release()
	if c.handlers.Error != nil {
		c.handlers.Error(ne)
	}
	c.closeDone()
}

func (c *Controller) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// release closes the network stream and cancels the request context.
func (c *Controller) release() {
	c.mu.Lock()
	stream := c.stream
	cancel := c.cancel
	c.stream = nil
	c.cancel = nil
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) closeDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// normalizeOpenError attaches the HTTP status when the stream was rejected
// with an error payload before any chunk arrived.
func normalizeOpenError(err error) *chat.NormalizedError {
	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		var payload interface{}
		if jsonErr := json.Unmarshal([]byte(statusErr.Body), &payload); jsonErr == nil {
			return chat.NormalizeWithStatus(payload, statusErr.Status)
		}
		return chat.NormalizeWithStatus(statusErr.Body, statusErr.Status)
	}
	return chat.Normalize(err)
}
