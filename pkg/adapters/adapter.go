package adapters

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/lifecycle"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// Adapter binds a provider translator to a transport and a load lifecycle.
// One Adapter serves one configured provider and holds at most one live
// stream at a time.
type Adapter struct {
	cfg        ProviderConfig
	settings   Settings
	translator Translator
	transport  transport.Transport
	streamer   transport.Streamer
	life       *lifecycle.Machine
	logger     *slog.Logger

	mu     sync.Mutex
	active *streaming.Controller
}

// Deps are the collaborators an Adapter needs.
type Deps struct {
	// Translator is the provider wire dialect.
	Translator Translator

	// Transport performs buffered exchanges.
	Transport transport.Transport

	// Streamer opens streaming exchanges. Usually the same object as
	// Transport.
	Streamer transport.Streamer

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// LifecycleOptions tune the load state machine (tests inject schedulers).
	LifecycleOptions []lifecycle.Option
}

// NewAdapter creates an unloaded adapter for a resolved provider config.
func NewAdapter(cfg ProviderConfig, settings Settings, deps Deps) *Adapter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", cfg.ID)

	lifeOpts := append([]lifecycle.Option{lifecycle.WithLogger(logger)}, deps.LifecycleOptions...)
	return &Adapter{
		cfg:        cfg,
		settings:   settings,
		translator: deps.Translator,
		transport:  deps.Transport,
		streamer:   deps.Streamer,
		life:       lifecycle.New(cfg.ID, lifeOpts...),
		logger:     logger,
	}
}

// Provider returns the provider id.
func (a *Adapter) Provider() string {
	return a.cfg.ID
}

// Config returns the resolved provider config.
func (a *Adapter) Config() ProviderConfig {
	return a.cfg
}

// DefaultModel returns the model used when a request names none.
func (a *Adapter) DefaultModel() string {
	return a.cfg.DefaultModel
}

// Lifecycle exposes the load state machine.
func (a *Adapter) Lifecycle() *lifecycle.Machine {
	return a.life
}

// Load transitions the adapter to loaded. Loading verifies the provider is
// reachable by listing its models when it has a catalog endpoint; providers
// without one load unconditionally.
func (a *Adapter) Load(ctx context.Context) error {
	return a.life.Load(ctx, func(ctx context.Context) error {
		if _, ok := a.translator.(ModelLister); !ok {
			return nil
		}
		_, err := a.ListModels(ctx)
		return err
	})
}

// Unload stops any live stream and transitions the adapter to unloaded.
func (a *Adapter) Unload(ctx context.Context) error {
	return a.life.Unload(ctx, func(context.Context) error {
		a.StopStream()
		return nil
	})
}

// Close releases the lifecycle machine and any live stream.
func (a *Adapter) Close() {
	a.StopStream()
	a.life.Close()
}

// Complete performs one buffered chat completion. Provider error payloads
// come back as a canonical response whose Error field is set; a non-nil
// error means no interpretable response was obtained.
func (a *Adapter) Complete(ctx context.Context, req *chat.ChatRequest) (*chat.ChatCompletionResponse, error) {
	prepared, err := a.prepare(req, false)
	if err != nil {
		return nil, err
	}

	wireReq, err := a.translator.TranslateRequest(prepared, false)
	if err != nil {
		return nil, err
	}

	resp, err := a.transport.Do(ctx, wireReq)
	if err != nil {
		return nil, err
	}
	return a.translator.TranslateResponse(resp)
}

// Stream opens a streaming chat completion and returns its controller. An
// adapter holds at most one live stream: while one is active, Stream returns
// a StreamActiveError and the caller must StopStream first.
func (a *Adapter) Stream(ctx context.Context, req *chat.ChatRequest, handlers streaming.Handlers) (*streaming.Controller, error) {
	prepared, err := a.prepare(req, true)
	if err != nil {
		return nil, err
	}

	wireReq, err := a.translator.TranslateRequest(prepared, true)
	if err != nil {
		return nil, err
	}
	if wireReq.Framing == "" {
		wireReq.Framing = a.cfg.Framing
	}

	acc := a.translator.NewAccumulator()
	var ctrl *streaming.Controller
	ctrl = streaming.NewController(acc, streaming.Handlers{
		Chunk: handlers.Chunk,
		Done: func(resp *chat.ChatCompletionResponse) {
			a.clearActive(ctrl)
			if handlers.Done != nil {
				handlers.Done(resp)
			}
		},
		Error: func(ne *chat.NormalizedError) {
			a.clearActive(ctrl)
			if handlers.Error != nil {
				handlers.Error(ne)
			}
		},
	})

	a.mu.Lock()
	if a.active != nil && !a.active.Terminated() {
		a.mu.Unlock()
		return nil, &StreamActiveError{Provider: a.cfg.ID}
	}
	a.active = ctrl
	a.mu.Unlock()

	if err := ctrl.Run(ctx, a.streamer, wireReq); err != nil {
		a.clearActive(ctrl)
		return nil, err
	}
	return ctrl, nil
}

// StopStream stops the live stream, if any.
func (a *Adapter) StopStream() {
	a.mu.Lock()
	ctrl := a.active
	a.active = nil
	a.mu.Unlock()

	if ctrl != nil {
		ctrl.Stop()
	}
}

// ActiveStream returns the live stream's controller, nil when idle.
func (a *Adapter) ActiveStream() *streaming.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Adapter) clearActive(ctrl *streaming.Controller) {
	a.mu.Lock()
	if a.active == ctrl {
		a.active = nil
	}
	a.mu.Unlock()
}

// ListModels fetches the provider's model list, untranslated by any cache.
func (a *Adapter) ListModels(ctx context.Context) ([]chat.ModelInfo, error) {
	lister, ok := a.translator.(ModelLister)
	if !ok {
		return nil, &CapabilityError{Provider: a.cfg.ID, Capability: "model listing"}
	}

	wireReq, err := lister.ModelsRequest()
	if err != nil {
		return nil, err
	}
	resp, err := a.transport.Do(ctx, wireReq)
	if err != nil {
		return nil, err
	}
	return lister.TranslateModels(resp)
}

// TestCredentials verifies the configured key by listing models. Success
// returns the models so callers can reuse the round trip; failure returns
// the normalized provider error.
func (a *Adapter) TestCredentials(ctx context.Context) ([]chat.ModelInfo, error) {
	models, err := a.ListModels(ctx)
	if err != nil {
		var capErr *CapabilityError
		if errors.As(err, &capErr) {
			// No catalog endpoint to probe; a no-op request would prove
			// nothing, so report untestable as success with no models.
			a.logger.Debug("credential test skipped, provider has no models endpoint")
			return nil, nil
		}
		return nil, err
	}
	return models, nil
}

// prepare validates the request and fills in the default model on a copy,
// leaving the caller's request untouched.
func (a *Adapter) prepare(req *chat.ChatRequest, streaming bool) (*chat.ChatRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prepared := *req
	prepared.Stream = streaming
	if prepared.Model == "" {
		prepared.Model = a.cfg.DefaultModel
		a.logger.Debug("request named no model, using default", "model", prepared.Model)
	}

	if !a.cfg.Multimodal {
		for _, msg := range prepared.Messages {
			if msg.Content.HasImages() {
				return nil, &CapabilityError{Provider: a.cfg.ID, Capability: "image content"}
			}
		}
	}
	return &prepared, nil
}
