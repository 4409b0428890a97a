package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/adapters"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/catalog"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/lifecycle"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/streaming"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

// stubTranslator turns every completion into a fixed canonical response.
type stubTranslator struct{}

func (stubTranslator) TranslateRequest(req *chat.ChatRequest, stream bool) (*transport.Request, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &transport.Request{URL: "http://stub/chat", Method: "POST", Body: body}, nil
}

func (stubTranslator) TranslateResponse(resp transport.Response) (*chat.ChatCompletionResponse, error) {
	var out chat.ChatCompletionResponse
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (stubTranslator) NewAccumulator() streaming.Accumulator { return nil }

type stubTransport struct {
	body   []byte
	status int
}

func (s *stubTransport) Do(ctx context.Context, req *transport.Request) (transport.Response, error) {
	status := s.status
	if status == 0 {
		status = 200
	}
	return transport.NewResponse(status, nil, s.body), nil
}

func stubAdapter(id string, body []byte) *adapters.Adapter {
	return adapters.NewAdapter(
		adapters.ProviderConfig{ID: id, Endpoint: "http://stub/chat", DefaultModel: "stub-model", Auth: adapters.AuthNone},
		adapters.Settings{Provider: id},
		adapters.Deps{
			Translator: stubTranslator{},
			Transport:  &stubTransport{body: body},
			LifecycleOptions: []lifecycle.Option{
				// Retries never fire in these tests.
				lifecycle.WithScheduler(func(d time.Duration, f func()) func() {
					return func() {}
				}),
			},
		},
	)
}

func okBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(&chat.ChatCompletionResponse{
		Choices: []chat.Choice{{Message: chat.ChatMessage{Role: chat.RoleAssistant, Content: chat.Text(content)}, FinishReason: chat.FinishReasonStop}},
		Usage:   chat.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func userReq(text string) *chat.ChatRequest {
	return &chat.ChatRequest{Messages: []chat.ChatMessage{{Role: chat.RoleUser, Content: chat.Text(text)}}}
}

func TestOrchestrator_CompleteRoutesToCurrent(t *testing.T) {
	o := New()
	o.Register(stubAdapter("alpha", okBody(t, "from alpha")), nil)
	o.Register(stubAdapter("beta", okBody(t, "from beta")), nil)

	resp, err := o.Complete(context.Background(), userReq("hi"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.FirstContent() != "from alpha" {
		t.Errorf("content = %q, want first registered provider", resp.FirstContent())
	}

	if err := o.SetProvider(context.Background(), "beta"); err != nil {
		t.Fatalf("SetProvider() error = %v", err)
	}
	resp, err = o.Complete(context.Background(), userReq("hi"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.FirstContent() != "from beta" {
		t.Errorf("content = %q", resp.FirstContent())
	}
}

func TestOrchestrator_UnknownConfiguredFallsBack(t *testing.T) {
	o := New()
	o.Register(stubAdapter("alpha", okBody(t, "fallback")), nil)
	o.SetConfigured("deleted-provider")

	resp, err := o.Complete(context.Background(), userReq("hi"))
	if err != nil {
		t.Fatalf("Complete() error = %v, want fallback to first adapter", err)
	}
	if resp.FirstContent() != "fallback" {
		t.Errorf("content = %q", resp.FirstContent())
	}
}

func TestOrchestrator_SetProviderRejectsUnknown(t *testing.T) {
	o := New()
	o.Register(stubAdapter("alpha", okBody(t, "x")), nil)

	err := o.SetProvider(context.Background(), "nope")
	var unknown *adapters.UnknownProviderError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownProviderError", err)
	}
	if o.Current() != "alpha" {
		t.Errorf("current = %q, want unchanged", o.Current())
	}
}

func TestOrchestrator_CompleteRejectsErrorResponses(t *testing.T) {
	errBody, _ := json.Marshal(&chat.ChatCompletionResponse{
		Error: chat.NormalizeWithStatus(map[string]interface{}{"message": "quota exceeded"}, 429),
	})
	o := New()
	o.Register(stubAdapter("alpha", errBody), nil)

	resp, err := o.Complete(context.Background(), userReq("hi"))
	if err == nil {
		t.Fatal("Complete() error = nil, want provider error surfaced")
	}
	var ne *chat.NormalizedError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %T", err)
	}
	if ne.Message != "quota exceeded" || ne.HTTPStatus != 429 {
		t.Errorf("normalized = %+v", ne)
	}
	if resp == nil || resp.Error == nil {
		t.Error("response carrying the error payload should still be returned")
	}
}

func TestOrchestrator_NoAdapters(t *testing.T) {
	o := New()
	if _, err := o.Complete(context.Background(), userReq("hi")); err == nil {
		t.Fatal("Complete() with no adapters succeeded")
	}
}

func TestOrchestrator_CountTokens(t *testing.T) {
	o := New()
	if n := o.CountTokens(userReq("a reasonably sized message")); n <= 0 {
		t.Errorf("CountTokens = %d, want positive estimate", n)
	}
	if n := o.CountText("12345678"); n != 2 {
		t.Errorf("CountText = %d, want 2", n)
	}
}

func TestOrchestrator_ModelsViaCatalog(t *testing.T) {
	o := New()
	var fetches int
	cat := catalog.New("alpha", func(ctx context.Context) ([]chat.ModelInfo, error) {
		fetches++
		return []chat.ModelInfo{{ID: "zeta", Name: "Zeta"}, {ID: "alef", Name: "Alef"}}, nil
	})
	o.Register(stubAdapter("alpha", okBody(t, "x")), cat)

	if _, err := o.Models(context.Background(), "", false); err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if _, err := o.Models(context.Background(), "", false); err != nil {
		t.Fatal(err)
	}
	if fetches != 1 {
		t.Errorf("fetches = %d, want cached second call", fetches)
	}

	if _, err := o.Models(context.Background(), "", true); err != nil {
		t.Fatal(err)
	}
	if fetches != 2 {
		t.Errorf("fetches = %d, want refresh to bypass cache", fetches)
	}

	opts, err := o.ModelOptions(context.Background(), "")
	if err != nil {
		t.Fatalf("ModelOptions() error = %v", err)
	}
	if len(opts) != 2 || opts[0].Name != "Alef" {
		t.Errorf("options = %+v, want sorted by name", opts)
	}
}
