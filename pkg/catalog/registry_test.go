package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/chat"
	"github.com/GoBeromsu/obsidian-smart-connections-sub001/pkg/transport"
)

type scriptedTransport struct {
	responses []transport.Response
	errs      []error
	calls     int
}

func (s *scriptedTransport) Do(ctx context.Context, req *transport.Request) (transport.Response, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	if s.errs != nil && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.responses[i], nil
}

func TestRegistry_EnrichFillsGapsOnly(t *testing.T) {
	doc := `{"m1":{"name":"Registry Name","context_window":128000,"multimodal":true,"input_cost":2.5}}`
	tr := &scriptedTransport{responses: []transport.Response{transport.NewResponse(200, nil, []byte(doc))}}
	reg := NewRegistry("http://registry/models.json", tr, nil)

	models := reg.Enrich(context.Background(), []chat.ModelInfo{
		{ID: "m1", Name: "Provider Name", ContextWindow: 64000},
		{ID: "unknown", Name: "Other"},
	})

	if models[0].Name != "Provider Name" {
		t.Errorf("identity field overwritten: name = %q", models[0].Name)
	}
	if models[0].ContextWindow != 64000 {
		t.Errorf("non-zero field overwritten: context = %d", models[0].ContextWindow)
	}
	if !models[0].Multimodal || models[0].InputCost != 2.5 {
		t.Errorf("gaps not filled: %+v", models[0])
	}
	if models[1].ContextWindow != 0 {
		t.Errorf("unknown model gained metadata: %+v", models[1])
	}
}

func TestRegistry_StaleOnFailure(t *testing.T) {
	clock := newFakeClock()
	doc := `{"m1":{"context_window":100000}}`
	tr := &scriptedTransport{
		responses: []transport.Response{
			transport.NewResponse(200, nil, []byte(doc)),
			nil,
		},
		errs: []error{nil, errors.New("registry down")},
	}
	reg := NewRegistry("http://registry/models.json", tr, nil, WithRegistryClock(clock.Now))

	first := reg.Enrich(context.Background(), []chat.ModelInfo{{ID: "m1"}})
	if first[0].ContextWindow != 100000 {
		t.Fatalf("initial enrichment failed: %+v", first[0])
	}

	clock.Advance(DefaultTTL + time.Minute)
	second := reg.Enrich(context.Background(), []chat.ModelInfo{{ID: "m1"}})
	if second[0].ContextWindow != 100000 {
		t.Errorf("stale metadata not served after fetch failure: %+v", second[0])
	}
}

func TestRegistry_SeedServesUntilFirstFetch(t *testing.T) {
	tr := &scriptedTransport{
		responses: []transport.Response{nil},
		errs:      []error{errors.New("registry down")},
	}
	seed := map[string]chat.ModelInfo{"m1": {ID: "m1", ContextWindow: 8192}}
	reg := NewRegistry("http://registry/models.json", tr, seed)

	models := reg.Enrich(context.Background(), []chat.ModelInfo{{ID: "m1"}})
	if models[0].ContextWindow != 8192 {
		t.Errorf("seed metadata not applied: %+v", models[0])
	}
}

func TestRegistry_SeedReturnsAllEntriesSorted(t *testing.T) {
	doc := `{"m2":{"name":"B","context_window":2},"m1":{"name":"A","context_window":1}}`
	tr := &scriptedTransport{responses: []transport.Response{transport.NewResponse(200, nil, []byte(doc))}}
	reg := NewRegistry("http://registry/models.json", tr, nil)

	models := reg.Seed(context.Background())
	if len(models) != 2 {
		t.Fatalf("Seed() returned %d models, want 2", len(models))
	}
	if models[0].ID != "m1" || models[1].ID != "m2" {
		t.Errorf("Seed() order = [%s %s], want [m1 m2]", models[0].ID, models[1].ID)
	}
}

func TestRegistry_NoURLIsPassThrough(t *testing.T) {
	reg := NewRegistry("", nil, map[string]chat.ModelInfo{"m1": {ContextWindow: 4096}})
	models := reg.Enrich(context.Background(), []chat.ModelInfo{{ID: "m1"}})
	if models[0].ContextWindow != 4096 {
		t.Errorf("seed-only registry should still enrich: %+v", models[0])
	}
}
