package dispatcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ferro-labs/model-gateway/internal/alias"
	"github.com/ferro-labs/model-gateway/internal/health"
	"github.com/ferro-labs/model-gateway/internal/pool"
	"github.com/ferro-labs/model-gateway/internal/router"
	"github.com/ferro-labs/model-gateway/internal/weight"
	"github.com/ferro-labs/model-gateway/providers"
)

type mockProvider struct {
	name  string
	resp  *providers.Response
	err   error
	calls int
}

func (m *mockProvider) Name() string             { return m.name }
func (m *mockProvider) SupportedModels() []string { return []string{"m1", "m2"} }
func (m *mockProvider) SupportsModel(string) bool { return true }
func (m *mockProvider) Models() []providers.ModelInfo { return nil }
func (m *mockProvider) Complete(_ context.Context, _ providers.Request) (*providers.Response, error) {
	m.calls++
	return m.resp, m.err
}

func newFixture(a, b *mockProvider) *Dispatcher {
	reg := map[string]bool{"a": true, "b": true}
	isReg := func(p string) bool { return reg[p] }

	aliases := alias.New(alias.Config{
		"balanced": {
			{Provider: "a", ModelID: "m1", Priority: 1},
			{Provider: "b", ModelID: "m2", Priority: 2},
		},
	}, isReg, nil)

	weights := weight.New(weight.Config{})
	weights.Register("a", 1.0)
	weights.Register("b", 1.0)

	healthMon := health.New(health.Config{})
	healthMon.Register("a", nil)
	healthMon.Register("b", nil)

	pools := pool.NewRegistry()
	pools.Register("a", 10)
	pools.Register("b", 10)

	r := &router.Router{Aliases: aliases, Weights: weights, Health: healthMon, Pools: pools}

	lookup := func(name string) (providers.Provider, bool) {
		switch name {
		case "a":
			return a, true
		case "b":
			return b, true
		}
		return nil, false
	}

	return New(Config{FallbackEnabled: true}, r, lookup, pools, healthMon, weights, nil, nil)
}

func baseReq() providers.Request {
	return providers.Request{Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}}}
}

func TestDispatch_FirstCandidateSucceeds(t *testing.T) {
	a := &mockProvider{name: "a", resp: &providers.Response{ID: "a-ok", Choices: []providers.Choice{{Message: providers.Message{Content: "hello"}}}}}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok"}}
	d := newFixture(a, b)

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.ProviderName != "a" {
		t.Fatalf("expected provider a to win (lower EMA cost tie, higher priority), got %s", res.ProviderName)
	}
	if b.calls != 0 {
		t.Errorf("provider b should not have been called, got %d calls", b.calls)
	}
}

func TestDispatch_FallsBackOnError(t *testing.T) {
	a := &mockProvider{name: "a", err: fmt.Errorf("connection refused")}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok", Choices: []providers.Choice{{Message: providers.Message{Content: "recovered"}}}}}
	d := newFixture(a, b)

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.ProviderName != "b" {
		t.Fatalf("expected fallback to provider b, got %s", res.ProviderName)
	}
	if res.FallbackDepth != 1 {
		t.Errorf("expected fallback depth 1, got %d", res.FallbackDepth)
	}
}

func TestDispatch_FallbackDisabledReturnsFirstError(t *testing.T) {
	a := &mockProvider{name: "a", err: fmt.Errorf("down")}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok"}}

	d := newFixture(a, b)
	d.cfg.FallbackEnabled = false

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.Error == "" {
		t.Fatal("expected an error result")
	}
	if res.ProviderName != "a" {
		t.Fatalf("expected result to be attributed to a, got %s", res.ProviderName)
	}
	if b.calls != 0 {
		t.Errorf("provider b should not be attempted with fallback disabled, got %d calls", b.calls)
	}
}

func TestDispatch_AllCandidatesFailSynthesizesGatewayFailure(t *testing.T) {
	a := &mockProvider{name: "a", err: fmt.Errorf("down")}
	b := &mockProvider{name: "b", err: fmt.Errorf("also down")}
	d := newFixture(a, b)

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.ProviderName != "gateway" {
		t.Fatalf("expected synthesized gateway failure, got provider=%s", res.ProviderName)
	}
	if res.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestDispatch_NoCandidatesReturnsGatewayFailure(t *testing.T) {
	a := &mockProvider{name: "a", resp: &providers.Response{ID: "ok"}}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "ok"}}
	d := newFixture(a, b)
	d.Router.Aliases = alias.New(alias.Config{}, func(string) bool { return true }, nil)
	// The empty selector routes to "balanced", which is set to an empty list,
	// and no other resolution rule matches.
	d.Router.Aliases.Set("balanced", nil)

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.ProviderName != "gateway" {
		t.Fatalf("expected gateway-level failure when no candidates resolve, got %+v", res)
	}
}

func TestDispatch_SkipsUnavailableProvider(t *testing.T) {
	a := &mockProvider{name: "a", resp: &providers.Response{ID: "a-ok"}}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok", Choices: []providers.Choice{{Message: providers.Message{Content: "from b"}}}}}
	d := newFixture(a, b)

	for i := 0; i < 6; i++ {
		d.Health.ReportOutcome("a", 0, context.DeadlineExceeded, providers.ErrorKindTimeout)
	}

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.ProviderName != "b" {
		t.Fatalf("expected unavailable provider a to be skipped in favor of b, got %s", res.ProviderName)
	}
	if a.calls != 0 {
		t.Errorf("unavailable provider a should never be called, got %d calls", a.calls)
	}
}

func TestDispatch_StructuredOutputValidationFailureFallsBack(t *testing.T) {
	a := &mockProvider{name: "a", resp: &providers.Response{ID: "a-ok", Choices: []providers.Choice{{Message: providers.Message{Content: "not json"}}}}}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok", Choices: []providers.Choice{{Message: providers.Message{Content: `{"answer":"42"}`}}}}}
	d := newFixture(a, b)

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateStructuredOutput, []string{"answer"})
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.ProviderName != "b" {
		t.Fatalf("expected fallback past malformed structured output to b, got %s", res.ProviderName)
	}
}

func TestDispatch_SkipsCandidateLackingStructuredOutputCapability(t *testing.T) {
	a := &mockProvider{name: "a", resp: &providers.Response{ID: "a-ok", Choices: []providers.Choice{{Message: providers.Message{Content: `{"answer":"1"}`}}}}}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok", Choices: []providers.Choice{{Message: providers.Message{Content: `{"answer":"2"}`}}}}}
	d := newFixture(a, b)
	d.Capabilities = func(provider, model string) bool {
		return provider != "a"
	}

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateStructuredOutput, []string{"answer"})
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.ProviderName != "b" {
		t.Fatalf("expected provider a to be skipped for lacking structured_output, got %s", res.ProviderName)
	}
	if a.calls != 0 {
		t.Errorf("provider a should never have been called, got %d calls", a.calls)
	}
}

func TestDispatch_ReportsOutcomeToWeightManager(t *testing.T) {
	a := &mockProvider{name: "a", resp: &providers.Response{ID: "a-ok"}}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok"}}
	d := newFixture(a, b)

	d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)

	snap, ok := d.Weights.Snapshot("a")
	if !ok {
		t.Fatal("expected provider a to be registered in weight manager")
	}
	if snap.LastUpdated.IsZero() {
		t.Error("expected weight manager to record the outcome")
	}
}

func TestDispatch_RespectsContextTimeout(t *testing.T) {
	slow := &slowProvider{name: "a", delay: 50 * time.Millisecond}
	b := &mockProvider{name: "b", resp: &providers.Response{ID: "b-ok"}}
	d := newFixture(nil, b)
	d.Lookup = func(name string) (providers.Provider, bool) {
		if name == "a" {
			return slow, true
		}
		if name == "b" {
			return b, true
		}
		return nil, false
	}
	d.cfg.Timeout = 5 * time.Millisecond

	res := d.Dispatch(context.Background(), baseReq(), router.Request{Prompt: "hi"}, MethodGenerateText, nil)
	if res.ProviderName != "b" {
		t.Fatalf("expected timeout on a to fall back to b, got %s", res.ProviderName)
	}
}

type slowProvider struct {
	name  string
	delay time.Duration
}

func (s *slowProvider) Name() string                      { return s.name }
func (s *slowProvider) SupportedModels() []string          { return []string{"m1"} }
func (s *slowProvider) SupportsModel(string) bool          { return true }
func (s *slowProvider) Models() []providers.ModelInfo      { return nil }
func (s *slowProvider) Complete(ctx context.Context, _ providers.Request) (*providers.Response, error) {
	select {
	case <-time.After(s.delay):
		return &providers.Response{ID: "slow-ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
