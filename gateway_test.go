package aigateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ferro-labs/model-gateway/internal/latency"
	"github.com/ferro-labs/model-gateway/providers"
)

// mockProvider is a test double for providers.Provider.
type mockProvider struct {
	name   string
	models []string
	resp   *providers.Response
	err    error
}

func (m *mockProvider) Name() string                  { return m.name }
func (m *mockProvider) SupportedModels() []string     { return m.models }
func (m *mockProvider) Models() []providers.ModelInfo { return nil }
func (m *mockProvider) SupportsModel(model string) bool {
	for _, mm := range m.models {
		if mm == model {
			return true
		}
	}
	return false
}
func (m *mockProvider) Complete(_ context.Context, _ providers.Request) (*providers.Response, error) {
	return m.resp, m.err
}

func singleProviderConfig(provider, model string) Config {
	return Config{
		Providers: map[string]ProviderConfig{
			provider: {Enabled: true},
		},
		ModelAliases: map[string][]AliasEntry{
			"balanced": {{Provider: provider, ModelID: model, Priority: 1}},
		},
	}
}

func TestGateway_Dispatch_Single(t *testing.T) {
	gw, err := New(singleProviderConfig("mock", "gpt-4o"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gw.RegisterProvider(&mockProvider{
		name:   "mock",
		models: []string{"gpt-4o"},
		resp:   &providers.Response{ID: "r1", Choices: []providers.Choice{{Message: providers.Message{Content: "hi"}}}},
	})

	resp := gw.Dispatch(context.Background(), GenerationRequest{Prompt: "hello"}, "balanced")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.ProviderName != "mock" {
		t.Errorf("got provider %q, want mock", resp.ProviderName)
	}
}

func TestGateway_Dispatch_Fallback(t *testing.T) {
	cfg := Config{
		ModelAliases: map[string][]AliasEntry{
			"balanced": {
				{Provider: "bad", ModelID: "gpt-4o", Priority: 1},
				{Provider: "good", ModelID: "gpt-4o", Priority: 2},
			},
		},
	}
	gw, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gw.RegisterProvider(&mockProvider{name: "bad", models: []string{"gpt-4o"}, err: fmt.Errorf("provider down")})
	gw.RegisterProvider(&mockProvider{
		name:   "good",
		models: []string{"gpt-4o"},
		resp:   &providers.Response{ID: "fallback-ok"},
	})

	resp := gw.Dispatch(context.Background(), GenerationRequest{Prompt: "hello"}, "balanced")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.ProviderName != "good" {
		t.Errorf("got provider %q, want good", resp.ProviderName)
	}
	if resp.FallbackDepth != 1 {
		t.Errorf("got fallback depth %d, want 1", resp.FallbackDepth)
	}
}

func TestGateway_Dispatch_NoCandidates(t *testing.T) {
	gw, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp := gw.Dispatch(context.Background(), GenerationRequest{Prompt: "hello"}, "balanced")
	if resp.ProviderName != "gateway" {
		t.Fatalf("expected synthesized gateway failure, got provider=%s", resp.ProviderName)
	}
	if resp.Error == "" {
		t.Error("expected a non-empty error")
	}
}

func TestGateway_Dispatch_StructuredOutput(t *testing.T) {
	gw, err := New(singleProviderConfig("mock", "gpt-4o"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gw.RegisterProvider(&mockProvider{
		name:   "mock",
		models: []string{"gpt-4o"},
		resp:   &providers.Response{ID: "r1", Choices: []providers.Choice{{Message: providers.Message{Content: `{"answer":"42"}`}}}},
	})

	resp := gw.Dispatch(context.Background(), GenerationRequest{
		Prompt:       "what is the answer?",
		OutputSchema: map[string]any{"required": []any{"answer"}},
	}, "balanced")
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.Content != `{"answer":"42"}` {
		t.Errorf("got content %q", resp.Content)
	}
}

func TestGateway_ReloadConfig_ResetsWeights(t *testing.T) {
	gw, err := New(singleProviderConfig("mock", "gpt-4o"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	gw.RegisterProvider(&mockProvider{name: "mock", models: []string{"gpt-4o"}, resp: &providers.Response{ID: "ok"}})

	gw.Dispatch(context.Background(), GenerationRequest{Prompt: "hello"}, "balanced")
	snapBefore, ok := gw.WeightSnapshot("mock")
	if !ok || snapBefore.EMASuccessRate == 0 {
		t.Fatal("expected weight state to have been updated before reload")
	}

	if err := gw.ReloadConfig(singleProviderConfig("mock", "gpt-4o")); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	snapAfter, ok := gw.WeightSnapshot("mock")
	if !ok {
		t.Fatal("expected mock to still be registered after reload")
	}
	if snapAfter.EMASuccessRate != 0 {
		t.Error("expected weight state to reset to cold-start defaults on reload")
	}
}

// ── mockEmbeddingProvider ─────────────────────────────────────────────────────

type mockEmbeddingProvider struct {
	mockProvider
	capturedModel string
}

func (m *mockEmbeddingProvider) Embed(_ context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	m.capturedModel = req.Model
	return &providers.EmbeddingResponse{Model: req.Model}, nil
}

// ── mockImageProvider ─────────────────────────────────────────────────────────

type mockImageProvider struct {
	mockProvider
	capturedModel string
}

func (m *mockImageProvider) GenerateImage(_ context.Context, req providers.ImageRequest) (*providers.ImageResponse, error) {
	m.capturedModel = req.Model
	return &providers.ImageResponse{}, nil
}

func TestGateway_Embed_Passthrough(t *testing.T) {
	ep := &mockEmbeddingProvider{mockProvider: mockProvider{name: "mock", models: []string{"text-embedding-3-small"}}}
	gw, _ := New(Config{})
	gw.RegisterProvider(ep)

	_, err := gw.Embed(context.Background(), providers.EmbeddingRequest{Model: "text-embedding-3-small", Input: "hello"})
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if ep.capturedModel != "text-embedding-3-small" {
		t.Errorf("got model %q, want text-embedding-3-small", ep.capturedModel)
	}
}

func TestGateway_GenerateImage_Passthrough(t *testing.T) {
	ip := &mockImageProvider{mockProvider: mockProvider{name: "mock", models: []string{"dall-e-3"}}}
	gw, _ := New(Config{})
	gw.RegisterProvider(ip)

	_, err := gw.GenerateImage(context.Background(), providers.ImageRequest{Model: "dall-e-3", Prompt: "a cat"})
	if err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if ip.capturedModel != "dall-e-3" {
		t.Errorf("got model %q, want dall-e-3", ip.capturedModel)
	}
}

// ── StartDiscovery interval validation tests ──────────────────────────────────

func TestGateway_StartDiscovery_ZeroInterval(t *testing.T) {
	gw, _ := New(Config{})
	if err := gw.StartDiscovery(context.Background(), 0); err == nil {
		t.Fatal("StartDiscovery(0) should return an error")
	}
}

func TestGateway_StartDiscovery_NegativeInterval(t *testing.T) {
	gw, _ := New(Config{})
	if err := gw.StartDiscovery(context.Background(), -time.Second); err == nil {
		t.Fatal("StartDiscovery(-1s) should return an error")
	}
}

func TestGateway_StartDiscovery_ValidInterval(t *testing.T) {
	gw, _ := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.StartDiscovery(ctx, time.Hour); err != nil {
		t.Fatalf("StartDiscovery(1h) returned unexpected error: %v", err)
	}
	cancel()
}

func TestGateway_StartLatencyProbing_StopsOnCancellation(t *testing.T) {
	gw, _ := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())

	gw.StartLatencyProbing(ctx, latency.Config{Interval: time.Hour})
	// No assertion beyond "does not panic and the goroutine can be torn
	// down cleanly" — the sampler itself is covered by internal/latency.
	cancel()
}
