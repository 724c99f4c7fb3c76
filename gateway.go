// Package aigateway provides a multi-provider model-inference gateway:
// an Alias Resolver, Intelligent Router, Weight Manager, Health Monitor and
// Dispatcher composed around a set of registered LLM provider adapters.
//
// The Gateway type is the main entry point: create one with New, register
// providers with RegisterProvider, and route requests with Dispatch.
package aigateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/ferro-labs/model-gateway/internal/alias"
	"github.com/ferro-labs/model-gateway/internal/dispatcher"
	"github.com/ferro-labs/model-gateway/internal/health"
	"github.com/ferro-labs/model-gateway/internal/latency"
	"github.com/ferro-labs/model-gateway/internal/logging"
	"github.com/ferro-labs/model-gateway/internal/metrics"
	"github.com/ferro-labs/model-gateway/internal/pool"
	"github.com/ferro-labs/model-gateway/internal/router"
	"github.com/ferro-labs/model-gateway/internal/weight"
	"github.com/ferro-labs/model-gateway/models"
	"github.com/ferro-labs/model-gateway/providers"
)

// EventHookFunc is called asynchronously after a dispatch completes or fails.
type EventHookFunc func(ctx context.Context, subject string, data map[string]interface{})

// Event subject constants used when invoking gateway hooks.
const (
	SubjectRequestCompleted = "gateway.request.completed"
	SubjectRequestFailed    = "gateway.request.failed"
)

// GenerationRequest is the gateway-level request shape of spec.md §3.
// Immutable once constructed; Dispatch never mutates the value it is given.
type GenerationRequest struct {
	Prompt        string
	SystemMessage string
	Temperature   *float64
	MaxTokens     *int
	StopSequences []string

	// OutputSchema, when non-nil, selects the generate_structured_output
	// method. A top-level "required" array of strings names the keys the
	// parsed JSON response must contain.
	OutputSchema map[string]any

	TaskType   string
	Complexity router.Complexity

	ExtraParams map[string]any

	// ClientIP enables the geo pre-filter, when configured.
	ClientIP string
}

// GenerationResponse is the gateway-level GenerationResponse of spec.md §3.
type GenerationResponse struct {
	Content          string
	ModelID          string
	ProviderName     string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
	ResponseTime     time.Duration
	Error            string
	FallbackDepth    int
	Raw              *providers.Response
}

// Gateway is the composition root: it wires the Alias Resolver, Intelligent
// Router, Weight Manager, Health Monitor, connection pools and Dispatcher
// around a set of registered provider adapters.
type Gateway struct {
	mu        sync.RWMutex
	config    Config
	catalog   models.Catalog
	providers map[string]providers.Provider

	aliases    *alias.Resolver
	router     *router.Router
	dispatcher *dispatcher.Dispatcher
	health     *health.Monitor
	weights    *weight.Manager
	pools      *pool.Registry

	hooks            []EventHookFunc
	discoveredModels map[string][]providers.ModelInfo
}

// New creates a new Gateway instance with the given configuration, wiring
// the Weight Manager, Health Monitor, connection-pool registry, Alias
// Resolver, Intelligent Router and Dispatcher. Providers are registered
// afterward via RegisterProvider.
func New(cfg Config) (*Gateway, error) {
	catalog, err := models.Load()
	if err != nil {
		// Non-fatal: operate without model metadata (no enrichment / cost reporting).
		catalog = models.Catalog{}
	}

	g := &Gateway{
		config:           cfg,
		catalog:          catalog,
		providers:        make(map[string]providers.Provider),
		discoveredModels: make(map[string][]providers.ModelInfo),
	}

	g.weights = weight.New(weight.Config{})
	g.health = health.New(health.Config{})
	g.pools = pool.NewRegistry()

	isReg := func(name string) bool {
		g.mu.RLock()
		defer g.mu.RUnlock()
		_, ok := g.providers[name]
		return ok
	}
	g.aliases = alias.New(aliasConfig(cfg), isReg, g.allModelEntries)

	taskRoutes := make(map[string]string, len(cfg.TaskRouting))
	maps.Copy(taskRoutes, cfg.TaskRouting)

	g.router = &router.Router{
		Aliases:    g.aliases,
		Health:     g.health,
		Weights:    g.weights,
		Pools:      g.pools,
		TaskRoutes: taskRoutes,
	}

	g.dispatcher = dispatcher.New(dispatcher.Config{
		Timeout:         cfg.Gateway.timeout(),
		MaxRetries:      cfg.Gateway.maxRetries(),
		FallbackEnabled: cfg.Gateway.fallbackEnabled(),
	}, g.router, g.lookupProvider, g.pools, g.health, g.weights, g.estimateCost, g.supportsStructuredOutput)

	return g, nil
}

// Catalog returns a shallow copy of the loaded model catalog.
func (g *Gateway) Catalog() models.Catalog {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cp := make(models.Catalog, len(g.catalog))
	maps.Copy(cp, g.catalog)
	return cp
}

// RegisterProvider registers a provider with the gateway: it is added to the
// lookup table and registered with the Health Monitor, Weight Manager and
// connection-pool registry (spec.md §4.2 "registered" lifecycle event), then
// the Alias Resolver's live table is rebuilt to include it.
func (g *Gateway) RegisterProvider(p providers.Provider) {
	name := p.Name()

	g.mu.Lock()
	g.providers[name] = p
	pc := g.config.Providers[name]
	g.mu.Unlock()

	baseWeight := pc.BaseWeight
	if baseWeight <= 0 {
		baseWeight = 1.0
	}
	maxPool := pc.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 100
	}

	g.weights.Register(name, baseWeight)
	g.health.Register(name, health.AdapterProber{Provider: p})
	g.pools.Register(name, maxPool)
	g.aliases.Rebuild()
}

// UnregisterProvider removes a provider and its associated health/weight/pool
// state, then rebuilds the Alias Resolver's live table.
func (g *Gateway) UnregisterProvider(name string) {
	g.mu.Lock()
	delete(g.providers, name)
	g.mu.Unlock()

	g.weights.Unregister(name)
	g.health.Unregister(name)
	g.pools.Unregister(name)
	g.aliases.Rebuild()
}

// AddHook registers an EventHookFunc invoked asynchronously after each
// dispatch completes or fails. Multiple hooks may be registered.
func (g *Gateway) AddHook(fn EventHookFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, fn)
}

// Dispatch implements spec.md §4.7's public operation:
// dispatch(request, selector, method) → GenerationResponse. The method is
// derived from req.OutputSchema: non-nil selects generate_structured_output.
func (g *Gateway) Dispatch(ctx context.Context, req GenerationRequest, selector string) GenerationResponse {
	log := logging.FromContext(ctx)

	method := dispatcher.MethodGenerateText
	var requiredKeys []string
	if req.OutputSchema != nil {
		method = dispatcher.MethodGenerateStructuredOutput
		requiredKeys = requiredKeysFromSchema(req.OutputSchema)
	}

	providerReq := buildProviderRequest(req)
	routerReq := router.Request{
		Prompt:          req.Prompt,
		TaskType:        req.TaskType,
		Complexity:      req.Complexity,
		Selector:        selector,
		ClientIP:        req.ClientIP,
		CostOptimize:    g.config.Gateway.CostOptimization,
		FallbackEnabled: g.config.Gateway.fallbackEnabled(),
	}

	result := g.dispatcher.Dispatch(ctx, providerReq, routerReq, method, requiredKeys)
	resp := GenerationResponse{
		Content:          result.Content,
		ModelID:          result.ModelID,
		ProviderName:     result.ProviderName,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		Cost:             result.Cost,
		ResponseTime:     result.ResponseTime,
		Error:            result.Error,
		FallbackDepth:    result.FallbackDepth,
		Raw:              result.Raw,
	}

	success := resp.Error == ""
	log.Info("dispatch completed",
		"provider", resp.ProviderName,
		"model", resp.ModelID,
		"response_time_ms", resp.ResponseTime.Milliseconds(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"cost_usd", resp.Cost,
		"success", success,
		"error", resp.Error,
		"fallback_depth", resp.FallbackDepth,
	)

	if resp.Cost > 0 {
		metrics.RequestCostUSD.WithLabelValues(resp.ProviderName, resp.ModelID).Add(resp.Cost)
	}

	subject := SubjectRequestCompleted
	if !success {
		subject = SubjectRequestFailed
	}
	g.publishEvent(ctx, subject, map[string]interface{}{
		"trace_id":         logging.TraceIDFromContext(ctx),
		"provider":         resp.ProviderName,
		"model":            resp.ModelID,
		"success":          success,
		"error":            resp.Error,
		"response_time_ms": resp.ResponseTime.Milliseconds(),
		"prompt_tokens":    resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
		"cost_usd":         resp.Cost,
		"fallback_depth":   resp.FallbackDepth,
		"timestamp":        time.Now(),
	})

	return resp
}

// publishEvent calls all registered hooks asynchronously.
func (g *Gateway) publishEvent(ctx context.Context, subject string, data map[string]interface{}) {
	g.mu.RLock()
	hooks := make([]EventHookFunc, len(g.hooks))
	copy(hooks, g.hooks)
	g.mu.RUnlock()

	for _, h := range hooks {
		fn := h
		go fn(ctx, subject, data)
	}
}

// ReloadConfig validates and applies a new configuration. Per spec.md §6
// "Persisted state": the core is stateless across restarts — weights reset
// to base_weight and circuit breakers start closed — so a reload rebuilds
// the Weight Manager and Health Monitor from scratch and re-derives the
// Alias Resolver's static table, then re-registers every currently-held
// provider against the fresh state.
func (g *Gateway) ReloadConfig(cfg Config) error {
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	g.mu.Lock()
	existing := make(map[string]providers.Provider, len(g.providers))
	maps.Copy(existing, g.providers)
	g.config = cfg
	g.mu.Unlock()

	g.weights = weight.New(weight.Config{})
	g.health = health.New(health.Config{})
	g.pools = pool.NewRegistry()

	isReg := func(name string) bool {
		g.mu.RLock()
		defer g.mu.RUnlock()
		_, ok := g.providers[name]
		return ok
	}
	g.aliases = alias.New(aliasConfig(cfg), isReg, g.allModelEntries)

	taskRoutes := make(map[string]string, len(cfg.TaskRouting))
	maps.Copy(taskRoutes, cfg.TaskRouting)

	g.router = &router.Router{
		Aliases:    g.aliases,
		Health:     g.health,
		Weights:    g.weights,
		Pools:      g.pools,
		TaskRoutes: taskRoutes,
	}
	g.dispatcher = dispatcher.New(dispatcher.Config{
		Timeout:         cfg.Gateway.timeout(),
		MaxRetries:      cfg.Gateway.maxRetries(),
		FallbackEnabled: cfg.Gateway.fallbackEnabled(),
	}, g.router, g.lookupProvider, g.pools, g.health, g.weights, g.estimateCost, g.supportsStructuredOutput)

	for _, p := range existing {
		g.RegisterProvider(p)
	}
	return nil
}

// GetConfig returns a copy of the current configuration.
func (g *Gateway) GetConfig() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// SaveWeightCheckpoint persists the Weight Manager's current EMA state to db,
// per spec.md §6's optional checkpoint-to-disk facility.
func (g *Gateway) SaveWeightCheckpoint(db *sql.DB) error {
	return g.weights.SaveCheckpoint(db)
}

// RestoreWeightCheckpoint loads previously-saved EMA state for any provider
// already registered with the gateway.
func (g *Gateway) RestoreWeightCheckpoint(db *sql.DB) error {
	return g.weights.RestoreCheckpoint(db)
}

func (g *Gateway) lookupProvider(name string) (providers.Provider, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.providers[name]
	return p, ok
}

// estimateCost wraps models.Calculate against the loaded catalog, used as the
// Dispatcher's CostEstimator.
func (g *Gateway) estimateCost(provider, model string, usage providers.Usage) float64 {
	g.mu.RLock()
	catalog := g.catalog
	g.mu.RUnlock()

	result := models.Calculate(catalog, provider+"/"+model, models.Usage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		ReasoningTokens:  usage.ReasoningTokens,
		CacheReadTokens:  usage.CacheReadTokens,
		CacheWriteTokens: usage.CacheWriteTokens,
	})
	return result.TotalUSD
}

// supportsStructuredOutput wraps a model catalog lookup, used as the
// Dispatcher's CapabilitySource for generate_structured_output requests.
// Models absent from the catalog are assumed capable: the gate only
// excludes models the catalog has positive evidence against.
func (g *Gateway) supportsStructuredOutput(provider, model string) bool {
	g.mu.RLock()
	catalog := g.catalog
	g.mu.RUnlock()

	m, ok := catalog[provider+"/"+model]
	if !ok {
		return true
	}
	return m.Capabilities.ResponseSchema
}

// allModelEntries enumerates every (provider, model_id) pair across all
// registered adapters, used by the Alias Resolver's rule-3 bare-model scan.
func (g *Gateway) allModelEntries() []alias.Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var entries []alias.Entry
	for name, p := range g.providers {
		for _, m := range p.SupportedModels() {
			entries = append(entries, alias.Entry{Provider: name, ModelID: m})
		}
	}
	return entries
}

// buildProviderRequest translates a gateway-level GenerationRequest into the
// OpenAI-compatible providers.Request shape the adapters speak.
func buildProviderRequest(req GenerationRequest) providers.Request {
	var messages []providers.Message
	if req.SystemMessage != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: req.SystemMessage})
	}
	prompt := req.Prompt
	if req.OutputSchema != nil {
		prompt = appendSchemaInstructions(prompt, req.OutputSchema)
	}
	messages = append(messages, providers.Message{Role: providers.RoleUser, Content: prompt})

	return providers.Request{
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.StopSequences,
	}
}

// appendSchemaInstructions appends the JSON schema and instructions to the
// prompt, per spec.md §4.3's generate_structured_output contract: providers
// lacking native structured-output support still need the model told what
// shape to produce.
func appendSchemaInstructions(prompt string, schema map[string]any) string {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Sprintf("%s\n\nRespond with a single JSON object matching this schema:\n%v", prompt, schema)
	}
	return fmt.Sprintf("%s\n\nRespond with a single JSON object matching this schema:\n%s", prompt, schemaJSON)
}

// requiredKeysFromSchema extracts the top-level "required" key list from a
// JSON schema object, per providers.ValidateStructured's shape-only check.
func requiredKeysFromSchema(schema map[string]any) []string {
	raw, ok := schema["required"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys
}

// ── Registry-consolidation helpers ──────────────────────────────────────────

// AllModels returns ModelInfo from all registered providers. If auto-discovery
// has run for a provider, discovered models take precedence over the
// provider's static model list.
func (g *Gateway) AllModels() []providers.ModelInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var all []providers.ModelInfo
	for name, p := range g.providers {
		if discovered, ok := g.discoveredModels[name]; ok && len(discovered) > 0 {
			all = append(all, discovered...)
		} else {
			all = append(all, p.Models()...)
		}
	}
	return all
}

// GetProvider returns a registered provider by name.
func (g *Gateway) GetProvider(name string) (providers.Provider, bool) {
	return g.lookupProvider(name)
}

// Get satisfies providers.ProviderSource (alias for GetProvider).
func (g *Gateway) Get(name string) (providers.Provider, bool) {
	return g.GetProvider(name)
}

// ListProviders returns the names of all registered providers.
func (g *Gateway) ListProviders() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}

// List satisfies providers.ProviderSource (alias for ListProviders).
func (g *Gateway) List() []string {
	return g.ListProviders()
}

// FindByModel returns the first registered provider that supports the given model.
func (g *Gateway) FindByModel(model string) (providers.Provider, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, p := range g.providers {
		if p.SupportsModel(model) {
			return p, true
		}
	}
	return nil, false
}

// HealthSnapshot returns the Health Monitor's current record for a provider.
func (g *Gateway) HealthSnapshot(name string) (health.Record, bool) {
	return g.health.Snapshot(name)
}

// WeightSnapshot returns the Weight Manager's current metrics for a provider.
func (g *Gateway) WeightSnapshot(name string) (weight.Metrics, bool) {
	return g.weights.Snapshot(name)
}

// Run starts the Health Monitor probe loop and Weight Manager rebalance
// loop. It blocks until ctx is cancelled; callers should invoke it in its
// own goroutine.
func (g *Gateway) Run(ctx context.Context) {
	go g.health.Run(ctx)
	go g.weights.Run(ctx)
	<-ctx.Done()
}

// StartLatencyProbing starts the optional Latency Prober (spec.md §4.8): a
// periodic out-of-band sample of every registered providers.ProxiableProvider
// base URL, feeding ema_response_time even when real traffic is quiet. It
// runs in its own goroutine until ctx is cancelled.
func (g *Gateway) StartLatencyProbing(ctx context.Context, cfg latency.Config) {
	sampler := latency.New(cfg, g.weights, g.proxiableTargets)
	go sampler.Run(ctx)
}

// proxiableTargets snapshots the currently registered providers that expose
// a base URL, for the Latency Prober's ProviderLister.
func (g *Gateway) proxiableTargets() []latency.Target {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return latency.ProxiableTargets(g.providers)
}

// Close cleans up resources.
func (g *Gateway) Close() error {
	return nil
}

// ── Multi-modal endpoints ────────────────────────────────────────────────────

// Embed routes an embedding request to the first registered EmbeddingProvider
// that supports the requested model.
func (g *Gateway) Embed(ctx context.Context, req providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	log := logging.FromContext(ctx)

	g.mu.RLock()
	var ep providers.EmbeddingProvider
	for _, p := range g.providers {
		if ep2, ok := p.(providers.EmbeddingProvider); ok && p.SupportsModel(req.Model) {
			ep = ep2
			break
		}
	}
	g.mu.RUnlock()

	if ep == nil {
		return nil, fmt.Errorf("no embedding provider found for model: %s", req.Model)
	}

	resp, err := ep.Embed(ctx, req)
	if err != nil {
		log.Error("embedding request failed", "model", req.Model, "error", err.Error())
		return nil, err
	}

	log.Info("embedding request completed", "model", resp.Model, "tokens", resp.Usage.TotalTokens)
	return resp, nil
}

// GenerateImage routes an image generation request to the first registered
// ImageProvider that supports the requested model.
func (g *Gateway) GenerateImage(ctx context.Context, req providers.ImageRequest) (*providers.ImageResponse, error) {
	log := logging.FromContext(ctx)

	g.mu.RLock()
	var ip providers.ImageProvider
	for _, p := range g.providers {
		if ip2, ok := p.(providers.ImageProvider); ok && p.SupportsModel(req.Model) {
			ip = ip2
			break
		}
	}
	g.mu.RUnlock()

	if ip == nil {
		return nil, fmt.Errorf("no image generation provider found for model: %s", req.Model)
	}

	resp, err := ip.GenerateImage(ctx, req)
	if err != nil {
		log.Error("image generation request failed", "model", req.Model, "error", err.Error())
		return nil, err
	}

	log.Info("image generation request completed", "model", req.Model, "images", len(resp.Data))
	return resp, nil
}

// ── Auto-discovery ───────────────────────────────────────────────────────────

// StartDiscovery periodically refreshes model lists from providers that
// implement DiscoveryProvider. It runs in a background goroutine until ctx
// is cancelled. interval must be greater than zero.
func (g *Gateway) StartDiscovery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("StartDiscovery: interval must be greater than zero, got %v", interval)
	}
	log := logging.FromContext(ctx)
	go func() {
		g.runDiscovery(ctx, log)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.runDiscovery(ctx, log)
			}
		}
	}()
	return nil
}

func (g *Gateway) runDiscovery(ctx context.Context, log *slog.Logger) {
	g.mu.RLock()
	providersCopy := make(map[string]providers.Provider, len(g.providers))
	maps.Copy(providersCopy, g.providers)
	g.mu.RUnlock()

	for name, p := range providersCopy {
		dp, ok := p.(providers.DiscoveryProvider)
		if !ok {
			continue
		}
		discovered, err := dp.DiscoverModels(ctx)
		if err != nil {
			log.Error("model discovery failed", "provider", name, "error", err.Error())
			continue
		}
		g.mu.Lock()
		g.discoveredModels[name] = discovered
		g.mu.Unlock()
		log.Info("model discovery completed", "provider", name, "models", len(discovered))
	}
}
