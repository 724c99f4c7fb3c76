package providers

import "context"

// Capability identifies an optional feature a provider/model combination may
// support. SupportsCapability answers it per provider and model; the router
// does not filter candidates by capability.
type Capability string

const (
	CapabilityStreaming       Capability = "streaming"
	CapabilityVision          Capability = "vision"
	CapabilityFunctionCalling Capability = "function_calling"
	CapabilityJSONMode        Capability = "json_mode"
	CapabilityEmbedding       Capability = "embedding"
	CapabilityImageGeneration Capability = "image_generation"

	// CapabilityStructuredOutput identifies schema-constrained output
	// (the model accepts a JSON schema and guarantees its response conforms
	// to it). Distinct from CapabilityJSONMode, which only guarantees the
	// response parses as JSON with no shape guarantee. Gated by the model
	// catalog's Capabilities.ResponseSchema flag, not by this package's
	// coarse provider-level checks — see gateway.go's supportsStructuredOutput.
	CapabilityStructuredOutput Capability = "structured_output"
)

// CapabilityReporter is an optional interface for providers that can report
// which capabilities they support for a given model, beyond the coarse
// StreamProvider/EmbeddingProvider/ImageProvider type assertions. Providers
// that don't implement it are assumed to support only the base Complete
// call and whatever optional interfaces they already satisfy.
type CapabilityReporter interface {
	Provider
	SupportsCapability(model string, capability Capability) bool
}

// HealthChecker is an optional interface for providers that can answer a
// lightweight liveness probe without spending a full completion request.
// None of the adapters in this package implements it; the health monitor's
// AdapterProber falls back to timing a minimal Complete call for providers
// that don't.
type HealthChecker interface {
	Provider
	CheckHealth(ctx context.Context) error
}

// SupportsCapability reports whether p supports the given capability for
// model. It consults CapabilityReporter first, then falls back to the
// coarse optional-interface checks used elsewhere in the gateway.
func SupportsCapability(p Provider, model string, capability Capability) bool {
	if cr, ok := p.(CapabilityReporter); ok {
		return cr.SupportsCapability(model, capability)
	}
	switch capability {
	case CapabilityStreaming:
		_, ok := p.(StreamProvider)
		return ok
	case CapabilityEmbedding:
		_, ok := p.(EmbeddingProvider)
		return ok
	case CapabilityImageGeneration:
		_, ok := p.(ImageProvider)
		return ok
	case CapabilityVision, CapabilityFunctionCalling, CapabilityJSONMode:
		// No coarse signal available without a CapabilityReporter; assume
		// support and let the provider itself reject an unsupported request.
		return true
	case CapabilityStructuredOutput:
		// No per-provider signal here; the dispatcher gates this capability
		// against the model catalog directly (see gateway.go's
		// supportsStructuredOutput) rather than through this function.
		return false
	default:
		return false
	}
}
