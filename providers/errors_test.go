package providers

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassify_StatusCodeTakesPriorityOverMessage(t *testing.T) {
	kind := Classify(errors.New("body says nothing useful"), http.StatusUnauthorized)
	if kind != ErrorKindAuthFailed {
		t.Fatalf("got %v, want auth_failed", kind)
	}
}

func TestClassify_SubstringFallbackWhenStatusUnknown(t *testing.T) {
	kind := Classify(errors.New("dial tcp: connection refused"), 0)
	if kind != ErrorKindUnavailable {
		t.Fatalf("got %v, want unavailable", kind)
	}
}

func TestNewUpstreamError_ClassifiesAtConstruction(t *testing.T) {
	err := NewUpstreamError("openai", http.StatusTooManyRequests, errors.New("rate limited"))
	if err.Kind != ErrorKindRateLimited {
		t.Fatalf("got %v, want rate_limited", err.Kind)
	}
	if err.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", err.StatusCode)
	}
}

func TestClassifyErr_PrefersUpstreamErrorKind(t *testing.T) {
	wrapped := NewUpstreamError("anthropic", http.StatusForbidden, errors.New("no such token in body"))
	if kind := ClassifyErr(wrapped); kind != ErrorKindAuthFailed {
		t.Fatalf("got %v, want auth_failed", kind)
	}
}

func TestClassifyErr_FallsBackForPlainErrors(t *testing.T) {
	if kind := ClassifyErr(errors.New("rate limit exceeded")); kind != ErrorKindRateLimited {
		t.Fatalf("got %v, want rate_limited", kind)
	}
}

func TestUpstreamError_UnwrapReturnsUnderlying(t *testing.T) {
	underlying := errors.New("boom")
	wrapped := NewUpstreamError("groq", http.StatusInternalServerError, underlying)
	if !errors.Is(wrapped, underlying) {
		t.Fatal("expected errors.Is to find the wrapped underlying error")
	}
}
