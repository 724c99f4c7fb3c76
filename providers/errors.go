package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a provider failure for routing and retry decisions.
// The dispatcher uses this to decide whether a candidate is worth retrying
// on the same provider, worth falling back from immediately, or should trip
// the circuit breaker.
type ErrorKind string

const (
	// ErrorKindRateLimited means the provider rejected the request due to
	// rate limiting (HTTP 429 or provider-specific equivalent). Worth
	// falling back to another candidate, not worth retrying the same one.
	ErrorKindRateLimited ErrorKind = "rate_limited"

	// ErrorKindTimeout means the request exceeded its deadline or the
	// upstream connection stalled.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindAuthFailed means the provider rejected credentials
	// (HTTP 401/403). Not worth retrying or falling back to the same
	// provider under any alias.
	ErrorKindAuthFailed ErrorKind = "auth_failed"

	// ErrorKindInvalidRequest means the request itself was malformed
	// (HTTP 400/422). Retrying or falling back will not help.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindUnavailable means the provider is down or returning server
	// errors (HTTP 5xx, connection refused).
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindCancelled means the caller's context was cancelled before
	// a response was obtained.
	ErrorKindCancelled ErrorKind = "cancelled"

	// ErrorKindUnknown is the fallback when an error cannot be classified
	// from the available information.
	ErrorKindUnknown ErrorKind = "unknown"
)

// UpstreamError wraps a provider failure with its classified kind so callers
// can branch without string-matching error text.
type UpstreamError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError builds an UpstreamError from a provider name, the HTTP
// status code returned on the wire, and the error detail extracted from the
// response body. It classifies the status immediately so callers downstream
// (dispatcher, health monitor) don't need their own copy of the status-code
// table.
func NewUpstreamError(provider string, statusCode int, detail error) *UpstreamError {
	return &UpstreamError{
		Provider:   provider,
		Kind:       Classify(detail, statusCode),
		StatusCode: statusCode,
		Err:        detail,
	}
}

// Classify derives an ErrorKind from an HTTP status code and/or the error
// returned by a provider's HTTP client. httpStatus may be 0 when the error
// occurred before a response was received (DNS failure, connection refused,
// context cancellation).
func Classify(err error, httpStatus int) ErrorKind {
	if err != nil && errors.Is(err, context.Canceled) {
		return ErrorKindCancelled
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	switch httpStatus {
	case http.StatusTooManyRequests:
		return ErrorKindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorKindAuthFailed
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrorKindInvalidRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrorKindTimeout
	}
	if httpStatus >= 500 {
		return ErrorKindUnavailable
	}

	if err == nil {
		return ErrorKindUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrorKindTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") || strings.Contains(msg, "eof"):
		return ErrorKindUnavailable
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return ErrorKindRateLimited
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "invalid_api_key"):
		return ErrorKindAuthFailed
	}
	return ErrorKindUnknown
}

// ClassifyErr derives an ErrorKind from err, preferring the status code
// carried by an *UpstreamError (as produced by NewUpstreamError) when the
// error chain has one, and falling back to Classify(err, 0)'s substring
// matching otherwise (network errors, context cancellation, and any adapter
// that has not been converted to UpstreamError yet).
func ClassifyErr(err error) ErrorKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return Classify(err, 0)
}

// Retryable reports whether the dispatcher should retry the same candidate
// after a failure of this kind. Rate-limited, auth, invalid-request and
// cancelled failures end the retries on that candidate at once (no amount of
// retrying changes a bad API key or a malformed payload); the dispatcher
// then moves on to the next candidate when fallback is enabled.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindAuthFailed, ErrorKindInvalidRequest, ErrorKindCancelled:
		return false
	default:
		return true
	}
}
