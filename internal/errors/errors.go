// Package errors defines the gateway's typed error taxonomy and its
// mapping onto HTTP status codes, so every layer — providers, router,
// fallback executor, server — reports failures the same way.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind enumerates the gateway's error categories.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindRateLimit         Kind = "rate_limit"
	KindQuota             Kind = "quota"
	KindTransportRetryable Kind = "transport_retryable"
	KindUpstream          Kind = "upstream"
	KindCircuitOpen       Kind = "circuit_open"
	KindPromptBlocked     Kind = "prompt_blocked"
	KindInternal          Kind = "internal"
)

// statusByKind centralizes the HTTP mapping so handlers never hardcode it.
var statusByKind = map[Kind]int{
	KindValidation:         http.StatusBadRequest,
	KindAuth:               http.StatusUnauthorized,
	KindRateLimit:          http.StatusTooManyRequests,
	KindQuota:              http.StatusTooManyRequests,
	KindTransportRetryable: http.StatusBadGateway,
	KindUpstream:           http.StatusBadGateway,
	KindCircuitOpen:        http.StatusServiceUnavailable,
	KindPromptBlocked:      http.StatusForbidden,
	KindInternal:           http.StatusInternalServerError,
}

// GatewayError is the gateway's canonical error type, carrying enough
// context to shape both a log line and a client-facing error body.
type GatewayError struct {
	Kind      Kind
	Message   string
	RequestID string
	Provider  string
	Cause     error
}

func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s (provider=%s)", e.Kind, e.Message, e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

// StatusCode returns the HTTP status this error's kind maps to.
func (e *GatewayError) StatusCode() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// New builds a GatewayError without a cause.
func New(kind Kind, message string) *GatewayError {
	return &GatewayError{Kind: kind, Message: message}
}

// Wrap builds a GatewayError around an existing error.
func Wrap(kind Kind, message string, cause error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Cause: cause}
}

// WithRequestID returns a copy of e tagged with requestID.
func (e *GatewayError) WithRequestID(requestID string) *GatewayError {
	clone := *e
	clone.RequestID = requestID
	return &clone
}

// WithProvider returns a copy of e tagged with the upstream provider name.
func (e *GatewayError) WithProvider(provider string) *GatewayError {
	clone := *e
	clone.Provider = provider
	return &clone
}

// As reports whether err (or something it wraps) is a *GatewayError, and
// if so returns it. Mirrors the stdlib errors.As convention without
// requiring callers to declare the target variable themselves.
func As(err error) (*GatewayError, bool) {
	for err != nil {
		if ge, ok := err.(*GatewayError); ok {
			return ge, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// ClassifyUpstreamError inspects a raw upstream error message and decides
// whether it represents exhausted quota, a retryable transport failure, or
// a generic upstream failure, per the keyword matching the adapters use.
func ClassifyUpstreamError(provider string, err error) *GatewayError {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if containsAny(msg, "rate limit", "quota", "too many requests", "429", "capacity", "exceeded") {
		return Wrap(KindQuota, "upstream quota exhausted", err).WithProvider(provider)
	}
	if containsAny(msg, "timeout", "econnreset", "econnrefused", "network", "5xx", "connection refused", "connection reset") {
		return Wrap(KindTransportRetryable, "transient upstream transport error", err).WithProvider(provider)
	}
	return Wrap(KindUpstream, "upstream request failed", err).WithProvider(provider)
}

func containsAny(haystack string, needles ...string) bool {
	lower := strings.ToLower(haystack)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
