package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayError_StatusCode(t *testing.T) {
	err := New(KindRateLimit, "too many requests")
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode())
}

func TestGatewayError_WithRequestIDDoesNotMutateOriginal(t *testing.T) {
	original := New(KindValidation, "bad input")
	tagged := original.WithRequestID("req-123")

	assert.Empty(t, original.RequestID)
	assert.Equal(t, "req-123", tagged.RequestID)
}

func TestAs_FindsWrappedGatewayError(t *testing.T) {
	inner := New(KindUpstream, "boom")
	wrapped := fWrap(inner)

	found, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindUpstream, found.Kind)
}

func fWrap(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestAs_ReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestClassifyUpstreamError_Quota(t *testing.T) {
	err := ClassifyUpstreamError("openai", stderrors.New("429 rate limit exceeded"))
	assert.Equal(t, KindQuota, err.Kind)
}

func TestClassifyUpstreamError_Retryable(t *testing.T) {
	err := ClassifyUpstreamError("anthropic", stderrors.New("dial tcp: connection refused"))
	assert.Equal(t, KindTransportRetryable, err.Kind)
}

func TestClassifyUpstreamError_GenericUpstream(t *testing.T) {
	err := ClassifyUpstreamError("openai", stderrors.New("unexpected response shape"))
	assert.Equal(t, KindUpstream, err.Kind)
}
