package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_RecordRequestIncrementsCounter(t *testing.T) {
	r := New()
	r.RecordRequest("openai", "200")
	r.RecordRequest("openai", "200")

	count := testutil.ToFloat64(r.requestsTotal.WithLabelValues("openai", "200"))
	assert.Equal(t, 2.0, count)
}

func TestRegistry_CircuitBreakerTransitionCountsOnlyOnChange(t *testing.T) {
	r := New()
	r.SetCircuitBreaker("anthropic", 0)
	r.SetCircuitBreaker("anthropic", 0)
	r.SetCircuitBreaker("anthropic", 1)

	transitions := testutil.ToFloat64(r.cbTransitions.WithLabelValues("anthropic", "1"))
	assert.Equal(t, 1.0, transitions)

	state := testutil.ToFloat64(r.circuitBreakerState.WithLabelValues("anthropic"))
	assert.Equal(t, 1.0, state)
}

func TestRegistry_CacheHitMiss(t *testing.T) {
	r := New()
	r.CacheGetHit()
	r.CacheGetMiss()
	r.CacheGetMiss()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheMisses))
}

func TestRegistry_ProviderHealthGauge(t *testing.T) {
	r := New()
	r.SetProviderHealth("openai", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerHealth.WithLabelValues("openai")))

	r.SetProviderHealth("openai", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.providerHealth.WithLabelValues("openai")))
}

func TestRegistry_HandlerServesMetrics(t *testing.T) {
	r := New()
	r.ObserveHTTP("/v1/chat/completions", 200, 10*time.Millisecond)
	assert.NotNil(t, r.Handler())
}
