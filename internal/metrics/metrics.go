// Package metrics exposes the gateway's runtime counters as Prometheus
// metrics on a private registry, replacing any hand-rolled /metrics text
// generation with real instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric the gateway exports.
type Registry struct {
	reg *prometheus.Registry

	inFlight prometheus.Gauge

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	upstreamAttempts *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheOps    *prometheus.CounterVec

	providerErrors *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec
	cbTransitions       *prometheus.CounterVec
	cbRejections        *prometheus.CounterVec

	failoverEvents    *prometheus.CounterVec
	failoverSuccess   *prometheus.CounterVec
	failoverExhausted *prometheus.CounterVec

	rateLimitTotal *prometheus.CounterVec
	tokensTotal    *prometheus.CounterVec
	providerHealth *prometheus.GaugeVec
	buildInfo      *prometheus.GaugeVec

	shadowComparisons *prometheus.CounterVec
	judgeWinRate      *prometheus.GaugeVec

	cbMu        sync.Mutex
	lastCBState map[string]float64

	handler http.Handler
}

// New builds and registers every metric on a private registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	latencyBuckets := []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}

	r := &Registry{
		reg:         reg,
		lastCBState: make(map[string]float64),

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_inflight_requests",
			Help: "Current number of in-flight HTTP requests handled by the gateway",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "Total number of HTTP requests handled by the gateway",
		}, []string{"route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: latencyBuckets,
		}, []string{"route"}),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of proxied chat requests",
		}, []string{"provider", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end request duration by provider, route and cache outcome",
			Buckets: latencyBuckets,
		}, []string{"provider", "route", "cache"}),

		upstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_upstream_attempts_total",
			Help: "Total upstream provider attempts, including retries and fallbacks",
		}, []string{"provider", "route", "outcome"}),

		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_upstream_attempt_duration_seconds",
			Help:    "Upstream provider attempt duration in seconds",
			Buckets: latencyBuckets,
		}, []string{"provider", "route", "outcome"}),

		cacheHits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_hits_total", Help: "Total cache hits"}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_misses_total", Help: "Total cache misses"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_operations_total",
			Help: "Cache operations by type and result",
		}, []string{"op", "result"}),

		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_errors_total",
			Help: "Total provider errors by error kind",
		}, []string{"provider", "error_type"}),

		circuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed,1=open,2=half-open)",
		}, []string{"provider"}),

		cbTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_transitions_total",
			Help: "Circuit breaker transitions to a new state",
		}, []string{"provider", "to_state"}),

		cbRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_rejections_total",
			Help: "Requests rejected because the circuit breaker was open",
		}, []string{"provider", "state"}),

		failoverEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_failover_events_total",
			Help: "Failover events between upstreams",
		}, []string{"primary", "from", "to", "reason"}),

		failoverSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_failover_success_total",
			Help: "Successful failovers served by a non-primary upstream",
		}, []string{"primary", "to"}),

		failoverExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_failover_exhausted_total",
			Help: "Requests that exhausted the fallback chain without success",
		}, []string{"primary"}),

		rateLimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_ratelimit_total",
			Help: "Rate limit decisions",
		}, []string{"result"}),

		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_tokens_total",
			Help: "Token usage totals from upstream responses",
		}, []string{"provider", "route", "direction", "cache"}),

		providerHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_provider_health",
			Help: "Provider health status (1=healthy, 0=unhealthy)",
		}, []string{"provider"}),

		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_build_info",
			Help: "Build information",
		}, []string{"version"}),

		shadowComparisons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_shadow_comparisons_total",
			Help: "Shadow evaluation comparisons by judged winner",
		}, []string{"primary", "shadow", "winner"}),

		judgeWinRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_judge_win_rate",
			Help: "Rolling win rate of a shadow upstream against its primary, by task type",
		}, []string{"upstream", "task_type"}),
	}

	reg.MustRegister(
		r.inFlight, r.httpRequestsTotal, r.httpDuration,
		r.requestsTotal, r.requestDuration,
		r.upstreamAttempts, r.upstreamDuration,
		r.cacheHits, r.cacheMisses, r.cacheOps,
		r.providerErrors,
		r.circuitBreakerState, r.cbTransitions, r.cbRejections,
		r.failoverEvents, r.failoverSuccess, r.failoverExhausted,
		r.rateLimitTotal, r.tokensTotal, r.providerHealth, r.buildInfo,
		r.shadowComparisons, r.judgeWinRate,
	)

	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r
}

// Handler returns the net/http handler to mount at /metrics.
func (r *Registry) Handler() http.Handler { return r.handler }

func (r *Registry) IncInFlight() { r.inFlight.Inc() }
func (r *Registry) DecInFlight() { r.inFlight.Dec() }

func (r *Registry) ObserveHTTP(route string, statusCode int, dur time.Duration) {
	status := strconv.Itoa(statusCode)
	r.httpRequestsTotal.WithLabelValues(route, status).Inc()
	r.httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

func (r *Registry) RecordRequest(provider, status string) {
	r.requestsTotal.WithLabelValues(provider, status).Inc()
}

func (r *Registry) ObserveGatewayRequest(provider, route, cache string, dur time.Duration) {
	r.requestDuration.WithLabelValues(provider, route, cache).Observe(dur.Seconds())
}

func (r *Registry) ObserveUpstreamAttempt(provider, route, outcome string, dur time.Duration) {
	r.upstreamAttempts.WithLabelValues(provider, route, outcome).Inc()
	r.upstreamDuration.WithLabelValues(provider, route, outcome).Observe(dur.Seconds())
}

func (r *Registry) RecordFailover(primary, from, to, reason string) {
	r.failoverEvents.WithLabelValues(primary, from, to, reason).Inc()
}

func (r *Registry) RecordFailoverSuccess(primary, to string) {
	r.failoverSuccess.WithLabelValues(primary, to).Inc()
}

func (r *Registry) RecordFailoverExhausted(primary string) {
	r.failoverExhausted.WithLabelValues(primary).Inc()
}

func (r *Registry) RecordRateLimit(result string) {
	r.rateLimitTotal.WithLabelValues(result).Inc()
}

func (r *Registry) CacheGetHit() {
	r.cacheHits.Inc()
	r.cacheOps.WithLabelValues("get", "hit").Inc()
}

func (r *Registry) CacheGetMiss() {
	r.cacheMisses.Inc()
	r.cacheOps.WithLabelValues("get", "miss").Inc()
}

func (r *Registry) CacheSetOK() { r.cacheOps.WithLabelValues("set", "ok").Inc() }

func (r *Registry) AddTokens(provider, route string, inputTokens, outputTokens int, cached bool) {
	cache := "miss"
	if cached {
		cache = "hit"
	}
	if inputTokens > 0 {
		r.tokensTotal.WithLabelValues(provider, route, "input", cache).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		r.tokensTotal.WithLabelValues(provider, route, "output", cache).Add(float64(outputTokens))
	}
}

func (r *Registry) SetProviderHealth(provider string, healthy bool) {
	if healthy {
		r.providerHealth.WithLabelValues(provider).Set(1)
		return
	}
	r.providerHealth.WithLabelValues(provider).Set(0)
}

func (r *Registry) SetBuildInfo(version string) {
	r.buildInfo.WithLabelValues(version).Set(1)
}

func (r *Registry) RecordProviderError(provider, errType string) {
	r.providerErrors.WithLabelValues(provider, errType).Inc()
}

// SetCircuitBreaker sets the breaker state gauge (0=closed,1=open,2=half-open)
// and increments a transition counter whenever the state actually changes.
func (r *Registry) SetCircuitBreaker(provider string, state int64) {
	r.circuitBreakerState.WithLabelValues(provider).Set(float64(state))

	r.cbMu.Lock()
	prev, ok := r.lastCBState[provider]
	if !ok || prev != float64(state) {
		r.lastCBState[provider] = float64(state)
		r.cbTransitions.WithLabelValues(provider, strconv.FormatInt(state, 10)).Inc()
	}
	r.cbMu.Unlock()
}

func (r *Registry) RecordCircuitBreakerRejection(provider, state string) {
	r.cbRejections.WithLabelValues(provider, state).Inc()
}

func (r *Registry) RecordShadowComparison(primary, shadow, winner string) {
	r.shadowComparisons.WithLabelValues(primary, shadow, winner).Inc()
}

func (r *Registry) SetJudgeWinRate(upstream, taskType string, rate float64) {
	r.judgeWinRate.WithLabelValues(upstream, taskType).Set(rate)
}

// PromRegistry exposes the underlying registry for tests.
func (r *Registry) PromRegistry() *prometheus.Registry { return r.reg }
