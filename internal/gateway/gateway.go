// Package gateway implements the pipeline controller sitting behind the
// external endpoint surface: request ID assignment, cache lookup, budget
// and rate-limit accounting, priority-ordered fallback across upstreams,
// and shadow-traffic scheduling, all wired together the way the teacher's
// router composes its own middleware and routing passes.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/breaker"
	"github.com/tributary-ai/llm-router-gateway/internal/budget"
	"github.com/tributary-ai/llm-router-gateway/internal/cache"
	"github.com/tributary-ai/llm-router-gateway/internal/classifier"
	gwconfig "github.com/tributary-ai/llm-router-gateway/internal/config"
	gwerrors "github.com/tributary-ai/llm-router-gateway/internal/errors"
	"github.com/tributary-ai/llm-router-gateway/internal/fallback"
	"github.com/tributary-ai/llm-router-gateway/internal/inspector"
	"github.com/tributary-ai/llm-router-gateway/internal/metrics"
	"github.com/tributary-ai/llm-router-gateway/internal/plugin"
	"github.com/tributary-ai/llm-router-gateway/internal/providers"
	"github.com/tributary-ai/llm-router-gateway/internal/ratelimit"
	"github.com/tributary-ai/llm-router-gateway/internal/resource"
	"github.com/tributary-ai/llm-router-gateway/internal/routing"
	"github.com/tributary-ai/llm-router-gateway/internal/shadow"
	"github.com/tributary-ai/llm-router-gateway/internal/store"
	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Options bundles every component Gateway wires together. Callers (main.go)
// construct each piece independently and hand them in, so the gateway
// itself holds no construction logic beyond composing them.
type Options struct {
	Config    *gwconfig.GatewayConfig
	Logger    *logrus.Logger
	Providers map[string]providers.LLMProvider // name -> adapter, for /v1/models, /api/tags
	Upstreams []*fallback.Upstream

	Cache     *cache.Cache
	Limiter   *ratelimit.Limiter
	Budget    *budget.Manager
	Inspector *inspector.Inspector
	Resources *resource.Monitor
	Plugins   *plugin.Registry
	Metrics   *metrics.Registry

	Shadow        *shadow.Router
	Judge         *shadow.Judge
	ShadowMetrics *shadow.MetricsCollector
	Optimizer     *shadow.Optimizer

	Store   *store.Store
	Version string

	// SmartRouter drives /api/smart's provider pick. Nil falls back to
	// the fallback executor's own priority-ordered walk.
	SmartRouter *routing.SmartRouter
}

// Gateway is the pipeline controller. Its handler methods are mounted onto
// routes by internal/server; Gateway registers no routes itself, and its
// admin handlers read path variables with mux.Vars.
type Gateway struct {
	config    *gwconfig.GatewayConfig
	logger    *logrus.Logger
	providers map[string]providers.LLMProvider

	cache     *cache.Cache
	limiter   *ratelimit.Limiter
	budget    *budget.Manager
	inspector *inspector.Inspector
	resources *resource.Monitor
	plugins   *plugin.Registry
	metrics   *metrics.Registry
	fallback  *fallback.Executor
	upstreams []*fallback.Upstream
	smart     *routing.SmartRouter

	shadowRouter  *shadow.Router
	judge         *shadow.Judge
	shadowMetrics *shadow.MetricsCollector
	optimizer     *shadow.Optimizer

	store   *store.Store
	version string
	started time.Time
}

// New composes a Gateway from already-constructed components.
func New(opts Options) *Gateway {
	return &Gateway{
		config:        opts.Config,
		logger:        opts.Logger,
		providers:     opts.Providers,
		cache:         opts.Cache,
		limiter:       opts.Limiter,
		budget:        opts.Budget,
		inspector:     opts.Inspector,
		resources:     opts.Resources,
		plugins:       opts.Plugins,
		metrics:       opts.Metrics,
		fallback:      fallback.New(opts.Upstreams, opts.Cache, opts.Logger),
		upstreams:     opts.Upstreams,
		smart:         opts.SmartRouter,
		shadowRouter:  opts.Shadow,
		judge:         opts.Judge,
		shadowMetrics: opts.ShadowMetrics,
		optimizer:     opts.Optimizer,
		store:         opts.Store,
		version:       opts.Version,
		started:       time.Now(),
	}
}

// newRequestID returns the 8-hex-char prefix of a UUIDv4, matching
// spec.md's request ID wire format.
func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano())
	}
	// Set the UUIDv4 version/variant bits so the value really is a v4 UUID
	// even though only its first 8 hex characters are ever surfaced.
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return hex.EncodeToString(b[:4])
}

// pickSmartUpstream runs the classifier and routing.SmartRouter over the
// currently-eligible upstreams and returns its pick, or "" if smart
// routing isn't configured or no candidate is eligible. The caller treats
// the result as a preference, not a hard restriction.
func (g *Gateway) pickSmartUpstream(prompt string, privacy types.PrivacyLevel) string {
	if g.smart == nil {
		return ""
	}
	_, complexity := classifier.ClassifyComplexity(prompt)
	taskType := classifier.ClassifyTaskType(prompt, "")

	health := types.HealthHealthy
	if g.resources != nil {
		health = g.resources.Health()
	}

	candidates := make([]routing.SmartCandidate, 0, len(g.upstreams))
	for _, up := range g.upstreams {
		if up.Breaker != nil && up.Breaker.State() == breaker.StateOpen {
			continue
		}
		tier := "default"
		if up.Config.Name == "local" {
			tier = "local"
		}
		candidates = append(candidates, routing.SmartCandidate{
			Name:      up.Config.Name,
			Secure:    up.Config.Secure,
			Strengths: up.Config.Strengths,
			Tier:      tier,
			Weight:    float64(up.Config.Weight),
		})
	}
	if len(candidates) == 0 {
		return ""
	}

	rationale := g.smart.RouteSmart(privacy, complexity, taskType, health, candidates)
	return rationale.Provider
}

// maxRetries is how many times a TransportRetryable failure is retried
// inside a single upstream attempt before the fallback executor moves on to
// the next candidate, per spec.md's TransportRetryable policy.
const maxRetries = 3

// callChat invokes up's provider with bounded exponential-backoff retry for
// TransportRetryable failures, classifying the terminal error so the
// fallback executor can decide whether to cool the upstream down.
func (g *Gateway) callChat(ctx context.Context, up *fallback.Upstream, model string, req *types.ChatRequest) (types.GatewayResponse, error) {
	req.Model = model

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return types.GatewayResponse{}, ctx.Err()
			}
		}

		start := time.Now()
		resp, err := up.Provider.ChatCompletion(ctx, req)
		duration := time.Since(start)
		if g.metrics != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			g.metrics.ObserveUpstreamAttempt(up.Config.Name, "chat", outcome, duration)
		}
		if err == nil {
			text := ""
			var usage types.Usage
			if len(resp.Choices) > 0 {
				if s, ok := resp.Choices[0].Message.Content.(string); ok {
					text = s
				}
			}
			if resp.Usage != nil {
				usage = *resp.Usage
			}
			return types.GatewayResponse{
				Model:      resp.Model,
				Text:       text,
				Provider:   up.Config.Name,
				DurationMs: duration.Milliseconds(),
				Usage:      usage,
			}, nil
		}

		lastErr = err
		gwErr := gwerrors.ClassifyUpstreamError(up.Config.Name, err)
		if gwErr.Kind != gwerrors.KindTransportRetryable {
			return types.GatewayResponse{}, err
		}
	}
	return types.GatewayResponse{}, lastErr
}

// authorizeBudget pre-authorizes a call against the tenant's token/cost
// budget before dispatch. The upstream isn't known yet at this point, so
// cost is checked against an empty provider key (which prices as free) and
// only the prompt's estimated token count is available; the completion
// side is reconciled for real once recordBudgetUsage runs after success.
func (g *Gateway) authorizeBudget(tenant, model, prompt string) *gwerrors.GatewayError {
	if g.budget == nil {
		return nil
	}
	promptTokens := budget.EstimateTokens(prompt)
	if allowed, period := g.budget.Authorize(tenant, "", model, promptTokens, 0); !allowed {
		return gwerrors.New(gwerrors.KindQuota, fmt.Sprintf("token/cost budget exceeded for %s period", period))
	}
	return nil
}

// recordBudgetUsage charges the tenant's budget for a completed call using
// the upstream's own reported usage counts.
func (g *Gateway) recordBudgetUsage(tenant string, resp types.GatewayResponse) {
	if g.budget == nil {
		return
	}
	g.budget.RecordUsage(tenant, resp.Provider, resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
}

// maybeShadow schedules shadow-traffic comparisons against the other live
// upstreams once a primary call has already succeeded. It never blocks or
// affects the response already being written to the caller.
func (g *Gateway) maybeShadow(requestID, prompt string, taskType types.TaskType, primary types.GatewayResponse) {
	if g.shadowRouter == nil {
		return
	}
	primarySide := types.ComparisonSide{
		Provider:   primary.Provider,
		Response:   primary.Text,
		DurationMs: primary.DurationMs,
	}
	g.shadowRouter.MaybeShadow(requestID, prompt, taskType, primarySide, g.shadowCandidates(primary.Provider), g.shadowCallFunc())
}

// shadowCandidates lists every configured upstream name other than primary,
// the pool the shadow router samples from.
func (g *Gateway) shadowCandidates(primary string) []string {
	out := make([]string, 0, len(g.upstreams))
	for _, up := range g.upstreams {
		if up.Config.Name != primary {
			out = append(out, up.Config.Name)
		}
	}
	return out
}

// shadowCallFunc adapts callChat to shadow.CallFunc so the shadow router
// can dispatch comparison calls against a named upstream.
func (g *Gateway) shadowCallFunc() shadow.CallFunc {
	return func(ctx context.Context, upstream, prompt string) (string, time.Duration, error) {
		up := g.upstreamByName(upstream)
		if up == nil {
			return "", 0, fmt.Errorf("unknown shadow upstream %q", upstream)
		}
		req := &types.ChatRequest{Messages: []types.Message{{Role: "user", Content: prompt}}}
		resp, err := g.callChat(ctx, up, "", req)
		if err != nil {
			return "", 0, err
		}
		return resp.Text, time.Duration(resp.DurationMs) * time.Millisecond, nil
	}
}

// upstreamByName looks up a configured upstream by its name.
func (g *Gateway) upstreamByName(name string) *fallback.Upstream {
	for _, up := range g.upstreams {
		if up.Config.Name == name {
			return up
		}
	}
	return nil
}

// callStream is the streaming analogue of callChat; it does not retry
// mid-stream (spec.md: fallback only applies before any bytes are sent).
func (g *Gateway) callStream(ctx context.Context, up *fallback.Upstream, model string, req *types.ChatRequest) (<-chan fallback.StreamChunk, error) {
	req.Model = model
	start := time.Now()
	chunks, err := up.Provider.StreamCompletion(ctx, req)
	if err != nil {
		if g.metrics != nil {
			g.metrics.ObserveUpstreamAttempt(up.Config.Name, "stream", "error", time.Since(start))
		}
		return nil, err
	}

	out := make(chan fallback.StreamChunk, 16)
	go func() {
		defer close(out)
		for c := range chunks {
			out <- fallback.StreamChunk{Chunk: c}
		}
		if g.metrics != nil {
			g.metrics.ObserveUpstreamAttempt(up.Config.Name, "stream", "ok", time.Since(start))
		}
	}()
	return out, nil
}
