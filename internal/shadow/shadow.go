// Package shadow implements the gateway's shadow-traffic evaluation
// pipeline: a router that mirrors a sampled fraction of primary traffic to
// other upstreams without blocking the client, a judge that scores the
// resulting A/B pairs, a rolling metrics collector, and a weight optimizer
// that nudges routing weights toward whichever upstream is winning.
//
// Dispatch follows the fork-join shape used elsewhere in the corpus for
// fanning work out across goroutines and collecting results on a channel,
// adapted here to fire-and-forget semantics: the caller's request is never
// held up waiting for a shadow call to return.
package shadow

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Config tunes the shadow router's sampling behavior.
type Config struct {
	Enabled       bool     `yaml:"enabled"`
	Rate          float64  `yaml:"rate"`           // probability of shadowing a given primary success (config default 0.05; 0 never shadows)
	MaxConcurrent int      `yaml:"max_concurrent"` // upstreams shadowed per request
	Exclude       []string `yaml:"exclude"`        // upstream names never shadowed
	QueueCapacity int      `yaml:"queue_capacity"` // bounded comparison queue, drop-oldest on overflow
}

// CallFunc invokes an upstream and returns its response text and duration.
type CallFunc func(ctx context.Context, upstream, prompt string) (text string, duration time.Duration, err error)

// Router samples primary successes and dispatches comparison calls.
type Router struct {
	config Config
	logger *logrus.Logger
	rng    *rand.Rand
	mu     sync.Mutex

	queue []types.ShadowComparison
}

// NewRouter builds a Router. seed seeds the sampling RNG; pass a
// time-derived seed at construction time (not inside hot paths, since
// math/rand.New is not safe to reseed from a shared clock on every call).
func NewRouter(config Config, logger *logrus.Logger, seed int64) *Router {
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 1
	}
	if config.QueueCapacity == 0 {
		config.QueueCapacity = 500
	}
	return &Router{
		config: config,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		queue:  make([]types.ShadowComparison, 0, config.QueueCapacity),
	}
}

// MaybeShadow decides whether to mirror this request and, if so, dispatches
// shadow calls in background goroutines. It never blocks the caller.
func (r *Router) MaybeShadow(requestID, prompt string, taskType types.TaskType, primary types.ComparisonSide, candidates []string, call CallFunc) {
	if !r.config.Enabled {
		return
	}

	r.mu.Lock()
	roll := r.rng.Float64()
	r.mu.Unlock()

	if roll >= r.config.Rate {
		return
	}

	targets := r.pickTargets(primary.Provider, candidates)
	if len(targets) == 0 {
		return
	}

	for _, upstream := range targets {
		go r.dispatch(requestID, prompt, taskType, primary, upstream, call)
	}
}

func (r *Router) pickTargets(primaryProvider string, candidates []string) []string {
	excluded := make(map[string]bool, len(r.config.Exclude)+1)
	excluded[primaryProvider] = true
	for _, name := range r.config.Exclude {
		excluded[name] = true
	}

	var eligible []string
	for _, c := range candidates {
		if !excluded[c] {
			eligible = append(eligible, c)
		}
	}

	if len(eligible) > r.config.MaxConcurrent {
		eligible = eligible[:r.config.MaxConcurrent]
	}
	return eligible
}

func (r *Router) dispatch(requestID, prompt string, taskType types.TaskType, primary types.ComparisonSide, upstream string, call CallFunc) {
	start := time.Now()
	text, duration, err := call(context.Background(), upstream, prompt)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"upstream": upstream, "request_id": requestID}).
			Debug("shadow call failed, dropping comparison")
		return
	}
	if duration == 0 {
		duration = time.Since(start)
	}

	comparison := types.ShadowComparison{
		RequestID: requestID,
		Prompt:    prompt,
		TaskType:  taskType,
		Timestamp: time.Now(),
		Primary:   primary,
		Shadow:    types.ComparisonSide{Provider: upstream, Response: text, DurationMs: duration.Milliseconds()},
	}
	r.enqueue(comparison)
}

// enqueue appends to the bounded comparison queue, dropping the oldest
// entry on overflow.
func (r *Router) enqueue(c types.ShadowComparison) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) >= r.config.QueueCapacity {
		r.queue = r.queue[1:]
	}
	r.queue = append(r.queue, c)
}

// Drain removes and returns up to limit queued comparisons, oldest first.
func (r *Router) Drain(limit int) []types.ShadowComparison {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.queue) {
		limit = len(r.queue)
	}
	out := append([]types.ShadowComparison(nil), r.queue[:limit]...)
	r.queue = r.queue[limit:]
	return out
}

// QueueLen reports the number of comparisons currently queued.
func (r *Router) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
