// Package fallback implements the gateway's priority-ordered upstream
// walk: cache lookup, quota/cooldown tracking per upstream, circuit-breaker
// gating, and exhaustive per-upstream error collection when every
// candidate fails.
package fallback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/breaker"
	"github.com/tributary-ai/llm-router-gateway/internal/cache"
	gwerrors "github.com/tributary-ai/llm-router-gateway/internal/errors"
	"github.com/tributary-ai/llm-router-gateway/internal/providers"
	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Upstream bundles one configured provider with its adapter and breaker.
type Upstream struct {
	Config   types.UpstreamConfig
	Provider providers.LLMProvider
	Breaker  *breaker.Breaker
}

// Options controls one fallback execution.
type Options struct {
	Model        string
	UseCache     bool
	PrivacyClass types.PrivacyLevel
	RequireSecure bool // restrict candidates to upstreams marked secure

	// PreferredUpstream, when set, is tried first (still subject to
	// cooldown/breaker/secure filtering); every other eligible upstream
	// remains available as fallback if it fails.
	PreferredUpstream string
}

// AttemptError records one upstream's failure during a fallback walk.
type AttemptError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// AllProvidersFailed is returned when every candidate upstream failed.
type AllProvidersFailed struct {
	Attempts []AttemptError
}

func (e *AllProvidersFailed) Error() string {
	return fmt.Sprintf("all %d upstream(s) failed", len(e.Attempts))
}

// AllQuotasExhausted is returned when no upstream is currently eligible.
type AllQuotasExhausted struct{}

func (e *AllQuotasExhausted) Error() string { return "all upstreams are in cooldown or unavailable" }

// Result is the outcome of a successful fallback execution.
type Result struct {
	Response        types.GatewayResponse
	Cached          bool
	AttemptCount    int
	FailedProviders []string
	FallbackUsed    bool
	RetryDelaysMs   []int64
}

// QuotaState is one upstream's availability record: whether it is
// currently eligible, when its cooldown (if any) expires, the last error
// that put it there, and simple lifetime counters. Mutated under the
// Executor's own lock rather than the adapter's, since the Executor is
// what observes upstream outcomes.
type QuotaState struct {
	Available     bool      `json:"available"`
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	RequestCount  int64     `json:"request_count"`
	LastReset     time.Time `json:"last_reset"`
}

// Executor runs executeWithFallback/executeStreamWithFallback over a set
// of upstreams, ordered by Config.Priority (lower is preferred).
type Executor struct {
	logger *logrus.Logger
	cache  *cache.Cache

	mu        sync.Mutex
	upstreams []*Upstream
	cooldowns map[string]time.Time  // upstream name -> cooldown expiry
	quota     map[string]*QuotaState
}

// New builds an Executor over the given upstreams.
func New(upstreams []*Upstream, c *cache.Cache, logger *logrus.Logger) *Executor {
	ordered := append([]*Upstream(nil), upstreams...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Config.Priority < ordered[j].Config.Priority
	})
	quota := make(map[string]*QuotaState, len(ordered))
	now := time.Now()
	for _, up := range ordered {
		quota[up.Config.Name] = &QuotaState{Available: true, LastReset: now}
	}
	return &Executor{
		logger:    logger,
		cache:     c,
		upstreams: ordered,
		cooldowns: make(map[string]time.Time),
		quota:     quota,
	}
}

// ExecuteWithFallback walks available upstreams in priority order, calling
// call(ctx, upstream, model) on each until one succeeds.
func (e *Executor) ExecuteWithFallback(ctx context.Context, prompt string, opts Options, call func(context.Context, *Upstream, string) (types.GatewayResponse, error)) (*Result, error) {
	model := opts.Model
	if model == "" {
		model = "default"
	}

	if opts.UseCache && e.cache != nil {
		key := cache.Key("any", model, prompt, opts.PrivacyClass)
		if value, found := e.cache.Get(key); found {
			value.Cached = true
			return &Result{Response: value, Cached: true}, nil
		}
	}

	candidates := e.availableUpstreams(opts)
	if len(candidates) == 0 {
		return nil, &AllQuotasExhausted{}
	}

	var attempts []AttemptError
	var failedProviders []string

	for i, up := range candidates {
		response, err := e.attempt(ctx, up, prompt, model, call)
		if err == nil {
			if opts.UseCache && e.cache != nil {
				e.cache.Set(cache.Key("any", model, prompt, opts.PrivacyClass), response)
			}
			return &Result{
				Response:        response,
				AttemptCount:    i + 1,
				FailedProviders: failedProviders,
				FallbackUsed:    i > 0,
			}, nil
		}

		gwErr := gwerrors.ClassifyUpstreamError(up.Config.Name, err)
		failedProviders = append(failedProviders, up.Config.Name)
		attempts = append(attempts, AttemptError{Provider: up.Config.Name, Error: gwErr.Error()})

		if gwErr.Kind == gwerrors.KindQuota {
			e.markCooldown(up)
		}
	}

	return nil, &AllProvidersFailed{Attempts: attempts}
}

func (e *Executor) attempt(ctx context.Context, up *Upstream, prompt, model string, call func(context.Context, *Upstream, string) (types.GatewayResponse, error)) (types.GatewayResponse, error) {
	e.recordRequest(up.Config.Name)

	if up.Breaker != nil && !up.Breaker.Allow() {
		return types.GatewayResponse{}, fmt.Errorf("circuit open for %s", up.Config.Name)
	}

	response, err := call(ctx, up, model)
	if up.Breaker != nil {
		up.Breaker.RecordResult(err == nil)
	}
	if err != nil {
		e.recordError(up.Config.Name, err)
	}
	return response, err
}

// recordRequest bumps an upstream's lifetime request counter.
func (e *Executor) recordRequest(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if qs, ok := e.quota[name]; ok {
		qs.RequestCount++
	}
}

// recordError stamps an upstream's QuotaState with its most recent error.
func (e *Executor) recordError(name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if qs, ok := e.quota[name]; ok {
		qs.LastError = err.Error()
	}
}

// markCooldown puts an upstream in cooldown for its configured duration.
// A CooldownTime of zero means the upstream never cools down (spec Open
// Question, resolved conservatively: quota errors are still recorded via
// the breaker, but the upstream stays selectable).
func (e *Executor) markCooldown(up *Upstream) {
	if up.Config.CooldownTime <= 0 {
		return
	}
	until := time.Now().Add(up.Config.CooldownTime)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cooldowns[up.Config.Name] = until
	if qs, ok := e.quota[up.Config.Name]; ok {
		qs.Available = false
		qs.CooldownUntil = until
	}
}

func (e *Executor) inCooldown(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.cooldowns[name]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(e.cooldowns, name)
		if qs, ok := e.quota[name]; ok {
			qs.Available = true
			qs.CooldownUntil = time.Time{}
		}
		return false
	}
	return true
}

// QuotaStatus returns a snapshot of every upstream's QuotaState, keyed by
// upstream name. If name is non-empty only that upstream's state (if
// known) is included.
func (e *Executor) QuotaStatus(name string) map[string]QuotaState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]QuotaState, len(e.quota))
	for k, qs := range e.quota {
		if name != "" && k != name {
			continue
		}
		out[k] = *qs
	}
	return out
}

// ResetCooldown clears an upstream's cooldown and resets its counters,
// making it immediately eligible again.
func (e *Executor) ResetCooldown(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	qs, ok := e.quota[name]
	if !ok {
		return false
	}
	delete(e.cooldowns, name)
	qs.Available = true
	qs.CooldownUntil = time.Time{}
	qs.LastError = ""
	qs.RequestCount = 0
	qs.LastReset = time.Now()
	return true
}

// availableUpstreams filters out upstreams in cooldown, with an open
// circuit, or (when RequireSecure) not marked secure.
func (e *Executor) availableUpstreams(opts Options) []*Upstream {
	var out []*Upstream
	for _, up := range e.upstreams {
		if e.inCooldown(up.Config.Name) {
			continue
		}
		if up.Breaker != nil && up.Breaker.State() == breaker.StateOpen {
			continue
		}
		if opts.RequireSecure && !up.Config.Secure {
			continue
		}
		out = append(out, up)
	}
	return preferUpstream(out, opts.PreferredUpstream)
}

// preferUpstream moves the named upstream to the front of candidates,
// leaving the rest in their existing priority order, so a caller's pick
// (e.g. smart routing) is tried first without losing fallback coverage.
func preferUpstream(candidates []*Upstream, name string) []*Upstream {
	if name == "" {
		return candidates
	}
	for i, up := range candidates {
		if up.Config.Name == name {
			if i == 0 {
				return candidates
			}
			out := make([]*Upstream, 0, len(candidates))
			out = append(out, up)
			out = append(out, candidates[:i]...)
			out = append(out, candidates[i+1:]...)
			return out
		}
	}
	return candidates
}

// StreamChunk is one piece of a streaming response delivered to the sink.
type StreamChunk struct {
	Chunk *types.ChatChunk
	Err   error
}

// ExecuteStreamWithFallback is the streaming analogue of
// ExecuteWithFallback: it only considers upstreams whose capabilities
// advertise streaming support, and only retries the next upstream if
// nothing has been delivered to the client yet.
func (e *Executor) ExecuteStreamWithFallback(
	ctx context.Context,
	prompt string,
	opts Options,
	callStream func(context.Context, *Upstream, string) (<-chan StreamChunk, error),
	sink func(StreamChunk) bool,
) error {
	candidates := e.availableStreamUpstreams(opts)
	if len(candidates) == 0 {
		return &AllQuotasExhausted{}
	}

	model := opts.Model
	if model == "" {
		model = "default"
	}

	var attempts []AttemptError

	for _, up := range candidates {
		if up.Breaker != nil && !up.Breaker.Allow() {
			continue
		}

		stream, err := callStream(ctx, up, model)
		if err != nil {
			if up.Breaker != nil {
				up.Breaker.RecordResult(false)
			}
			attempts = append(attempts, AttemptError{Provider: up.Config.Name, Error: err.Error()})
			continue
		}

		delivered := false
		streamFailed := false
		for chunk := range stream {
			if chunk.Err != nil {
				streamFailed = true
				if !delivered {
					break // nothing sent yet: fall through and try next upstream
				}
				sink(chunk)
				if up.Breaker != nil {
					up.Breaker.RecordResult(false)
				}
				return chunk.Err
			}
			delivered = true
			if !sink(chunk) {
				if up.Breaker != nil {
					up.Breaker.RecordResult(true)
				}
				return nil
			}
		}

		if up.Breaker != nil {
			up.Breaker.RecordResult(!streamFailed)
		}
		if !streamFailed {
			return nil
		}
		attempts = append(attempts, AttemptError{Provider: up.Config.Name, Error: "stream failed before any bytes were delivered"})
	}

	return &AllProvidersFailed{Attempts: attempts}
}

func (e *Executor) availableStreamUpstreams(opts Options) []*Upstream {
	var out []*Upstream
	for _, up := range e.availableUpstreams(opts) {
		if !up.Config.SupportsStream {
			continue
		}
		out = append(out, up)
	}
	return out
}
