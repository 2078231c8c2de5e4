// Package ratelimit implements the gateway's sliding-window request limiter.
//
// Unlike a token bucket, a sliding window is split into fixed-width
// sub-buckets covering the configured window; Increment prunes expired
// buckets before crediting the current one, so the effective limit never
// resets in a single step the way a token-bucket refill can. A background
// sweep drops keys that have gone quiet for two full windows.
package ratelimit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Result is returned by Increment and Check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"reset_at"`
}

// Config holds sliding-window limiter configuration.
type Config struct {
	Enabled         bool          `yaml:"enabled"`
	WindowDuration  time.Duration `yaml:"window_duration"`  // total window width, e.g. 1 minute
	Precision       time.Duration `yaml:"precision"`        // sub-bucket width, e.g. 1 second
	MaxRequests     int           `yaml:"max_requests"`     // default limit per window
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Limiter is a sliding-window rate limiter keyed by an arbitrary string
// (API key, tenant ID, client IP). Per-key limit overrides can be set with
// SetLimit for tenants with a negotiated quota different from the default.
type Limiter struct {
	config *Config
	logger *logrus.Logger

	mu      sync.Mutex
	windows map[string]*window
	limits  map[string]int

	stopCleanup chan struct{}
	stopped     bool
}

// window tracks per-bucket counts for one key across the sliding window.
type window struct {
	buckets     map[int64]int // bucket start (unix nanoseconds, truncated to precision) -> count
	lastUpdated time.Time
}

// New builds a Limiter and starts its background sweep goroutine.
func New(config *Config, logger *logrus.Logger) *Limiter {
	if config.WindowDuration == 0 {
		config.WindowDuration = time.Minute
	}
	if config.Precision == 0 {
		config.Precision = time.Second
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 60 * time.Second
	}

	l := &Limiter{
		config:      config,
		logger:      logger,
		windows:     make(map[string]*window),
		limits:      make(map[string]int),
		stopCleanup: make(chan struct{}),
	}

	l.startSweep()
	return l
}

// SetLimit overrides the default MaxRequests for a specific key.
func (l *Limiter) SetLimit(key string, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[key] = limit
}

func (l *Limiter) limitFor(key string) int {
	if custom, ok := l.limits[key]; ok {
		return custom
	}
	return l.config.MaxRequests
}

// Increment records weight (default 1) requests against key's window. It
// returns Allowed=false without crediting the bucket when doing so would
// exceed the key's limit.
func (l *Limiter) Increment(key string, weight int) Result {
	if weight <= 0 {
		weight = 1
	}

	if !l.config.Enabled {
		return Result{Allowed: true, Remaining: l.limitFor(key), Limit: l.limitFor(key)}
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.getOrCreateWindowLocked(key)
	l.pruneLocked(w, now)

	limit := l.limitFor(key)
	total := totalCount(w)
	resetAt := now.Add(l.config.WindowDuration)

	if total+weight > limit {
		l.logger.WithFields(logrus.Fields{
			"key":   maskKey(key),
			"total": total,
			"limit": limit,
		}).Warn("rate limit exceeded")
		return Result{
			Allowed:   false,
			Remaining: max0(limit - total),
			Limit:     limit,
			ResetAt:   resetAt,
		}
	}

	bucket := now.Truncate(l.config.Precision).UnixNano()
	w.buckets[bucket] += weight
	w.lastUpdated = now

	return Result{
		Allowed:   true,
		Remaining: max0(limit - total - weight),
		Limit:     limit,
		ResetAt:   resetAt,
	}
}

// Check reports the current state for key without mutating it.
func (l *Limiter) Check(key string) Result {
	now := time.Now()
	limit := l.limitFor(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return Result{Allowed: true, Remaining: limit, Limit: limit, ResetAt: now.Add(l.config.WindowDuration)}
	}

	l.pruneLocked(w, now)
	total := totalCount(w)

	return Result{
		Allowed:   total < limit,
		Remaining: max0(limit - total),
		Limit:     limit,
		ResetAt:   now.Add(l.config.WindowDuration),
	}
}

// Reset clears a key's window entirely.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
	l.logger.WithField("key", maskKey(key)).Info("rate limit reset")
}

func (l *Limiter) getOrCreateWindowLocked(key string) *window {
	w, ok := l.windows[key]
	if !ok {
		w = &window{buckets: make(map[int64]int), lastUpdated: time.Now()}
		l.windows[key] = w
	}
	return w
}

// pruneLocked drops buckets older than the window. l.mu must be held.
func (l *Limiter) pruneLocked(w *window, now time.Time) {
	cutoff := now.Add(-l.config.WindowDuration).UnixNano()
	for bucket := range w.buckets {
		if bucket < cutoff {
			delete(w.buckets, bucket)
		}
	}
}

func totalCount(w *window) int {
	total := 0
	for _, c := range w.buckets {
		total += c
	}
	return total
}

func (l *Limiter) startSweep() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	go func() {
		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stopCleanup:
				ticker.Stop()
				return
			}
		}
	}()
}

// sweep drops keys idle for more than two full windows.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-2 * l.config.WindowDuration)
	removed := 0
	for key, w := range l.windows {
		if w.lastUpdated.Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	if removed > 0 {
		l.logger.WithField("removed_keys", removed).Debug("rate limit sweep completed")
	}
}

// Stop halts the background sweep goroutine.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	close(l.stopCleanup)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}
