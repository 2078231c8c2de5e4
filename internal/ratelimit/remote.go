package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RemoteLimiter is a Redis-backed sliding-window limiter for multi-process
// deployments, using a sorted set per key (score = request timestamp) so
// expired entries can be trimmed in a single ZREMRANGEBYSCORE. It degrades
// to a local in-process Limiter on any Redis error, logged once.
type RemoteLimiter struct {
	client    *redis.Client
	keyPrefix string
	config    *Config
	logger    *logrus.Logger

	degradeOnce sync.Once
	mu          sync.RWMutex
	degraded    bool
	fallback    *Limiter
}

// NewRemoteLimiter builds a RemoteLimiter against the given Redis URL.
func NewRemoteLimiter(redisURL string, config *Config, logger *logrus.Logger) (*RemoteLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RemoteLimiter{
		client:    redis.NewClient(opts),
		keyPrefix: "llmgw:ratelimit:",
		config:    config,
		logger:    logger,
		fallback:  New(config, logger),
	}, nil
}

func (r *RemoteLimiter) degrade(err error) {
	r.degradeOnce.Do(func() {
		r.mu.Lock()
		r.degraded = true
		r.mu.Unlock()
		r.logger.WithError(err).Warn("ratelimit: remote backend unreachable, degrading to in-memory")
	})
}

func (r *RemoteLimiter) isDegraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

// Increment mirrors Limiter.Increment against the Redis sorted set.
func (r *RemoteLimiter) Increment(key string, weight int) Result {
	if weight <= 0 {
		weight = 1
	}
	if !r.config.Enabled {
		return Result{Allowed: true, Remaining: r.config.MaxRequests, Limit: r.config.MaxRequests}
	}
	if r.isDegraded() {
		return r.fallback.Increment(key, weight)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	redisKey := r.keyPrefix + key
	cutoff := now.Add(-r.config.WindowDuration).UnixNano()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	_, err := pipe.Exec(ctx)
	if err != nil {
		r.degrade(err)
		return r.fallback.Increment(key, weight)
	}

	limit := r.limitFor(key)
	total := int(countCmd.Val())
	resetAt := now.Add(r.config.WindowDuration)

	if total+weight > limit {
		return Result{Allowed: false, Remaining: max0(limit - total), Limit: limit, ResetAt: resetAt}
	}

	members := make([]redis.Z, weight)
	for i := 0; i < weight; i++ {
		members[i] = redis.Z{Score: float64(now.UnixNano()) + float64(i), Member: now.UnixNano() + int64(i)}
	}
	if err := r.client.ZAdd(ctx, redisKey, members...).Err(); err != nil {
		r.degrade(err)
		return r.fallback.Increment(key, weight)
	}
	r.client.Expire(ctx, redisKey, r.config.WindowDuration)

	return Result{Allowed: true, Remaining: max0(limit - total - weight), Limit: limit, ResetAt: resetAt}
}

// Check is the non-mutating counterpart of Increment.
func (r *RemoteLimiter) Check(key string) Result {
	if r.isDegraded() {
		return r.fallback.Check(key)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	redisKey := r.keyPrefix + key
	cutoff := now.Add(-r.config.WindowDuration).UnixNano()

	if err := r.client.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		r.degrade(err)
		return r.fallback.Check(key)
	}

	total, err := r.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		r.degrade(err)
		return r.fallback.Check(key)
	}

	limit := r.limitFor(key)
	return Result{
		Allowed:   int(total) < limit,
		Remaining: max0(limit - int(total)),
		Limit:     limit,
		ResetAt:   now.Add(r.config.WindowDuration),
	}
}

// Reset clears a key's sorted set.
func (r *RemoteLimiter) Reset(key string) {
	if r.isDegraded() {
		r.fallback.Reset(key)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		r.degrade(err)
	}
}

func (r *RemoteLimiter) limitFor(key string) int {
	r.fallback.mu.Lock()
	defer r.fallback.mu.Unlock()
	if custom, ok := r.fallback.limits[key]; ok {
		return custom
	}
	return r.config.MaxRequests
}

// SetLimit overrides the default MaxRequests for a specific key.
func (r *RemoteLimiter) SetLimit(key string, limit int) {
	r.fallback.SetLimit(key, limit)
}
