package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// RemoteBackend stores entries in Redis as JSON with a per-entry TTL in
// seconds. On any connection failure it logs a warning once and degrades
// to an in-process memory backend for the remainder of the process
// lifetime, per spec.md §4.2.
type RemoteBackend struct {
	client      *redis.Client
	keyPrefix   string
	logger      *logrus.Logger
	degradeOnce sync.Once
	degraded    bool
	fallback    *memoryBackend
	mu          sync.RWMutex
}

// NewRemoteBackend builds a RemoteBackend against the given Redis URL
// (redis://host:port/db). maxSize bounds the in-memory degrade path only;
// Redis itself is not capacity-limited here.
func NewRemoteBackend(redisURL string, maxSize int, logger *logrus.Logger) (*RemoteBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RemoteBackend{
		client:    redis.NewClient(opts),
		keyPrefix: "llmgw:cache:",
		logger:    logger,
		fallback:  newMemoryBackend(maxSize),
	}, nil
}

func (r *RemoteBackend) degrade(err error) {
	r.degradeOnce.Do(func() {
		r.mu.Lock()
		r.degraded = true
		r.mu.Unlock()
		r.logger.WithError(err).Warn("cache: remote backend unreachable, degrading to in-memory")
	})
}

func (r *RemoteBackend) isDegraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.degraded
}

func (r *RemoteBackend) Get(key string) (types.GatewayResponse, bool) {
	if r.isDegraded() {
		return r.fallback.Get(key)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return types.GatewayResponse{}, false
	}
	if err != nil {
		r.degrade(err)
		return r.fallback.Get(key)
	}

	var value types.GatewayResponse
	if err := json.Unmarshal(data, &value); err != nil {
		return types.GatewayResponse{}, false
	}
	return value, true
}

func (r *RemoteBackend) Set(key string, value types.GatewayResponse, ttl time.Duration) {
	if r.isDegraded() {
		r.fallback.Set(key, value, ttl)
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, r.keyPrefix+key, data, ttl).Err(); err != nil {
		r.degrade(err)
		r.fallback.Set(key, value, ttl)
	}
}

func (r *RemoteBackend) Delete(key string) {
	if r.isDegraded() {
		r.fallback.Delete(key)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		r.degrade(err)
	}
}

func (r *RemoteBackend) Clear() int {
	if r.isDegraded() {
		return r.fallback.Clear()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.degrade(err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.degrade(err)
		return 0
	}
	return len(keys)
}

func (r *RemoteBackend) Len() int {
	if r.isDegraded() {
		return r.fallback.Len()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		count++
	}
	return count
}
