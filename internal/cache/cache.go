// Package cache implements the gateway's cross-upstream response cache.
//
// Entries are keyed by a content-addressed digest of provider, model and
// prompt so that identical requests hit the same slot regardless of which
// component produced them. The in-memory backend is a TTL-checked,
// capacity-bounded LRU; a Redis-backed remote backend is available for
// multi-process deployments and degrades to in-memory on connection
// failure.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Key derives the content-addressed cache key for a (provider, model,
// prompt) triple. provider == "any" is used for cross-upstream lookups.
// When privacyClass is non-empty and not PUBLIC, it is folded into the
// digest so a cached response produced under one privacy classification is
// never served back for a different one (spec.md §9, conservative choice).
func Key(provider, model, prompt string, privacyClass types.PrivacyLevel) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte(":"))
	h.Write([]byte(model))
	h.Write([]byte(":"))
	h.Write([]byte(prompt))
	if privacyClass != "" && privacyClass != types.PrivacyPublic {
		h.Write([]byte(":"))
		h.Write([]byte(privacyClass))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Stats mirrors the cache's runtime counters for the /api/cache/stats
// endpoint.
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	TTL     string  `json:"ttl"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Backend is the pluggable storage behind Cache.
type Backend interface {
	Get(key string) (types.GatewayResponse, bool)
	Set(key string, value types.GatewayResponse, ttl time.Duration)
	Delete(key string)
	Clear() int
	Len() int
}

// Cache is the gateway's singleton response cache. It owns hit/miss
// counters itself so Stats() works the same regardless of backend.
type Cache struct {
	mu      sync.Mutex
	backend Backend
	ttl     time.Duration
	maxSize int
	hits    int64
	misses  int64
	logger  *logrus.Logger
}

// New creates a cache backed by an in-memory LRU.
func New(maxSize int, ttl time.Duration, logger *logrus.Logger) *Cache {
	return &Cache{
		backend: newMemoryBackend(maxSize),
		ttl:     ttl,
		maxSize: maxSize,
		logger:  logger,
	}
}

// NewWithBackend wires an arbitrary backend (e.g. the Redis-backed remote
// backend), falling back to it only for reads/writes; stats still track
// maxSize/ttl from the gateway's configuration.
func NewWithBackend(backend Backend, maxSize int, ttl time.Duration, logger *logrus.Logger) *Cache {
	return &Cache{
		backend: backend,
		ttl:     ttl,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key string) (types.GatewayResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	val, ok := c.backend.Get(key)
	if !ok {
		c.misses++
		return types.GatewayResponse{}, false
	}
	c.hits++
	return val, true
}

// Set stores value under key with the cache's default TTL, or ttlOverride
// when > 0.
func (c *Cache) Set(key string, value types.GatewayResponse, ttlOverride ...time.Duration) {
	ttl := c.ttl
	if len(ttlOverride) > 0 && ttlOverride[0] > 0 {
		ttl = ttlOverride[0]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend.Set(key, value, ttl)
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend.Delete(key)
}

// Clear empties the cache and returns the number of entries removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.backend.Clear()
	c.hits, c.misses = 0, 0
	return n
}

// Stats reports current cache occupancy and hit rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Size:    c.backend.Len(),
		MaxSize: c.maxSize,
		TTL:     c.ttl.String(),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// memoryBackend is a capacity-bounded, TTL-checked LRU keyed on insertion
// order: the oldest entry is evicted on overflow unless the incoming key
// already exists, in which case the existing entry is re-inserted at the
// tail (moved to most-recently-used) per spec.md §4.2.
type memoryBackend struct {
	mu      sync.RWMutex
	maxSize int
	entries map[string]*list.Element
	order   *list.List // front = oldest, back = newest
}

type memoryEntry struct {
	key       string
	value     types.GatewayResponse
	expiresAt time.Time
}

func newMemoryBackend(maxSize int) *memoryBackend {
	return &memoryBackend{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (m *memoryBackend) Get(key string) (types.GatewayResponse, bool) {
	m.mu.RLock()
	elem, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return types.GatewayResponse{}, false
	}

	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		m.removeElement(elem)
		m.mu.Unlock()
		return types.GatewayResponse{}, false
	}
	return entry.value, true
}

func (m *memoryBackend) Set(key string, value types.GatewayResponse, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.order.MoveToBack(elem)
		entry := elem.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		return
	}

	if m.maxSize > 0 && len(m.entries) >= m.maxSize {
		oldest := m.order.Front()
		if oldest != nil {
			m.removeElement(oldest)
		}
	}

	entry := &memoryEntry{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	elem := m.order.PushBack(entry)
	m.entries[key] = elem
}

func (m *memoryBackend) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.entries[key]; ok {
		m.removeElement(elem)
	}
}

func (m *memoryBackend) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]*list.Element)
	m.order.Init()
	return n
}

func (m *memoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// removeElement must be called with m.mu held for writing.
func (m *memoryBackend) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(m.entries, entry.key)
	m.order.Remove(elem)
}
