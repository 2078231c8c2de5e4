package cache

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func TestKey_Deterministic(t *testing.T) {
	k1 := Key("openai", "gpt-4o", "hello", types.PrivacyPublic)
	k2 := Key("openai", "gpt-4o", "hello", types.PrivacyPublic)
	assert.Equal(t, k1, k2)
}

func TestKey_PrivacyClassChangesDigest(t *testing.T) {
	public := Key("openai", "gpt-4o", "hello", types.PrivacyPublic)
	sensitive := Key("openai", "gpt-4o", "hello", types.PrivacySensitive)
	assert.NotEqual(t, public, sensitive)
}

func TestCache_SetGet(t *testing.T) {
	c := New(10, time.Minute, logrus.New())

	resp := types.GatewayResponse{Model: "gpt-4o", Text: "pong", Provider: "openai"}
	key := Key("any", "gpt-4o", "ping", types.PrivacyPublic)

	_, found := c.Get(key)
	require.False(t, found)

	c.Set(key, resp)
	got, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, resp, got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10, time.Millisecond, logrus.New())
	key := Key("any", "m", "p", types.PrivacyPublic)
	c.Set(key, types.GatewayResponse{Text: "x"})

	time.Sleep(5 * time.Millisecond)

	_, found := c.Get(key)
	assert.False(t, found)
}

func TestCache_CapacityOneEvictsCorrectly(t *testing.T) {
	c := New(1, time.Minute, logrus.New())

	k1 := Key("any", "m", "first", types.PrivacyPublic)
	k2 := Key("any", "m", "second", types.PrivacyPublic)

	c.Set(k1, types.GatewayResponse{Text: "one"})
	c.Set(k2, types.GatewayResponse{Text: "two"})

	_, found := c.Get(k1)
	assert.False(t, found, "first entry should be evicted once capacity is exceeded")

	got, found := c.Get(k2)
	require.True(t, found)
	assert.Equal(t, "two", got.Text)
}

func TestCache_ReinsertOnExistingKeyDoesNotEvict(t *testing.T) {
	c := New(1, time.Minute, logrus.New())
	key := Key("any", "m", "p", types.PrivacyPublic)

	c.Set(key, types.GatewayResponse{Text: "v1"})
	c.Set(key, types.GatewayResponse{Text: "v2"})

	got, found := c.Get(key)
	require.True(t, found)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestCache_ClearResetsStats(t *testing.T) {
	c := New(10, time.Minute, logrus.New())
	key := Key("any", "m", "p", types.PrivacyPublic)
	c.Set(key, types.GatewayResponse{Text: "v"})
	c.Get(key)

	n := c.Clear()
	assert.Equal(t, 1, n)

	stats := c.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(0), stats.Hits)
}
