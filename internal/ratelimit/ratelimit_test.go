package ratelimit

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(maxRequests int) *Limiter {
	cfg := &Config{
		Enabled:        true,
		WindowDuration: 100 * time.Millisecond,
		Precision:      10 * time.Millisecond,
		MaxRequests:    maxRequests,
	}
	return New(cfg, logrus.New())
}

func TestLimiter_AllowsUnderLimit(t *testing.T) {
	l := newTestLimiter(3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		result := l.Increment("tenant-a", 1)
		require.True(t, result.Allowed)
	}
}

func TestLimiter_BlocksOverLimit(t *testing.T) {
	l := newTestLimiter(2)
	defer l.Stop()

	l.Increment("tenant-a", 1)
	l.Increment("tenant-a", 1)
	result := l.Increment("tenant-a", 1)

	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
}

func TestLimiter_CheckDoesNotMutate(t *testing.T) {
	l := newTestLimiter(2)
	defer l.Stop()

	l.Increment("tenant-a", 1)
	before := l.Check("tenant-a")
	after := l.Check("tenant-a")

	assert.Equal(t, before.Remaining, after.Remaining)
}

func TestLimiter_WindowSlidesOverTime(t *testing.T) {
	l := newTestLimiter(1)
	defer l.Stop()

	result := l.Increment("tenant-a", 1)
	require.True(t, result.Allowed)

	blocked := l.Increment("tenant-a", 1)
	require.False(t, blocked.Allowed)

	time.Sleep(150 * time.Millisecond)

	allowed := l.Increment("tenant-a", 1)
	assert.True(t, allowed.Allowed)
}

func TestLimiter_PerKeyOverride(t *testing.T) {
	l := newTestLimiter(1)
	defer l.Stop()

	l.SetLimit("tenant-vip", 5)

	for i := 0; i < 5; i++ {
		result := l.Increment("tenant-vip", 1)
		require.True(t, result.Allowed)
	}
	result := l.Increment("tenant-vip", 1)
	assert.False(t, result.Allowed)

	result = l.Increment("tenant-default", 1)
	assert.True(t, result.Allowed)
	result = l.Increment("tenant-default", 1)
	assert.False(t, result.Allowed)
}

func TestLimiter_Reset(t *testing.T) {
	l := newTestLimiter(1)
	defer l.Stop()

	l.Increment("tenant-a", 1)
	require.False(t, l.Increment("tenant-a", 1).Allowed)

	l.Reset("tenant-a")
	assert.True(t, l.Increment("tenant-a", 1).Allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	cfg := &Config{Enabled: false, MaxRequests: 1}
	l := New(cfg, logrus.New())
	defer l.Stop()

	for i := 0; i < 10; i++ {
		assert.True(t, l.Increment("tenant-a", 1).Allowed)
	}
}
