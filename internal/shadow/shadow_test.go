package shadow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func TestRouter_DisabledNeverShadows(t *testing.T) {
	r := NewRouter(Config{Enabled: false}, logrus.New(), 1)
	called := make(chan struct{}, 1)

	r.MaybeShadow("req-1", "hi", types.TaskGeneral, types.ComparisonSide{Provider: "openai"}, []string{"anthropic"},
		func(ctx context.Context, upstream, prompt string) (string, time.Duration, error) {
			called <- struct{}{}
			return "x", time.Millisecond, nil
		})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, r.QueueLen())
	select {
	case <-called:
		t.Fatal("shadow call fired while disabled")
	default:
	}
}

func TestRouter_RateOneAlwaysFires(t *testing.T) {
	r := NewRouter(Config{Enabled: true, Rate: 1.0, MaxConcurrent: 1}, logrus.New(), 1)

	var wg sync.WaitGroup
	wg.Add(1)
	r.MaybeShadow("req-1", "hi", types.TaskGeneral, types.ComparisonSide{Provider: "openai"}, []string{"anthropic"},
		func(ctx context.Context, upstream, prompt string) (string, time.Duration, error) {
			defer wg.Done()
			return "shadow reply", 5 * time.Millisecond, nil
		})
	wg.Wait()

	require.Eventually(t, func() bool { return r.QueueLen() == 1 }, time.Second, time.Millisecond)
	comparisons := r.Drain(10)
	require.Len(t, comparisons, 1)
	assert.Equal(t, "anthropic", comparisons[0].Shadow.Provider)
	assert.Equal(t, "openai", comparisons[0].Primary.Provider)
}

func TestRouter_RateZeroNeverFires(t *testing.T) {
	r := NewRouter(Config{Enabled: true, Rate: 0.0, MaxConcurrent: 1}, logrus.New(), 1)
	r.MaybeShadow("req-1", "hi", types.TaskGeneral, types.ComparisonSide{Provider: "openai"}, []string{"anthropic"},
		func(ctx context.Context, upstream, prompt string) (string, time.Duration, error) {
			return "x", time.Millisecond, nil
		})
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, r.QueueLen())
}

func TestRouter_ExcludesPrimaryAndConfiguredNames(t *testing.T) {
	r := NewRouter(Config{Enabled: true, Rate: 1.0, MaxConcurrent: 5, Exclude: []string{"blocked"}}, logrus.New(), 1)
	targets := r.pickTargets("openai", []string{"openai", "blocked", "anthropic", "local"})
	assert.ElementsMatch(t, []string{"anthropic", "local"}, targets)
}

func TestRouter_MaxConcurrentCapsTargets(t *testing.T) {
	r := NewRouter(Config{Enabled: true, Rate: 1.0, MaxConcurrent: 1}, logrus.New(), 1)
	targets := r.pickTargets("openai", []string{"anthropic", "local", "azure"})
	assert.Len(t, targets, 1)
}

func TestRouter_FailedShadowCallIsDropped(t *testing.T) {
	r := NewRouter(Config{Enabled: true, Rate: 1.0, MaxConcurrent: 1}, logrus.New(), 1)
	done := make(chan struct{})
	r.MaybeShadow("req-1", "hi", types.TaskGeneral, types.ComparisonSide{Provider: "openai"}, []string{"anthropic"},
		func(ctx context.Context, upstream, prompt string) (string, time.Duration, error) {
			close(done)
			return "", 0, assertErr{}
		})
	<-done
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, r.QueueLen())
}

type assertErr struct{}

func (assertErr) Error() string { return "shadow upstream failed" }

func TestRouter_EnqueueDropsOldestOnOverflow(t *testing.T) {
	r := NewRouter(Config{Enabled: true, QueueCapacity: 2}, logrus.New(), 1)
	r.enqueue(types.ShadowComparison{RequestID: "1"})
	r.enqueue(types.ShadowComparison{RequestID: "2"})
	r.enqueue(types.ShadowComparison{RequestID: "3"})

	all := r.Drain(10)
	require.Len(t, all, 2)
	assert.Equal(t, "2", all[0].RequestID)
	assert.Equal(t, "3", all[1].RequestID)
}

func TestRouter_DrainRespectsLimitAndOrder(t *testing.T) {
	r := NewRouter(Config{Enabled: true, QueueCapacity: 10}, logrus.New(), 1)
	for i := 0; i < 5; i++ {
		r.enqueue(types.ShadowComparison{RequestID: string(rune('a' + i))})
	}
	first := r.Drain(2)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].RequestID)
	assert.Equal(t, "b", first[1].RequestID)
	assert.Equal(t, 3, r.QueueLen())
}
