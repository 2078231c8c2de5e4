package shadow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func verdictedComparison(shadowProvider string, taskType types.TaskType, winner types.JudgeWinner, scoreB float64, latencyMs int64) VerdictedComparison {
	return VerdictedComparison{
		Comparison: types.ShadowComparison{
			TaskType:  taskType,
			Timestamp: time.Now(),
			Shadow:    types.ComparisonSide{Provider: shadowProvider, DurationMs: latencyMs},
		},
		Verdict: types.JudgeVerdict{Winner: winner, ScoreB: types.JudgeScores{Total: scoreB}},
	}
}

func TestMetricsCollector_EmptyAggregateIsZeroValue(t *testing.T) {
	m := NewMetricsCollector(10)
	agg := m.Aggregate("openai", types.TaskCode)
	assert.Equal(t, 0, agg.Count)
}

func TestMetricsCollector_WinRateCountsShadowWinsFully(t *testing.T) {
	m := NewMetricsCollector(10)
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerB, 9, 100))
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerA, 3, 100))

	agg := m.Aggregate("anthropic", types.TaskCode)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 0.5, agg.WinRate)
}

func TestMetricsCollector_TieCountsHalf(t *testing.T) {
	m := NewMetricsCollector(10)
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerTie, 5, 100))

	agg := m.Aggregate("anthropic", types.TaskCode)
	assert.Equal(t, 0.5, agg.WinRate)
}

func TestMetricsCollector_RingBufferEvictsOldest(t *testing.T) {
	m := NewMetricsCollector(2)
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerA, 0, 10))
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerB, 0, 20))
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerB, 0, 30))

	agg := m.Aggregate("anthropic", types.TaskCode)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 1.0, agg.WinRate) // oldest (the only A win) was evicted
}

func TestMetricsCollector_SeparatesByTaskType(t *testing.T) {
	m := NewMetricsCollector(10)
	m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerB, 0, 0))
	m.Record(verdictedComparison("anthropic", types.TaskMath, types.JudgeWinnerA, 0, 0))

	codeAgg := m.Aggregate("anthropic", types.TaskCode)
	mathAgg := m.Aggregate("anthropic", types.TaskMath)
	assert.Equal(t, 1, codeAgg.Count)
	assert.Equal(t, 1, mathAgg.Count)
	assert.Equal(t, 1.0, codeAgg.WinRate)
	assert.Equal(t, 0.0, mathAgg.WinRate)
}

func TestMetricsCollector_LatencyPercentiles(t *testing.T) {
	m := NewMetricsCollector(10)
	for _, ms := range []int64{10, 20, 30, 40, 50} {
		m.Record(verdictedComparison("anthropic", types.TaskCode, types.JudgeWinnerB, 0, ms))
	}
	agg := m.Aggregate("anthropic", types.TaskCode)
	assert.Equal(t, 30*time.Millisecond, agg.Latency.P50)
	assert.Equal(t, 50*time.Millisecond, agg.Latency.P99)
}
