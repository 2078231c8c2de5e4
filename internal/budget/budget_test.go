package budget

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func testPrices() PriceTable {
	return PriceTable{
		"openai:gpt-4o": types.CostStructure{InputCostPer1K: 0.005, OutputCostPer1K: 0.015, Currency: "USD"},
	}
}

func TestManager_RecordUsageAccumulates(t *testing.T) {
	m := New(Limits{Daily: 10}, testPrices(), logrus.New())

	r1 := m.RecordUsage("tenant-a", "openai", "gpt-4o", 1000, 1000)
	assert.InDelta(t, 0.02, r1.Cost, 0.0001)

	status := m.Status("tenant-a")
	assert.InDelta(t, 0.02, status[PeriodDaily].Spent, 0.0001)
}

func TestManager_WarningAtThreshold(t *testing.T) {
	m := New(Limits{Daily: 1}, testPrices(), logrus.New())

	m.RecordUsage("tenant-a", "openai", "gpt-4o", 40000, 40000)

	status := m.Status("tenant-a")
	require.InDelta(t, 0.8, status[PeriodDaily].Ratio, 1e-9)
	assert.True(t, status[PeriodDaily].Warning)
}

func TestManager_ExceededFlag(t *testing.T) {
	m := New(Limits{Daily: 0.01}, testPrices(), logrus.New())

	m.RecordUsage("tenant-a", "openai", "gpt-4o", 10000, 10000)

	status := m.Status("tenant-a")
	assert.True(t, status[PeriodDaily].Exceeded)
}

func TestManager_UnlimitedPeriodNeverWarns(t *testing.T) {
	m := New(Limits{}, testPrices(), logrus.New())

	m.RecordUsage("tenant-a", "openai", "gpt-4o", 1000000, 1000000)

	status := m.Status("tenant-a")
	assert.False(t, status[PeriodDaily].Warning)
	assert.False(t, status[PeriodDaily].Exceeded)
}

func TestManager_UnknownModelCostsZero(t *testing.T) {
	m := New(Limits{Daily: 10}, testPrices(), logrus.New())

	r := m.RecordUsage("tenant-a", "unknown", "model-x", 1000, 1000)
	assert.Equal(t, 0.0, r.Cost)
}

func TestManager_HistoryTracksRecords(t *testing.T) {
	m := New(Limits{Daily: 100}, testPrices(), logrus.New())

	m.RecordUsage("tenant-a", "openai", "gpt-4o", 100, 100)
	m.RecordUsage("tenant-a", "openai", "gpt-4o", 200, 200)

	history := m.History("tenant-a")
	require.Len(t, history, 2)
	assert.Equal(t, 200, history[1].Tokens)
}

func TestManager_HistoryTrimsWhenOverCap(t *testing.T) {
	m := New(Limits{}, testPrices(), logrus.New())

	for i := 0; i < historyCap+10; i++ {
		m.RecordUsage("tenant-a", "openai", "gpt-4o", 1, 1)
	}

	history := m.History("tenant-a")
	assert.LessOrEqual(t, len(history), historyCap)
}

func TestManager_AuthorizeDeniesWithoutCharging(t *testing.T) {
	m := New(Limits{Daily: 0.01}, testPrices(), logrus.New())

	allowed, period := m.Authorize("tenant-a", "openai", "gpt-4o", 10000, 10000)
	assert.False(t, allowed)
	assert.Equal(t, PeriodDaily, period)

	status := m.Status("tenant-a")
	assert.Equal(t, 0.0, status[PeriodDaily].Spent)
}

func TestManager_AuthorizeAllowsUnderLimit(t *testing.T) {
	m := New(Limits{Daily: 10}, testPrices(), logrus.New())

	allowed, _ := m.Authorize("tenant-a", "openai", "gpt-4o", 100, 100)
	assert.True(t, allowed)
}

func TestManager_SeparateTenantsIndependent(t *testing.T) {
	m := New(Limits{Daily: 10}, testPrices(), logrus.New())

	m.RecordUsage("tenant-a", "openai", "gpt-4o", 1000, 0)
	m.RecordUsage("tenant-b", "openai", "gpt-4o", 2000, 0)

	statusA := m.Status("tenant-a")
	statusB := m.Status("tenant-b")

	assert.NotEqual(t, statusA[PeriodDaily].Spent, statusB[PeriodDaily].Spent)
}

func TestManager_AuthorizeDeniesOverTokenLimit(t *testing.T) {
	m := New(Limits{DailyTokens: 1000}, testPrices(), logrus.New())

	allowed, period := m.Authorize("tenant-a", "openai", "gpt-4o", 600, 600)
	assert.False(t, allowed)
	assert.Equal(t, PeriodDaily, period)
}

func TestManager_RecordUsageTracksTokens(t *testing.T) {
	m := New(Limits{DailyTokens: 1000}, testPrices(), logrus.New())

	m.RecordUsage("tenant-a", "openai", "gpt-4o", 300, 200)
	status := m.Status("tenant-a")

	assert.EqualValues(t, 500, status[PeriodDaily].TokensUsed)
	assert.EqualValues(t, 1000, status[PeriodDaily].TokenLimit)
	assert.EqualValues(t, 500, status[PeriodDaily].TokensLeft)

	allowed, _ := m.Authorize("tenant-a", "openai", "gpt-4o", 600, 0)
	assert.False(t, allowed)
}

func TestManager_UnlimitedTokensNeverDenies(t *testing.T) {
	m := New(Limits{}, testPrices(), logrus.New())

	allowed, _ := m.Authorize("tenant-a", "openai", "gpt-4o", 10_000_000, 0)
	assert.True(t, allowed)
}

func TestEstimateTokens_RoughlyQuartersCharCount(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	assert.Equal(t, 6, EstimateTokens("twenty-one characters"))
}
