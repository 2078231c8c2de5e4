package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func testConfig() Config {
	c := Config{}
	c.applyDefaults()
	return c
}

func TestClassify_HealthyUnderAllThresholds(t *testing.T) {
	assert.Equal(t, types.HealthHealthy, classify(10, 0.1, 1, testConfig()))
}

func TestClassify_DegradedOnCPUWarn(t *testing.T) {
	c := testConfig()
	assert.Equal(t, types.HealthDegraded, classify(c.CPUWarnPercent, 0.1, 1, c))
}

func TestClassify_DegradedOnMemWarn(t *testing.T) {
	c := testConfig()
	assert.Equal(t, types.HealthDegraded, classify(10, c.MemWarnFraction, 1, c))
}

func TestClassify_CriticalOnCPUCritical(t *testing.T) {
	c := testConfig()
	assert.Equal(t, types.HealthCritical, classify(c.CPUCriticalPercent, 0.1, 1, c))
}

func TestClassify_CriticalOnLagCritical(t *testing.T) {
	c := testConfig()
	assert.Equal(t, types.HealthCritical, classify(10, 0.1, c.LagCriticalMs, c))
}

func TestMonitor_CurrentStartsHealthy(t *testing.T) {
	m := New(Config{}, nil)
	assert.Equal(t, types.HealthHealthy, m.Health())
}
