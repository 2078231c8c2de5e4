package routing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func newSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func TestRouteSmart_PrivacyFilterExcludesInsecure(t *testing.T) {
	s := NewSmartRouter(1.0, 1)
	candidates := []SmartCandidate{{Name: "openai", Secure: false, Tier: "default"}}

	rationale := s.RouteSmart(types.PrivacySensitive, types.ComplexityModerate, types.TaskGeneral, types.HealthHealthy, candidates)

	assert.Equal(t, "privacy_filter", rationale.Strategy)
	assert.Contains(t, rationale.Reasons, "No Secure Provider Available")
}

func TestRouteSmart_PrivacyFilterAllowsSecureCandidate(t *testing.T) {
	s := NewSmartRouter(1.0, 1)
	candidates := []SmartCandidate{
		{Name: "openai", Secure: false, Tier: "default"},
		{Name: "local", Secure: true, Tier: "local"},
	}

	rationale := s.RouteSmart(types.PrivacySensitive, types.ComplexityModerate, types.TaskGeneral, types.HealthHealthy, candidates)

	assert.Equal(t, "local", rationale.Provider)
}

func TestRouteSmart_SimpleComplexityPrefersLocalTier(t *testing.T) {
	s := NewSmartRouter(1.0, 1)
	candidates := []SmartCandidate{
		{Name: "strong-provider", Secure: true, Tier: "strong"},
		{Name: "local-provider", Secure: true, Tier: "local"},
	}

	rationale := s.RouteSmart(types.PrivacyPublic, types.ComplexitySimple, types.TaskGeneral, types.HealthHealthy, candidates)

	assert.Equal(t, "SPEED", rationale.Optimization)
	assert.Equal(t, "local-provider", rationale.Provider)
}

func TestRouteSmart_DegradedHealthForcesSpeedEvenForComplexTask(t *testing.T) {
	s := NewSmartRouter(1.0, 1)
	candidates := []SmartCandidate{
		{Name: "strong-provider", Secure: true, Tier: "strong"},
		{Name: "local-provider", Secure: true, Tier: "local"},
	}

	rationale := s.RouteSmart(types.PrivacyPublic, types.ComplexityComplex, types.TaskGeneral, types.HealthDegraded, candidates)

	assert.Equal(t, "SPEED", rationale.Optimization)
	assert.Equal(t, "local-provider", rationale.Provider)
}

func TestRouteSmart_TaskSpecificOrderPrefersCodeSpecialist(t *testing.T) {
	s := NewSmartRouter(1.0, 1)
	candidates := []SmartCandidate{
		{Name: "general-provider", Secure: true, Tier: "default"},
		{Name: "code-provider", Secure: true, Strengths: []string{"code"}},
	}

	rationale := s.RouteSmart(types.PrivacyPublic, types.ComplexityModerate, types.TaskCode, types.HealthHealthy, candidates)

	assert.Equal(t, "code-provider", rationale.Provider)
}

func TestRouteSmart_RateZeroAlwaysWeighted(t *testing.T) {
	s := NewSmartRouter(0.0, 1)
	candidates := []SmartCandidate{{Name: "a", Secure: true, Weight: 100}}

	rationale := s.RouteSmart(types.PrivacyPublic, types.ComplexityModerate, types.TaskGeneral, types.HealthHealthy, candidates)

	assert.Equal(t, "weighted", rationale.Strategy)
}

func TestSelectWeighted_NeverPicksZeroWeightWhenPositiveAvailable(t *testing.T) {
	candidates := []SmartCandidate{
		{Name: "zero", Weight: 0},
		{Name: "only", Weight: 100},
	}
	for i := 0; i < 20; i++ {
		name, _ := selectWeighted(candidates, newSeededRand(int64(i)))
		assert.Equal(t, "only", name)
	}
}

func TestSelectWeighted_AllNonPositiveFallsBackUniform(t *testing.T) {
	candidates := []SmartCandidate{{Name: "a", Weight: 0}, {Name: "b", Weight: 0}}
	name, reasons := selectWeighted(candidates, newSeededRand(1))
	assert.Contains(t, []string{"a", "b"}, name)
	assert.Contains(t, reasons[0], "uniform fallback")
}

func TestSelectByPreferredOrder_FallsBackToFirstCandidateWhenNoMatch(t *testing.T) {
	candidates := []SmartCandidate{{Name: "odd-tier", Tier: "weird"}}
	name, reasons := selectByPreferredOrder(candidates, speedOrder)
	assert.Equal(t, "odd-tier", name)
	assert.Contains(t, reasons[0], "no preferred-order match")
}
