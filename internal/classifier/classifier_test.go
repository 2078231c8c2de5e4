package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func TestClassifyPrivacy_Public(t *testing.T) {
	assert.Equal(t, types.PrivacyPublic, ClassifyPrivacy("what is the capital of France?"))
}

func TestClassifyPrivacy_SensitiveEmail(t *testing.T) {
	assert.Equal(t, types.PrivacySensitive, ClassifyPrivacy("contact me at jane.doe@example.com please"))
}

func TestClassifyPrivacy_CriticalSSN(t *testing.T) {
	assert.Equal(t, types.PrivacyCritical, ClassifyPrivacy("my ssn is 123-45-6789"))
}

func TestClassifyPrivacy_CriticalCreditCard(t *testing.T) {
	assert.Equal(t, types.PrivacyCritical, ClassifyPrivacy("card number 4111 1111 1111 1111"))
}

func TestRedact_ReplacesSSNButNotIP(t *testing.T) {
	redacted := Redact("ssn 123-45-6789 from host 10.0.0.1")
	assert.Contains(t, redacted, "[REDACTED_SSN]")
	assert.Contains(t, redacted, "10.0.0.1")
}

func TestClassifyComplexity_SimpleShortPrompt(t *testing.T) {
	score, category := ClassifyComplexity("hi there")
	assert.Equal(t, types.ComplexitySimple, category)
	assert.Less(t, score, 30)
}

func TestClassifyComplexity_CodeBlockRaisesScore(t *testing.T) {
	text := "explain this:\n```\nfunc main() {}\n```"
	score, _ := ClassifyComplexity(text)
	assert.GreaterOrEqual(t, score, 20)
}

func TestClassifyComplexity_ReasoningAndMathWithoutCodeIsModerate(t *testing.T) {
	// Length (capped 30) + math (capped 20) + reasoning (15) tops out at 65;
	// only code blocks can push a prompt past 70.
	text := strings.Repeat("analyze and explain the proof step by step ", 40) + "\\alpha^{2} + \\beta^{2} = \\gamma^{2}"
	score, category := ClassifyComplexity(text)
	assert.Equal(t, 65, score)
	assert.Equal(t, types.ComplexityModerate, category)
}

func TestClassifyTaskType_Code(t *testing.T) {
	assert.Equal(t, types.TaskCode, ClassifyTaskType("help me debug this function", ""))
}

func TestClassifyTaskType_Math(t *testing.T) {
	assert.Equal(t, types.TaskMath, ClassifyTaskType("solve this equation for x", ""))
}

func TestClassifyTaskType_DefaultsGeneral(t *testing.T) {
	assert.Equal(t, types.TaskGeneral, ClassifyTaskType("tell me about your day", ""))
}

func TestClassifyTaskType_OverrideBypassesDetection(t *testing.T) {
	assert.Equal(t, types.TaskChat, ClassifyTaskType("debug this code", types.TaskChat))
}

func TestClassify_BundlesAllThree(t *testing.T) {
	result := Classify("debug this function with my email test@example.com", "")
	assert.Equal(t, types.PrivacySensitive, result.Privacy)
	assert.Equal(t, types.TaskCode, result.TaskType)
}
