// Package classifier implements the gateway's three pure request
// classification functions: PII privacy level, prompt complexity, and task
// type. None of these hold state or call out to a model — they are all
// regex/keyword scoring over the prompt text.
package classifier

import (
	"regexp"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

var (
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`\b(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	creditCardPattern = regexp.MustCompile(`\b\d{4}[\s\-]\d{4}[\s\-]\d{4}[\s\-]\d{4}\b`)
	ipv4Pattern       = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\b`)

	codeFencePattern = regexp.MustCompile("```")
	mathSignalPattern = regexp.MustCompile(`\\[A-Za-z]+|\^|\{|\}`)

	reasoningWordsPattern = regexp.MustCompile(`(?i)\b(reason|step|explain|analyze|compare)\b`)
)

// ClassifyPrivacy scans text for PII and returns the most severe level
// found: CRITICAL for SSN or credit-card numbers, SENSITIVE for any other
// match, PUBLIC otherwise.
func ClassifyPrivacy(text string) types.PrivacyLevel {
	if ssnPattern.MatchString(text) || creditCardPattern.MatchString(text) {
		return types.PrivacyCritical
	}
	if emailPattern.MatchString(text) || phonePattern.MatchString(text) || ipv4Pattern.MatchString(text) {
		return types.PrivacySensitive
	}
	return types.PrivacyPublic
}

// Redact replaces each PII match with a [REDACTED_*] tag. IPv4 addresses
// are left untouched by default — they're useful for debugging and rarely
// personally identifying on their own.
func Redact(text string) string {
	text = ssnPattern.ReplaceAllString(text, "[REDACTED_SSN]")
	text = creditCardPattern.ReplaceAllString(text, "[REDACTED_CREDIT_CARD]")
	text = emailPattern.ReplaceAllString(text, "[REDACTED_EMAIL]")
	text = phonePattern.ReplaceAllString(text, "[REDACTED_PHONE]")
	return text
}

// ClassifyComplexity scores a prompt in [0,100] from its length, code
// blocks, math signals and reasoning-word cues, then buckets the score.
func ClassifyComplexity(text string) (int, types.ComplexityCategory) {
	lengthScore := len(text) / 50
	if lengthScore > 30 {
		lengthScore = 30
	}

	codeBlocks := codeFencePattern.FindAllStringIndex(text, -1)
	codeBlockCount := len(codeBlocks) / 2

	mathSignals := len(mathSignalPattern.FindAllStringIndex(text, -1))
	mathScore := 2 * mathSignals
	if mathScore > 20 {
		mathScore = 20
	}

	reasoningScore := 0
	if reasoningWordsPattern.MatchString(text) {
		reasoningScore = 15
	}

	score := lengthScore + 20*codeBlockCount + mathScore + reasoningScore
	if score > 100 {
		score = 100
	}

	switch {
	case score < 30:
		return score, types.ComplexitySimple
	case score < 70:
		return score, types.ComplexityModerate
	default:
		return score, types.ComplexityComplex
	}
}

// taskKeywords is checked in order; the first category with a keyword hit
// wins, so CODE is checked ahead of the broader ANALYSIS bucket.
var taskKeywords = []struct {
	taskType types.TaskType
	pattern  *regexp.Regexp
}{
	{types.TaskCode, regexp.MustCompile(`(?i)\b(code|function|bug|debug|program|script|algorithm|compile|syntax|refactor)\b`)},
	{types.TaskMath, regexp.MustCompile(`(?i)\b(calculate|equation|solve|math|integral|derivative|theorem|proof|formula)\b`)},
	{types.TaskCreative, regexp.MustCompile(`(?i)\b(story|poem|write a|creative|imagine|fiction|narrative|lyrics)\b`)},
	{types.TaskAnalysis, regexp.MustCompile(`(?i)\b(analy[sz]e|evaluate|assess|compare|review|critique|examine)\b`)},
}

// ClassifyTaskType matches keywords against ordered categories, defaulting
// to GENERAL. An explicit override bypasses detection entirely.
func ClassifyTaskType(text string, override types.TaskType) types.TaskType {
	if override != "" {
		return override
	}
	for _, k := range taskKeywords {
		if k.pattern.MatchString(text) {
			return k.taskType
		}
	}
	return types.TaskGeneral
}

// Classify runs all three classifiers over one prompt.
func Classify(text string, taskOverride types.TaskType) types.ClassifierResult {
	score, complexity := ClassifyComplexity(text)
	return types.ClassifierResult{
		Privacy:    ClassifyPrivacy(text),
		Complexity: complexity,
		Score:      score,
		TaskType:   ClassifyTaskType(text, taskOverride),
	}
}
