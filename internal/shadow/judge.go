package shadow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// Judge drains queued comparisons and produces scored verdicts.
type Judge struct {
	logger       *logrus.Logger
	call         func(rubricPrompt string) (string, error)
	pauseBetween time.Duration
}

// NewJudge builds a Judge. call sends the rubric prompt to the configured
// judge model and returns its raw reply.
func NewJudge(call func(rubricPrompt string) (string, error), logger *logrus.Logger) *Judge {
	return &Judge{logger: logger, call: call, pauseBetween: 500 * time.Millisecond}
}

// Evaluate drains up to limit comparisons from router and returns a verdict
// for each, pausing between calls to stay under the judge model's own rate
// limit.
func (j *Judge) Evaluate(router *Router, limit int) []VerdictedComparison {
	comparisons := router.Drain(limit)
	results := make([]VerdictedComparison, 0, len(comparisons))

	for i, comparison := range comparisons {
		if i > 0 {
			time.Sleep(j.pauseBetween)
		}
		verdict := j.evaluateOne(comparison)
		results = append(results, VerdictedComparison{Comparison: comparison, Verdict: verdict})
	}
	return results
}

// VerdictedComparison pairs a comparison with its judged verdict.
type VerdictedComparison struct {
	Comparison types.ShadowComparison
	Verdict    types.JudgeVerdict
}

func (j *Judge) evaluateOne(c types.ShadowComparison) types.JudgeVerdict {
	prompt := rubricPrompt(c)

	reply, err := j.call(prompt)
	if err != nil {
		j.logger.WithError(err).Warn("judge call failed, recording ERROR verdict")
		return errorVerdict()
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		j.logger.WithError(err).Warn("judge reply unparseable, recording ERROR verdict")
		return errorVerdict()
	}
	return verdict
}

func errorVerdict() types.JudgeVerdict {
	return types.JudgeVerdict{Winner: types.JudgeWinnerError}
}

func rubricPrompt(c types.ShadowComparison) string {
	return fmt.Sprintf(`Compare response A and response B to the same prompt. Score each on correctness, relevance, clarity, completeness and conciseness (0-10 each), then declare a winner.

Prompt: %s

Response A (%s):
%s

Response B (%s):
%s

Reply with strict JSON only, no prose:
{"winner": "A"|"B"|"TIE", "score_a": {"correctness":N,"relevance":N,"clarity":N,"completeness":N,"conciseness":N}, "score_b": {...}, "reasoning": "..."}`,
		c.Prompt, c.Primary.Provider, c.Primary.Response, c.Shadow.Provider, c.Shadow.Response)
}

// parseVerdict extracts the first balanced {...} block in reply and
// decodes it, computing Total from the five rubric fields when the judge
// omitted it.
func parseVerdict(reply string) (types.JudgeVerdict, error) {
	block, err := firstBalancedObject(reply)
	if err != nil {
		return types.JudgeVerdict{}, err
	}

	var verdict types.JudgeVerdict
	if err := json.Unmarshal([]byte(block), &verdict); err != nil {
		return types.JudgeVerdict{}, err
	}

	if verdict.ScoreA.Total == 0 {
		verdict.ScoreA.Total = sumScores(verdict.ScoreA)
	}
	if verdict.ScoreB.Total == 0 {
		verdict.ScoreB.Total = sumScores(verdict.ScoreB)
	}
	return verdict, nil
}

func sumScores(s types.JudgeScores) float64 {
	return s.Correctness + s.Relevance + s.Clarity + s.Completeness + s.Conciseness
}

// firstBalancedObject returns the first top-level balanced {...} substring
// in s, skipping over braces embedded in string literals.
func firstBalancedObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in judge reply")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in judge reply")
}
