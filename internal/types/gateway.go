package types

import "time"

// UpstreamConfig describes one configured LLM backend: its priority in the
// fallback chain, its share of weighted traffic, and the timeouts/flags the
// adapter and router honor.
type UpstreamConfig struct {
	Name           string            `yaml:"name" json:"name"`
	DefaultModel   string            `yaml:"default_model" json:"default_model"`
	ModelAliases   map[string]string `yaml:"model_aliases,omitempty" json:"model_aliases,omitempty"`
	Priority       int               `yaml:"priority" json:"priority"` // lower = preferred
	Weight         int               `yaml:"weight" json:"weight"`     // 0..100
	QuotaWindow    time.Duration     `yaml:"quota_window" json:"quota_window"`
	CooldownTime   time.Duration     `yaml:"cooldown_time" json:"cooldown_time"` // 0 == never cool down
	ConnectTimeout time.Duration     `yaml:"connect_timeout" json:"connect_timeout"`
	FirstByteTimeout time.Duration   `yaml:"first_byte_timeout" json:"first_byte_timeout"`
	TotalTimeout   time.Duration     `yaml:"total_timeout" json:"total_timeout"`
	SupportsStream bool              `yaml:"supports_stream" json:"supports_stream"`
	Secure         bool              `yaml:"secure" json:"secure"` // eligible for non-PUBLIC prompts
	Strengths      []string          `yaml:"strengths,omitempty" json:"strengths,omitempty"` // e.g. "code", "math"
}

// PrivacyLevel classifies a prompt's PII exposure.
type PrivacyLevel string

const (
	PrivacyPublic    PrivacyLevel = "PUBLIC"
	PrivacySensitive PrivacyLevel = "SENSITIVE"
	PrivacyCritical  PrivacyLevel = "CRITICAL"
)

// ComplexityCategory buckets a classifier complexity score.
type ComplexityCategory string

const (
	ComplexitySimple   ComplexityCategory = "SIMPLE"
	ComplexityModerate ComplexityCategory = "MODERATE"
	ComplexityComplex  ComplexityCategory = "COMPLEX"
)

// TaskType is the classifier's best guess at what kind of work a prompt is.
type TaskType string

const (
	TaskCode          TaskType = "CODE"
	TaskMath          TaskType = "MATH"
	TaskCreative      TaskType = "CREATIVE"
	TaskAnalysis      TaskType = "ANALYSIS"
	TaskChat          TaskType = "CHAT"
	TaskSummarization TaskType = "SUMMARIZATION"
	TaskTranslation   TaskType = "TRANSLATION"
	TaskGeneral       TaskType = "GENERAL"
)

// HealthLabel is the resource monitor's overall system health signal.
type HealthLabel string

const (
	HealthHealthy  HealthLabel = "HEALTHY"
	HealthDegraded HealthLabel = "DEGRADED"
	HealthCritical HealthLabel = "CRITICAL"
)

// ClassifierResult bundles the three classifier outputs for one prompt.
type ClassifierResult struct {
	Privacy    PrivacyLevel       `json:"privacy"`
	Complexity ComplexityCategory `json:"complexity"`
	Score      int                `json:"complexity_score"`
	TaskType   TaskType           `json:"task_type"`
}

// GatewayResponse is the provider-neutral result of an upstream call, used
// by the cache and the fallback executor ahead of endpoint-specific shaping.
type GatewayResponse struct {
	Model      string        `json:"model"`
	Text       string        `json:"response"`
	Provider   string        `json:"provider"`
	DurationMs int64         `json:"duration_ms"`
	Cached     bool          `json:"cached"`
	Usage      Usage         `json:"usage"`
}

// ShadowComparison is produced by the shadow router and drained by the judge.
type ShadowComparison struct {
	RequestID string          `json:"request_id"`
	Prompt    string          `json:"prompt"`
	TaskType  TaskType        `json:"task_type"`
	Timestamp time.Time       `json:"timestamp"`
	Primary   ComparisonSide  `json:"primary"`
	Shadow    ComparisonSide  `json:"shadow"`
}

// ComparisonSide is one half of a ShadowComparison.
type ComparisonSide struct {
	Provider   string `json:"provider"`
	Response   string `json:"response"`
	DurationMs int64  `json:"duration_ms"`
}

// JudgeWinner enumerates verdict outcomes.
type JudgeWinner string

const (
	JudgeWinnerA     JudgeWinner = "A"
	JudgeWinnerB     JudgeWinner = "B"
	JudgeWinnerTie   JudgeWinner = "TIE"
	JudgeWinnerError JudgeWinner = "ERROR"
)

// JudgeScores holds the per-criterion rubric scores for one side of a verdict.
type JudgeScores struct {
	Correctness  float64 `json:"correctness"`
	Relevance    float64 `json:"relevance"`
	Clarity      float64 `json:"clarity"`
	Completeness float64 `json:"completeness"`
	Conciseness  float64 `json:"conciseness"`
	Total        float64 `json:"total"`
}

// JudgeVerdict is the parsed result of one judge evaluation.
type JudgeVerdict struct {
	Winner    JudgeWinner `json:"winner"`
	ScoreA    JudgeScores `json:"score_a"`
	ScoreB    JudgeScores `json:"score_b"`
	Reasoning string      `json:"reasoning"`
}

// LatencyPercentiles holds the rolling p50/p95/p99 for a metrics window.
type LatencyPercentiles struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// PerUpstreamMetric is the aggregated shadow-comparison metric for one
// (upstream, task type) pair.
type PerUpstreamMetric struct {
	Count       int                `json:"count"`
	WinRate     float64            `json:"win_rate"`
	AvgScore    float64            `json:"avg_score"`
	Latency     LatencyPercentiles `json:"latency"`
	LastUpdated time.Time          `json:"last_updated"`
}

// TraceEvent is one entry in the inspector's ring buffer.
type TraceEvent struct {
	RequestID string                 `json:"request_id"`
	Timestamp time.Time              `json:"timestamp"`
	Stage     string                 `json:"stage"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// RoutingRationale is the router's explanation for a provider choice,
// surfaced in trace events and in the /api/smart response metadata.
type RoutingRationale struct {
	Provider     string   `json:"provider"`
	Strategy     string   `json:"strategy"`
	TaskType     TaskType `json:"task_type"`
	PrivacyMode  string   `json:"privacy_mode"`
	Optimization string   `json:"optimization"` // "SPEED" or "QUALITY"
	SystemHealth string   `json:"system_health"`
	Reasons      []string `json:"reasons"`
}
