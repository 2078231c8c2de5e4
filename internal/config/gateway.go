package config

import (
	"time"

	"github.com/tributary-ai/llm-router-gateway/internal/budget"
	"github.com/tributary-ai/llm-router-gateway/internal/ratelimit"
	"github.com/tributary-ai/llm-router-gateway/internal/shadow"
	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// GatewayConfig holds everything the multiplexing layer needs that the
// teacher's original ServerConfig/RouterConfig never had to: cache
// backend selection, quota/auth knobs, and the shadow/judge/optimizer
// subsystem. It is loaded the same way as the rest of Config (defaults,
// then YAML file, then environment overrides).
type GatewayConfig struct {
	DefaultProvider string        `yaml:"default_provider"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`

	CacheBackend string        `yaml:"cache_backend"` // "memory" or "remote"
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheMaxSize int           `yaml:"cache_max_size"`
	RedisURL     string        `yaml:"redis_url"`

	APIKeyRequired bool   `yaml:"api_key_required"`
	APIKey         string `yaml:"-"` // never serialized
	AdminKey       string `yaml:"-"`

	RateLimit ratelimit.Config `yaml:"rate_limit"`
	Budget    budget.Limits    `yaml:"budget"`

	Shadow                 shadow.Config          `yaml:"shadow"`
	Judge                  JudgeConfig            `yaml:"judge"`
	WeightOptimizerEnabled bool                   `yaml:"weight_optimizer_enabled"`
	WeightOptimizer        shadow.OptimizerConfig `yaml:"weight_optimizer"`

	ContextInjection ContextInjectionConfig `yaml:"context_injection"`

	Upstreams      []types.UpstreamConfig `yaml:"upstreams"`
	DynamicWeights map[string]float64     `yaml:"dynamic_weights"`
}

// JudgeConfig selects which upstream/model scores shadow comparisons.
type JudgeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// ContextInjectionConfig tunes retrieval-augmented context assembly.
type ContextInjectionConfig struct {
	Enabled            bool    `yaml:"enabled"`
	MaxChunks          int     `yaml:"max_chunks"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
}

func (c *GatewayConfig) setDefaults() {
	c.DefaultProvider = "openai"
	c.RequestTimeout = 30 * time.Second

	c.CacheBackend = "memory"
	c.CacheTTL = 5 * time.Minute
	c.CacheMaxSize = 1000

	c.APIKeyRequired = false

	c.RateLimit = ratelimit.Config{
		Enabled:        false,
		WindowDuration: time.Minute,
		Precision:      time.Second,
		MaxRequests:    60,
	}

	c.Budget = budget.Limits{
		DailyTokens: 1_000_000,
	}

	c.Shadow = shadow.Config{
		Enabled:       false,
		Rate:          0.05,
		MaxConcurrent: 1,
	}

	c.Judge = JudgeConfig{
		Enabled:  false,
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}

	c.WeightOptimizer = shadow.OptimizerConfig{
		Eta:            0.2,
		MinComparisons: 20,
		MinWeight:      1,
		MaxWeight:      80,
		MaxChange:      5,
		UpdateInterval: 24 * time.Hour,
	}

	c.ContextInjection = ContextInjectionConfig{
		Enabled:            false,
		MaxChunks:          5,
		RelevanceThreshold: 0.7,
	}

	c.Upstreams = []types.UpstreamConfig{
		{Name: "openai", DefaultModel: "gpt-4o-mini", Priority: 1, Weight: 50, Secure: false, SupportsStream: true},
		{Name: "anthropic", DefaultModel: "claude-3-haiku-20240307", Priority: 2, Weight: 50, Secure: false, SupportsStream: true},
	}
	c.DynamicWeights = map[string]float64{"openai": 50, "anthropic": 50}
}

// loadFromEnv overrides GatewayConfig fields from the environment variables
// spec.md §6 names.
func (c *GatewayConfig) loadFromEnv() {
	c.DefaultProvider = getEnvOrDefault("DEFAULT_PROVIDER", c.DefaultProvider)
	c.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", c.RequestTimeout)

	c.CacheBackend = getEnvOrDefault("CACHE_BACKEND", c.CacheBackend)
	c.CacheTTL = getEnvDurationOrDefault("CACHE_TTL", c.CacheTTL)
	c.CacheMaxSize = getEnvIntOrDefault("CACHE_MAX_SIZE", c.CacheMaxSize)
	c.RedisURL = getEnvOrDefault("REDIS_URL", c.RedisURL)

	c.APIKeyRequired = getEnvBoolOrDefault("API_KEY_REQUIRED", c.APIKeyRequired)
	c.APIKey = getEnvOrDefault("API_KEY", c.APIKey)
	c.AdminKey = getEnvOrDefault("ADMIN_KEY", c.AdminKey)

	c.RateLimit.WindowDuration = getEnvDurationOrDefault("RATE_LIMIT_WINDOW_MS", c.RateLimit.WindowDuration)
	c.RateLimit.MaxRequests = getEnvIntOrDefault("RATE_LIMIT_MAX_REQUESTS", c.RateLimit.MaxRequests)

	c.Budget.Daily = getEnvFloatOrDefault("BUDGET_DAILY_COST", c.Budget.Daily)
	c.Budget.Weekly = getEnvFloatOrDefault("BUDGET_WEEKLY_COST", c.Budget.Weekly)
	c.Budget.Monthly = getEnvFloatOrDefault("BUDGET_MONTHLY_COST", c.Budget.Monthly)
	c.Budget.DailyTokens = getEnvInt64OrDefault("BUDGET_DAILY_TOKENS", c.Budget.DailyTokens)
	c.Budget.WeeklyTokens = getEnvInt64OrDefault("BUDGET_WEEKLY_TOKENS", c.Budget.WeeklyTokens)
	c.Budget.MonthlyTokens = getEnvInt64OrDefault("BUDGET_MONTHLY_TOKENS", c.Budget.MonthlyTokens)

	c.Shadow.Enabled = getEnvBoolOrDefault("ENABLE_SHADOW", c.Shadow.Enabled)
	c.Shadow.Rate = getEnvFloatOrDefault("SHADOW_RATE", c.Shadow.Rate)
	c.Shadow.MaxConcurrent = getEnvIntOrDefault("SHADOW_MAX_CONCURRENT", c.Shadow.MaxConcurrent)
	c.Shadow.Exclude = getEnvStringSliceOrDefault("SHADOW_EXCLUDE", c.Shadow.Exclude)

	c.Judge.Enabled = getEnvBoolOrDefault("ENABLE_JUDGE", c.Judge.Enabled)
	c.Judge.Provider = getEnvOrDefault("JUDGE_PROVIDER", c.Judge.Provider)
	c.Judge.Model = getEnvOrDefault("JUDGE_MODEL", c.Judge.Model)

	c.WeightOptimizerEnabled = getEnvBoolOrDefault("ENABLE_WEIGHT_OPTIMIZER", c.WeightOptimizerEnabled)
	c.WeightOptimizer.UpdateInterval = getEnvDurationOrDefault("WEIGHT_UPDATE_INTERVAL", c.WeightOptimizer.UpdateInterval)
	c.WeightOptimizer.MinComparisons = getEnvIntOrDefault("MIN_COMPARISONS_FOR_UPDATE", c.WeightOptimizer.MinComparisons)
	c.WeightOptimizer.Eta = getEnvFloatOrDefault("WEIGHT_LEARNING_RATE", c.WeightOptimizer.Eta)

	c.ContextInjection.Enabled = getEnvBoolOrDefault("CONTEXT_INJECTION_ENABLED", c.ContextInjection.Enabled)
	c.ContextInjection.MaxChunks = getEnvIntOrDefault("MAX_CONTEXT_CHUNKS", c.ContextInjection.MaxChunks)
	c.ContextInjection.RelevanceThreshold = getEnvFloatOrDefault("CONTEXT_RELEVANCE_THRESHOLD", c.ContextInjection.RelevanceThreshold)
}
