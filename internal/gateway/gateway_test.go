package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router-gateway/internal/budget"
	"github.com/tributary-ai/llm-router-gateway/internal/cache"
	gwconfig "github.com/tributary-ai/llm-router-gateway/internal/config"
	"github.com/tributary-ai/llm-router-gateway/internal/fallback"
	"github.com/tributary-ai/llm-router-gateway/internal/providers"
	"github.com/tributary-ai/llm-router-gateway/internal/providers/local"
	"github.com/tributary-ai/llm-router-gateway/internal/ratelimit"
	"github.com/tributary-ai/llm-router-gateway/internal/shadow"
	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func echoProvider() *local.Provider {
	return local.NewProvider(&local.Config{
		Command: "/bin/sh",
		Args:    []string{"-c", "cat"},
	}, testLogger())
}

func buildGateway(t *testing.T) *Gateway {
	t.Helper()
	logger := testLogger()
	p := echoProvider()

	up := &fallback.Upstream{
		Config:   types.UpstreamConfig{Name: "local", Priority: 1, Weight: 100, SupportsStream: true},
		Provider: p,
	}

	var cfg gwconfig.GatewayConfig
	cfg.setDefaults()

	c := cache.New(100, time.Minute, logger)
	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:        true,
		WindowDuration: time.Minute,
		Precision:      time.Second,
		MaxRequests:    2,
	}, logger)
	t.Cleanup(limiter.Stop)

	return New(Options{
		Config:    &cfg,
		Logger:    logger,
		Providers: map[string]providers.LLMProvider{"local": p},
		Upstreams: []*fallback.Upstream{up},
		Cache:     c,
		Limiter:   limiter,
	})
}

func TestNewRequestID_Is8HexChars(t *testing.T) {
	id := newRequestID()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), id)
}

func TestNewRequestID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newRequestID()
		assert.False(t, seen[id], "request IDs should not collide across 100 draws")
		seen[id] = true
	}
}

func TestHandleGenerate_ReturnsOllamaShapedResponse(t *testing.T) {
	g := buildGateway(t)

	body := `{"prompt":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	w := httptest.NewRecorder()

	g.HandleGenerate(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp generateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "local", resp.Provider)
	assert.Contains(t, resp.Response, "hello")
	assert.True(t, resp.Done)
}

func TestHandleGenerate_SecondIdenticalRequestIsCached(t *testing.T) {
	g := buildGateway(t)
	body := `{"prompt":"cache me"}`

	req1 := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	w1 := httptest.NewRecorder()
	g.HandleGenerate(w1, req1)
	require.Equal(t, http.StatusOK, w1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	w2 := httptest.NewRecorder()
	g.HandleGenerate(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var resp generateResponse
	require.NoError(t, json.NewDecoder(w2.Body).Decode(&resp))
	assert.True(t, resp.Cached)
}

func TestHandleGenerate_RejectsEmptyPrompt(t *testing.T) {
	g := buildGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":""}`))
	w := httptest.NewRecorder()

	g.HandleGenerate(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleChatCompletions_ReturnsUsage(t *testing.T) {
	g := buildGateway(t)
	body := `{"model":"m","messages":[{"role":"user","content":"hi there"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()

	g.HandleChatCompletions(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.ChatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Choices, 1)
	require.NotNil(t, resp.Usage)
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestRateLimitMiddleware_BlocksAfterLimit(t *testing.T) {
	g := buildGateway(t)
	handler := g.RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-API-Key", "same-client")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-API-Key", "same-client")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get("RateLimit-Limit"))
}

func TestHandleHealth_ReportsAvailableProviders(t *testing.T) {
	g := buildGateway(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	g.HandleHealth(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	providers, _ := body["availableProviders"].([]interface{})
	assert.Len(t, providers, 1)
}

func TestServeGenerate_SchedulesShadowComparisonOnSuccess(t *testing.T) {
	logger := testLogger()
	primary := echoProvider()
	secondary := echoProvider()

	up1 := &fallback.Upstream{Config: types.UpstreamConfig{Name: "local", Priority: 1, Weight: 100, SupportsStream: true}, Provider: primary}
	up2 := &fallback.Upstream{Config: types.UpstreamConfig{Name: "local2", Priority: 2, Weight: 100, SupportsStream: true}, Provider: secondary}

	shadowRouter := shadow.NewRouter(shadow.Config{Enabled: true, Rate: 1.0, MaxConcurrent: 1}, logger, 1)

	var cfg gwconfig.GatewayConfig
	cfg.setDefaults()

	g := New(Options{
		Config:    &cfg,
		Logger:    logger,
		Providers: map[string]providers.LLMProvider{"local": primary, "local2": secondary},
		Upstreams: []*fallback.Upstream{up1, up2},
		Cache:     cache.New(100, time.Minute, logger),
		Shadow:    shadowRouter,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"hello shadow"}`))
	w := httptest.NewRecorder()
	g.HandleGenerate(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return shadowRouter.QueueLen() == 1 }, time.Second, time.Millisecond)
	comparisons := shadowRouter.Drain(10)
	require.Len(t, comparisons, 1)
	assert.Equal(t, "local", comparisons[0].Primary.Provider)
	assert.Equal(t, "local2", comparisons[0].Shadow.Provider)
}

func TestServeGenerate_DeniesWhenTokenBudgetExceeded(t *testing.T) {
	logger := testLogger()
	p := echoProvider()
	up := &fallback.Upstream{Config: types.UpstreamConfig{Name: "local", Priority: 1, Weight: 100, SupportsStream: true}, Provider: p}

	var cfg gwconfig.GatewayConfig
	cfg.setDefaults()

	g := New(Options{
		Config:    &cfg,
		Logger:    logger,
		Providers: map[string]providers.LLMProvider{"local": p},
		Upstreams: []*fallback.Upstream{up},
		Cache:     cache.New(100, time.Minute, logger),
		Budget:    budget.New(budget.Limits{DailyTokens: 1}, budget.PriceTable{}, logger),
	})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"this prompt is much too long for the tiny token budget"}`))
	w := httptest.NewRecorder()
	g.HandleGenerate(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHandleCacheClear_ReportsClearedCount(t *testing.T) {
	g := buildGateway(t)
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"warm"}`))
	w := httptest.NewRecorder()
	g.HandleGenerate(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	clearReq := httptest.NewRequest(http.MethodPost, "/api/cache/clear", nil)
	clearW := httptest.NewRecorder()
	g.HandleCacheClear(clearW, clearReq)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(clearW.Body).Decode(&body))
	assert.EqualValues(t, 1, body["cleared"])
}
