package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tributary-ai/llm-router-gateway/internal/cache"
	"github.com/tributary-ai/llm-router-gateway/internal/classifier"
	gwerrors "github.com/tributary-ai/llm-router-gateway/internal/errors"
	"github.com/tributary-ai/llm-router-gateway/internal/fallback"
	"github.com/tributary-ai/llm-router-gateway/internal/types"
)

// generateRequest is the shared body shape for /api/generate and /api/smart.
type generateRequest struct {
	Provider string                 `json:"provider,omitempty"`
	Prompt   string                 `json:"prompt"`
	Model    string                 `json:"model,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
	Stream   bool                   `json:"stream,omitempty"`
}

// generateResponse is the non-streaming success body for /api/generate and
// /api/smart (Ollama-flavored field names, per spec.md §6).
type generateResponse struct {
	Model         string `json:"model"`
	CreatedAt     string `json:"created_at"`
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
	Provider      string `json:"provider"`
	RequestID     string `json:"request_id"`
	Cached        bool   `json:"cached,omitempty"`
}

type streamFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// HandleGenerate serves POST /api/generate: tries the requested provider
// first when one is given, otherwise walks the upstreams in priority order,
// with fallback and caching.
func (g *Gateway) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	g.serveGenerate(w, r, false)
}

// HandleSmart serves POST /api/smart: identical wire contract to
// /api/generate, but the upstream pick is driven by the classifier and
// internal/routing's smart-routing algorithm (privacy filtering, then
// speed-vs-quality preference ordering or weighted dispatch) instead of
// the fallback executor's plain priority walk. The pick is only a
// preference — every other eligible upstream still covers it on failure.
func (g *Gateway) HandleSmart(w http.ResponseWriter, r *http.Request) {
	g.serveGenerate(w, r, true)
}

func (g *Gateway) serveGenerate(w http.ResponseWriter, r *http.Request, smart bool) {
	requestID := newRequestID()
	w.Header().Set("X-Request-ID", requestID)
	start := time.Now()

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.writeError(w, requestID, gwerrors.New(gwerrors.KindValidation, "invalid JSON body"))
		return
	}
	if body.Prompt == "" {
		g.writeError(w, requestID, gwerrors.New(gwerrors.KindValidation, "prompt is required"))
		return
	}

	tenant := tenantFromRequest(r)
	if gwErr := g.authorizeBudget(tenant, body.Model, body.Prompt); gwErr != nil {
		g.writeError(w, requestID, gwErr)
		return
	}

	privacy := classifier.ClassifyPrivacy(body.Prompt)
	opts := fallback.Options{Model: body.Model, UseCache: true, PrivacyClass: privacy}
	if body.Provider != "" {
		opts.PreferredUpstream = body.Provider
	} else if smart {
		opts.PreferredUpstream = g.pickSmartUpstream(body.Prompt, privacy)
	}

	req := &types.ChatRequest{
		ID:       requestID,
		Model:    body.Model,
		Messages: []types.Message{{Role: "user", Content: body.Prompt}},
	}

	if body.Stream {
		g.streamGenerate(r.Context(), w, requestID, body.Prompt, opts, req)
		return
	}

	result, err := g.fallback.ExecuteWithFallback(r.Context(), body.Prompt, opts,
		func(ctx context.Context, up *fallback.Upstream, model string) (types.GatewayResponse, error) {
			return g.callChat(ctx, up, model, req)
		})
	if err != nil {
		g.writeError(w, requestID, classifyFallbackErr(err))
		return
	}
	g.maybeShadow(requestID, body.Prompt, classifier.ClassifyTaskType(body.Prompt, ""), result.Response)
	g.recordBudgetUsage(tenant, result.Response)

	resp := generateResponse{
		Model:         result.Response.Model,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Response:      result.Response.Text,
		Done:          true,
		TotalDuration: time.Since(start).Nanoseconds(),
		Provider:      result.Response.Provider,
		RequestID:     requestID,
		Cached:        result.Cached,
	}
	g.writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) streamGenerate(ctx context.Context, w http.ResponseWriter, requestID, prompt string, opts fallback.Options, req *types.ChatRequest) {
	req.Stream = true

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.writeError(w, requestID, gwerrors.New(gwerrors.KindInternal, "streaming unsupported by response writer"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := g.fallback.ExecuteStreamWithFallback(ctx, prompt, opts,
		func(ctx context.Context, up *fallback.Upstream, model string) (<-chan fallback.StreamChunk, error) {
			return g.callStream(ctx, up, model, req)
		},
		func(sc fallback.StreamChunk) bool {
			if sc.Chunk == nil || len(sc.Chunk.Choices) == 0 {
				return true
			}
			content := ""
			if d := sc.Chunk.Choices[0].Delta; d != nil {
				if s, ok := d.Content.(string); ok {
					content = s
				}
			}
			frame, _ := json.Marshal(streamFrame{Content: content, Done: false})
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
			return true
		})

	if err != nil {
		g.logger.WithError(err).Warn("streaming generate failed")
	}
	final, _ := json.Marshal(streamFrame{Done: true})
	fmt.Fprintf(w, "data: %s\n\n", final)
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// HandleChatCompletions serves POST /v1/chat/completions with the OpenAI
// wire schema, including genuine `usage` token counts on success.
func (g *Gateway) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	w.Header().Set("X-Request-ID", requestID)

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.writeError(w, requestID, gwerrors.New(gwerrors.KindValidation, "invalid JSON body"))
		return
	}
	if len(req.Messages) == 0 {
		g.writeError(w, requestID, gwerrors.New(gwerrors.KindValidation, "messages must not be empty"))
		return
	}
	req.ID = requestID

	prompt := flattenMessages(req.Messages)
	tenant := tenantFromRequest(r)
	if gwErr := g.authorizeBudget(tenant, req.Model, prompt); gwErr != nil {
		g.writeError(w, requestID, gwErr)
		return
	}
	opts := fallback.Options{Model: req.Model, UseCache: !req.Stream}

	if req.Stream {
		g.streamGenerate(r.Context(), w, requestID, prompt, opts, &req)
		return
	}

	result, err := g.fallback.ExecuteWithFallback(r.Context(), prompt, opts,
		func(ctx context.Context, up *fallback.Upstream, model string) (types.GatewayResponse, error) {
			return g.callChat(ctx, up, model, &req)
		})
	if err != nil {
		g.writeError(w, requestID, classifyFallbackErr(err))
		return
	}
	g.maybeShadow(requestID, prompt, classifier.ClassifyTaskType(prompt, ""), result.Response)
	g.recordBudgetUsage(tenant, result.Response)

	resp := types.ChatResponse{
		ID:      "chatcmpl-" + requestID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   result.Response.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      types.Message{Role: "assistant", Content: result.Response.Text},
			FinishReason: "stop",
		}},
		Usage: &types.Usage{
			PromptTokens:     result.Response.Usage.PromptTokens,
			CompletionTokens: result.Response.Usage.CompletionTokens,
			TotalTokens:      result.Response.Usage.TotalTokens,
		},
	}
	g.writeJSON(w, http.StatusOK, resp)
}

func flattenMessages(messages []types.Message) string {
	var out string
	for _, m := range messages {
		if s, ok := m.Content.(string); ok {
			out += s + "\n"
		}
	}
	return out
}

// HandleModels serves GET /v1/models.
func (g *Gateway) HandleModels(w http.ResponseWriter, r *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	}

	data := make([]modelEntry, 0)
	for name, p := range g.providers {
		for _, m := range p.GetCapabilities().SupportedModels {
			data = append(data, modelEntry{ID: m.Name, Object: "model", Created: g.started.Unix(), OwnedBy: name})
		}
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

// HandleTags serves GET /api/tags, the Ollama-compatible model listing.
func (g *Gateway) HandleTags(w http.ResponseWriter, r *http.Request) {
	type tagEntry struct {
		Name string `json:"name"`
	}
	models := make([]tagEntry, 0)
	for _, p := range g.providers {
		for _, m := range p.GetCapabilities().SupportedModels {
			models = append(models, tagEntry{Name: m.Name})
		}
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

// HandleHealth serves GET /health, optionally with ?deep=true.
func (g *Gateway) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	available := make([]string, 0, len(g.providers))
	providerHealth := make(map[string]string, len(g.providers))

	for name, p := range g.providers {
		available = append(available, name)
		if r.URL.Query().Get("deep") == "true" {
			if err := p.HealthCheck(r.Context()); err != nil {
				providerHealth[name] = "unhealthy"
				status = "degraded"
				continue
			}
		}
		providerHealth[name] = "healthy"
	}

	var cacheStats cache.Stats
	if g.cache != nil {
		cacheStats = g.cache.Stats()
	}

	activeRequests := 0
	if g.metrics != nil {
		// in-flight gauge value isn't readable back from the registry;
		// reported health instead comes from the resource monitor below.
	}
	if g.resources != nil && g.resources.Health() != types.HealthHealthy {
		status = "degraded"
	}

	body := map[string]interface{}{
		"status":             status,
		"version":            g.version,
		"uptime":             time.Since(g.started).Seconds(),
		"providers":          providerHealth,
		"cache":              map[string]interface{}{"size": cacheStats.Size, "maxSize": cacheStats.MaxSize, "hitRate": cacheStats.HitRate},
		"activeRequests":     activeRequests,
		"availableProviders": available,
		"defaultProvider":    g.config.DefaultProvider,
	}
	if r.URL.Query().Get("deep") == "true" {
		body["deepCheck"] = true
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	g.writeJSON(w, code, body)
}

// HandleCacheStats serves GET /api/cache/stats.
func (g *Gateway) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if g.cache == nil {
		g.writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	g.writeJSON(w, http.StatusOK, g.cache.Stats())
}

// HandleCacheClear serves POST /api/cache/clear.
func (g *Gateway) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := 0
	if g.cache != nil {
		cleared = g.cache.Clear()
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": cleared})
}

// HandleQuota serves GET /api/quota?provider=: the per-upstream QuotaState
// (available, cooldownUntil, lastError, requestCount, lastReset), not the
// tenant token/cost budget (that's exposed separately once a budget
// endpoint is added to the wire contract).
func (g *Gateway) HandleQuota(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")

	if provider != "" {
		if _, ok := g.providers[provider]; !ok {
			g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindValidation, "unknown provider: "+provider))
			return
		}
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"quota": g.fallback.QuotaStatus(provider)})
}

// HandleQuotaReset serves POST /api/quota/reset: clears a single
// upstream's cooldown and counters, or every upstream's if provider is
// omitted.
func (g *Gateway) HandleQuotaReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Provider string `json:"provider,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Provider != "" {
		if _, ok := g.providers[body.Provider]; !ok {
			g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindValidation, "unknown provider: "+body.Provider))
			return
		}
		g.fallback.ResetCooldown(body.Provider)
		g.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "provider": body.Provider})
		return
	}

	for name := range g.providers {
		g.fallback.ResetCooldown(name)
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "provider": ""})
}

func tenantFromRequest(r *http.Request) string {
	if t := r.Header.Get("X-Tenant-ID"); t != "" {
		return t
	}
	return "default"
}

// classifyFallbackErr maps a fallback.Executor failure onto a GatewayError
// kind, preserving the per-upstream attempt detail for AllProvidersFailed.
func classifyFallbackErr(err error) *gwerrors.GatewayError {
	switch e := err.(type) {
	case *fallback.AllProvidersFailed:
		return gwerrors.Wrap(gwerrors.KindUpstream, fmt.Sprintf("all upstreams failed: %v", e.Attempts), err)
	case *fallback.AllQuotasExhausted:
		return gwerrors.Wrap(gwerrors.KindQuota, "no upstream currently available", err)
	default:
		return gwerrors.Wrap(gwerrors.KindInternal, "request failed", err)
	}
}

// writeJSON writes v as a JSON body with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.WithError(err).Error("failed to encode response body")
	}
}

// writeError writes a GatewayError as the OpenAI-flavored error envelope,
// annotated with the request ID for correlation.
func (g *Gateway) writeError(w http.ResponseWriter, requestID string, gwErr *gwerrors.GatewayError) {
	tagged := gwErr.WithRequestID(requestID)
	g.writeJSON(w, tagged.StatusCode(), map[string]interface{}{
		"error":      map[string]interface{}{"message": tagged.Message, "type": string(tagged.Kind)},
		"request_id": requestID,
	})
}
