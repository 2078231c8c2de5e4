package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	gwerrors "github.com/tributary-ai/llm-router-gateway/internal/errors"
	"github.com/tributary-ai/llm-router-gateway/internal/store"
)

// hashKey digests a plaintext API key the same way api key lookups do, so
// a key is never stored or compared in the clear.
func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// HandleCreateAPIKey serves POST /admin/api-keys.
func (g *Gateway) HandleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if g.store == nil {
		g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindInternal, "persistent store not configured"))
		return
	}

	var body struct {
		TenantID string `json:"tenant_id"`
		Label    string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TenantID == "" {
		g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindValidation, "tenant_id is required"))
		return
	}

	plaintext := "sk-gw-" + uuid.NewString()
	key := &store.APIKey{
		ID:        uuid.NewString(),
		TenantID:  body.TenantID,
		KeyHash:   hashKey(plaintext),
		KeyPrefix: plaintext[:12],
		Label:     body.Label,
		CreatedAt: time.Now(),
	}
	if err := g.store.CreateAPIKey(r.Context(), key); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to create API key", err))
		return
	}

	g.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     key.ID,
		"key":    plaintext, // only ever returned once, at creation time
		"prefix": key.KeyPrefix,
	})
}

// HandleListAPIKeys serves GET /admin/api-keys?tenant_id=.
func (g *Gateway) HandleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	keys, err := g.store.ListAPIKeys(r.Context(), tenantID)
	if err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to list API keys", err))
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

// HandleRevokeAPIKey serves DELETE /admin/api-keys/{id}.
func (g *Gateway) HandleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := g.store.RevokeAPIKey(r.Context(), id); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to revoke API key", err))
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": true})
}

// HandleCreateTenant serves POST /api/tenants.
func (g *Gateway) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string  `json:"name"`
		DailyLimit   float64 `json:"daily_limit"`
		WeeklyLimit  float64 `json:"weekly_limit"`
		MonthlyLimit float64 `json:"monthly_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindValidation, "name is required"))
		return
	}

	adminKey := "admin-" + uuid.NewString()
	tenant := &store.Tenant{
		ID:           uuid.NewString(),
		Name:         body.Name,
		AdminKeyHash: hashKey(adminKey),
		DailyLimit:   body.DailyLimit,
		WeeklyLimit:  body.WeeklyLimit,
		MonthlyLimit: body.MonthlyLimit,
		CreatedAt:    time.Now(),
	}
	if err := g.store.CreateTenant(r.Context(), tenant); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to create tenant", err))
		return
	}
	g.writeJSON(w, http.StatusCreated, map[string]interface{}{"tenant": tenant, "admin_key": adminKey})
}

// HandleListTenants serves GET /api/tenants.
func (g *Gateway) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := g.store.ListTenants(r.Context())
	if err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to list tenants", err))
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"tenants": tenants})
}

// HandleUpdateTenantLimits serves POST /api/tenants/{id}/limits.
func (g *Gateway) HandleUpdateTenantLimits(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Daily   float64 `json:"daily"`
		Weekly  float64 `json:"weekly"`
		Monthly float64 `json:"monthly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindValidation, "invalid JSON body"))
		return
	}
	if err := g.store.UpdateTenantLimits(r.Context(), id, body.Daily, body.Weekly, body.Monthly); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to update tenant limits", err))
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"updated": true})
}

// HandleDeleteTenant serves DELETE /api/tenants/{id}.
func (g *Gateway) HandleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := g.store.DeleteTenant(r.Context(), id); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to delete tenant", err))
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// HandleCreateWebhook serves POST /api/webhooks.
func (g *Gateway) HandleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tenant_id"`
		URL      string `json:"url"`
		Event    string `json:"event"`
		Secret   string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TenantID == "" || body.URL == "" || body.Event == "" {
		g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindValidation, "tenant_id, url and event are required"))
		return
	}

	hook := &store.Webhook{
		ID:        uuid.NewString(),
		TenantID:  body.TenantID,
		URL:       body.URL,
		Event:     body.Event,
		Secret:    body.Secret,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
	if err := g.store.CreateWebhook(r.Context(), hook); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to create webhook", err))
		return
	}
	g.writeJSON(w, http.StatusCreated, map[string]interface{}{"webhook": hook})
}

// HandleDeleteWebhook serves DELETE /api/webhooks/{id}.
func (g *Gateway) HandleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := g.store.DeleteWebhook(r.Context(), id); err != nil {
		g.writeError(w, newRequestID(), gwerrors.Wrap(gwerrors.KindInternal, "failed to delete webhook", err))
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

// HandleEvaluationComparisons serves GET /api/evaluation/comparisons: it
// removes up to 50 of the oldest queued shadow comparisons from the queue
// and returns them.
func (g *Gateway) HandleEvaluationComparisons(w http.ResponseWriter, r *http.Request) {
	if g.shadowRouter == nil {
		g.writeJSON(w, http.StatusOK, map[string]interface{}{"comparisons": []interface{}{}})
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"comparisons": g.shadowRouter.Drain(50)})
}

// HandleEvaluationWeights serves GET /api/evaluation/weights: the
// optimizer's current per-upstream routing weights.
func (g *Gateway) HandleEvaluationWeights(w http.ResponseWriter, r *http.Request) {
	if g.optimizer == nil {
		g.writeJSON(w, http.StatusOK, map[string]interface{}{"weights": map[string]float64{}})
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"weights": g.optimizer.Weights()})
}

// HandleEvaluationWeightsUpdate serves POST /api/evaluation/weights/update:
// triggers one optimizer pass over accumulated judge verdicts and returns
// the resulting per-upstream weight deltas.
func (g *Gateway) HandleEvaluationWeightsUpdate(w http.ResponseWriter, r *http.Request) {
	if g.optimizer == nil {
		g.writeError(w, newRequestID(), gwerrors.New(gwerrors.KindInternal, "weight optimizer not configured"))
		return
	}
	updates := g.optimizer.Run()
	g.writeJSON(w, http.StatusOK, map[string]interface{}{"updates": updates, "weights": g.optimizer.Weights()})
}
