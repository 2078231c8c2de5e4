package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTenant() *Tenant {
	return &Tenant{
		ID:           uuid.NewString(),
		Name:         "acme",
		AdminKeyHash: "hash",
		DailyLimit:   10,
		WeeklyLimit:  50,
		MonthlyLimit: 200,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_CreateAndGetTenant(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	got, err := s.GetTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.Name, got.Name)
	assert.Equal(t, tenant.DailyLimit, got.DailyLimit)
}

func TestStore_GetTenantNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTenant(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListTenants(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTenant(context.Background(), newTenant()))
	require.NoError(t, s.CreateTenant(context.Background(), newTenant()))

	tenants, err := s.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
}

func TestStore_UpdateTenantLimits(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	require.NoError(t, s.UpdateTenantLimits(context.Background(), tenant.ID, 20, 100, 400))

	got, err := s.GetTenant(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.DailyLimit)
}

func TestStore_DeleteTenantCascadesKeysAndWebhooks(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	key := &APIKey{ID: uuid.NewString(), TenantID: tenant.ID, KeyHash: "h1", KeyPrefix: "sk-abc", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAPIKey(context.Background(), key))

	require.NoError(t, s.DeleteTenant(context.Background(), tenant.ID))

	_, err := s.GetAPIKeyByHash(context.Background(), "h1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateAndLookupAPIKeyByHash(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	key := &APIKey{ID: uuid.NewString(), TenantID: tenant.ID, KeyHash: "hash123", KeyPrefix: "sk-xyz", Label: "prod", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAPIKey(context.Background(), key))

	got, err := s.GetAPIKeyByHash(context.Background(), "hash123")
	require.NoError(t, err)
	assert.Equal(t, "prod", got.Label)
	assert.False(t, got.Revoked)
	assert.Nil(t, got.LastUsedAt)
}

func TestStore_RevokeAPIKey(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))
	key := &APIKey{ID: uuid.NewString(), TenantID: tenant.ID, KeyHash: "hash456", KeyPrefix: "sk-rev", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAPIKey(context.Background(), key))

	require.NoError(t, s.RevokeAPIKey(context.Background(), key.ID))

	got, err := s.GetAPIKeyByHash(context.Background(), "hash456")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestStore_TouchAPIKeyUsedSetsTimestamp(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))
	key := &APIKey{ID: uuid.NewString(), TenantID: tenant.ID, KeyHash: "hash789", KeyPrefix: "sk-tch", CreatedAt: time.Now()}
	require.NoError(t, s.CreateAPIKey(context.Background(), key))

	require.NoError(t, s.TouchAPIKeyUsed(context.Background(), key.ID))

	got, err := s.GetAPIKeyByHash(context.Background(), "hash789")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
}

func TestStore_ListAPIKeysForTenant(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))
	require.NoError(t, s.CreateAPIKey(context.Background(), &APIKey{ID: uuid.NewString(), TenantID: tenant.ID, KeyHash: "a", KeyPrefix: "sk-a", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateAPIKey(context.Background(), &APIKey{ID: uuid.NewString(), TenantID: tenant.ID, KeyHash: "b", KeyPrefix: "sk-b", CreatedAt: time.Now()}))

	keys, err := s.ListAPIKeys(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestStore_WebhookLifecycle(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	hook := &Webhook{ID: uuid.NewString(), TenantID: tenant.ID, URL: "https://example.com/hook", Event: "budget.exceeded", Enabled: true, CreatedAt: time.Now()}
	require.NoError(t, s.CreateWebhook(context.Background(), hook))

	hooks, err := s.ListWebhooksForEvent(context.Background(), tenant.ID, "budget.exceeded")
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, hook.URL, hooks[0].URL)

	require.NoError(t, s.DeleteWebhook(context.Background(), hook.ID))
	hooks, err = s.ListWebhooksForEvent(context.Background(), tenant.ID, "budget.exceeded")
	require.NoError(t, err)
	assert.Len(t, hooks, 0)
}

func TestStore_DisabledWebhookExcludedFromEventList(t *testing.T) {
	s := newTestStore(t)
	tenant := newTenant()
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	hook := &Webhook{ID: uuid.NewString(), TenantID: tenant.ID, URL: "https://example.com/hook", Event: "budget.exceeded", Enabled: false, CreatedAt: time.Now()}
	require.NoError(t, s.CreateWebhook(context.Background(), hook))

	hooks, err := s.ListWebhooksForEvent(context.Background(), tenant.ID, "budget.exceeded")
	require.NoError(t, err)
	assert.Len(t, hooks, 0)
}
