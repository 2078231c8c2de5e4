package store

import (
	"context"
	"time"
)

// CreateWebhook inserts a new webhook subscription for a tenant.
func (s *Store) CreateWebhook(ctx context.Context, w *Webhook) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO webhooks (id, tenant_id, url, event, secret, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.TenantID, w.URL, w.Event, w.Secret, boolToInt(w.Enabled),
		w.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListWebhooksForEvent returns enabled webhooks belonging to tenantID that
// subscribe to event.
func (s *Store) ListWebhooksForEvent(ctx context.Context, tenantID, event string) ([]*Webhook, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, tenant_id, url, event, secret, enabled, created_at
		 FROM webhooks WHERE tenant_id = ? AND event = ? AND enabled = 1`, tenantID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWebhook removes a webhook subscription.
func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	result, err := s.write.ExecContext(ctx, `DELETE FROM webhooks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result)
}

func scanWebhook(s rowScanner) (*Webhook, error) {
	var w Webhook
	var createdAt string
	var enabled int
	if err := s.Scan(&w.ID, &w.TenantID, &w.URL, &w.Event, &w.Secret, &enabled, &createdAt); err != nil {
		return nil, notFoundErr(err)
	}
	w.Enabled = enabled != 0
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	w.CreatedAt = parsed
	return &w, nil
}
