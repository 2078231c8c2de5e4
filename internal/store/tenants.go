package store

import (
	"context"
	"time"
)

// CreateTenant inserts a new tenant.
func (s *Store) CreateTenant(ctx context.Context, t *Tenant) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO tenants (id, name, admin_key_hash, daily_limit, weekly_limit, monthly_limit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.AdminKeyHash, t.DailyLimit, t.WeeklyLimit, t.MonthlyLimit,
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetTenant retrieves a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, name, admin_key_hash, daily_limit, weekly_limit, monthly_limit, created_at
		 FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

// ListTenants returns every tenant, oldest first.
func (s *Store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, name, admin_key_hash, daily_limit, weekly_limit, monthly_limit, created_at
		 FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTenantLimits updates a tenant's budget limits.
func (s *Store) UpdateTenantLimits(ctx context.Context, id string, daily, weekly, monthly float64) error {
	result, err := s.write.ExecContext(ctx,
		`UPDATE tenants SET daily_limit=?, weekly_limit=?, monthly_limit=? WHERE id=?`,
		daily, weekly, monthly, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result)
}

// DeleteTenant removes a tenant and (via FK cascade) its keys and webhooks.
func (s *Store) DeleteTenant(ctx context.Context, id string) error {
	result, err := s.write.ExecContext(ctx, `DELETE FROM tenants WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(s rowScanner) (*Tenant, error) {
	var t Tenant
	var createdAt string
	if err := s.Scan(&t.ID, &t.Name, &t.AdminKeyHash, &t.DailyLimit, &t.WeeklyLimit, &t.MonthlyLimit, &createdAt); err != nil {
		return nil, notFoundErr(err)
	}
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parsed
	return &t, nil
}
