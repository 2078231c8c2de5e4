package store

import (
	"context"
	"database/sql"
	"time"
)

// CreateAPIKey inserts a new API key for a tenant.
func (s *Store) CreateAPIKey(ctx context.Context, k *APIKey) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO api_keys (id, tenant_id, key_hash, key_prefix, label, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.TenantID, k.KeyHash, k.KeyPrefix, k.Label, boolToInt(k.Revoked),
		k.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetAPIKeyByHash retrieves an API key by its hash, for authentication.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, tenant_id, key_hash, key_prefix, label, revoked, last_used_at, created_at
		 FROM api_keys WHERE key_hash = ?`, hash)
	return scanAPIKey(row)
}

// ListAPIKeys returns every key belonging to tenantID.
func (s *Store) ListAPIKeys(ctx context.Context, tenantID string) ([]*APIKey, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, tenant_id, key_hash, key_prefix, label, revoked, last_used_at, created_at
		 FROM api_keys WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// RevokeAPIKey marks a key revoked; revoked keys fail authentication but
// are kept for audit purposes rather than deleted.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	result, err := s.write.ExecContext(ctx, `UPDATE api_keys SET revoked=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result)
}

// TouchAPIKeyUsed records that a key was just used.
func (s *Store) TouchAPIKeyUsed(ctx context.Context, id string) error {
	_, err := s.write.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at=? WHERE id=?`,
		time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func scanAPIKey(s rowScanner) (*APIKey, error) {
	var k APIKey
	var lastUsedAt sql.NullString
	var createdAt string
	var revoked int

	if err := s.Scan(&k.ID, &k.TenantID, &k.KeyHash, &k.KeyPrefix, &k.Label, &revoked, &lastUsedAt, &createdAt); err != nil {
		return nil, notFoundErr(err)
	}

	k.Revoked = revoked != 0
	if lastUsedAt.Valid {
		t, err := time.Parse(time.RFC3339, lastUsedAt.String)
		if err == nil {
			k.LastUsedAt = &t
		}
	}
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}
	k.CreatedAt = parsed
	return &k, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
