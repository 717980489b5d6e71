package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/soundstage/adserve/internal/model"
)

// Common errors for advertiser key repository operations.
var (
	ErrKeyNotFound = errors.New("advertiser key not found")
)

// CreateAdvertiserKey inserts a new advertiser key into the database.
func (r *Repository) CreateAdvertiserKey(ctx context.Context, key *model.AdvertiserKey) error {
	query := `
		INSERT INTO advertiser_keys (id, advertiser, key_hash, key_prefix, scopes, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.Advertiser,
		key.KeyHash,
		key.KeyPrefix,
		pq.Array(key.Scopes),
		key.Name,
		key.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create advertiser key: %w", err)
	}

	return nil
}

// GetAdvertiserKeysByPrefix retrieves all active keys matching a prefix.
// Used during authentication to find candidate keys for verification.
func (r *Repository) GetAdvertiserKeysByPrefix(ctx context.Context, prefix string) ([]*model.AdvertiserKey, error) {
	query := `
		SELECT id, advertiser, key_hash, key_prefix, scopes, name, revoked_at, last_used_at, created_at
		FROM advertiser_keys
		WHERE key_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get advertiser keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*model.AdvertiserKey
	for rows.Next() {
		key, err := scanAdvertiserKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan advertiser key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating advertiser keys: %w", err)
	}

	return keys, nil
}

// RevokeAdvertiserKey revokes a key by setting revoked_at.
func (r *Repository) RevokeAdvertiserKey(ctx context.Context, id string) error {
	query := `
		UPDATE advertiser_keys
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke advertiser key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// UpdateAdvertiserKeyLastUsed updates the last_used_at timestamp.
// Called asynchronously after successful authentication.
func (r *Repository) UpdateAdvertiserKeyLastUsed(ctx context.Context, id string) error {
	query := `
		UPDATE advertiser_keys
		SET last_used_at = $2
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update advertiser key last used: %w", err)
	}

	return nil
}

// scanAdvertiserKey scans a row into an AdvertiserKey model.
func scanAdvertiserKey(row pgx.Row) (*model.AdvertiserKey, error) {
	var key model.AdvertiserKey
	err := row.Scan(
		&key.ID,
		&key.Advertiser,
		&key.KeyHash,
		&key.KeyPrefix,
		pq.Array(&key.Scopes),
		&key.Name,
		&key.RevokedAt,
		&key.LastUsedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
