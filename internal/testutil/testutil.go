package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/soundstage/adserve/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 728090

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// resetSchema drops and recreates one migration pair for tests.
func resetSchema(ctx context.Context, pool *pgxpool.Pool, base string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", base+".down.sql")
	upPath := filepath.Join(root, "migrations", base+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
	}

	return nil
}

// ResetAdsSchema drops and recreates the advertisements schema for tests.
func ResetAdsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_advertisements")
}

// ResetEventsSchema drops and recreates the ad_events schema for tests.
func ResetEventsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_ad_events")
}

// ResetSettingsSchema drops and recreates the site_settings schema for tests.
func ResetSettingsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_site_settings")
}

// ResetKeysSchema drops and recreates the advertiser_keys schema for tests.
func ResetKeysSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000004_advertiser_keys")
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestAd creates a servable test ad with sensible defaults.
func NewTestAd(t testing.TB, placement model.Placement) *model.Ad {
	t.Helper()
	now := time.Now().UTC()
	id := fmt.Sprintf("ad-%d", now.UnixNano())
	return &model.Ad{
		ID:         id,
		Title:      "Test Campaign " + id,
		ImageURL:   "https://cdn.example.com/" + id + ".png",
		TargetURL:  "https://example.com/" + id,
		Advertiser: "Test Advertiser",
		Placement:  placement,
		Size:       model.SizeMediumRect,
		Status:     model.StatusActive,
		StartDate:  now.AddDate(0, 0, -1),
		EndDate:    now.AddDate(0, 0, 30),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewTestAdWithCap creates a test ad with a daily frequency cap.
func NewTestAdWithCap(t testing.TB, placement model.Placement, cap int) *model.Ad {
	t.Helper()
	ad := NewTestAd(t, placement)
	ad.FrequencyCap = cap
	return ad
}

// NewTestAdvertiserKey creates a test advertiser key with sensible defaults.
func NewTestAdvertiserKey(t testing.TB, advertiser string) *model.AdvertiserKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.AdvertiserKey{
		ID:         fmt.Sprintf("key-%d", now.UnixNano()),
		Advertiser: advertiser,
		KeyHash:    fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:  "a1b2c3",
		Scopes:     []string{model.ScopeStats},
		Name:       "Test Key",
		CreatedAt:  now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
