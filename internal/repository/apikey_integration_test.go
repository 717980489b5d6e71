//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/soundstage/adserve/internal/testutil"
)

func newKeyTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetKeysSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset keys schema: %v", err)
	}

	return ctx, repo
}

func TestIntegrationKeyRepository_CreateAndLookup(t *testing.T) {
	ctx, repo := newKeyTestEnv(t)

	key := testutil.NewTestAdvertiserKey(t, "Bass Haven Audio")

	if err := repo.CreateAdvertiserKey(ctx, key); err != nil {
		t.Fatalf("CreateAdvertiserKey failed: %v", err)
	}

	keys, err := repo.GetAdvertiserKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAdvertiserKeysByPrefix failed: %v", err)
	}

	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0].Advertiser != "Bass Haven Audio" {
		t.Errorf("Advertiser mismatch: got %q", keys[0].Advertiser)
	}
	if len(keys[0].Scopes) != 1 || keys[0].Scopes[0] != "stats" {
		t.Errorf("Scopes mismatch: got %v", keys[0].Scopes)
	}
}

func TestIntegrationKeyRepository_Revoke(t *testing.T) {
	ctx, repo := newKeyTestEnv(t)

	key := testutil.NewTestAdvertiserKey(t, "Bass Haven Audio")
	if err := repo.CreateAdvertiserKey(ctx, key); err != nil {
		t.Fatalf("CreateAdvertiserKey failed: %v", err)
	}

	if err := repo.RevokeAdvertiserKey(ctx, key.ID); err != nil {
		t.Fatalf("RevokeAdvertiserKey failed: %v", err)
	}

	// Revoked keys disappear from prefix lookup
	keys, err := repo.GetAdvertiserKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAdvertiserKeysByPrefix failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no active keys after revoke, got %d", len(keys))
	}

	// Double revoke reports not found
	if err := repo.RevokeAdvertiserKey(ctx, key.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got: %v", err)
	}
}

func TestIntegrationKeyRepository_UpdateLastUsed(t *testing.T) {
	ctx, repo := newKeyTestEnv(t)

	key := testutil.NewTestAdvertiserKey(t, "Bass Haven Audio")
	if err := repo.CreateAdvertiserKey(ctx, key); err != nil {
		t.Fatalf("CreateAdvertiserKey failed: %v", err)
	}

	if err := repo.UpdateAdvertiserKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAdvertiserKeyLastUsed failed: %v", err)
	}

	keys, err := repo.GetAdvertiserKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAdvertiserKeysByPrefix failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0].LastUsedAt == nil {
		t.Error("LastUsedAt should be set")
	}
}
