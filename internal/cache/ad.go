package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soundstage/adserve/internal/model"
)

// Cache key prefixes and TTLs.
const (
	adListKeyPrefix   = "ads:placement:"
	negCacheKeySuffix = ":neg"
	intervalKey       = "setting:rotation_interval"

	// DefaultAdListTTL is the TTL for cached servable ad lists. Short on
	// purpose: campaign edits should reach viewers within a minute.
	DefaultAdListTTL = 60 * time.Second

	// NegativeCacheTTL is the TTL for placements with no servable ads.
	NegativeCacheTTL = 30 * time.Second

	// IntervalCacheTTL is the TTL for the cached rotation interval.
	IntervalCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetServableAds retrieves the cached servable ad list for a placement.
// Returns ErrCacheMiss if not found or the entry cannot be decoded.
func (c *Cache) GetServableAds(ctx context.Context, placement model.Placement) ([]*model.Ad, error) {
	key := adListKeyPrefix + string(placement)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var ads []*model.Ad
	if err := json.Unmarshal(data, &ads); err != nil {
		// Corrupted entry - drop it and treat as a miss
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}

	return ads, nil
}

// SetServableAds caches the servable ad list for a placement.
func (c *Cache) SetServableAds(ctx context.Context, placement model.Placement, ads []*model.Ad) error {
	key := adListKeyPrefix + string(placement)

	data, err := json.Marshal(ads)
	if err != nil {
		return fmt.Errorf("marshal ad list: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, DefaultAdListTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache ad list: %w", err)
	}

	return nil
}

// InvalidateServableAds removes the cached ad list for a placement.
func (c *Cache) InvalidateServableAds(ctx context.Context, placement model.Placement) error {
	key := adListKeyPrefix + string(placement)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate ad list: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a placement is known to have no servable ads.
func (c *Cache) IsNegativelyCached(ctx context.Context, placement model.Placement) (bool, error) {
	key := adListKeyPrefix + string(placement) + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a placement as having no servable ads.
func (c *Cache) SetNegativeCache(ctx context.Context, placement model.Placement) error {
	key := adListKeyPrefix + string(placement) + negCacheKeySuffix

	err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

// GetRotationInterval retrieves the cached rotation interval in seconds.
// Returns ErrCacheMiss if not cached.
func (c *Cache) GetRotationInterval(ctx context.Context) (int, error) {
	result, err := c.client.Get(ctx, intervalKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("redis get failed: %w", err)
	}

	seconds, err := strconv.Atoi(result)
	if err != nil || seconds <= 0 {
		c.client.Del(ctx, intervalKey)
		return 0, ErrCacheMiss
	}

	return seconds, nil
}

// SetRotationInterval caches the rotation interval in seconds.
func (c *Cache) SetRotationInterval(ctx context.Context, seconds int) error {
	err := c.client.Set(ctx, intervalKey, strconv.Itoa(seconds), IntervalCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache rotation interval: %w", err)
	}
	return nil
}
