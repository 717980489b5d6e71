package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soundstage/adserve/internal/frequency"
)

// freqKeyPrefix namespaces frequency counter blobs in Redis.
const freqKeyPrefix = "kv:"

// FrequencyKV adapts the Redis client to the frequency.KV interface.
// Each viewer's counters live under a single string key so loads and
// saves stay one round trip on the serve path.
type FrequencyKV struct {
	client *redis.Client
}

var _ frequency.KV = (*FrequencyKV)(nil)

// FrequencyKV returns a frequency.KV backed by this cache.
func (c *Cache) FrequencyKV() *FrequencyKV {
	return &FrequencyKV{client: c.client}
}

// Get retrieves a stored value, mapping redis.Nil to frequency.ErrNotFound.
func (kv *FrequencyKV) Get(ctx context.Context, key string) (string, error) {
	value, err := kv.client.Get(ctx, freqKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", frequency.ErrNotFound
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set stores a value with the given TTL.
func (kv *FrequencyKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := kv.client.Set(ctx, freqKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
