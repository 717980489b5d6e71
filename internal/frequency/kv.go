// Package frequency enforces per-viewer daily impression caps.
package frequency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound indicates no value is stored under the key.
var ErrNotFound = errors.New("frequency: key not found")

// KV is the persistence boundary for cap counters. Production uses a
// Redis-backed implementation; tests use MemoryKV.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// MemoryKV is an in-memory KV used as a test double.
type MemoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

// Get returns the stored value or ErrNotFound.
func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value. TTL is ignored in memory.
func (m *MemoryKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
