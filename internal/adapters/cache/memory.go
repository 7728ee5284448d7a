package cache

import (
	"context"
	"sync"
	"time"
)

// entry represents a cached value with expiration
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache with TTL, used when Redis is not configured
type Memory struct {
	mu    sync.RWMutex
	items map[string]*entry
	now   func() time.Time
}

// NewMemory creates a new in-memory cache
func NewMemory() *Memory {
	return &Memory{items: map[string]*entry{}, now: time.Now}
}

// Get retrieves a value from the cache if it hasn't expired
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, exists := m.items[key]
	if !exists || m.now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores a value in the cache with a given TTL
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = &entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

// Delete removes keys from the cache
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Ping always succeeds
func (m *Memory) Ping(context.Context) error {
	return nil
}
