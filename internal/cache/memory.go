package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider used when no cache server is configured.
// Entries do not survive a restart, which only costs extra provider calls.
type MemoryProvider struct {
	mu   sync.Mutex
	data map[string]memoryItem
	now  func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]memoryItem), now: time.Now}
}

// Get retrieves a cached item if present and not expired.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !it.expiresAt.IsZero() && c.now().After(it.expiresAt) {
		delete(c.data, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a value with optional TTL.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}
	c.data[key] = memoryItem{value: append([]byte(nil), value...), expiresAt: expires}
	return nil
}

// Del removes an entry.
func (c *MemoryProvider) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Close is a no-op.
func (c *MemoryProvider) Close() error { return nil }
