package cache

import (
	"context"
	"sync"
	"time"

	"github.com/warden-auth/warden/ports"
)

type entry struct {
	value    []byte
	deadline time.Time
}

// MemoryCache is an in-memory implementation of the ChallengeCache
// interface
type MemoryCache struct {
	entries map[string]entry
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory challenge cache
func NewMemoryCache() ports.ChallengeCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Put stores value under key, replacing any previous entry. Expired
// entries are swept on every write so abandoned ceremonies cost only
// bounded memory.
func (c *MemoryCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.deadline) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = entry{value: value, deadline: now.Add(ttl)}
	return nil
}

// TakeIfPresent returns the live value under key and renews its
// deadline. Expired entries are removed on access.
func (c *MemoryCache) TakeIfPresent(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists {
		return nil, nil
	}
	if c.now().After(e.deadline) {
		delete(c.entries, key)
		return nil, nil
	}

	e.deadline = c.now().Add(ttl)
	c.entries[key] = e
	return e.value, nil
}

// Evict removes key
func (c *MemoryCache) Evict(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}
