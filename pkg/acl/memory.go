package acl

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memoryCache is the in-process fallback backend: an LRU bounded by entry
// count, with per-entry expiry checked on read.
type memoryCache struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

type memoryEntry struct {
	value    string
	deadline time.Time
}

// NewMemoryCache returns an in-memory cache holding at most size entries.
func NewMemoryCache(size int) (Cache, error) {
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &memoryCache{entries: entries, now: time.Now}, nil
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	if !entry.deadline.IsZero() && c.now().After(entry.deadline) {
		c.entries.Remove(key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.deadline = c.now().Add(ttl)
	}
	c.entries.Add(key, entry)
	return nil
}

func (c *memoryCache) Del(ctx context.Context, key string) error {
	c.entries.Remove(key)
	return nil
}
