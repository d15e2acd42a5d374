package acl

import (
	"context"
	"time"
)

// Cache is the key-value backend an access-list snapshot is stored in.
// Implementations are best-effort: a miss or a backend failure falls through
// to the authoritative source, never to a denial.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores a value with a TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error
}

// noopCache is the default backend: every read misses, every write is
// discarded. Deployments without a cache configured still work, they just
// hit the authoritative source on every check.
type noopCache struct{}

// NewNoopCache returns the no-op cache stub.
func NewNoopCache() Cache { return noopCache{} }

func (noopCache) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }

func (noopCache) Set(ctx context.Context, key, value string, ttl time.Duration) error { return nil }

func (noopCache) Del(ctx context.Context, key string) error { return nil }
