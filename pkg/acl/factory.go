package acl

import (
	"fmt"
	"sync"
)

// Cache backend names selectable by configuration.
const (
	BackendNoop   = "noop"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is one of noop, memory, redis. Empty means noop.
	Backend string

	// MemorySize bounds the in-memory backend, entries per provider.
	MemorySize int

	Redis RedisConfig
}

// Factory hands out one cache client per VCS provider name, constructed on
// first use and reused for the life of the process. It is built once at
// startup and passed to whoever needs a cache, so there is no hidden global
// client registry.
type Factory struct {
	cfg CacheConfig

	mu      sync.Mutex
	clients map[string]Cache
}

// NewFactory builds a cache-client factory for the configured backend.
func NewFactory(cfg CacheConfig) *Factory {
	return &Factory{cfg: cfg, clients: make(map[string]Cache)}
}

// Cache returns the client for a provider, constructing it on first use.
func (f *Factory) Cache(provider string) (Cache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[provider]; ok {
		return client, nil
	}

	client, err := f.build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s cache for provider %s: %w", f.cfg.Backend, provider, err)
	}
	f.clients[provider] = client
	return client, nil
}

func (f *Factory) build() (Cache, error) {
	switch f.cfg.Backend {
	case "", BackendNoop:
		return NewNoopCache(), nil
	case BackendMemory:
		size := f.cfg.MemorySize
		if size <= 0 {
			size = 1024
		}
		return NewMemoryCache(size)
	case BackendRedis:
		return NewRedisCache(f.cfg.Redis)
	}
	return nil, fmt.Errorf("unknown cache backend %q", f.cfg.Backend)
}
