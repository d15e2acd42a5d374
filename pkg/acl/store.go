package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
)

// Store persists access-list snapshots in the cache backend, one entry per
// (provider, login).
type Store struct {
	factory *Factory
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewStore builds a snapshot store. Snapshots expire after ttl. A nil
// metrics disables hit/miss counters.
func NewStore(factory *Factory, ttl time.Duration, metrics *observability.Metrics) *Store {
	return &Store{factory: factory, ttl: ttl, metrics: metrics}
}

func snapshotKey(provider, login string) string {
	return fmt.Sprintf("acl:%s:%s", provider, login)
}

// Get returns the cached snapshot and whether one was present.
func (s *Store) Get(ctx context.Context, provider, login string) (AllowedAccounts, bool, error) {
	cache, err := s.factory.Cache(provider)
	if err != nil {
		return nil, false, err
	}

	key := snapshotKey(provider, login)
	raw, ok, err := cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.metrics.RecordCacheMiss(provider)
		return nil, false, nil
	}

	var snapshot AllowedAccounts
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		// Corrupt entry: drop it and report a miss.
		_ = cache.Del(ctx, key)
		s.metrics.RecordCacheMiss(provider)
		return nil, false, nil
	}
	s.metrics.RecordCacheHit(provider)
	return snapshot, true, nil
}

// Set stores a snapshot with the configured TTL.
func (s *Store) Set(ctx context.Context, provider, login string, snapshot AllowedAccounts) error {
	cache, err := s.factory.Cache(provider)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal access list: %w", err)
	}
	return cache.Set(ctx, snapshotKey(provider, login), string(raw), s.ttl)
}

// Invalidate removes a snapshot.
func (s *Store) Invalidate(ctx context.Context, provider, login string) error {
	cache, err := s.factory.Cache(provider)
	if err != nil {
		return err
	}
	return cache.Del(ctx, snapshotKey(provider, login))
}
