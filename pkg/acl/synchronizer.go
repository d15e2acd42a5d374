package acl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
)

// ErrSynchronizing signals that no access list exists yet for a user: the
// first synchronization has not completed. Callers report this state rather
// than treating the user as having zero access.
var ErrSynchronizing = errors.New("access list synchronization has not completed")

// UserStore is the slower authoritative source consulted on a cache miss:
// the access list stored on the user record.
type UserStore interface {
	StoredACL(ctx context.Context, provider, login string) (AllowedAccounts, bool, error)
}

// ACLWriter persists a freshly synchronized access list back onto the user
// record. A UserStore that also implements it gets every live sync written
// through.
type ACLWriter interface {
	SaveACL(ctx context.Context, provider, login string, snapshot AllowedAccounts) error
}

// ProviderClient fetches the live access list from a VCS provider.
type ProviderClient interface {
	AllowedAccounts(ctx context.Context, token string) (AllowedAccounts, error)
}

// Synchronizer resolves access-list snapshots: cache first, stored column
// second, a live provider fetch last. Concurrent fetches for the same
// (provider, login) collapse into one provider call.
type Synchronizer struct {
	store     *Store
	users     UserStore
	providers map[string]ProviderClient
	group     singleflight.Group
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewSynchronizer builds a synchronizer over the given provider clients.
// A nil metrics disables sync counters.
func NewSynchronizer(store *Store, users UserStore, providers map[string]ProviderClient, logger *observability.Logger, metrics *observability.Metrics) *Synchronizer {
	return &Synchronizer{
		store:     store,
		users:     users,
		providers: providers,
		logger:    logger,
		metrics:   metrics,
	}
}

// Resolve returns the access list for a login. The cache is best-effort: a
// backend failure logs and falls through. With no cached or stored snapshot
// and no token to fetch with, the user is still synchronizing.
func (s *Synchronizer) Resolve(ctx context.Context, provider, login, token string) (AllowedAccounts, error) {
	snapshot, ok, err := s.store.Get(ctx, provider, login)
	if err != nil {
		s.logger.WithError(err).WithField("provider", provider).Warn("access list cache read failed")
	} else if ok {
		return snapshot, nil
	}

	if s.users != nil {
		snapshot, ok, err = s.users.StoredACL(ctx, provider, login)
		if err != nil {
			return nil, fmt.Errorf("failed to read stored access list: %w", err)
		}
		if ok {
			if err := s.store.Set(ctx, provider, login, snapshot); err != nil {
				s.logger.WithError(err).Warn("access list cache write failed")
			}
			return snapshot, nil
		}
	}

	if token != "" {
		return s.Sync(ctx, provider, login, token)
	}
	return nil, ErrSynchronizing
}

// Sync fetches the live access list from the provider and caches it.
// Concurrent calls for the same (provider, login) share one fetch.
func (s *Synchronizer) Sync(ctx context.Context, provider, login, token string) (AllowedAccounts, error) {
	client, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("no client for provider %q", provider)
	}

	result, err, _ := s.group.Do(provider+":"+login, func() (interface{}, error) {
		start := time.Now()
		snapshot, err := client.AllowedAccounts(ctx, token)
		s.metrics.RecordSync(provider, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("failed to synchronize access list: %w", err)
		}
		if err := s.store.Set(ctx, provider, login, snapshot); err != nil {
			s.logger.WithError(err).WithField("provider", provider).Warn("access list cache write failed")
		}
		if writer, ok := s.users.(ACLWriter); ok {
			if err := writer.SaveACL(ctx, provider, login, snapshot); err != nil {
				s.logger.WithError(err).WithField("provider", provider).Warn("stored access list write failed")
			}
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(AllowedAccounts), nil
}
