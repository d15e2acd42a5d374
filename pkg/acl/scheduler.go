package acl

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
)

// IdentitySource lists the identities whose access lists are refreshed on a
// schedule.
type IdentitySource interface {
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// Scheduler periodically re-synchronizes every known identity so cached
// snapshots never go stale past one schedule interval plus the TTL.
type Scheduler struct {
	cron       *cron.Cron
	sync       *Synchronizer
	identities IdentitySource
	timeout    time.Duration
	logger     *observability.Logger
}

// NewScheduler registers the re-sync job on a cron spec (e.g. "@every 1h").
func NewScheduler(spec string, sync *Synchronizer, identities IdentitySource, logger *observability.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(),
		sync:       sync,
		identities: identities,
		timeout:    10 * time.Minute,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Run executes one full re-sync pass immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	identities, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	var failed int
	for _, id := range identities {
		if id.Token == "" {
			continue
		}
		if _, err := s.sync.Sync(ctx, id.Provider, id.Login, id.Token); err != nil {
			failed++
			s.logger.WithError(err).
				WithField("provider", id.Provider).
				WithField("login", id.Login).
				Warn("scheduled access list sync failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d identities failed to sync", failed, len(identities))
	}
	return nil
}

func (s *Scheduler) run() {
	// cron jobs run on the cron goroutine; a panicking provider client
	// must not take the schedule down with it.
	defer observability.RecoverPanic(s.logger, "scheduled access list sync")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		s.logger.WithError(err).Warn("scheduled access list sync pass incomplete")
	}
}
