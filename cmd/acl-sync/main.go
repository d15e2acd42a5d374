package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
	"github.com/gr-thach/cli-repo-sub003/pkg/config"
	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
	"github.com/gr-thach/cli-repo-sub003/pkg/store/postgres"
	"github.com/gr-thach/cli-repo-sub003/pkg/vcs"
)

// acl-sync re-synchronizes the stored access lists for every known identity,
// either once or on the configured cron schedule. It runs as a sidecar or a
// cron job next to the gateway so cached snapshots never go stale.
func main() {
	once := flag.Bool("once", false, "Run a single synchronization pass and exit")
	timeout := flag.Duration("timeout", 10*time.Minute, "Deadline for a single pass")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if cfg.Database.URL == "" {
		log.Fatal("A database URL is required to list synchronizable identities")
	}

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := postgres.RunMigrations(context.Background(), db); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	users := postgres.NewUserStore(db)
	factory := acl.NewFactory(cfg.Cache.CacheConfig)
	store := acl.NewStore(factory, cfg.Cache.TTL, nil)
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	synchronizer := acl.NewSynchronizer(store, users, vcs.NewClients(cfg.VCS), logger, nil)

	scheduler, err := acl.NewScheduler(cfg.SyncSchedule, synchronizer, users, logger)
	if err != nil {
		log.WithError(err).Fatal("Failed to create scheduler")
	}

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := scheduler.Run(ctx); err != nil {
			log.WithError(err).Fatal("Synchronization pass failed")
		}
		log.Info("Synchronization pass complete")
		return
	}

	scheduler.Start()
	log.WithField("schedule", cfg.SyncSchedule).Info("Access-list synchronizer started")

	if err := observability.GracefulShutdown(logger, nil, func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	}); err != nil {
		log.WithError(err).Error("Shutdown finished with errors")
	}
}
