package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
	"github.com/gr-thach/cli-repo-sub003/pkg/api"
	"github.com/gr-thach/cli-repo-sub003/pkg/config"
	"github.com/gr-thach/cli-repo-sub003/pkg/coreapi"
	"github.com/gr-thach/cli-repo-sub003/pkg/grants"
	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
	"github.com/gr-thach/cli-repo-sub003/pkg/permission"
	"github.com/gr-thach/cli-repo-sub003/pkg/store/postgres"
	"github.com/gr-thach/cli-repo-sub003/pkg/vcs"
)

// ephemeralUserStore stands in when no database is configured: there is no
// stored snapshot to fall back to, so every cache miss synchronizes live.
type ephemeralUserStore struct{}

func (ephemeralUserStore) StoredACL(ctx context.Context, provider, login string) (acl.AllowedAccounts, bool, error) {
	return nil, false, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Infof("Starting permission gateway on %s:%s", cfg.Server.Host, cfg.Server.Port)

	ctx := context.Background()

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize OpenTelemetry, continuing without tracing")
		}
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	coreCfg := cfg.CoreAPI
	coreCfg.Metrics = metrics
	core := coreapi.NewClient(coreCfg)

	var db *sql.DB
	var userStore acl.UserStore = ephemeralUserStore{}
	var identities acl.IdentitySource
	if cfg.Database.URL != "" {
		db, err = postgres.Connect(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		pgStore := postgres.NewUserStore(db)
		userStore = pgStore
		identities = pgStore
		logger.Info("Gateway user store connected")
	}

	factory := acl.NewFactory(cfg.Cache.CacheConfig)
	store := acl.NewStore(factory, cfg.Cache.TTL, metrics)
	providers := vcs.NewClients(cfg.VCS)
	synchronizer := acl.NewSynchronizer(store, userStore, providers, logger, metrics)

	var grantSource permission.GrantSource = core
	var localGrants *grants.Local
	if cfg.SelfHosted {
		localGrants, err = grants.OpenLocal(cfg.GrantsFile, logger)
		if err != nil {
			log.Fatalf("Failed to open grants file: %v", err)
		}
		grantSource = localGrants
		logger.Infof("Self-hosted mode, serving grants from %s", cfg.GrantsFile)
	}

	authorizer := api.NewAuthorizer(core, grantSource, synchronizer, cfg.SelfHosted)
	server := api.NewServer(authorizer, logger, api.ServerOptions{
		Metrics:            metrics,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	var handler http.Handler = server
	if otelProviders != nil {
		handler = server.Handler()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := startHealthServer(cfg, logger, db, registry, metrics)

	var scheduler *acl.Scheduler
	if identities != nil {
		scheduler, err = acl.NewScheduler(cfg.SyncSchedule, synchronizer, identities, logger)
		if err != nil {
			log.Fatalf("Failed to create sync scheduler: %v", err)
		}
		scheduler.Start()
		logger.Infof("Access-list re-sync scheduled: %s", cfg.SyncSchedule)
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	if scheduler != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		})
	}
	if localGrants != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return localGrants.Close()
		})
	}
	if db != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return db.Close()
		})
	}
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
			os.Exit(1)
		}
	}()
	logger.Infof("Permission gateway listening on %s", httpServer.Addr)

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// startHealthServer serves the k8s probes and the metrics endpoint on the
// dedicated health port.
func startHealthServer(cfg *config.Config, logger *observability.Logger, db *sql.DB, registry *prometheus.Registry, metrics *observability.Metrics) *http.Server {
	checker := observability.NewHealthChecker()
	if db != nil {
		checker.Register("database", true, func(ctx context.Context) error {
			return db.PingContext(ctx)
		})
	}

	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	healthServer := &http.Server{
		Addr:        cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server error")
		}
	}()

	if db != nil && metrics != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				metrics.UpdateDBStats(db.Stats())
			}
		}()
	}

	return healthServer
}
