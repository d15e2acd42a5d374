package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
	"github.com/gr-thach/cli-repo-sub003/pkg/coreapi"
	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
	"github.com/gr-thach/cli-repo-sub003/pkg/store/postgres"
	"github.com/gr-thach/cli-repo-sub003/pkg/vcs"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Core data API client configuration
	CoreAPI coreapi.Config

	// Access-list cache configuration
	Cache CacheConfig

	// Gateway user store (optional; empty URL disables it)
	Database postgres.ConnectionConfig

	// VCS provider clients
	VCS vcs.Config

	// Self-hosted deployments serve grants from a local file
	SelfHosted bool
	GrantsFile string

	// Cron spec for the periodic access-list re-sync
	SyncSchedule string

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	CORSAllowedOrigins []string
}

// CacheConfig wraps the access-list cache backend selection and TTL.
type CacheConfig struct {
	acl.CacheConfig
	TTL time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		CoreAPI:       loadCoreAPIConfig(),
		Cache:         loadCacheConfig(),
		Database:      loadDatabaseConfig(),
		VCS:           loadVCSConfig(),
		SelfHosted:    getEnvBool("PERMGW_SELF_HOSTED", false),
		GrantsFile:    getEnv("PERMGW_GRANTS_FILE", ""),
		SyncSchedule:  getEnv("PERMGW_SYNC_SCHEDULE", "0 */6 * * *"),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:               getEnv("PERMGW_HOST", "0.0.0.0"),
		Port:               getEnv("PERMGW_PORT", "8080"),
		ReadTimeout:        getEnvDuration("PERMGW_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("PERMGW_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getEnvDuration("PERMGW_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("PERMGW_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:         getEnv("PERMGW_HEALTH_PORT", "9090"),
		CORSAllowedOrigins: splitList(getEnv("PERMGW_CORS_ORIGINS", "")),
	}
}

// loadCoreAPIConfig loads the core data API client configuration
func loadCoreAPIConfig() coreapi.Config {
	return coreapi.Config{
		BaseURL: getEnv("PERMGW_CORE_API_URL", ""),
		Token:   getEnv("PERMGW_CORE_API_TOKEN", ""),
		Timeout: getEnvDuration("PERMGW_CORE_API_TIMEOUT", 10*time.Second),
	}
}

// loadCacheConfig loads the access-list cache configuration
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		CacheConfig: acl.CacheConfig{
			Backend:    getEnv("PERMGW_CACHE_BACKEND", acl.BackendMemory),
			MemorySize: getEnvInt("PERMGW_CACHE_MEMORY_SIZE", 1024),
			Redis: acl.RedisConfig{
				URL:        getEnv("PERMGW_REDIS_URL", ""),
				Password:   getEnv("PERMGW_REDIS_PASSWORD", ""),
				DB:         getEnvInt("PERMGW_REDIS_DB", 0),
				MaxRetries: getEnvInt("PERMGW_REDIS_MAX_RETRIES", 3),
				PoolSize:   getEnvInt("PERMGW_REDIS_POOL_SIZE", 10),
			},
		},
		TTL: getEnvDuration("PERMGW_CACHE_TTL", 5*time.Minute),
	}
}

// loadDatabaseConfig loads the gateway user store configuration
func loadDatabaseConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		URL:         getEnv("PERMGW_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("PERMGW_POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("PERMGW_POSTGRES_MIN_CONNS", 2),
		Timeout:     getEnvDuration("PERMGW_POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("PERMGW_POSTGRES_MAX_LIFETIME", time.Hour),
		MaxIdleTime: getEnvDuration("PERMGW_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
	}
}

// loadVCSConfig loads the VCS provider client configuration
func loadVCSConfig() vcs.Config {
	return vcs.Config{
		GithubURL:          getEnv("PERMGW_GITHUB_URL", "https://api.github.com"),
		GitlabURL:          getEnv("PERMGW_GITLAB_URL", "https://gitlab.com"),
		BitbucketServerURL: getEnv("PERMGW_BITBUCKET_SERVER_URL", ""),
		Timeout:            getEnvDuration("PERMGW_VCS_TIMEOUT", 30*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("PERMGW_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PERMGW_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PERMGW_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PERMGW_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PERMGW_OTEL_SERVICE_NAME", "permission-gateway"),
		OTelServiceVersion: getEnv("PERMGW_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PERMGW_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.SelfHosted {
		if c.GrantsFile == "" {
			return fmt.Errorf("grants file is required in self-hosted mode")
		}
	} else if c.CoreAPI.BaseURL == "" {
		return fmt.Errorf("core API URL is required")
	}

	switch c.Cache.Backend {
	case acl.BackendNoop, acl.BackendMemory, "":
	case acl.BackendRedis:
		if c.Cache.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be noop, memory, or redis)", c.Cache.Backend)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// splitList splits a comma-separated env value into trimmed entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
