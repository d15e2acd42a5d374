// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	PERMGW_HOST="0.0.0.0"
//	PERMGW_PORT="8080"
//	PERMGW_HEALTH_PORT="9090"
//	PERMGW_READ_TIMEOUT="15s"
//	PERMGW_WRITE_TIMEOUT="15s"
//	PERMGW_CORS_ORIGINS="https://app.example.com"
//
// Core data API settings:
//
//	PERMGW_CORE_API_URL="http://core-api:3000"
//	PERMGW_CORE_API_TOKEN="..."
//	PERMGW_CORE_API_TIMEOUT="10s"
//
// Access-list cache settings:
//
//	PERMGW_CACHE_BACKEND="redis"  # noop, memory, redis
//	PERMGW_CACHE_TTL="5m"
//	PERMGW_CACHE_MEMORY_SIZE="1024"
//	PERMGW_REDIS_URL="redis://localhost:6379"
//	PERMGW_REDIS_POOL_SIZE="10"
//
// User store and VCS settings:
//
//	PERMGW_POSTGRES_URL="postgres://localhost/permgw"
//	PERMGW_GITHUB_URL="https://api.github.com"
//	PERMGW_GITLAB_URL="https://gitlab.com"
//	PERMGW_BITBUCKET_SERVER_URL="https://bitbucket.internal"
//	PERMGW_SYNC_SCHEDULE="0 */6 * * *"
//
// Self-hosted settings:
//
//	PERMGW_SELF_HOSTED="true"
//	PERMGW_GRANTS_FILE="/etc/permgw/grants.yaml"
//
// Observability settings:
//
//	PERMGW_LOG_LEVEL="info"  # debug, info, warn, error
//	PERMGW_METRICS_ENABLED="true"
//	PERMGW_OTEL_ENABLED="true"
//	PERMGW_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/acl: Uses cache configuration
//   - pkg/observability: Uses observability configuration
package config
