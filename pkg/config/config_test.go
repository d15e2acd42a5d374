package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gr-thach/cli-repo-sub003/pkg/acl"
	"github.com/gr-thach/cli-repo-sub003/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PERMGW_CORE_API_URL", "http://core-api:3000")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, acl.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "0 */6 * * *", cfg.SyncSchedule)
	assert.Equal(t, "https://api.github.com", cfg.VCS.GithubURL)
	assert.False(t, cfg.SelfHosted)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PERMGW_CORE_API_URL", "http://core-api:3000")
	t.Setenv("PERMGW_PORT", "8888")
	t.Setenv("PERMGW_CACHE_BACKEND", "redis")
	t.Setenv("PERMGW_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PERMGW_CACHE_TTL", "90s")
	t.Setenv("PERMGW_LOG_LEVEL", "debug")
	t.Setenv("PERMGW_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, acl.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoadConfig_RequiresCoreAPIURL(t *testing.T) {
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core API URL is required")
}

func TestLoadConfig_SelfHostedNeedsGrantsFile(t *testing.T) {
	t.Setenv("PERMGW_SELF_HOSTED", "true")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grants file is required")

	t.Setenv("PERMGW_GRANTS_FILE", "/etc/permgw/grants.yaml")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.SelfHosted)
}

func TestLoadConfig_RedisBackendNeedsURL(t *testing.T) {
	t.Setenv("PERMGW_CORE_API_URL", "http://core-api:3000")
	t.Setenv("PERMGW_CACHE_BACKEND", "redis")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL is required")
}

func TestLoadConfig_RejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("PERMGW_CORE_API_URL", "http://core-api:3000")
	t.Setenv("PERMGW_CACHE_BACKEND", "memcached")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cache backend")
}

func TestLoadConfig_PortsMustDiffer(t *testing.T) {
	t.Setenv("PERMGW_CORE_API_URL", "http://core-api:3000")
	t.Setenv("PERMGW_PORT", "9090")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}
