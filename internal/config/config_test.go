package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "METRICS_ADDR", "LOG_LEVEL", "LOG_PRETTY", "MAX_DAYS",
	"FLUX_URL", "FLUX_ALLOWED_HOSTS", "FLUX_TIMEOUT", "FLUX_CACHE_TTL",
	"FLUX_REFRESH_INTERVAL", "FALLBACK_FLUX", "REDIS_URL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "TLS_DOMAIN", "TLS_CACHE_DIR",
}

// isolate runs the test from an empty directory with every known key unset.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 1000, cfg.MaxDays)
	assert.Equal(t, DefaultFluxURL, cfg.Flux.URL)
	assert.Equal(t, []string{"services.swpc.noaa.gov"}, cfg.Flux.AllowedHosts)
	assert.Equal(t, 10*time.Second, cfg.Flux.Timeout)
	assert.Equal(t, 600*time.Second, cfg.Flux.CacheTTL)
	assert.Equal(t, 600*time.Second, cfg.Flux.RefreshInterval)
	assert.Equal(t, 100.0, cfg.Flux.Fallback)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RedisURL)
	assert.Empty(t, cfg.TLS.Domain)
	assert.Equal(t, "certs", cfg.TLS.CacheDir)
}

func TestLoadFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9100")
	t.Setenv("MAX_DAYS", "500")
	t.Setenv("FLUX_CACHE_TTL", "300")
	t.Setenv("FLUX_REFRESH_INTERVAL", "5m")
	t.Setenv("FALLBACK_FLUX", "42.5")
	t.Setenv("FLUX_ALLOWED_HOSTS", "services.swpc.noaa.gov, mirror.example.org")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 500, cfg.MaxDays)
	assert.Equal(t, 300*time.Second, cfg.Flux.CacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.Flux.RefreshInterval)
	assert.Equal(t, 42.5, cfg.Flux.Fallback)
	assert.Equal(t, []string{"services.swpc.noaa.gov", "mirror.example.org"}, cfg.Flux.AllowedHosts)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "max days", key: "MAX_DAYS", value: "0"},
		{name: "negative fallback", key: "FALLBACK_FLUX", value: "-1"},
		{name: "port", key: "PORT", value: "70000"},
		{name: "rate limit", key: "RATE_LIMIT_RPS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestUnparseableValuesUseDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("FLUX_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.Flux.Timeout)
}
