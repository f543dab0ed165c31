// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"radiation.space/internal/dose"
)

// DefaultFluxURL is the NOAA SWPC feed of GOES differential proton flux.
const DefaultFluxURL = "https://services.swpc.noaa.gov/json/goes/primary/differential-proton-flux-1-day.json"

// Config holds application configuration
type Config struct {
	Port        int
	MetricsAddr string // empty serves /metrics on the main router
	LogLevel    string
	LogPretty   bool
	MaxDays     int
	Flux        FluxConfig
	RedisURL    string
	RateLimit   RateLimitConfig
	TLS         TLSConfig
}

// FluxConfig configures the live flux source and its cache.
type FluxConfig struct {
	URL             string
	AllowedHosts    []string
	Timeout         time.Duration
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	Fallback        float64
}

// RateLimitConfig is the per-client token bucket for the API.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// TLSConfig enables autocert when Domain is set.
type TLSConfig struct {
	Domain   string
	CacheDir string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvAsInt("PORT", 8080),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvAsBool("LOG_PRETTY", false),
		MaxDays:     getEnvAsInt("MAX_DAYS", dose.MaxDays),
		Flux: FluxConfig{
			URL:             getEnv("FLUX_URL", DefaultFluxURL),
			AllowedHosts:    getEnvAsList("FLUX_ALLOWED_HOSTS", []string{"services.swpc.noaa.gov"}),
			Timeout:         getEnvAsDuration("FLUX_TIMEOUT", 10*time.Second),
			CacheTTL:        getEnvAsDuration("FLUX_CACHE_TTL", 600*time.Second),
			RefreshInterval: getEnvAsDuration("FLUX_REFRESH_INTERVAL", 600*time.Second),
			Fallback:        getEnvAsFloat("FALLBACK_FLUX", dose.FallbackFlux),
		},
		RedisURL: getEnv("REDIS_URL", ""),
		RateLimit: RateLimitConfig{
			RPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst: getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		TLS: TLSConfig{
			Domain:   getEnv("TLS_DOMAIN", ""),
			CacheDir: getEnv("TLS_CACHE_DIR", "certs"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxDays < 1 {
		return fmt.Errorf("MAX_DAYS must be at least 1, got %d", c.MaxDays)
	}
	if c.Flux.URL == "" {
		return fmt.Errorf("FLUX_URL must not be empty")
	}
	if c.Flux.Timeout <= 0 {
		return fmt.Errorf("FLUX_TIMEOUT must be positive")
	}
	if c.Flux.CacheTTL < 0 {
		return fmt.Errorf("FLUX_CACHE_TTL must not be negative")
	}
	if c.Flux.RefreshInterval <= 0 {
		return fmt.Errorf("FLUX_REFRESH_INTERVAL must be positive")
	}
	if err := dose.ValidateFlux(c.Flux.Fallback); err != nil {
		return fmt.Errorf("FALLBACK_FLUX: %w", err)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10m") or plain seconds ("600").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
