package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"radiation.space/internal/config"
	"radiation.space/internal/dose"
	"radiation.space/internal/flux"
	"radiation.space/internal/logger"
	"radiation.space/internal/metrics"
	"radiation.space/internal/scheduler"
	"radiation.space/internal/server"
	"radiation.space/internal/shielding"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Int("port", cfg.Port).
		Int("max_days", cfg.MaxDays).
		Str("flux_url", cfg.Flux.URL).
		Msg("Starting radiation dose service")

	fluxURL, err := flux.NewSourceValidator(cfg.Flux.AllowedHosts).Validate(cfg.Flux.URL)
	if err != nil {
		return fmt.Errorf("FLUX_URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := flux.NewRedisClient(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	var store flux.Store = flux.NewMemoryStore()
	if redisClient != nil {
		defer redisClient.Close()
		store = flux.NewRedisStore(redisClient)
		log.Info().Msg("Sharing flux cache through Redis")
	}

	m := metrics.NewMetricsCollector()

	provider := flux.NewCachedProvider(
		flux.NewClient(fluxURL, cfg.Flux.Timeout, log),
		flux.ProviderConfig{
			TTL:      cfg.Flux.CacheTTL,
			Fallback: cfg.Flux.Fallback,
			Source:   fluxURL,
			Store:    store,
			Observer: m,
		},
		log,
	)

	srv := server.New(server.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		MetricsAddr: cfg.MetricsAddr,
		Log:         log,
		Calculator:  dose.NewCalculator(shielding.Default(), cfg.MaxDays),
		Flux:        provider,
		Metrics:     m,
		RateLimit:   cfg.RateLimit,
		TLS:         cfg.TLS,
	})

	sched := scheduler.New(log)
	refresh := scheduler.NewFluxRefreshJob(provider, cfg.Flux.Timeout, log)
	if err := sched.AddJob(scheduler.Every(cfg.Flux.RefreshInterval), refresh); err != nil {
		return err
	}
	if prune := srv.LimiterPruneJob(time.Hour); prune != nil {
		if err := sched.AddJob("@every 15m", prune); err != nil {
			return err
		}
	}

	// Warm the cache so the first request does not pay for the fetch.
	if err := sched.RunNow(refresh); err != nil {
		log.Warn().Err(err).Msg("Initial flux fetch failed")
	}

	if err := srv.Start(); err != nil {
		return err
	}
	sched.Start()

	// Handle shutdown gracefully
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	log.Info().Msg("Shutting down...")

	sched.Stop()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}
