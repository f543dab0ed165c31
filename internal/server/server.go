package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"radiation.space/internal/config"
	"radiation.space/internal/dose"
	"radiation.space/internal/flux"
	"radiation.space/internal/metrics"
)

// FluxSource is the flux provider as the server sees it: current readings
// plus a stream of refreshed ones.
type FluxSource interface {
	flux.Provider
	Subscribe() chan flux.Reading
	Unsubscribe(ch chan flux.Reading)
}

// Config holds server configuration
type Config struct {
	Addr        string // main listener, e.g. ":8080"
	MetricsAddr string // dedicated metrics listener; empty mounts /metrics on the main router
	Log         zerolog.Logger
	Calculator  *dose.Calculator
	Flux        FluxSource
	Metrics     *metrics.MetricsCollector // nil gets a standalone collector
	RateLimit   config.RateLimitConfig
	TLS         config.TLSConfig
}

// Server represents the HTTP API
type Server struct {
	router  *chi.Mux
	log     zerolog.Logger
	calc    *dose.Calculator
	flux    FluxSource
	metrics *metrics.MetricsCollector
	limiter *IPRateLimiter // nil disables rate limiting
	started time.Time

	httpServer    *http.Server
	httpsServer   *http.Server
	metricsServer *http.Server
	listener      net.Listener
	wg            sync.WaitGroup
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	calc := cfg.Calculator
	if calc == nil {
		calc = dose.NewCalculator(nil, dose.MaxDays)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewStandaloneMetricsCollector()
	}

	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		calc:    calc,
		flux:    cfg.Flux,
		metrics: m,
		started: time.Now(),
	}
	if cfg.RateLimit.RPS > 0 {
		s.limiter = NewIPRateLimiter(rate.Limit(cfg.RateLimit.RPS), max(cfg.RateLimit.Burst, 1))
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.MetricsAddr == "")

	var handler http.Handler = s.router
	if cfg.TLS.Domain != "" {
		manager := newCertManager(cfg.TLS.Domain, cfg.TLS.CacheDir, s.log)
		s.httpsServer = &http.Server{
			Addr:              ":443",
			Handler:           s.router,
			TLSConfig:         tlsConfig(manager),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		// ACME http-01 challenges arrive on the plain listener.
		handler = manager.HTTPHandler(s.router)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		s.metricsServer = m.MetricsServer(cfg.MetricsAddr)
	}

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Metrics
	s.router.Use(s.metricsMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Flux-Provenance"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(mountMetrics bool) {
	s.router.Get("/healthz", s.handleHealth)
	if mountMetrics {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimitMiddleware)
		}
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/materials", s.handleMaterials)
		r.Get("/flux", s.handleFlux)
		r.Get("/dose", s.handleDose)
		r.Get("/compare", s.handleCompare)

		r.Route("/curves", func(r chi.Router) {
			r.Get("/attenuation", s.handleAttenuationCurves)
			r.Get("/dose", s.handleDoseCurve)
		})

		r.Get("/export/dose.csv", s.handleExportDose)
	})

	s.router.Get("/ws/flux", s.handleFluxStream)
}

// Start binds the listeners and serves them in the background. Bind errors
// are returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	s.serve("HTTP", s.httpServer, func() error { return s.httpServer.Serve(ln) })

	if s.httpsServer != nil {
		s.serve("HTTPS", s.httpsServer, func() error {
			// Certificates come from autocert through TLSConfig.
			return s.httpsServer.ListenAndServeTLS("", "")
		})
	}

	if s.metricsServer != nil {
		s.serve("metrics", s.metricsServer, s.metricsServer.ListenAndServe)
	}

	return nil
}

func (s *Server) serve(name string, srv *http.Server, run func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().Str("addr", srv.Addr).Msgf("Starting %s server", name)
		if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msgf("%s server error", name)
		}
	}()
}

// Addr returns the bound address of the main listener once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down every listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")

	var errs []error
	for _, srv := range []*http.Server{s.httpServer, s.httpsServer, s.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}

	s.wg.Wait()
	return errors.Join(errs...)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// metricsMiddleware records request counts and latency by route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordRequest(route, r.Method, status, time.Since(start))
	})
}
