// Package metrics exposes Prometheus collectors for the dose service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"radiation.space/internal/flux"
)

const namespace = "radiation"

type MetricsCollector struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	calculations    *prometheus.CounterVec
	fluxFetches     *prometheus.CounterVec
	fluxFetchTime   prometheus.Histogram
	fluxValue       *prometheus.GaugeVec
	wsClients       prometheus.Gauge
	rateLimited     prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetricsCollector registers the collectors with the default registry.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWith(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewStandaloneMetricsCollector registers the collectors with a registry of
// their own, so Handler serves only these series.
func NewStandaloneMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	return NewMetricsCollectorWith(reg, reg)
}

// NewMetricsCollectorWith registers the collectors with reg and serves them
// from g.
func NewMetricsCollectorWith(reg prometheus.Registerer, g prometheus.Gatherer) *MetricsCollector {
	m := newCollector()
	m.gatherer = g

	reg.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.calculations,
		m.fluxFetches,
		m.fluxFetchTime,
		m.fluxValue,
		m.wsClients,
		m.rateLimited,
	)
	return m
}

func newCollector() *MetricsCollector {
	return &MetricsCollector{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time spent processing API requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"route", "method", "status"},
		),
		calculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dose_calculations_total",
				Help:      "Dose calculations performed, by shielding material",
			},
			[]string{"material"},
		),
		fluxFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flux_fetches_total",
				Help:      "Proton flux fetch attempts, by provenance of the result",
			},
			[]string{"provenance"},
		),
		fluxFetchTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flux_fetch_duration_seconds",
				Help:      "Time spent fetching the live proton flux",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		fluxValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "proton_flux",
				Help:      "Most recent >=10 MeV proton flux (p cm^-2 s^-1 sr^-1)",
			},
			[]string{"provenance"},
		),
		wsClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "flux_stream_clients",
				Help:      "Connected flux websocket clients",
			},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the per-client rate limiter",
			},
		),
	}
}

func (m *MetricsCollector) RecordRequest(route, method string, status int, duration time.Duration) {
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

func (m *MetricsCollector) RecordCalculation(material string) {
	m.calculations.WithLabelValues(material).Inc()
}

func (m *MetricsCollector) RecordRateLimited() {
	m.rateLimited.Inc()
}

func (m *MetricsCollector) StreamClientConnected() {
	m.wsClients.Inc()
}

func (m *MetricsCollector) StreamClientDisconnected() {
	m.wsClients.Dec()
}

// ObserveFlux implements flux.Observer.
func (m *MetricsCollector) ObserveFlux(r flux.Reading, elapsed time.Duration) {
	provenance := string(r.Provenance)
	m.fluxFetches.WithLabelValues(provenance).Inc()
	m.fluxFetchTime.Observe(elapsed.Seconds())

	m.fluxValue.Reset()
	m.fluxValue.WithLabelValues(provenance).Set(r.Value)
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// MetricsServer returns a dedicated server exposing Handler at /metrics.
func (m *MetricsCollector) MetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
