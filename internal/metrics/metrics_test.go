package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiation.space/internal/flux"
)

func TestRecordRequest(t *testing.T) {
	m := NewTestMetricsCollector()

	m.RecordRequest("/api/dose", http.MethodGet, 200, 20*time.Millisecond)
	m.RecordRequest("/api/dose", http.MethodGet, 200, 30*time.Millisecond)
	m.RecordRequest("/api/dose", http.MethodGet, 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/dose", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/api/dose", "GET", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestRecordCalculation(t *testing.T) {
	m := NewTestMetricsCollector()

	m.RecordCalculation("Water")
	m.RecordCalculation("Water")
	m.RecordCalculation("Lead")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.calculations.WithLabelValues("Water")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calculations.WithLabelValues("Lead")))
}

func TestObserveFlux(t *testing.T) {
	m := NewTestMetricsCollector()

	m.ObserveFlux(flux.Reading{Value: 100, Provenance: flux.Fallback}, time.Second)
	m.ObserveFlux(flux.Reading{Value: 0.4, Provenance: flux.Live}, 200*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fluxFetches.WithLabelValues("live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fluxFetches.WithLabelValues("fallback")))
	assert.Equal(t, 0.4, testutil.ToFloat64(m.fluxValue.WithLabelValues("live")))
	// only the latest provenance is reported
	assert.Equal(t, 1, testutil.CollectAndCount(m.fluxValue))
}

func TestStreamClients(t *testing.T) {
	m := NewTestMetricsCollector()

	m.StreamClientConnected()
	m.StreamClientConnected()
	m.StreamClientDisconnected()
	m.RecordRateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.wsClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewTestMetricsCollector()
	m.RecordCalculation("Aluminum")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `radiation_dose_calculations_total{material="Aluminum"} 1`)
}

func TestMetricsServer(t *testing.T) {
	m := NewTestMetricsCollector()
	srv := m.MetricsServer(":9090")
	assert.Equal(t, ":9090", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStandaloneCollectorsAreIndependent(t *testing.T) {
	a := NewStandaloneMetricsCollector()
	b := NewStandaloneMetricsCollector()

	a.RecordCalculation("Water")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.calculations.WithLabelValues("Water")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.calculations))
}
