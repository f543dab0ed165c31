package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiation.space/internal/dose"
	"radiation.space/internal/shielding"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

// serveFeed starts a feed and adds it to the flux host allowlist.
func serveFeed(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	feed := httptest.NewServer(h)
	t.Cleanup(feed.Close)
	t.Setenv("FLUX_ALLOWED_HOSTS", strings.TrimPrefix(feed.URL, "http://"))
	return feed
}

func TestSingleMaterial(t *testing.T) {
	out, err := runCLI(t, "-material", "None", "-days", "180", "-flux", "100")
	require.NoError(t, err)

	assert.Contains(t, out, "1.00e+02")
	assert.Contains(t, out, "(given)")
	assert.Contains(t, out, "None (attenuation 1.00)")
	assert.Contains(t, out, "180 days")
	assert.Contains(t, out, "0.90 mSv")
}

func TestLegacyMaterialName(t *testing.T) {
	out, err := runCLI(t, "-material", "teflon", "-days", "10", "-flux", "10")
	require.NoError(t, err)
	assert.Contains(t, out, shielding.PTFE)
}

func TestCompareTable(t *testing.T) {
	out, err := runCLI(t, "-compare", "-days", "30", "-flux", "100")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	var rows []string
	for _, l := range lines {
		if strings.Count(l, "|") == 5 && !strings.HasPrefix(l, "Material") {
			rows = append(rows, l)
		}
	}
	require.Len(t, rows, shielding.Default().Len())
	assert.True(t, strings.HasPrefix(rows[0], shielding.LiquidHydrogen))
	assert.True(t, strings.HasPrefix(rows[len(rows)-1], shielding.None))
	assert.Contains(t, rows[len(rows)-1], "0%")
}

func TestLiveFetchFallsBack(t *testing.T) {
	feed := serveFeed(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	out, err := runCLI(t, "-flux-url", feed.URL, "-fallback", "50", "-days", "4", "-material", "None")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback 50")
	assert.Contains(t, out, "0.01 mSv")
}

func TestLiveFetch(t *testing.T) {
	feed := serveFeed(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"time_tag": "2026-10-18T00:00:00Z", "flux": 2000, "energy": ">=10 MeV"}]`))
	})

	out, err := runCLI(t, "-flux-url", feed.URL, "-days", "10", "-material", "None")
	require.NoError(t, err)
	assert.Contains(t, out, "Live Proton Flux")
	assert.Contains(t, out, "1.00 mSv")
}

func TestCSVExport(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, "-material", "Water", "-flux", "100", "-csv", dir, "-max-days", "5")
	require.NoError(t, err)

	path := filepath.Join(dir, "dose_curve_Water.csv")
	assert.Contains(t, out, path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"Days", "Total Dose [Water] (mSv)"}, rows[0])

	want, err := dose.Compute(100, 0.40, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", strconv.FormatFloat(want.TotalDoseMSv, 'g', -1, 64)}, rows[5])
}

func TestCSVExportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	_, err := runCLI(t, "-flux", "1", "-csv", path, "-max-days", "3")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		is   error
	}{
		{name: "unknown material", args: []string{"-material", "Vibranium", "-flux", "1"}, is: shielding.ErrUnknownMaterial},
		{name: "zero days", args: []string{"-days", "0", "-flux", "1"}, is: dose.ErrInvalidParameter},
		{name: "too many days", args: []string{"-days", "1001", "-flux", "1"}, is: dose.ErrInvalidParameter},
		{name: "export too long", args: []string{"-flux", "1", "-csv", "x.csv", "-max-days", "5000"}, is: dose.ErrInvalidParameter},
		{name: "negative flux", args: []string{"-flux", "-0.1"}, is: dose.ErrInvalidParameter},
		{name: "negative fallback", args: []string{"-fallback", "-5"}, is: dose.ErrInvalidParameter},
		{name: "help", args: []string{"-h"}, is: flag.ErrHelp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, tt.args...)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestZeroFluxIsGiven(t *testing.T) {
	out, err := runCLI(t, "-flux", "0", "-days", "10", "-flux-url", "http://unreachable.invalid/feed")
	require.NoError(t, err)
	assert.Contains(t, out, "(given)")
	assert.Contains(t, out, "0.00 mSv")
}

func TestFluxURLMustBeAllowed(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("feed outside the allowlist was contacted")
	}))
	defer feed.Close()

	_, err := runCLI(t, "-flux-url", feed.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flux-url")
}

func TestMaxDaysFromEnvironment(t *testing.T) {
	t.Setenv("MAX_DAYS", "10")

	_, err := runCLI(t, "-flux", "1", "-days", "10")
	require.NoError(t, err)

	_, err = runCLI(t, "-flux", "1", "-days", "11")
	assert.ErrorIs(t, err, dose.ErrInvalidParameter)
}

func TestFallbackFromEnvironment(t *testing.T) {
	t.Setenv("FALLBACK_FLUX", "300")
	feed := serveFeed(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	out, err := runCLI(t, "-flux-url", feed.URL, "-material", "None", "-days", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback 300")
}

func TestUnexpectedArguments(t *testing.T) {
	_, err := runCLI(t, "-flux", "1", "extra")
	assert.Error(t, err)
}
