package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiation.space/internal/flux"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

type stubRefresher struct {
	reading flux.Reading
	calls   atomic.Int32
	hasDL   atomic.Bool
}

func (r *stubRefresher) Refresh(ctx context.Context) flux.Reading {
	r.calls.Add(1)
	_, ok := ctx.Deadline()
	r.hasDL.Store(ok)
	return r.reading
}

func nopLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 10m0s", Every(600*time.Second))
	assert.Equal(t, "@every 1s", Every(time.Second))
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(nopLogger())
	err := s.AddJob("not a schedule", &countingJob{})
	assert.Error(t, err)
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(nopLogger())
	job := &countingJob{err: errors.New("boom")}
	require.NoError(t, s.AddJob(Every(time.Second), job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRunNow(t *testing.T) {
	s := New(nopLogger())
	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestFluxRefreshJob(t *testing.T) {
	tests := []struct {
		name    string
		reading flux.Reading
		wantErr bool
	}{
		{name: "live", reading: flux.Reading{Value: 0.5, Provenance: flux.Live}},
		{name: "fallback", reading: flux.Reading{Value: 100, Provenance: flux.Fallback}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubRefresher{reading: tt.reading}
			job := NewFluxRefreshJob(provider, 5*time.Second, nopLogger())

			assert.Equal(t, "flux_refresh", job.Name())
			err := job.Run()
			if tt.wantErr {
				assert.ErrorIs(t, err, flux.ErrFluxUnavailable)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, int32(1), provider.calls.Load())
			assert.True(t, provider.hasDL.Load())
		})
	}
}
