package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"radiation.space/internal/flux"
)

// Refresher forces a new flux reading and pushes it to subscribers.
type Refresher interface {
	Refresh(ctx context.Context) flux.Reading
}

// FluxRefreshJob keeps the flux cache warm and feeds the live stream
type FluxRefreshJob struct {
	provider Refresher
	timeout  time.Duration
	log      zerolog.Logger
}

// NewFluxRefreshJob creates a refresh job. Each run is bounded by timeout.
func NewFluxRefreshJob(provider Refresher, timeout time.Duration, log zerolog.Logger) *FluxRefreshJob {
	return &FluxRefreshJob{
		provider: provider,
		timeout:  timeout,
		log:      log.With().Str("job", "flux_refresh").Logger(),
	}
}

// Name returns the job name
func (j *FluxRefreshJob) Name() string {
	return "flux_refresh"
}

// Run fetches a new reading. A fallback result is reported as a failure so
// the scheduler logs it; subscribers have still been notified.
func (j *FluxRefreshJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	r := j.provider.Refresh(ctx)
	if !r.IsLive() {
		return fmt.Errorf("%w: serving fallback %g", flux.ErrFluxUnavailable, r.Value)
	}

	j.log.Debug().Float64("flux", r.Value).Msg("Flux refreshed")
	return nil
}
