// Package flux supplies the proton flux reading the dose model consumes.
//
// The live value comes from the NOAA SWPC GOES feed. Whenever it cannot be
// fetched the provider substitutes a fixed fallback value and marks the
// reading as such, so callers always receive a usable number and can tell
// where it came from.
package flux

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrFluxUnavailable wraps every failure to obtain a live reading.
var ErrFluxUnavailable = errors.New("live proton flux unavailable")

// Provenance says where a reading came from.
type Provenance string

const (
	Live     Provenance = "live"
	Fallback Provenance = "fallback"
)

// Reading is one flux value in protons cm^-2 s^-1 sr^-1 (>=10 MeV).
type Reading struct {
	Value      float64    `json:"value"`
	Provenance Provenance `json:"provenance"`
	FetchedAt  time.Time  `json:"fetched_at"`
	Source     string     `json:"source,omitempty"`
}

// IsLive reports whether the value came from the live feed.
func (r Reading) IsLive() bool {
	return r.Provenance == Live
}

// Message is the status line shown next to the value.
func (r Reading) Message() string {
	if r.IsLive() {
		return fmt.Sprintf("Live Proton Flux (>=10 MeV): %.2e p cm^-2 s^-1 sr^-1", r.Value)
	}
	return fmt.Sprintf("Live proton-flux fetch failed, using fallback %g p cm^-2 s^-1 sr^-1", r.Value)
}

// Provider returns the current reading. Implementations never fail: when the
// live source is unavailable they return a Fallback reading.
type Provider interface {
	Flux(ctx context.Context) Reading
}
