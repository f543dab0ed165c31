package flux

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches the latest >=10 MeV proton flux from a NOAA SWPC JSON feed.
type Client struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a feed client. The timeout bounds the whole request.
func NewClient(url string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("client", "noaa-swpc").Logger(),
	}
}

// URL returns the feed address.
func (c *Client) URL() string {
	return c.url
}

// sample is one element of the feed. Only the flux field is used.
type sample struct {
	TimeTag string   `json:"time_tag"`
	Flux    *float64 `json:"flux"`
	Energy  string   `json:"energy"`
}

// Fetch returns the flux of the last sample in the feed. Every failure is
// wrapped in ErrFluxUnavailable.
func (c *Client) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", ErrFluxUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", c.url).Msg("Fetching proton flux")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: request failed: %v", ErrFluxUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: feed returned status %d", ErrFluxUnavailable, resp.StatusCode)
	}

	var samples []sample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return 0, fmt.Errorf("%w: failed to parse feed: %v", ErrFluxUnavailable, err)
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: feed is empty", ErrFluxUnavailable)
	}

	last := samples[len(samples)-1]
	if last.Flux == nil {
		return 0, fmt.Errorf("%w: latest sample %s has no flux", ErrFluxUnavailable, last.TimeTag)
	}
	value := *last.Flux
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("%w: latest sample %s has invalid flux %v", ErrFluxUnavailable, last.TimeTag, value)
	}

	c.log.Debug().
		Str("time_tag", last.TimeTag).
		Str("energy", last.Energy).
		Float64("flux", value).
		Msg("Fetched proton flux")

	return value, nil
}
