package flux

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the live source behind a CachedProvider.
type Fetcher interface {
	Fetch(ctx context.Context) (float64, error)
}

// Observer is notified of every fetch attempt.
type Observer interface {
	ObserveFlux(r Reading, elapsed time.Duration)
}

// CachedProvider serves live readings from a TTL cache and substitutes the
// fallback value whenever the live source fails. Fallback readings are never
// cached, so the next call retries the source.
type CachedProvider struct {
	fetcher  Fetcher
	store    Store
	ttl      time.Duration
	fallback float64
	source   string
	observer Observer
	log      zerolog.Logger
	now      func() time.Time

	group singleflight.Group

	subMu sync.Mutex
	subs  map[chan Reading]struct{}
}

// ProviderConfig holds CachedProvider settings.
type ProviderConfig struct {
	TTL      time.Duration
	Fallback float64
	Source   string   // reported on live readings
	Store    Store    // defaults to a MemoryStore
	Observer Observer // optional
}

// NewCachedProvider creates a provider in front of fetcher.
func NewCachedProvider(fetcher Fetcher, cfg ProviderConfig, log zerolog.Logger) *CachedProvider {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &CachedProvider{
		fetcher:  fetcher,
		store:    store,
		ttl:      cfg.TTL,
		fallback: cfg.Fallback,
		source:   cfg.Source,
		observer: cfg.Observer,
		log:      log.With().Str("component", "flux").Logger(),
		now:      time.Now,
		subs:     make(map[chan Reading]struct{}),
	}
}

// Flux implements Provider.
func (p *CachedProvider) Flux(ctx context.Context) Reading {
	cached, ok, err := p.store.Get(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Flux cache read failed")
	}
	if ok {
		return cached
	}
	return p.fetch(ctx)
}

// Refresh bypasses the cache, stores a live result and pushes the new
// reading to subscribers.
func (p *CachedProvider) Refresh(ctx context.Context) Reading {
	r := p.fetch(ctx)
	p.publish(r)
	return r
}

// fetch collapses concurrent callers into a single request to the source.
// The shared request is detached from any one caller's cancellation and is
// bounded by the fetcher's own timeout. A caller whose context ends first
// gets the fallback; the others still receive the shared result.
func (p *CachedProvider) fetch(ctx context.Context) Reading {
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan("flux", func() (interface{}, error) {
		return p.fetchOnce(shared), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Reading)
	case <-ctx.Done():
		p.log.Debug().Err(ctx.Err()).Msg("Flux caller gave up before the fetch finished")
		return p.fallbackReading(p.now())
	}
}

func (p *CachedProvider) fallbackReading(at time.Time) Reading {
	return Reading{Value: p.fallback, Provenance: Fallback, FetchedAt: at.UTC()}
}

func (p *CachedProvider) fetchOnce(ctx context.Context) Reading {
	start := p.now()
	value, err := p.fetcher.Fetch(ctx)
	elapsed := p.now().Sub(start)

	var r Reading
	if err != nil {
		r = p.fallbackReading(start)
		p.log.Warn().
			Err(err).
			Float64("fallback", p.fallback).
			Msg("Live proton flux fetch failed, using fallback")
	} else {
		r = Reading{Value: value, Provenance: Live, FetchedAt: start.UTC(), Source: p.source}
		if p.ttl > 0 {
			if err := p.store.Set(ctx, r, p.ttl); err != nil {
				p.log.Warn().Err(err).Msg("Flux cache write failed")
			}
		}
		p.log.Info().Float64("flux", value).Dur("elapsed", elapsed).Msg("Live proton flux updated")
	}

	if p.observer != nil {
		p.observer.ObserveFlux(r, elapsed)
	}
	return r
}

// Subscribe returns a channel receiving every refreshed reading. Slow
// subscribers miss updates rather than blocking the refresh.
func (p *CachedProvider) Subscribe() chan Reading {
	ch := make(chan Reading, 1)
	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (p *CachedProvider) Unsubscribe(ch chan Reading) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	if _, ok := p.subs[ch]; ok {
		delete(p.subs, ch)
		close(ch)
	}
}

func (p *CachedProvider) publish(r Reading) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- r:
		default:
		}
	}
}
