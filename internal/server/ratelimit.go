package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type IPRateLimiter struct {
	ips map[string]*visitor
	mu  *sync.Mutex
	r   rate.Limit
	b   int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*visitor),
		mu:  &sync.Mutex{},
		r:   r,
		b:   b,
	}
}

func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// Prune forgets clients idle for longer than maxIdle.
func (l *IPRateLimiter) Prune(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for ip, v := range l.ips {
		if v.lastSeen.Before(cutoff) {
			delete(l.ips, ip)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

// clientIP strips the port from RemoteAddr. middleware.RealIP has already
// replaced it with the forwarded address when one was sent.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimitMiddleware rejects clients that exceed their token bucket.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.GetLimiter(ip).Allow() {
			s.metrics.RecordRateLimited()
			s.log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LimiterPruneJob drops rate limiter state for idle clients. It satisfies
// scheduler.Job.
type LimiterPruneJob struct {
	limiter *IPRateLimiter
	maxIdle time.Duration
	log     zerolog.Logger
}

// LimiterPruneJob returns nil when rate limiting is disabled.
func (s *Server) LimiterPruneJob(maxIdle time.Duration) *LimiterPruneJob {
	if s.limiter == nil {
		return nil
	}
	return &LimiterPruneJob{
		limiter: s.limiter,
		maxIdle: maxIdle,
		log:     s.log.With().Str("job", "limiter_prune").Logger(),
	}
}

// Name returns the job name
func (j *LimiterPruneJob) Name() string {
	return "limiter_prune"
}

// Run prunes idle clients
func (j *LimiterPruneJob) Run() error {
	if removed := j.limiter.Prune(j.maxIdle); removed > 0 {
		j.log.Debug().Int("removed", removed).Int("remaining", j.limiter.Len()).Msg("Pruned idle clients")
	}
	return nil
}
