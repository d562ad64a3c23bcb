package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"resumeflow/internal/errors"

	"golang.org/x/time/rate"
)

const (
	// Routes that start a backend operation get their own bucket so a
	// burst of clicks on the review screen cannot starve an upload.
	groupBackend = "backend"
	groupSession = "session"

	limiterIdleAfter = 10 * time.Minute
)

// bucketKey identifies one token bucket
type bucketKey struct {
	client string
	group  string
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter keeps one token bucket per client and route group and evicts
// buckets that have been idle for a while.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	limit   rate.Limit
	burst   int
	window  time.Duration
	done    chan struct{}
	stop    sync.Once
	logger  *errors.Logger
}

// NewRateLimiter allows requests requests per window per bucket with bursts
// of up to burstCapacity. A zero window means one minute.
func NewRateLimiter(requests int, window time.Duration, burstCapacity int, logger *errors.Logger) *RateLimiter {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if window <= 0 {
		window = time.Minute
	}
	rl := &RateLimiter{
		buckets: make(map[bucketKey]*bucket),
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   burstCapacity,
		window:  window,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go rl.evictLoop(limiterIdleAfter)
	return rl
}

// Allow takes a token from the bucket of key. It never blocks.
func (rl *RateLimiter) Allow(key bucketKey) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastUsed = time.Now()
	rl.mu.Unlock()

	return b.limiter.Allow()
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	perGroup := map[string]int{}
	for key := range rl.buckets {
		perGroup[key.group]++
	}
	return map[string]any{
		"active_limiters": len(rl.buckets),
		"by_group":        perGroup,
		"rate_per_minute": float64(rl.limit) * 60.0,
		"window":          rl.window.String(),
		"burst_capacity":  rl.burst,
	}
}

func (rl *RateLimiter) evictLoop(idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now().Add(-idle))
		case <-rl.done:
			return
		}
	}
}

// evictIdle drops buckets not used since cutoff.
func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
	rl.logger.Debug("Evicted idle rate limiters", "remaining", len(rl.buckets))
}

// Close stops the eviction goroutine.
func (rl *RateLimiter) Close() {
	rl.stop.Do(func() { close(rl.done) })
}

// rateLimitMiddleware rejects mutating requests over the configured rate.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := bucketKey{group: routeGroup(r.URL.Path)}
			if s.RateLimit.ByIP {
				key.client = clientAddr(r)
			}

			if !s.RateLimiter.Allow(key) {
				s.Logger.Info("Rate limit exceeded",
					"client", key.client,
					"group", key.group,
					"endpoint", r.URL.Path)
				s.Metrics.RecordRateLimitHit(r.Context(), r.URL.Path)
				writeErrorResponse(w, "RATE_LIMITED", "Too many requests, please slow down", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

func routeGroup(path string) string {
	switch path {
	case "/session/upload", "/session/optimize":
		return groupBackend
	}
	return groupSession
}

// clientAddr is the remote host. The API serves a local front-end, so proxy
// headers are not trusted.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
