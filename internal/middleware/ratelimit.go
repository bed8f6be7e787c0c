package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/leanbalancer/admindash/internal/config"
)

type rateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	limit    rate.Limit
	burst    int
	lastScan time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(requestsPerMin, burstSize int) *rateLimiter {
	return &rateLimiter{
		clients:  make(map[string]*client),
		limit:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstSize,
		lastScan: time.Now(),
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	// Drop idle clients inline instead of running a cleanup goroutine.
	if now.Sub(rl.lastScan) > time.Minute {
		cutoff := now.Add(-5 * time.Minute)
		for k, c := range rl.clients {
			if c.lastSeen.Before(cutoff) {
				delete(rl.clients, k)
			}
		}
		rl.lastScan = now
	}

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RateLimit returns middleware that enforces a per-client-IP token bucket.
// /healthz and /metrics are exempt so scrapers are never throttled.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	rl := newRateLimiter(cfg.RequestsPerMin, cfg.BurstSize)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
