package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"matchday/internal/config"
	"matchday/internal/metrics"
)

// idleAfter is how long a client's bucket may go unused before it is
// dropped. A dropped bucket comes back full, which an idle client would have
// refilled to anyway.
const idleAfter = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket. Reads take one token, match
// submissions and stops take the configured submit cost.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	cost      int
	lastPrune time.Time
	now       func() time.Time

	rejected atomic.Uint64
}

// NewRateLimiter builds a limiter from the server settings. A non-positive
// RequestsPerSecond disables it.
func NewRateLimiter(cfg config.ServerConfig) *RateLimiter {
	cost := cfg.SubmitCost
	if cost < 1 {
		cost = 1
	}
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.RequestBurst,
		cost:    cost,
		now:     time.Now,
	}
}

// Enabled reports whether requests are being limited.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.limit > 0
}

// allowN takes n tokens from the client's bucket, creating it on first use.
// Idle buckets are pruned at most once per idleAfter.
func (rl *RateLimiter) allowN(client string, n int) bool {
	now := rl.now()

	rl.mu.Lock()
	if now.Sub(rl.lastPrune) > idleAfter {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) > idleAfter {
				delete(rl.buckets, k)
			}
		}
		rl.lastPrune = now
	}
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[client] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, n)
}

// costOf is the number of tokens a request takes.
func (rl *RateLimiter) costOf(r *http.Request) int {
	if r.Method == http.MethodPost {
		return rl.cost
	}
	return 1
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if !rl.Enabled() {
		return next
	}
	retry := strconv.Itoa(int(float64(rl.cost)/float64(rl.limit)) + 1)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.allowN(clientIP(r), rl.costOf(r)) {
			rl.rejected.Add(1)
			metrics.RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", retry)
			writeError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Rejected returns the number of requests turned away so far.
func (rl *RateLimiter) Rejected() uint64 {
	return rl.rejected.Load()
}

// clientIP extracts the client address, preferring proxy headers.
// CAUTION: the headers can be spoofed when not behind a trusted proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// originAllowed reports whether a browser origin may use the API. Localhost
// on any port is always allowed.
func originAllowed(origin string, extra []string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}
	for _, o := range extra {
		if origin == o {
			return true
		}
	}
	return false
}
