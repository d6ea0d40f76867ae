// Package ratelimit throttles requests per client address.
//
// Every address gets its own token bucket, refilled at the configured
// sustained rate, so a scraper hammering the list endpoint backs off alone
// without starving signers checking their runs. Buckets for addresses that
// have gone quiet are swept periodically.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lidofinance/solido-verify/internal/middleware/realip"
)

// Config controls per-address throttling.
type Config struct {
	// Enabled turns throttling on.
	Enabled bool
	// RequestsPerMin is the sustained per-address budget.
	RequestsPerMin int
	// BurstSize is how many requests may arrive at once before the
	// sustained rate applies.
	BurstSize int
	// CleanupMinutes is both the sweep interval and the idle age at
	// which a bucket is dropped.
	CleanupMinutes int
}

// bucket pairs a token bucket with the time its address was last seen.
type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// Throttle hands out per-address token buckets and sweeps idle ones.
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit rate.Limit
	burst int
	idle  time.Duration
	done  chan struct{}
}

// NewThrottle builds a Throttle from cfg and starts its sweeper goroutine.
// Call Stop to end the sweeper.
func NewThrottle(cfg Config) *Throttle {
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}

	t := &Throttle{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   cfg.BurstSize,
		idle:    idle,
		done:    make(chan struct{}),
	}
	go t.sweep()
	return t
}

// Stop ends the sweeper goroutine.
func (t *Throttle) Stop() {
	close(t.done)
}

func (t *Throttle) sweep() {
	ticker := time.NewTicker(t.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.dropIdle()
		case <-t.done:
			return
		}
	}
}

func (t *Throttle) dropIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.idle)
	for addr, b := range t.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(t.buckets, addr)
		}
	}
}

// allow takes one token from addr's bucket, creating the bucket on first
// sight. rate.Limiter is safe to use outside the map lock.
func (t *Throttle) allow(addr string) bool {
	t.mu.Lock()
	b, ok := t.buckets[addr]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[addr] = b
	}
	b.lastSeen = time.Now()
	t.mu.Unlock()

	return b.tokens.Allow()
}

// exemptPaths skip throttling. Health probes and metrics scrapes arrive on
// fixed schedules from infrastructure addresses and must never be refused.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware throttles per resolved client address. With Enabled false it
// is a pass-through; otherwise the Throttle it creates lives for the
// process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return NewThrottle(cfg).Middleware()
}

// Middleware returns the throttling handler wrapper for t.
func (t *Throttle) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !t.allow(realip.GetClientIP(r)) {
				refuse(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func refuse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.Header().Set("X-Rate-Limit-Exceeded", "true")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "RATE_LIMIT_EXCEEDED",
			"message": "Too many requests. Please try again later.",
		},
	})
}
