package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func throttledHandler(t *testing.T, cfg Config) http.Handler {
	t.Helper()

	th := NewThrottle(cfg)
	t.Cleanup(th.Stop)

	return th.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(handler http.Handler, path, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = addr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestThrottle_BurstThenRefusal(t *testing.T) {
	handler := throttledHandler(t, Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      3,
		CleanupMinutes: 1,
	})

	for i := 0; i < 3; i++ {
		rr := hit(handler, "/api/v1/runs", "198.51.100.7:40000")
		require.Equal(t, http.StatusOK, rr.Code, "request %d within burst", i+1)
	}

	rr := hit(handler, "/api/v1/runs", "198.51.100.7:40000")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestThrottle_RefusalShape(t *testing.T) {
	handler := throttledHandler(t, Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      1,
		CleanupMinutes: 1,
	})

	hit(handler, "/api/v1/runs", "198.51.100.7:40000")
	rr := hit(handler, "/api/v1/runs", "198.51.100.7:40000")

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, "true", rr.Header().Get("X-Rate-Limit-Exceeded"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
}

func TestThrottle_AddressesAreIndependent(t *testing.T) {
	handler := throttledHandler(t, Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      1,
		CleanupMinutes: 1,
	})

	// Exhaust the first address.
	hit(handler, "/api/v1/runs", "198.51.100.7:40000")
	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "/api/v1/runs", "198.51.100.7:40000").Code)

	// A different address still has its full budget.
	assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/runs", "203.0.113.9:40000").Code)
}

func TestThrottle_ProbePathsExempt(t *testing.T) {
	handler := throttledHandler(t, Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      1,
		CleanupMinutes: 1,
	})

	// Orchestrator probes and Prometheus scrapes repeat from the same
	// address far faster than any human budget.
	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics"} {
		for i := 0; i < 5; i++ {
			rr := hit(handler, path, "10.0.0.1:40000")
			assert.Equal(t, http.StatusOK, rr.Code, "%s probe %d", path, i+1)
		}
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	handler := Middleware(Config{
		Enabled:        false,
		RequestsPerMin: 1,
		BurstSize:      1,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/runs", "198.51.100.7:40000").Code)
	}
}

func TestMiddleware_Enabled(t *testing.T) {
	handler := Middleware(Config{
		Enabled:        true,
		RequestsPerMin: 600,
		BurstSize:      10,
		CleanupMinutes: 1,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, hit(handler, "/api/v1/runs", "198.51.100.7:40000").Code)
}

func TestThrottle_DropIdle(t *testing.T) {
	th := NewThrottle(Config{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      5,
		CleanupMinutes: 1,
	})
	t.Cleanup(th.Stop)

	th.allow("198.51.100.7")
	th.allow("203.0.113.9")

	// Age one bucket past the idle cutoff.
	th.mu.Lock()
	th.buckets["198.51.100.7"].lastSeen = time.Now().Add(-2 * time.Minute)
	th.mu.Unlock()

	th.dropIdle()

	th.mu.Lock()
	defer th.mu.Unlock()
	assert.NotContains(t, th.buckets, "198.51.100.7")
	assert.Contains(t, th.buckets, "203.0.113.9")
}

func TestThrottle_ConcurrentRequests(t *testing.T) {
	handler := throttledHandler(t, Config{
		Enabled:        true,
		RequestsPerMin: 6000,
		BurstSize:      200,
		CleanupMinutes: 1,
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			addr := fmt.Sprintf("198.51.100.%d:40000", g)
			for i := 0; i < 20; i++ {
				hit(handler, "/api/v1/runs", addr)
			}
		}(g)
	}
	wg.Wait()
}
