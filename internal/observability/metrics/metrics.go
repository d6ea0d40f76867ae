// Package metrics provides Prometheus instrumentation for solido-verify.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled bool

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Run domain metrics
	runSubmitTotal           *prometheus.CounterVec
	runReplayMismatchTotal   prometheus.Counter
	transactionVerifiedTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool) {
	enabled = enabledFlag

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Run submission counter
	runSubmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "run_submit_total",
			Help: "Total number of verification runs submitted",
		},
		[]string{"network", "status"},
	)

	// Replay mismatch counter
	runReplayMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "run_replay_mismatch_total",
			Help: "Total number of runs whose claimed summary disagreed with the replay",
		},
	)

	// Replayed transaction verdict counter
	transactionVerifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transaction_verified_total",
			Help: "Total number of transactions replayed, by instruction and verdict",
		},
		[]string{"instruction", "status"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}
