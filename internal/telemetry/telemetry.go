// Package telemetry exposes Prometheus metrics for the crawl engine and an
// optional HTTP endpoint to scrape them from during long-running crawls.
package telemetry

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangertree_api_requests_total",
			Help: "Total xrpc API requests, labeled by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	apiRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bangertree_api_request_duration_seconds",
			Help:    "Histogram of xrpc API request latencies, labeled by endpoint.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"endpoint"},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bangertree_rate_limit_delay_seconds",
			Help:    "Histogram of time spent waiting on the gateway rate limiter.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bangertree_ingest_total",
			Help: "Total ingested post records, labeled by classification outcome.",
		},
		[]string{"outcome"},
	)

	postsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bangertree_posts_created_total",
			Help: "Total new post rows created in the store.",
		},
	)

	expansionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bangertree_expansions_total",
			Help: "Total posts whose quote set was fully enumerated.",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bangertree_bfs_queue_depth",
			Help: "Current depth of the quote expander work queue.",
		},
	)
)

// ObserveAPIRequest records one xrpc call.
func ObserveAPIRequest(endpoint, status string, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(endpoint, status).Inc()
	apiRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent blocked on the rate limiter.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveIngest records one ingestion classification.
func ObserveIngest(outcome string) {
	ingestTotal.WithLabelValues(outcome).Inc()
}

// IncPostsCreated records a newly created post row.
func IncPostsCreated() {
	postsCreatedTotal.Inc()
}

// IncExpansions records a completed quote expansion.
func IncExpansions() {
	expansionsTotal.Inc()
}

// SetQueueDepth publishes the current BFS queue depth.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Handler returns the standard Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds an HTTP server exposing /metrics and /healthz on addr.
// The caller owns its lifecycle.
func NewServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
