// Package metrics exposes Prometheus counters and histograms for the
// Token Family Manager and the HTTP surface, scraped from GET /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_tokens_issued_total",
		Help: "Credentials issued by the Token Family Manager, by type.",
	}, []string{"typ"})

	ReplayDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_replay_detections_total",
		Help: "Refresh token reuses that triggered family-wide revocation.",
	})

	FamiliesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_families_swept_total",
		Help: "Expired refresh-token families deleted by the sweeper.",
	})

	AccessTokensSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_access_tokens_swept_total",
		Help: "Expired access tokens deleted by the sweeper.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcore_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status_class"})
)

// Handler returns the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one HTTP request's latency.
func ObserveRequest(method, route string, status int, start time.Time) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	RequestDuration.WithLabelValues(method, route, class).Observe(time.Since(start).Seconds())
}
