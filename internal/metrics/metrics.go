// Package metrics holds Prometheus instruments shared across Bookshelf.
// All collectors are registered with the global registry, so mounting
// promhttp.Handler() in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_api_requests_total",
			Help: "Backend API requests by logical operation and outcome.",
		}, []string{"op", "outcome"})

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookshelf_api_request_duration_seconds",
			Help:    "Backend API round-trip latency by logical operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"})

	AuthTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_auth_transitions_total",
			Help: "Auth session transitions by kind and result.",
		}, []string{"transition", "result"})

	GateRedirectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_gate_redirects_total",
			Help: "Protected-route requests redirected to login, by route.",
		}, []string{"route"})

	BrowserSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookshelf_browser_sessions_active",
			Help: "Browser session managers currently held in memory.",
		})

	BrowserSessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookshelf_browser_sessions_evicted_total",
			Help: "Browser session managers evicted from memory.",
		})
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal,
		APIRequestDuration,
		AuthTransitionsTotal,
		GateRedirectsTotal,
		BrowserSessionsActive,
		BrowserSessionsEvictedTotal,
	)
}
