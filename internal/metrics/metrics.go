// Package metrics holds the Prometheus collectors for allocation and claims.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal counts allocation attempts by outcome.
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipgen_allocations_total",
			Help: "Total number of allocation requests by result",
		},
		[]string{"result"},
	)

	// ClaimsTotal counts claim operations by mode and outcome.
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipgen_claims_total",
			Help: "Total number of claim operations by mode and result",
		},
		[]string{"mode", "result"},
	)

	// ProxiesClaimedTotal counts proxies removed from the pool by claims.
	ProxiesClaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipgen_proxies_claimed_total",
			Help: "Total number of proxies handed out",
		},
	)

	// ProxiesLoadedTotal counts proxies inserted by uploads.
	ProxiesLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ipgen_proxies_loaded_total",
			Help: "Total number of proxies inserted by uploads",
		},
	)

	// LoginsTotal counts login attempts by result.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipgen_logins_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"},
	)

	// HTTPRequestDuration tracks request latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ipgen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordAllocation increments the allocation counter for result.
func RecordAllocation(result string) {
	AllocationsTotal.WithLabelValues(result).Inc()
}

// RecordClaim increments the claim counter and, on success, the claimed proxies counter.
func RecordClaim(mode, result string, proxies int) {
	ClaimsTotal.WithLabelValues(mode, result).Inc()
	if proxies > 0 {
		ProxiesClaimedTotal.Add(float64(proxies))
	}
}
