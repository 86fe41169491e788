package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftwise_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftwise_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftwise_generations_total",
			Help: "Total generation requests by credential path, provider and outcome.",
		},
		[]string{"path", "provider", "status"},
	)

	QuotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftwise_quota_denials_total",
			Help: "Quota checks that came back denied, by counter.",
		},
		[]string{"counter"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftwise_cache_lookups_total",
			Help: "In-process cache lookups by cache name and result.",
		},
		[]string{"cache", "result"},
	)

	SharedKeysActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftwise_shared_keys_active",
			Help: "Number of active shared provider keys.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		GenerationsTotal,
		QuotaDenialsTotal,
		CacheLookupsTotal,
		SharedKeysActive,
	)
}
