// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionRequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_requests_completed_total",
			Help: "Total number of backend requests completed per operation",
		},
		[]string{"operation"},
	)

	SessionRequestsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_requests_failed_total",
			Help: "Total number of backend requests failed per operation",
		},
		[]string{"operation", "error_code"},
	)

	SessionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "session_request_duration_seconds",
			Help: "Duration of backend request processing in seconds",
		},
		[]string{"operation"},
	)

	StaleResponsesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_stale_responses_total",
			Help: "Responses discarded because their originating upload was superseded",
		},
		[]string{"stage"},
	)

	GenerationRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_generation_rejected_total",
			Help: "Generation requests rejected because one was already in flight",
		},
	)

	ExternalSearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_external_search_cache_hits_total",
			Help: "External shopping searches answered from the in-process cache",
		},
	)
)
