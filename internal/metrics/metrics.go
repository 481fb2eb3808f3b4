// Package metrics holds the Prometheus collectors shared across the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdna_provider_requests_total",
			Help: "Total number of calls to external generation providers.",
		},
		[]string{"provider", "operation", "status"},
	)
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contentdna_provider_request_duration_seconds",
			Help:    "Histogram of external provider call durations.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "operation"},
	)
	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdna_provider_retries_total",
			Help: "Retries issued after transient provider errors.",
		},
		[]string{"operation"},
	)
	// ReplyFallbacks counts model or provider replies that could not be read
	// as-is and were salvaged or replaced by an empty default.
	ReplyFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdna_reply_fallback_total",
			Help: "Replies recovered by span extraction or replaced by a fallback value.",
		},
		[]string{"stage"},
	)
	ReconcileActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contentdna_reconcile_active",
		Help: "Video jobs currently being polled.",
	})
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdna_reconcile_outcomes_total",
			Help: "Terminal outcomes of video job reconciliation.",
		},
		[]string{"outcome"},
	)
	AnalysisStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contentdna_analysis_status_total",
			Help: "Analysis status transitions.",
		},
		[]string{"status"},
	)
)

// ObserveProvider records one provider call.
func ObserveProvider(provider, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderRequests.WithLabelValues(provider, operation, status).Inc()
	ProviderRequestDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// RetryHook returns a retry.Policy OnRetry callback counting retries for operation.
func RetryHook(operation string) func(int, time.Duration, error) {
	return func(int, time.Duration, error) {
		ProviderRetries.WithLabelValues(operation).Inc()
	}
}
