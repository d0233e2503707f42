package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	evaluationsTotal      *prometheus.CounterVec
	evaluationsRejected   *prometheus.CounterVec
	evaluationSeconds     prometheus.Histogram
	leaderboardCacheTotal *prometheus.CounterVec
	eventClientsActive    prometheus.Gauge
	eventsPublishedTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors shared by the API,
// the worker and the pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judge_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_evaluations_total",
			Help: "Completed evaluations by rating.",
		}, []string{"rating"})

		evaluationsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_evaluations_rejected_total",
			Help: "Submissions rejected before the pipeline started.",
		}, []string{"reason"})

		evaluationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "judge_evaluation_duration_seconds",
			Help:    "End to end duration of one evaluation pipeline.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		})

		leaderboardCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_leaderboard_cache_total",
			Help: "Leaderboard cache lookups by result.",
		}, []string{"result"})

		eventClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "judge_event_clients_active",
			Help: "Websocket clients streaming evaluation events.",
		})

		eventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_events_published_total",
			Help: "Evaluation events delivered to local subscribers by origin.",
		}, []string{"origin"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			evaluationsTotal,
			evaluationsRejected,
			evaluationSeconds,
			leaderboardCacheTotal,
			eventClientsActive,
			eventsPublishedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationsTotal counts completed evaluations.
func EvaluationsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsTotal
}

// EvaluationsRejected counts submissions refused before scoring.
func EvaluationsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationsRejected
}

// EvaluationDuration observes pipeline durations.
func EvaluationDuration() prometheus.Histogram {
	RegisterMetrics()
	return evaluationSeconds
}

// LeaderboardCache counts cache hits and misses.
func LeaderboardCache() *prometheus.CounterVec {
	RegisterMetrics()
	return leaderboardCacheTotal
}

// EventClientsActive tracks connected websocket clients.
func EventClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return eventClientsActive
}

// EventsPublished counts events fanned out to subscribers.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishedTotal
}
