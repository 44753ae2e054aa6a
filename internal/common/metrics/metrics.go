// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	CreditEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_evaluations_total",
			Help: "Credit evaluations by outcome",
		},
		[]string{"outcome"},
	)

	RankResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rank_resolutions_total",
			Help: "Rank resolutions by result (resolved, unresolved, degraded)",
		},
		[]string{"result"},
	)

	ProductCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "product_candidates",
			Help:    "Number of eligible products returned per match",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10, 20},
		},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "external_call_duration_seconds",
			Help: "Latency of embedding, vector search and database calls",
		},
		[]string{"dependency", "operation", "status"},
	)
)

// ObserveExternalCall records the latency of a call that started at start.
func ObserveExternalCall(dependency, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ExternalCallDuration.WithLabelValues(dependency, operation, status).Observe(time.Since(start).Seconds())
}
