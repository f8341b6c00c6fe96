package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetrans_pipeline_runs_total",
			Help: "Total number of page translation runs by result",
		},
		[]string{"result"},
	)

	pipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagetrans_pipeline_run_duration_seconds",
			Help:    "Duration of page translation runs in seconds",
			Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
		},
		[]string{"result"},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagetrans_jobs_total",
			Help: "Total number of finished page jobs by status",
		},
		[]string{"status"},
	)

	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pagetrans_jobs_in_flight",
			Help: "Number of page jobs currently being processed",
		},
	)

	jobQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagetrans_job_queue_wait_seconds",
			Help:    "Time page jobs spend waiting for a processing slot",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
	)
)

// recordPipelineRun labels a run with its reconciliation mode on success and
// its error kind on failure.
func recordPipelineRun(outcome *Outcome, err error, duration time.Duration) {
	result := string(ClassifyError(err))
	if err == nil && outcome != nil {
		result = outcome.Mode.String()
	}
	pipelineRunsTotal.WithLabelValues(result).Inc()
	pipelineRunDuration.WithLabelValues(result).Observe(duration.Seconds())
}
