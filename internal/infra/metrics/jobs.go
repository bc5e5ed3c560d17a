package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsProcessedTotal, jobStageSeconds, jobsClaimedTotal) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_processed_total",
		Help: "Total number of pipeline jobs finished, labeled by status.",
	},
	[]string{"status"}, // 'success', 'failed'
)

var jobsClaimedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_claimed_total",
		Help: "Claim attempts by outcome.",
	},
	[]string{"outcome"}, // 'claimed', 'recovered', 'empty', 'error'
)

var jobStageSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Stage execution time distribution.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	},
	[]string{"stage", "success"},
)

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobClaim(outcome string) {
	jobsClaimedTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveStage(stage string, d time.Duration, success bool) {
	jobStageSeconds.WithLabelValues(norm(stage), boolLabel(success)).Observe(d.Seconds())
}
