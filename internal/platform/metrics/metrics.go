package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VerdictsTotal counts finished judging cycles by path (submit, run, validate) and outcome.
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_verdicts_total",
			Help: "Judging cycles completed, by path and final status",
		},
		[]string{"path", "status"},
	)

	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "judge_poll_attempts",
			Help:    "Number of engine polls needed before every token finalized",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	EngineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_engine_requests_total",
			Help: "Requests made to the execution engine",
		},
		[]string{"op", "outcome"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judge_pipeline_duration_seconds",
			Help:    "Wall time of one dispatch-poll-aggregate cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	StaleSubmissionsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "judge_stale_submissions_failed_total",
			Help: "Pending submissions finalized as Failed by the sweeper",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
