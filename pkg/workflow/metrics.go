package workflow

import "github.com/prometheus/client_golang/prometheus"

var (
	stepEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategist_core",
		Name:      "workflow_step_events_total",
		Help:      "StepEvents journaled by step name and status.",
	}, []string{"step", "status"})

	stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "strategist_core",
		Name:      "workflow_step_duration_seconds",
		Help:      "Wall-clock duration of completed workflow steps.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"step"})

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategist_core",
		Name:      "workflow_runs_total",
		Help:      "Runs reaching a terminal state, by outcome.",
	}, []string{"status"})

	activeRuns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "strategist_core",
		Name:      "workflow_active_runs",
		Help:      "Runs currently running or suspended at an HITL checkpoint.",
	})
)

func init() {
	prometheus.MustRegister(stepEventsTotal, stepDuration, runsTotal, activeRuns)
}
