package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	insightsJobTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategist_core",
		Name:      "insights_job_total",
		Help:      "INSIGHTS_JOB completions by outcome.",
	}, []string{"insufficient"})

	insightsJobCandidates = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strategist_core",
		Name:      "insights_job_candidates_evaluated",
		Help:      "Number of insight candidates evaluated per INSIGHTS_JOB.",
		Buckets:   prometheus.LinearBuckets(3, 1, 8),
	})

	patchJobTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategist_core",
		Name:      "patch_job_total",
		Help:      "PATCH_JOB completions by pass/fail and downscope outcome.",
	}, []string{"passed_validation", "auto_downscoped"})

	evidenceRefProblems = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "strategist_core",
		Name:      "insights_evidence_ref_problems_total",
		Help:      "Evidence refs on selected insights that failed to resolve in the features bundle.",
	})

	patchJobFlags = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "strategist_core",
		Name:      "patch_job_flag_count",
		Help:      "Count of flags attached to a patch by flag family.",
		Buckets:   prometheus.LinearBuckets(0, 1, 10),
	}, []string{"family"})
)

func init() {
	prometheus.MustRegister(insightsJobTotal, insightsJobCandidates, evidenceRefProblems, patchJobTotal, patchJobFlags)
}
