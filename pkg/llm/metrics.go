package llm

import "github.com/prometheus/client_golang/prometheus"

// callTotal and callLatency back the LLM_CALL metric record from spec.md
// §4.3: task, provider, model, and success are carried as labels; latency
// and prompt/response sizes as observations.
var (
	callTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strategist_core",
		Name:      "llm_call_total",
		Help:      "Total LLM gateway calls by task, provider, model, and outcome.",
	}, []string{"task", "provider", "model", "success"})

	callLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "strategist_core",
		Name:      "llm_call_latency_ms",
		Help:      "LLM gateway call latency in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(50, 2, 12),
	}, []string{"task", "provider", "model"})

	callPromptLength = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "strategist_core",
		Name:      "llm_call_prompt_length",
		Help:      "LLM gateway prompt length in characters.",
		Buckets:   prometheus.ExponentialBuckets(128, 2, 10),
	}, []string{"task"})

	callResponseLength = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "strategist_core",
		Name:      "llm_call_response_length",
		Help:      "LLM gateway response length in characters.",
		Buckets:   prometheus.ExponentialBuckets(128, 2, 10),
	}, []string{"task"})
)

func init() {
	prometheus.MustRegister(callTotal, callLatency, callPromptLength, callResponseLength)
}
