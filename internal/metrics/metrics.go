// Package metrics exposes prometheus collectors for the detection
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "discount_agent",
		Name:      "decisions_total",
		Help:      "Processed messages by detection method and final status.",
	}, []string{"method", "status"})

	decisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "discount_agent",
		Name:      "decision_duration_seconds",
		Help:      "End-to-end message processing latency.",
		Buckets:   prometheus.DefBuckets,
	})

	llmAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "discount_agent",
		Name:      "llm_attempts",
		Help:      "Model calls made per LLM fallback invocation.",
		Buckets:   []float64{0, 1, 2, 3, 4, 5},
	})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "discount_agent",
		Name:      "llm_latency_seconds",
		Help:      "Wall-clock latency of LLM fallback invocations.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
)

// ObserveDecision records one processed message.
func ObserveDecision(method, status string, elapsed time.Duration) {
	decisionsTotal.WithLabelValues(method, status).Inc()
	decisionDuration.Observe(elapsed.Seconds())
}

// ObserveLLM records one LLM fallback invocation.
func ObserveLLM(attempts int, elapsed time.Duration) {
	llmAttempts.Observe(float64(attempts))
	llmLatency.Observe(elapsed.Seconds())
}
