package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// invokerMetrics holds the Prometheus metrics owned by the Invoker. A fresh
// instance is registered per Invoker so tests can use hermetic registries.
type invokerMetrics struct {
	// callsTotal counts completed Invoke calls, partitioned by provider and
	// outcome ("ok" or "error"). One Invoke may span several attempts.
	callsTotal *prometheus.CounterVec

	// attemptsTotal counts individual provider HTTP attempts, partitioned by
	// provider and result ("ok", "transient", "permanent").
	attemptsTotal *prometheus.CounterVec

	// durationSeconds records wall-clock Invoke duration including backoff
	// sleeps, partitioned by provider.
	durationSeconds *prometheus.HistogramVec
}

func newInvokerMetrics(reg prometheus.Registerer) *invokerMetrics {
	factory := promauto.With(reg)

	return &invokerMetrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbqa",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of generation calls completed, partitioned by provider and outcome.",
		}, []string{"provider", "outcome"}),

		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kbqa",
			Subsystem: "llm",
			Name:      "attempts_total",
			Help:      "Total number of individual provider HTTP attempts, partitioned by provider and result.",
		}, []string{"provider", "result"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kbqa",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of generation calls including retry backoff.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180},
		}, []string{"provider"}),
	}
}
