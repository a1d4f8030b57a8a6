package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepOutcomes counts step executions by outcome.
	// Labels: step, outcome (success, skipped, failed)
	StepOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportd",
			Subsystem: "executor",
			Name:      "step_outcomes_total",
			Help:      "Total number of step executions by outcome",
		},
		[]string{"step", "outcome"},
	)

	// StepDuration tracks per-step latency.
	// Labels: step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "supportd",
			Subsystem: "executor",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"step"},
	)
)
