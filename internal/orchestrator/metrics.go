package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts handled turns by termination reason.
	// Labels: reason (accepted, accepted-with-caveat, aborted-fatal,
	// aborted-cancelled)
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "supportd",
			Subsystem: "orchestrator",
			Name:      "turns_total",
			Help:      "Total number of handled turns by termination reason",
		},
		[]string{"reason"},
	)

	// TurnDuration tracks end-to-end turn latency.
	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "supportd",
			Subsystem: "orchestrator",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
