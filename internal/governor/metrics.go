package governor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClarificationsTotal counts clarifying questions issued.
	ClarificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportd",
			Subsystem: "governor",
			Name:      "clarifications_total",
			Help:      "Total number of clarifying questions issued",
		},
	)

	// CapReached counts turns accepted with a caveat because the
	// clarification cap was hit.
	CapReached = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "supportd",
			Subsystem: "governor",
			Name:      "clarification_cap_reached_total",
			Help:      "Total number of turns forced to accept at the clarification cap",
		},
	)
)
