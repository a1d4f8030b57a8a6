package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PlansTotal counts plans by the strategy that produced them.
// Labels: strategy (model, fallback)
var PlansTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "supportd",
		Subsystem: "planner",
		Name:      "plans_total",
		Help:      "Total number of plans by planning strategy",
	},
	[]string{"strategy"},
)
