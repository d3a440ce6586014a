// Package metrics exposes prometheus instrumentation for the planner service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counters updated by the planner and rebalance engine.
type Metrics struct {
	PlansBuilt          *prometheus.CounterVec
	NullPlans           prometheus.Counter
	InvalidRequests     prometheus.Counter
	RebalancePlans      *prometheus.CounterVec
	RebalanceRejections prometheus.Counter
}

// New registers the metric set on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PlansBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lendplanner",
			Name:      "plans_built_total",
			Help:      "Conversion plans built, by entry kind.",
		}, []string{"entry_kind"}),
		NullPlans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lendplanner",
			Name:      "null_plans_total",
			Help:      "Requests answered with the null plan (frozen, paused or unregistered market).",
		}),
		InvalidRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lendplanner",
			Name:      "invalid_requests_total",
			Help:      "Requests rejected by field validation.",
		}),
		RebalancePlans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lendplanner",
			Name:      "rebalance_plans_total",
			Help:      "Rebalance plans computed, by direction.",
		}, []string{"direction"}),
		RebalanceRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lendplanner",
			Name:      "rebalance_rejections_total",
			Help:      "Rebalance requests rejected by the health-factor guard.",
		}),
	}
}
