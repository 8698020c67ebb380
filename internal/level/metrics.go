// internal/level/metrics.go
package level

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_level_adjustments_total",
		Help: "Inventory level adjustments applied, by direction.",
	}, []string{"direction"})

	adjustedUnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_level_adjusted_units_total",
		Help: "Absolute units moved by inventory level adjustments, by direction.",
	}, []string{"direction"})

	sideEffectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_level_side_effect_failures_total",
		Help: "Journal or publish failures after a level write succeeded.",
	}, []string{"sink"})
)

func observeAdjustment(delta int64) {
	direction := "increase"
	if delta < 0 {
		direction = "decrease"
	}
	// float64 first: negating math.MinInt64 overflows.
	adjustmentsTotal.WithLabelValues(direction).Inc()
	adjustedUnitsTotal.WithLabelValues(direction).Add(math.Abs(float64(delta)))
}
