package navigator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "terminwatch"

var (
	stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "navigator",
			Name:      "step_duration_seconds",
			Help:      "Time spent in one navigation step attempt",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"step"},
	)

	navigations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "navigator",
			Name:      "runs_total",
			Help:      "Navigation outcomes by terminal state and result",
		},
		[]string{"state", "outcome"},
	)
)

func recordStepDuration(step string, d time.Duration) {
	stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func recordNavigation(state, outcome string) {
	navigations.WithLabelValues(state, outcome).Inc()
}
