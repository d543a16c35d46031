package checker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "terminwatch"

var (
	checksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checker",
			Name:      "checks_total",
			Help:      "Completed checks by resulting status",
		},
		[]string{"status"},
	)

	checksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checker",
			Name:      "checks_skipped_total",
			Help:      "Due checks skipped before starting",
		},
		[]string{"reason"},
	)

	checkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checker",
			Name:      "check_duration_seconds",
			Help:      "Wall time of one check including retries",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	dueSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checker",
			Name:      "due_subscriptions",
			Help:      "Subscriptions due at the last scheduler pass",
		},
	)
)

func recordCheck(status string) {
	checksTotal.WithLabelValues(status).Inc()
}

func recordCheckSkipped(reason string) {
	checksSkipped.WithLabelValues(reason).Inc()
}

func recordCheckDuration(d time.Duration) {
	checkDuration.Observe(d.Seconds())
}

func recordDueSubscriptions(n int) {
	dueSubscriptions.Set(float64(n))
}
