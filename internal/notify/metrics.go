package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "terminwatch"

var (
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "Notification send attempts by outcome",
		},
		[]string{"outcome"},
	)

	suppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "suppressed_total",
			Help:      "Found results that did not produce a message",
		},
		[]string{"reason"},
	)
)

func recordNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

func recordSuppressed(reason string) {
	suppressedTotal.WithLabelValues(reason).Inc()
}
