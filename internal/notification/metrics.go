package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casebridge",
		Subsystem: "notification",
		Name:      "sent_total",
		Help:      "Notifications delivered, by kind.",
	}, []string{"kind"})

	suppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casebridge",
		Subsystem: "notification",
		Name:      "suppressed_total",
		Help:      "Notifications suppressed before delivery, by kind and reason.",
	}, []string{"kind", "reason"})

	failedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casebridge",
		Subsystem: "notification",
		Name:      "failed_total",
		Help:      "Notification deliveries that errored, by kind.",
	}, []string{"kind"})
)
