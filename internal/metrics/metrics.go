// Package metrics exposes the Prometheus collectors for the notification
// pipeline. Collectors are registered on the default registry and served
// through promhttp in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsStored counts notifications persisted by the poller,
	// labelled by kind.
	NotificationsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_notifications_stored_total",
		Help: "Notifications persisted to the local store.",
	}, []string{"kind"})

	// PollFailures counts per-user poll runs that aborted on a tracker
	// connection failure.
	PollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_poll_failures_total",
		Help: "Poll runs aborted by a tracker connection failure.",
	})

	// PollDuration observes the wall time of one per-user poll.
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "helpdesk_poll_duration_seconds",
		Help:    "Duration of a single per-user tracker poll.",
		Buckets: prometheus.DefBuckets,
	})

	// PushesSent counts push deliveries accepted by the provider.
	PushesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_pushes_sent_total",
		Help: "Push messages accepted by the push provider.",
	})

	// PushesFailed counts push deliveries that failed, retryable or not.
	PushesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_pushes_failed_total",
		Help: "Push messages rejected or undeliverable.",
	})

	// SubscriptionsDeactivated counts subscriptions retired after the
	// provider reported their endpoint gone.
	SubscriptionsDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "helpdesk_push_subscriptions_deactivated_total",
		Help: "Push subscriptions deactivated after permanent delivery errors.",
	})
)
