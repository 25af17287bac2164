package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts envelopes accepted by SNS.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_published_total",
			Help: "Total number of events published to SNS",
		},
		[]string{"event_type"},
	)

	// PublishErrors counts failed publish attempts (transport errors and
	// non-2xx responses).
	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_publish_errors_total",
			Help: "Total number of failed SNS publish attempts",
		},
		[]string{"event_type"},
	)

	// PublishDuration observes the duration of publish calls.
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventbus_publish_duration_seconds",
			Help:    "Duration of SNS publish calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// MessagesReceived counts messages fetched from the queue before any
	// processing.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_consumer_messages_received_total",
			Help: "Total number of SQS messages received",
		},
		[]string{"queue"},
	)

	// MessagesProcessed counts messages handled and deleted.
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_consumer_messages_processed_total",
			Help: "Total number of SQS messages successfully processed and deleted",
		},
		[]string{"queue"},
	)

	// MessagesDropped counts malformed messages deleted without processing.
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_consumer_messages_dropped_total",
			Help: "Total number of malformed SQS messages dropped",
		},
		[]string{"queue"},
	)

	// MessagesFailed counts messages whose handler failed; these stay in the
	// queue for redelivery.
	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_consumer_messages_failed_total",
			Help: "Total number of SQS messages left in the queue after a handler failure",
		},
		[]string{"queue"},
	)

	// ProcessingDuration observes per-message handler execution time.
	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventbus_consumer_processing_duration_seconds",
			Help:    "Duration of SQS message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)
)
