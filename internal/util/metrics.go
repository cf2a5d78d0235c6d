package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BillsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bills_generated_total",
		Help: "Total number of bills generated",
	})

	BillsDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bills_degraded_total",
		Help: "Total number of bills generated without catalog enrichment",
	})

	BillsOverdueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bills_overdue_total",
		Help: "Total number of bills flipped to overdue by the sweep",
	})

	PaymentsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_applied_total",
		Help: "Total number of payment events credited to bills",
	})

	PaymentsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_duplicate_total",
		Help: "Total number of redelivered payment events suppressed",
	})

	PaymentsOrphanedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_orphaned_total",
		Help: "Total number of payment events referencing an unknown bill",
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of successful payments",
	})

	PaymentFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payments",
	}, []string{"reason"})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment processing including the gateway call",
		Buckets: prometheus.DefBuckets,
	})

	NotificationsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_dispatched_total",
		Help: "Total number of notification dispatches by final status",
	}, []string{"status"})

	NotificationChannelSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_channel_sends_total",
		Help: "Total number of channel send attempts",
	}, []string{"channel", "outcome"})

	NotificationRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_retries_total",
		Help: "Total number of notification retry attempts",
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Total number of events published per channel",
	}, []string{"channel"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_dropped_total",
		Help: "Total number of inbound events dropped",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
