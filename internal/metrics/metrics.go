// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orders"

var (
	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submitted_total",
		Help:      "Order submissions by payment method, currency and result.",
	}, []string{"payment_method", "currency", "result"})

	OrderStatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_updates_total",
		Help:      "Order status assignments by target status.",
	}, []string{"status"})

	PaymentIntents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_intents_total",
		Help:      "Payment intent creation attempts by currency and result.",
	}, []string{"currency", "result"})

	PaymentCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_captures_total",
		Help:      "Processor capture notifications by event type.",
	}, []string{"type"})

	UnreconciledPayments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "unreconciled_payments",
		Help:      "Captured payments past the grace period with no matching order, as of the last sweep.",
	})

	PersistenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_retries_total",
		Help:      "Order writes retried after a transient failure.",
	})

	ThrottledRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "throttled_requests_total",
		Help:      "Requests rejected by the per-identity throttle.",
	}, []string{"route"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultReplayed = "replayed"
)
