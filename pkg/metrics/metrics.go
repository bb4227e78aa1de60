package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconciliation flow counters. Registered once via promauto; safe for
// concurrent use from any handler.
var (
	InvoicesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_invoices_issued_total",
			Help: "Invoice requests by plan and outcome",
		},
		[]string{"plan", "outcome"},
	)

	CallbacksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_callbacks_received_total",
			Help: "Gateway callbacks by resulting order status",
		},
		[]string{"status"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_callback_signature_failures_total",
			Help: "Callbacks whose merchant signature did not verify",
		},
	)

	SyncPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sync_polls_total",
			Help: "Status sync calls by reported status",
		},
		[]string{"status"},
	)

	GrantsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_grants_applied_total",
			Help: "Access grant extensions applied from paid orders",
		},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_gateway_request_duration_seconds",
			Help:    "Outbound gateway request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request_type", "outcome"},
	)
)

// Handler exposes the prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
