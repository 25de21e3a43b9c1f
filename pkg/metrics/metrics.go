package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters for the payment core. Registered on the default registry
// and served by the standalone metrics listener.
var (
	PaymentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "payments_initiated_total",
		Help:      "Payment initiations partitioned by gateway type and result.",
	}, []string{"gateway", "result"})

	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "webhooks_received_total",
		Help:      "Inbound webhook deliveries partitioned by gateway type and outcome.",
	}, []string{"gateway", "outcome"})

	LedgerCredits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "ledger_credits_total",
		Help:      "Wallet credits applied through the ledger sink.",
	})

	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paygate",
		Name:      "gateway_call_duration_ms",
		Help:      "Outbound provider call latency in milliseconds.",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"gateway"})
)

const (
	ResultOK        = "ok"
	ResultRejected  = "rejected"
	ResultAmbiguous = "ambiguous"

	OutcomeHandled          = "handled"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeNotFound         = "not_found"
	OutcomeError            = "error"
)
