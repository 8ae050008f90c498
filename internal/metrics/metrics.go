// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by method, route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// TransfersTotal counts transfer requests by outcome.
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_transfers_total",
			Help: "Total number of transfer requests by outcome",
		},
		[]string{"outcome"},
	)

	// TransferAmountRaw accumulates base units sent in successful transfers.
	TransferAmountRaw = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airdrop_transfer_amount_raw_total",
			Help: "Total token base units sent",
		},
	)

	// RecipientAccountsCreated counts transfers that created the recipient
	// token account.
	RecipientAccountsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airdrop_recipient_accounts_created_total",
			Help: "Total number of recipient token accounts created",
		},
	)
)

// Transfer outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSubmitted = "submitted"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
)
