// Package monitoring exposes Prometheus metrics for the wallet. Registration
// is explicit so embedding applications control their own registry; every
// recording method is nil-safe, so the wallet runs fine without metrics.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects wallet-level Prometheus metrics.
type Metrics struct {
	gatewayRequestsTotal   *prometheus.CounterVec
	gatewayRequestDuration *prometheus.HistogramVec
	balanceRefreshesTotal  *prometheus.CounterVec
	paymentsTotal          *prometheus.CounterVec
	ledgerPagesTotal       *prometheus.CounterVec
}

// NewMetrics builds and registers wallet metrics on the given registerer.
// Pass prometheus.DefaultRegisterer for the usual global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwallet_gateway_requests_total",
				Help: "Total number of ledger gateway requests",
			},
			[]string{"method", "status"},
		),
		gatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "starwallet_gateway_request_duration_seconds",
				Help:    "Ledger gateway request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		balanceRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwallet_balance_refreshes_total",
				Help: "Total number of balance refreshes by result",
			},
			[]string{"result"},
		),
		paymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwallet_payments_total",
				Help: "Total number of payment sessions by terminal outcome",
			},
			[]string{"outcome"},
		),
		ledgerPagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starwallet_ledger_pages_total",
				Help: "Total number of transaction pages fetched by view",
			},
			[]string{"view"},
		),
	}

	reg.MustRegister(
		m.gatewayRequestsTotal,
		m.gatewayRequestDuration,
		m.balanceRefreshesTotal,
		m.paymentsTotal,
		m.ledgerPagesTotal,
	)
	return m
}

// ObserveGatewayRequest records one gateway call.
func (m *Metrics) ObserveGatewayRequest(method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequestsTotal.WithLabelValues(method, status).Inc()
	m.gatewayRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordBalanceRefresh records a refresh attempt result ("ok" or "error").
func (m *Metrics) RecordBalanceRefresh(result string) {
	if m == nil {
		return
	}
	m.balanceRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordPaymentOutcome records a terminal payment outcome.
func (m *Metrics) RecordPaymentOutcome(outcome string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(outcome).Inc()
}

// RecordLedgerPage records one fetched transaction page for a view.
func (m *Metrics) RecordLedgerPage(view string) {
	if m == nil {
		return
	}
	m.ledgerPagesTotal.WithLabelValues(view).Inc()
}
