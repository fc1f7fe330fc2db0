// Package metrics exposes the Prometheus metrics every CORE binary
// registers, grounded on chidi150c-coinbase/metrics.go's pattern of one
// package-level var block of CounterVec/GaugeVec/Histogram registered in
// init() and served over /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OutboundCalls counts every outbound REST call the Gateway makes,
	// labeled by endpoint and outcome — the data behind the rate-limit
	// invariant in spec §8.
	OutboundCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_gateway_outbound_calls_total",
			Help: "Outbound brokerage REST calls by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "core_gateway_breaker_state",
			Help: "Circuit breaker state per endpoint (0=closed,1=half_open,2=open)",
		},
		[]string{"endpoint"},
	)

	TicksPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "core_gateway_ticks_published_total",
			Help: "Ticks written to stream:ticks",
		},
	)

	SignalsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_scanner_signals_published_total",
			Help: "BuySignals published by signal_type",
		},
		[]string{"signal_type"},
	)

	RiskGateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_scanner_risk_gate_rejections_total",
			Help: "Candidate signals rejected by the scanner's risk gate chain",
		},
		[]string{"gate"},
	)

	ExitRuleFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_monitor_exit_rule_fired_total",
			Help: "Exit chain rule firings by rule name",
		},
		[]string{"rule"},
	)

	BuyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_buyexec_rejections_total",
			Help: "Buy executor pre-check rejections by reason",
		},
		[]string{"reason"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "core_orders_placed_total",
			Help: "Orders placed by side and result",
		},
		[]string{"side", "result"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "core_worker_queue_depth",
			Help: "Current depth of a component's bounded work queue",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(
		OutboundCalls,
		BreakerState,
		TicksPublished,
		SignalsPublished,
		RiskGateRejections,
		ExitRuleFired,
		BuyRejections,
		OrdersPlaced,
		QueueDepth,
	)
}

// Handler returns the /metrics HTTP handler every binary mounts.
func Handler() http.Handler {
	return promhttp.Handler()
}
