// Package metrics exposes Prometheus instrumentation for the trading
// cycle and a small HTTP server to serve it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	CycleDuration   prometheus.Histogram
	CycleTotal      prometheus.Counter
	CycleTimeouts   prometheus.Counter
	StageErrors     *prometheus.CounterVec
	TradesOpened    *prometheus.CounterVec
	TradesClosed    *prometheus.CounterVec
	ValidatorReject *prometheus.CounterVec
	KillSwitchTrips prometheus.Counter
	NAV             prometheus.Gauge
	DrawdownPct     prometheus.Gauge
	OpenPositions   prometheus.Gauge
}

// New registers and returns the collector set
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers collectors on a specific registerer,
// which keeps tests free of default-registry collisions
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "papertrader_cycle_duration_seconds",
			Help:    "Wall time of one full trading cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		CycleTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "papertrader_cycles_total",
			Help: "Completed trading cycles",
		}),
		CycleTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "papertrader_cycle_timeouts_total",
			Help: "Cycles that hit the deadline before finishing",
		}),
		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_stage_errors_total",
			Help: "Recoverable errors by pipeline stage",
		}, []string{"stage"}),
		TradesOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_trades_opened_total",
			Help: "Paper trades opened",
		}, []string{"symbol", "side"}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_trades_closed_total",
			Help: "Paper trades closed by exit reason",
		}, []string{"symbol", "reason"}),
		ValidatorReject: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "papertrader_validator_rejects_total",
			Help: "Entry proposals rejected by the risk validator",
		}, []string{"reason"}),
		KillSwitchTrips: factory.NewCounter(prometheus.CounterOpts{
			Name: "papertrader_kill_switch_trips_total",
			Help: "Volatility kill switch activations",
		}),
		NAV: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_nav",
			Help: "Current account NAV",
		}),
		DrawdownPct: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_drawdown_fraction",
			Help: "Current drawdown from peak NAV as a fraction",
		}),
		OpenPositions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "papertrader_open_positions",
			Help: "Number of open positions",
		}),
	}
}
