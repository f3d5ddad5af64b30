// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	WhalesTracked prometheus.Gauge
	FillsStreamed prometheus.Counter

	// Copier metrics
	SessionsActive     prometheus.Gauge
	SessionFillsCopied prometheus.Gauge
	SessionErrors      prometheus.Gauge

	// Backtest metrics
	BacktestRuns     *prometheus.CounterVec
	BacktestDuration prometheus.Histogram
	TradesSimulated  prometheus.Counter

	// Price backfill metrics
	PricePointsWritten prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "whale_copy_lab"
	}

	return &Metrics{
		// Ingestion metrics
		WhalesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "whales_tracked",
			Help:      "Number of whale addresses being ingested",
		}),
		FillsStreamed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fills_streamed_total",
			Help:      "Total number of fills ingested via the websocket stream",
		}),

		// Copier metrics
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "copier",
			Name:      "sessions_active",
			Help:      "Number of active copy sessions",
		}),
		SessionFillsCopied: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "copier",
			Name:      "session_fills_copied",
			Help:      "Fills copied across all sessions since start",
		}),
		SessionErrors: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "copier",
			Name:      "session_errors",
			Help:      "Errors recorded across all sessions since start",
		}),

		// Backtest metrics
		BacktestRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),

		// Price backfill metrics
		PricePointsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "points_written_total",
			Help:      "Total number of minute price points written",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// UpdateWhalesTracked sets the tracked whale gauge.
func UpdateWhalesTracked(n int) {
	DefaultMetrics.WhalesTracked.Set(float64(n))
}

// RecordFillsStreamed counts fills delivered by the websocket stream.
func RecordFillsStreamed(n int) {
	DefaultMetrics.FillsStreamed.Add(float64(n))
}

// UpdateCopierSessions refreshes the copier gauges from session totals.
func UpdateCopierSessions(active, copied, errors int) {
	DefaultMetrics.SessionsActive.Set(float64(active))
	DefaultMetrics.SessionFillsCopied.Set(float64(copied))
	DefaultMetrics.SessionErrors.Set(float64(errors))
}

// RecordBacktestRun records a completed backtest run.
func RecordBacktestRun(status string, durationSeconds float64) {
	DefaultMetrics.BacktestRuns.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
}

// RecordTradesSimulated counts simulated trades.
func RecordTradesSimulated(n int) {
	DefaultMetrics.TradesSimulated.Add(float64(n))
}

// RecordPricePointsWritten counts stored minute closes.
func RecordPricePointsWritten(n int) {
	DefaultMetrics.PricePointsWritten.Add(float64(n))
}
