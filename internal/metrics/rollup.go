package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Rollup Prometheus metrics.
var (
	RollupEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollup",
			Name:      "events_total",
			Help:      "Document events handled by the rollup handler",
		},
		[]string{"record_type", "event", "outcome"}, // outcome: written / skipped / ignored / error
	)

	RollupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rollup",
			Name:      "event_duration_seconds",
			Help:      "Rollup handler duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"record_type"},
	)

	UnitsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollup",
			Name:      "units_consumed_total",
			Help:      "Operation units charged against invocation meters",
		},
		[]string{"op"},
	)

	BudgetStopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollup",
			Name:      "budget_stops_total",
			Help:      "Traversals stopped early because the operation budget ran low",
		},
		[]string{"operation"},
	)

	PagesFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollup",
			Name:      "pages_fetched_total",
			Help:      "Result pages fetched by the paginated query executor",
		},
		[]string{"record_type"},
	)

	BudgetRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rollup",
			Name:      "budget_units_remaining",
			Help:      "Units left on the meter when the last traversal finished",
		},
		[]string{"operation"},
	)

	ReportRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollup",
			Name:      "report_runs_total",
			Help:      "Report runs by completion state",
		},
		[]string{"report", "complete"},
	)

	ReportRowsCollected = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rollup",
			Name:      "report_rows_collected",
			Help:      "Rows collected per report run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		},
		[]string{"report"},
	)
)

var registerOnce sync.Once

// RegisterRollupMetrics registers the rollup metrics. Safe to call more than once.
func RegisterRollupMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RollupEventsTotal,
			RollupDuration,
			UnitsConsumedTotal,
			BudgetStopsTotal,
			PagesFetchedTotal,
			BudgetRemaining,
			ReportRunsTotal,
			ReportRowsCollected,
		)
	})
}
