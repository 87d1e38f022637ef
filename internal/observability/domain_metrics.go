package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	askRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_ask_requests_total",
			Help: "Total number of ask invocations by outcome.",
		},
		[]string{"outcome"},
	)
	askDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_ask_duration_seconds",
			Help:    "End-to-end ask latency in seconds, including model and database calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
	askRetriesConsumed = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_ask_retries_consumed",
			Help:    "Repair cycles consumed per ask invocation.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)
	executionAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_execution_attempts_total",
			Help: "Total number of SQL execution attempts by result.",
		},
		[]string{"result"},
	)
	repairAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_repair_attempts_total",
			Help: "Total number of query repair attempts by result.",
		},
		[]string{"result"},
	)
	unsafeQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_unsafe_queries_total",
			Help: "Total number of generated queries rejected by the safety gate.",
		},
	)
	exportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_exports_total",
			Help: "Total number of exported result sets.",
		},
	)
	exportedRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_exported_records_total",
			Help: "Total number of records written to the object store.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		askRequestsTotal,
		askDurationSeconds,
		askRetriesConsumed,
		executionAttemptsTotal,
		repairAttemptsTotal,
		unsafeQueriesTotal,
		exportsTotal,
		exportedRecordsTotal,
	)
}

func ObserveAsk(outcome string, retries int, elapsed time.Duration) {
	askRequestsTotal.WithLabelValues(outcome).Inc()
	askDurationSeconds.Observe(elapsed.Seconds())
	if retries >= 0 {
		askRetriesConsumed.Observe(float64(retries))
	}
}

func ObserveExecutionAttempt(ok bool) {
	executionAttemptsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func ObserveRepairAttempt(ok bool) {
	repairAttemptsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func ObserveUnsafeQuery() {
	unsafeQueriesTotal.Inc()
}

func ObserveExport(records int64) {
	exportsTotal.Inc()
	exportedRecordsTotal.Add(float64(records))
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
