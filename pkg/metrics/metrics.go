package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admission metrics
	QueriesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_queries_active",
			Help: "Number of queries currently admitted (running or transferring)",
		},
	)

	QueriesPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quarry_queries_pending",
			Help: "Number of pending queries observed on the last scheduler tick",
		},
	)

	QueriesAdmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_queries_admitted_total",
			Help: "Total number of queries admitted by the scheduler",
		},
	)

	SchedulingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quarry_scheduling_duration_seconds",
			Help:    "Time taken by one admission pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker metrics
	QueriesFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_queries_finished_total",
			Help: "Total number of queries reaching a terminal state, by status",
		},
		[]string{"status"},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quarry_query_duration_seconds",
			Help:    "Wall-clock time from admission to terminal state in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
	)

	ExportBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quarry_export_file_bytes",
			Help:    "Size of materialised export files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 8, 8),
		},
	)

	// Transfer metrics
	TransferAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_transfer_attempts_total",
			Help: "Total number of file transfer attempts, by mode",
		},
		[]string{"mode"},
	)

	TransferFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quarry_transfer_failures_total",
			Help: "Total number of failed transfer attempts, by mode",
		},
		[]string{"mode"},
	)

	// Store metrics
	StatusWriteRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_status_write_retries_total",
			Help: "Total number of retried status writes to the store",
		},
	)

	StatusWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_status_write_failures_total",
			Help: "Total number of status writes abandoned after all retries",
		},
	)

	// Recovery metrics
	StuckQueriesReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quarry_stuck_queries_reaped_total",
			Help: "Total number of stuck queries transitioned to failed by the reaper",
		},
	)

	// Queue depth metrics, sampled from the store by the collector
	QueriesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quarry_queries_by_status",
			Help: "Number of queries in each lifecycle status",
		},
		[]string{"status"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(QueriesActive)
	prometheus.MustRegister(QueriesPending)
	prometheus.MustRegister(QueriesAdmitted)
	prometheus.MustRegister(SchedulingDuration)
	prometheus.MustRegister(QueriesFinished)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(ExportBytes)
	prometheus.MustRegister(TransferAttempts)
	prometheus.MustRegister(TransferFailures)
	prometheus.MustRegister(StatusWriteRetries)
	prometheus.MustRegister(StatusWriteFailures)
	prometheus.MustRegister(StuckQueriesReaped)
	prometheus.MustRegister(QueriesByStatus)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
