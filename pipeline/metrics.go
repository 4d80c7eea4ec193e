package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts finished runs by status and trigger
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "command_centre_runs_total",
		Help: "Finished dashboard runs by status and trigger",
	}, []string{"status", "trigger"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "command_centre_run_duration_seconds",
		Help:    "Dashboard run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	// unmatchedQueues is the number of layout queues with no operational data
	unmatchedQueues = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "command_centre_unmatched_queues",
		Help: "Layout queues without any operational records in the last run",
	}, []string{"layout"})

	unmappedDocTypes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "command_centre_unmapped_doc_types",
		Help: "Doc types without a mapping entry in the last run",
	}, []string{"extract"})

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "command_centre_last_success_timestamp_seconds",
		Help: "Unix time of the last fully successful run",
	})

	sinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "command_centre_sink_errors_total",
		Help: "Failed table writes by sink",
	}, []string{"sink"})
)
