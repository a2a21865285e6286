// Package metrics declares the prometheus collectors shared by the server components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "slop"

var (
	BatchEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "batch_entries_total",
		Help:      "Batch entries processed by operation and outcome.",
	}, []string{"op", "status"})

	AggregateRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consensus",
		Name:      "recomputes_total",
		Help:      "Aggregate recomputations by result.",
	}, []string{"result"})

	SkippedReports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consensus",
		Name:      "skipped_reports_total",
		Help:      "Reports left out of a recompute because their weight was invalid.",
	})

	DynamicThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "community",
		Name:      "dynamic_threshold",
		Help:      "Current consensus threshold.",
	})

	AverageTrust = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "community",
		Name:      "average_trust",
		Help:      "Average trust of the active reporter population.",
	})

	ActiveReporters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "community",
		Name:      "active_reporters",
		Help:      "Reporters active within the activity window.",
	})

	Judgments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "judgments_total",
		Help:      "Accuracy verdicts recorded by the evaluation job.",
	}, []string{"verdict"})

	ArtifactPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "publishes_total",
		Help:      "Snapshot and delta generation attempts by result.",
	}, []string{"kind", "result"})

	ArtifactItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "publisher",
		Name:      "items",
		Help:      "Items in the most recently published artifact.",
	}, []string{"kind"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "runs_total",
		Help:      "Scheduled job executions by result.",
	}, []string{"job", "result"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "duration_seconds",
		Help:      "Scheduled job duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})
)
