package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "costline",
		Subsystem: "import",
		Name:      "started_total",
		Help:      "Total number of import jobs accepted.",
	})

	importsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "costline",
		Subsystem: "import",
		Name:      "finished_total",
		Help:      "Total number of import jobs reaching a terminal state, by outcome.",
	}, []string{"outcome"})

	importDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "costline",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Wall time of import job execution from start to terminal state.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	writeConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "costline",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of write conflicts broken down by kind.",
	}, []string{"kind"})

	rollupRecomputes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "costline",
		Subsystem: "rollup",
		Name:      "recomputes_total",
		Help:      "Total number of ancestor-chain rollup recomputations.",
	})
)

func recordImportFinished(outcome string, seconds float64) {
	importsFinished.WithLabelValues(outcome).Inc()
	importDuration.Observe(seconds)
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	writeConflicts.WithLabelValues(kind).Inc()
}
