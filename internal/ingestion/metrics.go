package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsStagedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_rows_staged_total",
		Help: "Raw rows bulk-loaded into the staging table.",
	})
	rowsInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_rows_inserted_total",
		Help: "Canonical rows committed to the transactions table.",
	})
	rowsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_rows_dropped_total",
		Help: "Staged rows dropped by canonicalization.",
	})
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_runs_total",
		Help: "Ingestion runs by outcome.",
	}, []string{"status"})
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingestion_run_duration_seconds",
		Help:    "Wall time of a full ingestion run.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
