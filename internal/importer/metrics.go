package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of importsTotal
const (
	outcomeImported   = "imported"
	outcomeNothingNew = "nothing_new"
	outcomeRejected   = "rejected"
	outcomeFailed     = "failed"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_imports_total",
		Help: "CSV imports processed, labeled by outcome",
	}, []string{"outcome"})

	importRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_import_rows_total",
		Help: "CSV rows seen by the importer, labeled by what happened to them",
	}, []string{"status"})

	importDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_import_duration_seconds",
		Help:    "Latency distribution of CSV imports",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)
