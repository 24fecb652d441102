// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the import pipeline collectors
type Metrics struct {
	ImportsTotal   prometheus.Counter
	RowsSaved      prometheus.Counter
	RowsDuplicate  prometheus.Counter
	RowsRejected   prometheus.Counter
	ImportDuration prometheus.Histogram
}

// New registers the collectors on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ImportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rupeeledger_imports_total",
			Help: "Number of CSV import requests processed.",
		}),
		RowsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rupeeledger_import_rows_saved_total",
			Help: "Rows persisted by CSV imports.",
		}),
		RowsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rupeeledger_import_rows_duplicate_total",
			Help: "Rows skipped as file-level or store-level duplicates.",
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rupeeledger_import_rows_rejected_total",
			Help: "Rows rejected with schema or conversion errors.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rupeeledger_import_duration_seconds",
			Help:    "End-to-end duration of CSV imports.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.ImportsTotal,
		m.RowsSaved,
		m.RowsDuplicate,
		m.RowsRejected,
		m.ImportDuration,
	)
	return m
}
