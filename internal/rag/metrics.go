package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leadlens",
		Name:      "indexed_records_total",
		Help:      "Number of messages indexed into the paired collections.",
	})

	indexFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leadlens",
		Name:      "index_batch_fallbacks_total",
		Help:      "Number of batches degraded to per-record indexing.",
	})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "leadlens",
		Name:      "search_duration_seconds",
		Help:      "Wall time of a retrieval request, including expansion and embedding.",
		Buckets:   prometheus.DefBuckets,
	})

	answerRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leadlens",
		Name:      "answer_repairs_total",
		Help:      "Repair attempts after malformed generation output, by outcome.",
	}, []string{"outcome"})
)
