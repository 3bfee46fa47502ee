// Package metrics exposes the few counters/gauges the facet-extraction
// core needs for operational visibility, the role
// "github.com/ledgerwatch/turbo-geth/metrics" played in the tree this
// module was adapted from - here backed directly by the client_golang
// registry instead of a second internal indirection layer.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	DocumentsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facet",
		Name:      "documents_processed_total",
		Help:      "Document changes extracted, by worker.",
	}, []string{"worker"})

	CacheSpills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facet",
		Name:      "cache_spills_total",
		Help:      "Balanced cache spill-to-disk events, by worker.",
	}, []string{"worker"})

	CacheBytesSpilled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facet",
		Name:      "cache_bytes_spilled_total",
		Help:      "Bytes written to spill runs, by worker.",
	}, []string{"worker"})

	CacheMemoryUsed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "facet",
		Name:      "cache_memory_used_bytes",
		Help:      "Resident bytes held by a worker's in-memory cache portion.",
	}, []string{"worker"})

	SenderWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facet",
		Name:      "sender_writes_total",
		Help:      "Per-document facet records written, by kind (string/f64) and op (write/delete).",
	}, []string{"kind", "op"})
)

func init() {
	prometheus.MustRegister(
		DocumentsProcessed,
		CacheSpills,
		CacheBytesSpilled,
		CacheMemoryUsed,
		SenderWrites,
	)
}
