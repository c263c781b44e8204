// Package metrics defines the Prometheus collectors exported by the engine,
// in the promauto idiom used elsewhere in the retrieval pack: package-level
// constructors that register against a given registry and return typed
// collector handles for callers to update directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every metric the engine registers. Construct one per
// registry with New. Only MutationsTotal is updated by the engine (through
// Database.CountMutation); the other collectors are registered and exported
// but nothing in this module sets them.
type Collectors struct {
	MutationsTotal      *prometheus.CounterVec
	KeyspaceSize        *prometheus.GaugeVec
	SnapshotDuration     prometheus.Histogram
	SnapshotFailuresTotal prometheus.Counter
	SweepDuration        prometheus.Histogram
}

// New registers every collector against reg and returns the handles.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		MutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escanor_mutations_total",
			Help: "Total number of mutating commands applied, by family and command.",
		}, []string{"family", "command"}),

		KeyspaceSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "escanor_keyspace_size",
			Help: "Current number of keys, by family.",
		}, []string{"family"}),

		SnapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "escanor_snapshot_duration_seconds",
			Help:    "Time taken to write a snapshot to disk.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		SnapshotFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "escanor_snapshot_failures_total",
			Help: "Total number of snapshot writes that failed.",
		}),

		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "escanor_sweep_duration_seconds",
			Help:    "Time taken by one expiration sweep tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}
