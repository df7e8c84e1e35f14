package store

import "github.com/prometheus/client_golang/prometheus"

// storeMetrics holds the Prometheus collectors exposed when a Store is
// built with storeconfig.WithMetrics(true). Each Store owns a private
// registry rather than registering into prometheus.DefaultRegisterer, so
// multiple stores (as in tests, or multiple datastores in one process)
// never collide on collector names.
type storeMetrics struct {
	registry *prometheus.Registry

	transactionsCommitted   prometheus.Counter
	transactionsCancelled   prometheus.Counter
	patchesBroadcast        prometheus.Counter
	remotePatchesApplied    prometheus.Counter
	malformedPatchesDropped prometheus.Counter
	transactionDuration     prometheus.Histogram
}

func newStoreMetrics() *storeMetrics {
	reg := prometheus.NewRegistry()
	m := &storeMetrics{
		registry: reg,
		transactionsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_store_transactions_committed_total",
			Help: "Local transactions committed via endTransaction.",
		}),
		transactionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_store_transactions_cancelled_total",
			Help: "Local transactions rolled back via cancelTransaction.",
		}),
		patchesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_store_patches_broadcast_total",
			Help: "Patches successfully handed to the adapter for broadcast.",
		}),
		remotePatchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_store_remote_patches_applied_total",
			Help: "Remote patches applied to local tables.",
		}),
		malformedPatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latticedb_store_malformed_patches_dropped_total",
			Help: "Remote patch fragments discarded for referencing unknown schemas/fields or failing to decode.",
		}),
		transactionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "latticedb_store_transaction_duration_seconds",
			Help:    "Wall time from beginTransaction to endTransaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.transactionsCommitted,
		m.transactionsCancelled,
		m.patchesBroadcast,
		m.remotePatchesApplied,
		m.malformedPatchesDropped,
		m.transactionDuration,
	)
	return m
}

// MetricsRegistry exposes the Store's private Prometheus registry, or nil
// if it was built without storeconfig.WithMetrics(true).
func (s *Store) MetricsRegistry() *prometheus.Registry {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.registry
}
