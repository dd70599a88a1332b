// Package metrics defines the Prometheus instrumentation shared by the
// coordinator and shard binaries. spec.md §2 places "health and lifecycle
// orchestration" for the cluster plane in scope; these metrics are the
// observable surface of that orchestration, served at GET /metrics on both
// binaries alongside the RPC/API surface, the same way a chi-routed service
// in the pack (erigon) exposes its own prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every metric a node (coordinator or shard) emits. Both
// binaries construct exactly one and thread it through their handlers;
// registering twice against prometheus.DefaultRegisterer would panic, so
// Registry always uses its own prometheus.Registry instance.
type Registry struct {
	Reg *prometheus.Registry

	VectorInserts   *prometheus.CounterVec
	VectorDeletes   *prometheus.CounterVec
	VectorUpdates   *prometheus.CounterVec
	SearchRequests  *prometheus.CounterVec
	SearchLatency   *prometheus.HistogramVec
	BucketCount     *prometheus.GaugeVec
	VectorCount     *prometheus.GaugeVec
	ShardRPCLatency *prometheus.HistogramVec
	ShardHealth     *prometheus.GaugeVec
	FanoutFailures  *prometheus.CounterVec
}

// New builds a Registry with every metric registered against a fresh
// prometheus.Registry, suitable for exposing via promhttp.HandlerFor.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		Reg: reg,
		VectorInserts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vecdb_vector_inserts_total",
			Help: "Total number of vectors inserted, by collection.",
		}, []string{"collection"}),
		VectorDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vecdb_vector_deletes_total",
			Help: "Total number of vectors deleted, by collection.",
		}, []string{"collection"}),
		VectorUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vecdb_vector_updates_total",
			Help: "Total number of vectors updated, by collection.",
		}, []string{"collection"}),
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vecdb_search_requests_total",
			Help: "Total number of find_similar requests, by collection.",
		}, []string{"collection"}),
		SearchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecdb_search_latency_seconds",
			Help:    "Latency of find_similar requests, by collection.",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection"}),
		BucketCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vecdb_bucket_count",
			Help: "Current number of LSH buckets, by collection.",
		}, []string{"collection"}),
		VectorCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vecdb_vector_count",
			Help: "Current number of stored vectors, by collection.",
		}, []string{"collection"}),
		ShardRPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecdb_shard_rpc_latency_seconds",
			Help:    "Coordinator-observed latency of shard RPC calls, by shard and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"shard_id", "operation"}),
		ShardHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vecdb_shard_health",
			Help: "1 if the shard is Active, 0 otherwise, by shard.",
		}, []string{"shard_id"}),
		FanoutFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vecdb_fanout_failures_total",
			Help: "Total number of per-shard failures observed during a fan-out operation.",
		}, []string{"shard_id", "operation"}),
	}
}
