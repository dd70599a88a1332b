// Package coordinator implements the cluster control plane: ShardManager
// tracks which configured shard owns which collection or bucket (spec.md
// §4.7), HealthMonitor polls shard liveness and drives the Active/Failed
// transitions (spec.md §4.11), and Coordinator composes both with a
// MultiShardClient (internal/shardclient) into the fan-out operations the
// public API exposes (spec.md §4.8): create/delete_collection go to every
// active shard, add_vector and filter_by_metadata go to the collection's
// owner shard, get/update/delete_vector and find_similar fan out to every
// active shard and merge results, and dump/load/stop fan out and aggregate.
package coordinator
