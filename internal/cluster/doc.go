// Package cluster implements the wire-level types and HTTP helpers that
// carry node-to-node RPC and coordinator-facing API traffic (spec.md §6).
// It has no state of its own; ShardManager (internal/coordinator) decides
// where a request goes, ShardClient (internal/shardclient) uses PostJSON/
// GetJSON to send it, and LocalEngine (internal/engine) serves it on the
// shard side.
package cluster
