// Package shardclient implements the coordinator's typed view of one remote
// shard (spec.md §4.9): ShardClient wraps cluster.PostJSON/GetJSON with one
// method per operation in spec.md §4.8's fan-out table plus HealthCheck and
// Stop, and MultiShardClient holds the shard_id → ShardClient map the
// Coordinator fans requests out over.
//
// The per-shard HTTP surface mirrors torua's own node-to-node client: one
// small typed method per remote operation, each building a tagged request
// and decoding a tagged response, rather than a generic RPC proxy.
package shardclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dreamware/vecdb/internal/cluster"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

// ShardClient is the coordinator's typed handle to one remote shard.
type ShardClient struct {
	shardID string
	addr    string
}

// New creates a ShardClient for the shard identified by shardID, reachable
// at addr (host:port).
func New(shardID, addr string) *ShardClient {
	return &ShardClient{shardID: shardID, addr: addr}
}

// ID returns the shard id this client targets.
func (c *ShardClient) ID() string { return c.shardID }

func (c *ShardClient) url() string {
	return fmt.Sprintf("http://%s/shard", c.addr)
}

// do posts req to the shard's /shard endpoint and decodes its data payload
// into out (pass nil to ignore it), translating a success=false response
// into a vdberrors.RemoteError and any transport failure into a
// vdberrors.RemoteUnavailable.
func (c *ShardClient) do(ctx context.Context, req cluster.ShardRequest, out any) error {
	var resp cluster.ShardResponse
	if err := cluster.PostJSON(ctx, c.url(), req, &resp); err != nil {
		return vdberrors.Wrap(vdberrors.RemoteUnavailable, err, "shard %s unreachable", c.shardID)
	}
	if !resp.Success {
		return vdberrors.New(vdberrors.RemoteError, "shard %s: %s", c.shardID, resp.Error)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "decode response from shard %s", c.shardID)
	}
	return nil
}

// CreateCollection asks the shard to create a collection (spec.md §4.8).
func (c *ShardClient) CreateCollection(ctx context.Context, name, metric string, dimension int) error {
	req := cluster.ShardRequest{Operation: cluster.OpCreateCollection, Collection: name, Metric: metric, Dimension: dimension}
	return c.do(ctx, req, nil)
}

// DeleteCollection asks the shard to delete a collection.
func (c *ShardClient) DeleteCollection(ctx context.Context, name string) error {
	req := cluster.ShardRequest{Operation: cluster.OpDeleteCollection, Collection: name}
	return c.do(ctx, req, nil)
}

// GetCollection fetches one collection's info from the shard.
func (c *ShardClient) GetCollection(ctx context.Context, name string) (cluster.CollectionInfo, error) {
	req := cluster.ShardRequest{Operation: cluster.OpGetCollection, Collection: name}
	var info cluster.CollectionInfo
	err := c.do(ctx, req, &info)
	return info, err
}

// GetAllCollections fetches every collection this shard hosts.
func (c *ShardClient) GetAllCollections(ctx context.Context) ([]cluster.CollectionInfo, error) {
	req := cluster.ShardRequest{Operation: cluster.OpGetAllCollections}
	var infos []cluster.CollectionInfo
	err := c.do(ctx, req, &infos)
	return infos, err
}

// AddVector inserts embedding+metadata into collection on this shard.
func (c *ShardClient) AddVector(ctx context.Context, collection string, embedding []float32, metadata map[string]string) (uint64, error) {
	req := cluster.ShardRequest{Operation: cluster.OpAddVector, Collection: collection, Embedding: embedding, Metadata: metadata}
	var v cluster.VectorInfo
	err := c.do(ctx, req, &v)
	return v.ID, err
}

// GetVector fetches one vector by id.
func (c *ShardClient) GetVector(ctx context.Context, collection string, vectorID uint64) (cluster.VectorInfo, error) {
	req := cluster.ShardRequest{Operation: cluster.OpGetVector, Collection: collection, VectorID: &vectorID}
	var v cluster.VectorInfo
	err := c.do(ctx, req, &v)
	return v, err
}

// UpdateVector mutates a vector's data and/or metadata in place.
func (c *ShardClient) UpdateVector(ctx context.Context, collection string, vectorID uint64, embedding []float32, metadata map[string]string) error {
	req := cluster.ShardRequest{Operation: cluster.OpUpdateVector, Collection: collection, VectorID: &vectorID, Embedding: embedding, Metadata: metadata}
	return c.do(ctx, req, nil)
}

// DeleteVector removes a vector by id.
func (c *ShardClient) DeleteVector(ctx context.Context, collection string, vectorID uint64) error {
	req := cluster.ShardRequest{Operation: cluster.OpDeleteVector, Collection: collection, VectorID: &vectorID}
	return c.do(ctx, req, nil)
}

// FilterByMetadata returns ids of every vector matching filters.
func (c *ShardClient) FilterByMetadata(ctx context.Context, collection string, filters map[string]string) ([]uint64, error) {
	req := cluster.ShardRequest{Operation: cluster.OpFilterByMetadata, Collection: collection, Filters: filters}
	var ids []uint64
	err := c.do(ctx, req, &ids)
	return ids, err
}

// FindSimilar runs a top-k similarity search on this shard.
func (c *ShardClient) FindSimilar(ctx context.Context, collection string, query []float32, k int) ([]cluster.SimilarityHit, error) {
	req := cluster.ShardRequest{Operation: cluster.OpFindSimilar, Collection: collection, Query: query, K: k}
	var hits []cluster.SimilarityHit
	err := c.do(ctx, req, &hits)
	return hits, err
}

// GetStatistics fetches a collection's BucketIndex statistics.
func (c *ShardClient) GetStatistics(ctx context.Context, collection string) (cluster.Stats, error) {
	req := cluster.ShardRequest{Operation: cluster.OpGetStatistics, Collection: collection}
	var stats cluster.Stats
	err := c.do(ctx, req, &stats)
	return stats, err
}

// Dump asks the shard to persist its full state.
func (c *ShardClient) Dump(ctx context.Context) error {
	req := cluster.ShardRequest{Operation: cluster.OpDump}
	return c.do(ctx, req, nil)
}

// Load asks the shard to reconstruct its state from Storage.
func (c *ShardClient) Load(ctx context.Context) error {
	req := cluster.ShardRequest{Operation: cluster.OpLoad}
	return c.do(ctx, req, nil)
}

// Stop asks the shard to stop accepting new requests and perform a final
// dump (spec.md §4.11).
func (c *ShardClient) Stop(ctx context.Context) error {
	req := cluster.ShardRequest{Operation: cluster.OpStop}
	return c.do(ctx, req, nil)
}

// HealthCheck performs the GET /health liveness probe, failing unless the
// shard reports "healthy". internal/coordinator.HealthMonitor does not call
// this; it probes /health through its own http.Client.
func (c *ShardClient) HealthCheck(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	url := fmt.Sprintf("http://%s/health", c.addr)
	if err := cluster.GetJSON(ctx, url, &status); err != nil {
		return vdberrors.Wrap(vdberrors.RemoteUnavailable, err, "shard %s health check failed", c.shardID)
	}
	if status.Status != "healthy" {
		return vdberrors.New(vdberrors.RemoteUnavailable, "shard %s reported status %q", c.shardID, status.Status)
	}
	return nil
}
