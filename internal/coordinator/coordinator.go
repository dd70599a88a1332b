package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/dreamware/vecdb/internal/cluster"
	"github.com/dreamware/vecdb/internal/metrics"
	"github.com/dreamware/vecdb/internal/shardclient"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

// Coordinator composes a ShardManager with a MultiShardClient into the
// public fan-out operations spec.md §4.8 defines. CreateCollection tags each
// call with a fresh correlation id and includes it in its failure error, so a
// partial failure across several shards can be traced back to one request.
type Coordinator struct {
	manager *ShardManager
	clients *shardclient.MultiShardClient
	metrics *metrics.Registry
}

// New creates a Coordinator over manager and clients. clients must already
// hold one ShardClient per shard manager knows about. m may be nil, in
// which case per-shard RPC latency and fan-out failures go unrecorded.
func New(manager *ShardManager, clients *shardclient.MultiShardClient, m *metrics.Registry) *Coordinator {
	return &Coordinator{manager: manager, clients: clients, metrics: m}
}

// broadcast wraps shardclient.Broadcast with per-shard RPC latency and
// fan-out failure instrumentation, labeled by operation.
func broadcast[T any](ctx context.Context, co *Coordinator, operation string, clients []*shardclient.ShardClient, fn func(ctx context.Context, c *shardclient.ShardClient) (T, error)) []shardclient.Result[T] {
	var mu sync.Mutex
	elapsed := make(map[string]float64, len(clients))
	results := shardclient.Broadcast(ctx, co.clients, clients, func(ctx context.Context, c *shardclient.ShardClient) (T, error) {
		start := time.Now()
		v, err := fn(ctx, c)
		mu.Lock()
		elapsed[c.ID()] = time.Since(start).Seconds()
		mu.Unlock()
		return v, err
	})

	if co.metrics != nil {
		for _, r := range results {
			co.metrics.ShardRPCLatency.WithLabelValues(r.ShardID, operation).Observe(elapsed[r.ShardID])
			if r.Err != nil {
				co.metrics.FanoutFailures.WithLabelValues(r.ShardID, operation).Inc()
			}
		}
	}
	return results
}

// ShardOutcome reports one shard's result for a fanned-out operation
// (spec.md §4.8 "partial failure reported with per-shard detail").
type ShardOutcome struct {
	ShardID string `json:"shard_id"`
	Error   string `json:"error,omitempty"`
	OK      bool   `json:"ok"`
}

func outcomesFrom[T any](results []shardclient.Result[T]) []ShardOutcome {
	out := make([]ShardOutcome, len(results))
	for i, r := range results {
		out[i] = ShardOutcome{ShardID: r.ShardID, OK: r.Err == nil}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

func (co *Coordinator) activeClients() []*shardclient.ShardClient {
	shards := co.manager.GetActiveShards()
	ids := make([]string, len(shards))
	for i, s := range shards {
		ids[i] = s.ID
	}
	return co.clients.Clients(ids)
}

// correlationID mints a fresh fan-out correlation id for logging/tracing a
// single client request across every shard it touches.
func correlationID() string {
	return uuid.NewString()
}

// CreateCollection fans out to every active shard; it succeeds only if
// every shard does (spec.md §4.8 create_collection).
func (co *Coordinator) CreateCollection(ctx context.Context, name, metric string, dimension int) ([]ShardOutcome, error) {
	clients := co.activeClients()
	if len(clients) == 0 {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	cid := correlationID()
	results := broadcast(ctx, co, string(cluster.OpCreateCollection), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.CreateCollection(ctx, name, metric, dimension)
	})
	outcomes := outcomesFrom(results)

	for i, r := range results {
		if r.Err != nil {
			return outcomes, vdberrors.New(vdberrors.RemoteError, "request %s: create_collection failed on shard %s: %v", cid, outcomes[i].ShardID, r.Err)
		}
	}
	return outcomes, nil
}

// DeleteCollection fans out to every active shard; all-or-nothing like
// CreateCollection (spec.md §4.8 delete_collection).
func (co *Coordinator) DeleteCollection(ctx context.Context, name string) ([]ShardOutcome, error) {
	clients := co.activeClients()
	if len(clients) == 0 {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpDeleteCollection), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.DeleteCollection(ctx, name)
	})
	outcomes := outcomesFrom(results)

	for i, r := range results {
		if r.Err != nil {
			return outcomes, vdberrors.New(vdberrors.RemoteError, "delete_collection failed on shard %s: %v", outcomes[i].ShardID, r.Err)
		}
	}
	return outcomes, nil
}

// GetAllCollections merges the per-shard collection lists, deduplicated by
// name (every shard sees every collection when sharding fans out
// create_collection, so duplicates are expected here).
func (co *Coordinator) GetAllCollections(ctx context.Context) ([]cluster.CollectionInfo, error) {
	clients := co.activeClients()
	if len(clients) == 0 {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpGetAllCollections), clients, func(ctx context.Context, c *shardclient.ShardClient) ([]cluster.CollectionInfo, error) {
		return c.GetAllCollections(ctx)
	})

	seen := make(map[string]cluster.CollectionInfo)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		for _, info := range r.Value {
			seen[info.Name] = info
		}
	}

	out := make([]cluster.CollectionInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b cluster.CollectionInfo) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

// AddVector routes to the collection's owner shard only (spec.md §4.8
// add_vector).
func (co *Coordinator) AddVector(ctx context.Context, collection string, embedding []float32, metadata map[string]string) (uint64, error) {
	owner, err := co.manager.OwnerForCollection(collection)
	if err != nil {
		return 0, err
	}
	client, ok := co.clients.Get(owner.ID)
	if !ok {
		return 0, vdberrors.New(vdberrors.RemoteUnavailable, "no client registered for shard %s", owner.ID)
	}
	return client.AddVector(ctx, collection, embedding, metadata)
}

// GetVector fans out to every active shard and returns the first successful
// response (spec.md §4.8: vector id is content-derived, the coordinator has
// no reverse index telling it which shard holds it).
func (co *Coordinator) GetVector(ctx context.Context, collection string, vectorID uint64) (cluster.VectorInfo, error) {
	clients := co.activeClients()
	if len(clients) == 0 {
		return cluster.VectorInfo{}, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpGetVector), clients, func(ctx context.Context, c *shardclient.ShardClient) (cluster.VectorInfo, error) {
		return c.GetVector(ctx, collection, vectorID)
	})

	for _, r := range results {
		if r.Err == nil {
			return r.Value, nil
		}
	}
	return cluster.VectorInfo{}, vdberrors.New(vdberrors.NotFound, "vector %d not found on any active shard", vectorID)
}

// UpdateVector fans out to every active shard; success if any shard reports
// success ("found anywhere" semantics per spec.md §4.8).
func (co *Coordinator) UpdateVector(ctx context.Context, collection string, vectorID uint64, embedding []float32, metadata map[string]string) error {
	clients := co.activeClients()
	if len(clients) == 0 {
		return vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpUpdateVector), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.UpdateVector(ctx, collection, vectorID, embedding, metadata)
	})

	for _, r := range results {
		if r.Err == nil {
			return nil
		}
	}
	return vdberrors.New(vdberrors.NotFound, "vector %d not found on any active shard", vectorID)
}

// DeleteVector fans out to every active shard; success if any shard reports
// success, matching UpdateVector's "found anywhere" rule.
func (co *Coordinator) DeleteVector(ctx context.Context, collection string, vectorID uint64) error {
	clients := co.activeClients()
	if len(clients) == 0 {
		return vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpDeleteVector), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.DeleteVector(ctx, collection, vectorID)
	})

	for _, r := range results {
		if r.Err == nil {
			return nil
		}
	}
	return vdberrors.New(vdberrors.NotFound, "vector %d not found on any active shard", vectorID)
}

// FilterByMetadata routes to the collection's owner shard only and
// deduplicates+sorts the result (spec.md §4.8 filter_by_metadata). The
// roaring bitmap is a convenient sorted-unique-uint64 set; a single owner
// shard response rarely repeats an id, but the dedup is cheap insurance if
// routing ever changes to consult more than one shard.
func (co *Coordinator) FilterByMetadata(ctx context.Context, collection string, filters map[string]string) ([]uint64, error) {
	owner, err := co.manager.OwnerForCollection(collection)
	if err != nil {
		return nil, err
	}
	client, ok := co.clients.Get(owner.ID)
	if !ok {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no client registered for shard %s", owner.ID)
	}

	ids, err := client.FilterByMetadata(ctx, collection, filters)
	if err != nil {
		return nil, err
	}

	bm := roaring64.New()
	for _, id := range ids {
		bm.Add(id)
	}
	return bm.ToArray(), nil
}

// FindSimilar fans out to every active shard, concatenates the per-shard hit
// lists, sorts by score descending, and truncates to k (spec.md §4.8
// find_similar).
func (co *Coordinator) FindSimilar(ctx context.Context, collection string, query []float32, k int) ([]cluster.SimilarityHit, error) {
	clients := co.activeClients()
	if len(clients) == 0 {
		return nil, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpFindSimilar), clients, func(ctx context.Context, c *shardclient.ShardClient) ([]cluster.SimilarityHit, error) {
		return c.FindSimilar(ctx, collection, query, k)
	})

	var all []cluster.SimilarityHit
	for _, r := range results {
		if r.Err == nil {
			all = append(all, r.Value...)
		}
	}

	slices.SortStableFunc(all, func(a, b cluster.SimilarityHit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return 0
	})

	if k < len(all) {
		all = all[:k]
	}
	return all, nil
}

// GetStatistics fans out to every active shard and sums each shard's
// contribution into one aggregate view.
func (co *Coordinator) GetStatistics(ctx context.Context, collection string) (cluster.Stats, error) {
	clients := co.activeClients()
	if len(clients) == 0 {
		return cluster.Stats{}, vdberrors.New(vdberrors.RemoteUnavailable, "no active shards configured")
	}

	results := broadcast(ctx, co, string(cluster.OpGetStatistics), clients, func(ctx context.Context, c *shardclient.ShardClient) (cluster.Stats, error) {
		return c.GetStatistics(ctx, collection)
	})

	var agg cluster.Stats
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		agg.TotalBuckets += r.Value.TotalBuckets
		agg.TotalVectors += r.Value.TotalVectors
		if r.Value.Dimension != 0 {
			agg.Dimension = r.Value.Dimension
		}
		if r.Value.NumHashes != 0 {
			agg.NumHashes = r.Value.NumHashes
		}
		if r.Value.BucketWidth != 0 {
			agg.BucketWidth = r.Value.BucketWidth
		}
	}
	if agg.TotalBuckets > 0 {
		agg.AvgVectorsPerBucket = float64(agg.TotalVectors) / float64(agg.TotalBuckets)
	}
	return agg, nil
}

// Dump fans out to every active shard and aggregates the per-shard report
// (spec.md §4.8 dump).
func (co *Coordinator) Dump(ctx context.Context) ([]ShardOutcome, error) {
	clients := co.activeClients()
	results := broadcast(ctx, co, string(cluster.OpDump), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.Dump(ctx)
	})
	return outcomesFrom(results), nil
}

// Load fans out to every active shard and aggregates the per-shard report
// (spec.md §4.8 load).
func (co *Coordinator) Load(ctx context.Context) ([]ShardOutcome, error) {
	clients := co.activeClients()
	results := broadcast(ctx, co, string(cluster.OpLoad), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.Load(ctx)
	})
	return outcomesFrom(results), nil
}

// Stop fans out to every active shard; the caller then runs its own local
// shutdown (spec.md §4.11: "stop: all active shards then local"). The
// coordinator holds no vector data, so there is nothing for it to dump.
func (co *Coordinator) Stop(ctx context.Context) ([]ShardOutcome, error) {
	clients := co.activeClients()
	results := broadcast(ctx, co, string(cluster.OpStop), clients, func(ctx context.Context, c *shardclient.ShardClient) (struct{}, error) {
		return struct{}{}, c.Stop(ctx)
	})
	return outcomesFrom(results), nil
}

// Manager exposes the underlying ShardManager, for health monitoring and
// admin endpoints.
func (co *Coordinator) Manager() *ShardManager {
	return co.manager
}

// ShardAddr formats shardID's address for logging, returning an empty
// string if the shard is unknown.
func (co *Coordinator) ShardAddr(shardID string) string {
	desc, err := co.manager.Get(shardID)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", desc.Addr(), desc.Status)
}
