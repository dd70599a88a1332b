// Package engine implements LocalEngine, the composition of a
// CollectionRegistry and Storage that exposes the data-plane operations
// used identically by shard nodes and the fallback non-sharded mode
// (spec.md §4.6). This is the only surface a shard node's RPC handler calls
// into.
//
// The operation-counter shape — atomically updated counters alongside the
// data operations that drive them — follows torua's internal/shard.Shard,
// which tracks Gets/Puts/Deletes the same way.
package engine

import (
	"sync/atomic"

	"github.com/dreamware/vecdb/internal/bucket"
	"github.com/dreamware/vecdb/internal/bucketindex"
	"github.com/dreamware/vecdb/internal/collection"
	"github.com/dreamware/vecdb/internal/storage"
	"github.com/dreamware/vecdb/internal/vectormath"
)

// OperationCounters tracks the count of each data-plane operation this
// engine has served, updated atomically so reporting never blocks a
// concurrent mutation.
type OperationCounters struct {
	Inserts  uint64
	Gets     uint64
	Updates  uint64
	Deletes  uint64
	Filters  uint64
	Searches uint64
}

// LocalEngine composes a CollectionRegistry with Storage (spec.md §4.6).
type LocalEngine struct {
	registry *collection.Registry
	storage  *storage.Storage
	counters OperationCounters
}

// New creates a LocalEngine backed by reg and store.
func New(reg *collection.Registry, store *storage.Storage) *LocalEngine {
	return &LocalEngine{registry: reg, storage: store}
}

// CreateCollection creates a new collection with the given name, metric,
// and dimension, using the package default Hasher parameters.
func (e *LocalEngine) CreateCollection(name string, metric vectormath.Metric, dimension int) (*collection.Collection, error) {
	col, err := collection.New(name, metric, dimension, collection.HasherConfig{})
	if err != nil {
		return nil, err
	}
	if err := e.registry.Create(col); err != nil {
		return nil, err
	}
	return col, nil
}

// GetCollection returns the named collection.
func (e *LocalEngine) GetCollection(name string) (*collection.Collection, error) {
	return e.registry.Get(name)
}

// GetAllCollections returns every registered collection.
func (e *LocalEngine) GetAllCollections() []*collection.Collection {
	return e.registry.List()
}

// DeleteCollection removes a collection by name.
func (e *LocalEngine) DeleteCollection(name string) error {
	return e.registry.Delete(name)
}

// AddVector inserts data+metadata into the named collection.
func (e *LocalEngine) AddVector(collectionName string, data []float32, metadata map[string]string) (uint64, error) {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return 0, err
	}
	id, err := col.Insert(data, metadata)
	if err != nil {
		return 0, err
	}
	atomic.AddUint64(&e.counters.Inserts, 1)
	return id, nil
}

// GetVector returns a vector by id from the named collection.
func (e *LocalEngine) GetVector(collectionName string, vectorID uint64) (bucket.Vector, error) {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return bucket.Vector{}, err
	}
	v, err := col.Get(vectorID)
	if err != nil {
		return bucket.Vector{}, err
	}
	atomic.AddUint64(&e.counters.Gets, 1)
	return v, nil
}

// UpdateVector mutates a vector's data and/or metadata in place, migrating
// it across buckets if required.
func (e *LocalEngine) UpdateVector(collectionName string, vectorID uint64, newData []float32, newMetadata map[string]string) error {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return err
	}
	if err := col.Update(vectorID, newData, newMetadata); err != nil {
		return err
	}
	atomic.AddUint64(&e.counters.Updates, 1)
	return nil
}

// DeleteVector removes a vector by id from the named collection.
func (e *LocalEngine) DeleteVector(collectionName string, vectorID uint64) error {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return err
	}
	if err := col.Delete(vectorID); err != nil {
		return err
	}
	atomic.AddUint64(&e.counters.Deletes, 1)
	return nil
}

// FilterByMetadata returns the ids of every vector in the named collection
// whose metadata is a superset of filters.
func (e *LocalEngine) FilterByMetadata(collectionName string, filters map[string]string) ([]uint64, error) {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&e.counters.Filters, 1)
	return col.FilterByMetadata(filters), nil
}

// FindSimilar runs a top-k similarity search against the named collection.
func (e *LocalEngine) FindSimilar(collectionName string, query []float32, k int) ([]bucketindex.Match, error) {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return nil, err
	}
	matches, err := col.Similarity(query, k)
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&e.counters.Searches, 1)
	return matches, nil
}

// CollectionStats returns the named collection's BucketIndex statistics
// (spec.md §4.3 Statistics, wired end to end per the GetStatistics
// operation).
func (e *LocalEngine) CollectionStats(collectionName string) (bucketindex.Stats, error) {
	col, err := e.registry.Get(collectionName)
	if err != nil {
		return bucketindex.Stats{}, err
	}
	return col.Stats(), nil
}

// Counters returns a snapshot of this engine's operation counters.
func (e *LocalEngine) Counters() OperationCounters {
	return OperationCounters{
		Inserts:  atomic.LoadUint64(&e.counters.Inserts),
		Gets:     atomic.LoadUint64(&e.counters.Gets),
		Updates:  atomic.LoadUint64(&e.counters.Updates),
		Deletes:  atomic.LoadUint64(&e.counters.Deletes),
		Filters:  atomic.LoadUint64(&e.counters.Filters),
		Searches: atomic.LoadUint64(&e.counters.Searches),
	}
}

// Dump persists every collection to Storage in full (spec.md §4.5/§4.11).
func (e *LocalEngine) Dump() error {
	return e.storage.Dump(e.registry)
}

// Load reconstructs the registry from whatever Storage last dumped.
func (e *LocalEngine) Load() error {
	return e.storage.Load(e.registry)
}

// Registry exposes the underlying CollectionRegistry for callers that need
// the raw registry rather than a LocalEngine-wrapped view. The shard RPC
// handler's get_all_collections path uses GetAllCollections, not this.
func (e *LocalEngine) Registry() *collection.Registry {
	return e.registry
}
