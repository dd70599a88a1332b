// Package bucketindex implements BucketIndex, the per-collection map of LSH
// bucket id to bucket.Bucket (spec.md §4.3). It owns the collection's Hasher
// and is the layer responsible for routing a vector to its bucket, migrating
// it across buckets on update, and falling back to a full scan when the
// primary bucket does not hold enough candidates to satisfy a search.
//
// The shape — a map guarded by one RWMutex, with an auxiliary cache that is
// an optimization rather than part of the contract — follows torua's
// internal/registry.ShardRegistry, which guards its shard map the same way.
package bucketindex

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/slices"

	"github.com/dreamware/vecdb/internal/bucket"
	"github.com/dreamware/vecdb/internal/lsh"
	"github.com/dreamware/vecdb/internal/vdberrors"
)

// reverseCacheSize bounds the optional vector_id -> bucket_id lookup table
// so Delete/Update never pay for an unbounded cache. A miss always falls
// back to the spec-required O(#buckets) scan, so correctness never depends
// on this cache's hit rate (spec.md §4.3/§9).
const reverseCacheSize = 100_000

// Stats reports the aggregate shape of a BucketIndex (spec.md §4.3).
type Stats struct {
	TotalBuckets        int
	TotalVectors        int
	Dimension           int
	NumHashes           int
	BucketWidth         float64
	AvgVectorsPerBucket float64
}

// Match is one similarity-search hit, tagged with the bucket and in-bucket
// index it came from (spec.md §6's find_similar payload addresses a hit as
// (bucket_id, vector_index)) so callers (and tests) can verify the
// primary-bucket-vs-fallback path taken.
type Match struct {
	Vector      bucket.Vector
	BucketID    uint64
	VectorIndex int
	Score       float32
}

// BucketIndex owns every bucket.Bucket for one collection plus the Hasher
// used to route vectors into them.
type BucketIndex struct {
	hasher    *lsh.Hasher
	buckets   map[uint64]*bucket.Bucket
	reverse   *lru.Cache[uint64, uint64]
	dimension int
}

// New creates an empty BucketIndex driven by hasher.
func New(hasher *lsh.Hasher) *BucketIndex {
	cache, _ := lru.New[uint64, uint64](reverseCacheSize)
	return &BucketIndex{
		hasher:    hasher,
		buckets:   make(map[uint64]*bucket.Bucket),
		reverse:   cache,
		dimension: hasher.Dimension(),
	}
}

// Insert routes data into its LSH bucket, creating the bucket if absent, and
// returns the new vector's id (spec.md §4.3 Insert).
func (bi *BucketIndex) Insert(data []float32, metadata map[string]string) (uint64, error) {
	if len(data) != bi.dimension {
		return 0, vdberrors.New(vdberrors.DimensionMismatch, "vector has %d dimensions, collection expects %d", len(data), bi.dimension)
	}

	v := bucket.NewVector(data, metadata)
	b, err := bi.hasher.Hash(v.Data)
	if err != nil {
		return 0, err
	}

	bi.bucketFor(b).Insert(v)
	bi.reverse.Add(v.ID, b)
	return v.ID, nil
}

// InsertVector routes an already-constructed vector (preserving its id and
// timestamp) into its LSH bucket. Storage's Load path uses this instead of
// Insert so reloading a dump does not mint new ids or timestamps for
// vectors that already have stable ones (spec.md §3, §4.5).
func (bi *BucketIndex) InsertVector(v bucket.Vector) error {
	if len(v.Data) != bi.dimension {
		return vdberrors.New(vdberrors.DimensionMismatch, "vector has %d dimensions, collection expects %d", len(v.Data), bi.dimension)
	}

	b, err := bi.hasher.Hash(v.Data)
	if err != nil {
		return err
	}

	bi.bucketFor(b).Insert(v)
	bi.reverse.Add(v.ID, b)
	return nil
}

// bucketFor returns the bucket for id, creating it if absent. Callers must
// not hold any lock of their own; Bucket internally protects its state, and
// the map itself is only ever mutated by BucketIndex's exported methods,
// which are not meant to be called concurrently with each other for the
// same collection (the caller, internal/collection.Collection, serializes
// them per spec.md §5).
func (bi *BucketIndex) bucketFor(id uint64) *bucket.Bucket {
	b, ok := bi.buckets[id]
	if !ok {
		b = bucket.New(id)
		bi.buckets[id] = b
	}
	return b
}

// locate finds the bucket id currently holding vectorID, consulting the
// reverse-lookup cache first and falling back to a full scan on a miss
// (spec.md §4.3 Delete).
func (bi *BucketIndex) locate(vectorID uint64) (uint64, bool) {
	if cached, ok := bi.reverse.Get(vectorID); ok {
		if b, ok := bi.buckets[cached]; ok && b.Contains(vectorID) {
			return cached, true
		}
		bi.reverse.Remove(vectorID)
	}

	for id, b := range bi.buckets {
		if b.Contains(vectorID) {
			bi.reverse.Add(vectorID, id)
			return id, true
		}
	}
	return 0, false
}

// Delete removes vectorID from whichever bucket holds it, dropping the
// bucket from the index if it becomes empty (spec.md §4.3 Delete).
func (bi *BucketIndex) Delete(vectorID uint64) error {
	id, ok := bi.locate(vectorID)
	if !ok {
		return vdberrors.New(vdberrors.NotFound, "vector %d not found", vectorID)
	}

	b := bi.buckets[id]
	if err := b.Remove(vectorID); err != nil {
		return err
	}
	bi.reverse.Remove(vectorID)

	if b.Size() == 0 {
		delete(bi.buckets, id)
	}
	return nil
}

// Update locates vectorID's current bucket, applies the given field updates,
// and migrates the vector to a new bucket if its updated data hashes
// elsewhere (spec.md §4.3 Update).
func (bi *BucketIndex) Update(vectorID uint64, newData []float32, newMetadata map[string]string) error {
	if newData != nil && len(newData) != bi.dimension {
		return vdberrors.New(vdberrors.DimensionMismatch, "vector has %d dimensions, collection expects %d", len(newData), bi.dimension)
	}

	currentID, ok := bi.locate(vectorID)
	if !ok {
		return vdberrors.New(vdberrors.NotFound, "vector %d not found", vectorID)
	}
	current := bi.buckets[currentID]

	v, err := current.Get(vectorID)
	if err != nil {
		return err
	}

	dataForHash := v.Data
	if newData != nil {
		dataForHash = newData
	}
	targetID, err := bi.hasher.Hash(dataForHash)
	if err != nil {
		return err
	}

	if targetID == currentID {
		return current.Update(vectorID, newData, newMetadata)
	}

	taken, err := current.RemoveAndTake(vectorID)
	if err != nil {
		return err
	}
	if current.Size() == 0 {
		delete(bi.buckets, currentID)
	}

	if newData != nil {
		taken.Data = newData
	}
	if newMetadata != nil {
		taken.Metadata = newMetadata
	}
	bi.bucketFor(targetID).Insert(taken)
	bi.reverse.Add(vectorID, targetID)
	return nil
}

// Similarity runs a top-k similarity search against query, taking the
// primary-bucket fast path when it holds at least k candidates and falling
// back to a full scan across every bucket otherwise (spec.md §4.3 Similarity
// search).
func (bi *BucketIndex) Similarity(query []float32, k int) ([]Match, error) {
	if len(query) != bi.dimension {
		return nil, vdberrors.New(vdberrors.DimensionMismatch, "query has %d dimensions, collection expects %d", len(query), bi.dimension)
	}

	primaryID, err := bi.hasher.Hash(query)
	if err != nil {
		return nil, err
	}

	if primary, ok := bi.buckets[primaryID]; ok && primary.Size() >= k {
		return bi.matchesFromBucket(primary, primaryID, query, k), nil
	}

	return bi.fallbackSimilarity(query, k), nil
}

func (bi *BucketIndex) matchesFromBucket(b *bucket.Bucket, bucketID uint64, query []float32, k int) []Match {
	scored := b.Similarity(query, k)
	out := make([]Match, 0, len(scored))
	for _, s := range scored {
		v, err := b.VectorAt(s.Index)
		if err != nil {
			continue
		}
		out = append(out, Match{Vector: v, BucketID: bucketID, VectorIndex: s.Index, Score: s.Score})
	}
	return out
}

// fallbackSimilarity scans every bucket, flattens the per-bucket top-k
// results, and truncates to the global top-k, tie-breaking by ascending
// bucket id then ascending in-bucket index (spec.md §4.3).
func (bi *BucketIndex) fallbackSimilarity(query []float32, k int) []Match {
	ids := make([]uint64, 0, len(bi.buckets))
	for id := range bi.buckets {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var all []Match
	type ranked struct {
		match     Match
		bucketIdx int
	}
	var rankedAll []ranked

	for _, id := range ids {
		b := bi.buckets[id]
		scored := b.Similarity(query, b.Size())
		for _, s := range scored {
			v, err := b.VectorAt(s.Index)
			if err != nil {
				continue
			}
			m := Match{Vector: v, BucketID: id, VectorIndex: s.Index, Score: s.Score}
			rankedAll = append(rankedAll, ranked{match: m, bucketIdx: s.Index})
		}
	}

	slices.SortStableFunc(rankedAll, func(a, b ranked) int {
		if a.match.Score != b.match.Score {
			if a.match.Score > b.match.Score {
				return -1
			}
			return 1
		}
		if a.match.BucketID != b.match.BucketID {
			if a.match.BucketID < b.match.BucketID {
				return -1
			}
			return 1
		}
		return a.bucketIdx - b.bucketIdx
	})

	for _, r := range rankedAll {
		all = append(all, r.match)
	}
	if k < len(all) {
		all = all[:k]
	}
	return all
}

// FilterByMetadata returns the union of every bucket's Filter results
// (spec.md §4.3 "Filter by metadata").
func (bi *BucketIndex) FilterByMetadata(filters map[string]string) []uint64 {
	var out []uint64
	for _, b := range bi.buckets {
		out = append(out, b.Filter(filters)...)
	}
	return out
}

// Stats reports the aggregate shape of the index (spec.md §4.3 Statistics).
func (bi *BucketIndex) Stats() Stats {
	total := 0
	for _, b := range bi.buckets {
		total += b.Size()
	}

	avg := 0.0
	if len(bi.buckets) > 0 {
		avg = float64(total) / float64(len(bi.buckets))
	}

	return Stats{
		TotalBuckets:        len(bi.buckets),
		TotalVectors:        total,
		Dimension:           bi.dimension,
		NumHashes:           bi.hasher.NumHashes(),
		BucketWidth:         bi.hasher.BucketWidth(),
		AvgVectorsPerBucket: avg,
	}
}

// Buckets returns every bucket currently in the index, for Storage's dump
// path. Callers must not mutate the returned buckets directly.
func (bi *BucketIndex) Buckets() map[uint64]*bucket.Bucket {
	return bi.buckets
}

// Get returns a copy of the vector with the given id, locating its bucket
// via the same path Delete/Update use.
func (bi *BucketIndex) Get(vectorID uint64) (bucket.Vector, error) {
	id, ok := bi.locate(vectorID)
	if !ok {
		return bucket.Vector{}, vdberrors.New(vdberrors.NotFound, "vector %d not found", vectorID)
	}
	return bi.buckets[id].Get(vectorID)
}
