// Package bucket implements Vector and Bucket, the two leaf data structures
// of the per-shard LSH index (spec.md §4.2). A Bucket is an ordered,
// insertion-order-preserving container of Vectors sharing one LSH bucket id;
// BucketIndex (internal/bucketindex) owns a map of these.
//
// The shape — a struct wrapping an RWMutex-protected slice/map — follows
// torua's internal/shard.Shard, which wraps a
// storage.Store the same way a Bucket wraps its vectors.
package bucket

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dreamware/vecdb/internal/lsh"
	"github.com/dreamware/vecdb/internal/vdberrors"
	"github.com/dreamware/vecdb/internal/vectormath"
)

// Vector is one stored embedding plus its metadata (spec.md §3).
type Vector struct {
	Metadata  map[string]string
	Data      []float32
	Timestamp int64
	ID        uint64
}

// Clone returns a deep copy of v, so callers that hold a Vector returned from
// a Bucket cannot mutate the bucket's internal state through it.
func (v Vector) Clone() Vector {
	data := make([]float32, len(v.Data))
	copy(data, v.Data)

	meta := make(map[string]string, len(v.Metadata))
	for k, val := range v.Metadata {
		meta[k] = val
	}

	return Vector{ID: v.ID, Data: data, Timestamp: v.Timestamp, Metadata: meta}
}

// ComputeID derives the content-addressed id for a vector: the 64-bit fold
// of its data bit-pattern, timestamp, and metadata in key-sorted order
// (spec.md §3). Two vectors with bit-identical data, timestamp, and
// metadata always produce the same id; this is what makes duplicate-id
// insert an idempotent replace rather than an error (see DESIGN.md).
func ComputeID(data []float32, timestamp int64, metadata map[string]string) uint64 {
	values := make([]int64, 0, len(data)+1+2*len(metadata))

	for _, f := range data {
		values = append(values, int64(math.Float32bits(f)))
	}
	values = append(values, timestamp)

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, b := range []byte(k) {
			values = append(values, int64(b))
		}
		for _, b := range []byte(metadata[k]) {
			values = append(values, int64(b))
		}
	}

	return lsh.Fold64(values)
}

// NewVector builds a Vector with its id computed per ComputeID, stamping the
// current time as Timestamp.
func NewVector(data []float32, metadata map[string]string) Vector {
	ts := time.Now().Unix()
	if metadata == nil {
		metadata = map[string]string{}
	}
	id := ComputeID(data, ts, metadata)
	return Vector{ID: id, Data: data, Timestamp: ts, Metadata: metadata}
}

// ScoredIndex is one result of a similarity scan: the position of the
// matching vector within the bucket at scan time, and its score against the
// query.
type ScoredIndex struct {
	Index int
	Score float32
}

// Bucket is an ordered container of vectors sharing one LSH bucket id
// (spec.md §4.2).
type Bucket struct {
	order     []uint64
	vectors   map[uint64]Vector
	mu        sync.RWMutex
	ID        uint64
	CreatedAt int64
	UpdatedAt int64
}

// New creates an empty Bucket with the given id, stamping CreatedAt and
// UpdatedAt to the current time.
func New(id uint64) *Bucket {
	now := time.Now().Unix()
	return &Bucket{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		vectors:   make(map[uint64]Vector),
	}
}

// Insert appends v to the bucket, updating UpdatedAt. If a vector with the
// same id already exists, it is replaced in place (its original insertion
// position is kept) rather than appended a second time — see ComputeID's
// doc comment on duplicate-id semantics.
func (b *Bucket) Insert(v Vector) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.vectors[v.ID]; !exists {
		b.order = append(b.order, v.ID)
	}
	b.vectors[v.ID] = v
	b.UpdatedAt = time.Now().Unix()
}

// Contains reports whether id is present in the bucket.
func (b *Bucket) Contains(id uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.vectors[id]
	return ok
}

// Get returns a copy of the vector with the given id.
func (b *Bucket) Get(id uint64) (Vector, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.vectors[id]
	if !ok {
		return Vector{}, vdberrors.New(vdberrors.NotFound, "vector %d not in bucket %d", id, b.ID)
	}
	return v.Clone(), nil
}

// Size returns the number of vectors currently in the bucket.
func (b *Bucket) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Remove deletes the vector with the given id.
func (b *Bucket) Remove(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(id)
}

// RemoveAndTake deletes the vector with the given id and returns its value,
// used by BucketIndex when migrating a vector to a different bucket on
// update (spec.md §4.3 step 5).
func (b *Bucket) RemoveAndTake(id uint64) (Vector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.vectors[id]
	if !ok {
		return Vector{}, vdberrors.New(vdberrors.NotFound, "vector %d not in bucket %d", id, b.ID)
	}
	if err := b.removeLocked(id); err != nil {
		return Vector{}, err
	}
	return v, nil
}

func (b *Bucket) removeLocked(id uint64) error {
	if _, ok := b.vectors[id]; !ok {
		return vdberrors.New(vdberrors.NotFound, "vector %d not in bucket %d", id, b.ID)
	}
	delete(b.vectors, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.UpdatedAt = time.Now().Unix()
	return nil
}

// Update mutates the vector with the given id in place, without moving it
// across buckets — the BucketIndex decides whether a migration is needed
// (spec.md §4.2/§4.3). A nil newData or newMetadata leaves that field
// unchanged.
func (b *Bucket) Update(id uint64, newData []float32, newMetadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.vectors[id]
	if !ok {
		return vdberrors.New(vdberrors.NotFound, "vector %d not in bucket %d", id, b.ID)
	}

	if newData != nil {
		v.Data = newData
	}
	if newMetadata != nil {
		v.Metadata = newMetadata
	}
	b.vectors[id] = v
	b.UpdatedAt = time.Now().Unix()
	return nil
}

// Similarity computes the cosine similarity between query and every
// vector's data in insertion order, returning the top-k by descending
// score with a stable tie-break (lower index wins) (spec.md §4.2).
func (b *Bucket) Similarity(query []float32, k int) []ScoredIndex {
	b.mu.RLock()
	defer b.mu.RUnlock()

	scored := make([]ScoredIndex, len(b.order))
	for i, id := range b.order {
		scored[i] = ScoredIndex{Index: i, Score: vectormath.CosineSimilarity(query, b.vectors[id].Data)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// VectorAt returns a copy of the vector stored at the given insertion-order
// index, used to resolve a ScoredIndex back to a Vector.
func (b *Bucket) VectorAt(index int) (Vector, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if index < 0 || index >= len(b.order) {
		return Vector{}, vdberrors.New(vdberrors.NotFound, "no vector at index %d in bucket %d", index, b.ID)
	}
	return b.vectors[b.order[index]].Clone(), nil
}

// Filter returns the ids of every vector whose metadata is a superset of
// filters under exact key/value equality (spec.md §4.2).
func (b *Bucket) Filter(filters map[string]string) []uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matches []uint64
	for _, id := range b.order {
		v := b.vectors[id]
		if matchesFilter(v.Metadata, filters) {
			matches = append(matches, id)
		}
	}
	return matches
}

func matchesFilter(metadata, filters map[string]string) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Vectors returns a snapshot copy of every vector currently in the bucket,
// in insertion order. Used by Storage when dumping a bucket to disk.
func (b *Bucket) Vectors() []Vector {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Vector, len(b.order))
	for i, id := range b.order {
		out[i] = b.vectors[id].Clone()
	}
	return out
}
