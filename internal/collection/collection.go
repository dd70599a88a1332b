// Package collection implements Collection and CollectionRegistry (spec.md
// §4.4). A Collection is a named logical namespace wrapping one BucketIndex
// with a fixed dimension and metric; CollectionRegistry is the per-node
// name -> Collection map torua's internal/registry.ShardRegistry is grounded
// on for its own name -> shard map.
package collection

import (
	"sync"

	"github.com/dreamware/vecdb/internal/bucket"
	"github.com/dreamware/vecdb/internal/bucketindex"
	"github.com/dreamware/vecdb/internal/lsh"
	"github.com/dreamware/vecdb/internal/vdberrors"
	"github.com/dreamware/vecdb/internal/vectormath"
)

// HasherConfig captures the collection-creation-time Hasher overrides
// spec.md §3 allows (num_hashes, bucket_width, seed), defaulting to the
// values internal/lsh declares when the caller leaves them at zero.
type HasherConfig struct {
	NumHashes   int
	BucketWidth float64
	Seed        int64
}

func (c HasherConfig) withDefaults() HasherConfig {
	if c.NumHashes <= 0 {
		c.NumHashes = lsh.DefaultNumHashes
	}
	if c.BucketWidth <= 0 {
		c.BucketWidth = lsh.DefaultBucketWidth
	}
	if c.Seed == 0 {
		c.Seed = lsh.DefaultSeed
	}
	return c
}

// Collection is a named logical namespace with a fixed dimension and metric,
// wrapping one BucketIndex (spec.md §4.4).
type Collection struct {
	index     *bucketindex.BucketIndex
	Name      string
	Metric    vectormath.Metric
	Dimension int
	NumHashes int
	Width     float64
	Seed      int64
}

// New constructs a Collection, building its Hasher from cfg (or the package
// defaults if cfg is the zero value).
func New(name string, metric vectormath.Metric, dimension int, cfg HasherConfig) (*Collection, error) {
	if dimension <= 0 {
		return nil, vdberrors.New(vdberrors.InvalidArgument, "collection %q: dimension must be positive, got %d", name, dimension)
	}
	if !metric.Valid() {
		return nil, vdberrors.New(vdberrors.InvalidArgument, "collection %q: unknown metric %q", name, metric)
	}

	cfg = cfg.withDefaults()
	h, err := lsh.New(lsh.Config{
		Metric:      metric,
		Dimension:   dimension,
		NumHashes:   cfg.NumHashes,
		BucketWidth: cfg.BucketWidth,
		Seed:        cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	return &Collection{
		Name:      name,
		Metric:    metric,
		Dimension: dimension,
		NumHashes: cfg.NumHashes,
		Width:     cfg.BucketWidth,
		Seed:      cfg.Seed,
		index:     bucketindex.New(h),
	}, nil
}

// Insert validates data against the collection's dimension and delegates to
// the BucketIndex.
func (c *Collection) Insert(data []float32, metadata map[string]string) (uint64, error) {
	if err := vectormath.CheckDimension(data, c.Dimension); err != nil {
		return 0, err
	}
	return c.index.Insert(data, metadata)
}

// InsertVector inserts an already-constructed vector, preserving its id and
// timestamp rather than minting new ones. Used by Storage's Load path.
func (c *Collection) InsertVector(v bucket.Vector) error {
	if err := vectormath.CheckDimension(v.Data, c.Dimension); err != nil {
		return err
	}
	return c.index.InsertVector(v)
}

// Get returns a copy of the vector with the given id.
func (c *Collection) Get(vectorID uint64) (bucket.Vector, error) {
	return c.index.Get(vectorID)
}

// Delete removes a vector by id.
func (c *Collection) Delete(vectorID uint64) error {
	return c.index.Delete(vectorID)
}

// Update validates newData (if present) against the collection's dimension
// and delegates to the BucketIndex.
func (c *Collection) Update(vectorID uint64, newData []float32, newMetadata map[string]string) error {
	if newData != nil {
		if err := vectormath.CheckDimension(newData, c.Dimension); err != nil {
			return err
		}
	}
	return c.index.Update(vectorID, newData, newMetadata)
}

// Similarity validates query against the collection's dimension and
// delegates to the BucketIndex.
func (c *Collection) Similarity(query []float32, k int) ([]bucketindex.Match, error) {
	if err := vectormath.CheckDimension(query, c.Dimension); err != nil {
		return nil, err
	}
	return c.index.Similarity(query, k)
}

// FilterByMetadata delegates to the BucketIndex.
func (c *Collection) FilterByMetadata(filters map[string]string) []uint64 {
	return c.index.FilterByMetadata(filters)
}

// Stats delegates to the BucketIndex.
func (c *Collection) Stats() bucketindex.Stats {
	return c.index.Stats()
}

// Buckets exposes the underlying bucket map for Storage's dump path.
func (c *Collection) Buckets() map[uint64]*bucket.Bucket {
	return c.index.Buckets()
}

// Registry is the per-node name -> Collection map (spec.md §4.4
// CollectionRegistry).
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]*Collection)}
}

// Create inserts col only if no collection with its name already exists.
func (r *Registry) Create(col *Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[col.Name]; exists {
		return vdberrors.New(vdberrors.AlreadyExists, "collection %q already exists", col.Name)
	}
	r.collections[col.Name] = col
	return nil
}

// Delete removes a collection by name. There is no rename operation
// (spec.md §4.4).
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[name]; !exists {
		return vdberrors.New(vdberrors.NotFound, "collection %q not found", name)
	}
	delete(r.collections, name)
	return nil
}

// Get returns the named collection.
func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	col, exists := r.collections[name]
	if !exists {
		return nil, vdberrors.New(vdberrors.NotFound, "collection %q not found", name)
	}
	return col, nil
}

// List returns every collection currently registered, in no particular
// order.
func (r *Registry) List() []*Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Collection, 0, len(r.collections))
	for _, col := range r.collections {
		out = append(out, col)
	}
	return out
}

// Names returns the names of every registered collection.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.collections))
	for name := range r.collections {
		out = append(out, name)
	}
	return out
}
