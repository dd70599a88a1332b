// Package lsh implements the locality-sensitive hash used to assign vectors
// to buckets (spec.md §4.1). A Hasher draws its projection vectors and
// offsets once at construction time from a seeded PRNG and is immutable
// afterward, the same "frozen after construction" shape torua's
// ShardRegistry gives its numShards field.
package lsh

import (
	"math/rand"

	"github.com/dreamware/vecdb/internal/vdberrors"
	"github.com/dreamware/vecdb/internal/vectormath"
)

// DefaultSeed is used when a collection does not override it, matching
// spec.md §3's "default seed = 42 unless overridden" so repeated restarts
// reproduce the same bucket ids for the same inputs.
const DefaultSeed int64 = 42

// DefaultNumHashes is the number of scalar projections combined into one
// bucket id when a collection does not override it (spec.md §4.4).
const DefaultNumHashes = 3

// DefaultBucketWidth is the bucket width used when a collection does not
// override it (spec.md §4.4).
const DefaultBucketWidth = 10.0

// Hasher maps a real-valued vector in R^d to a 64-bit bucket id such that
// similar vectors collide with higher probability than dissimilar ones
// under the configured metric (spec.md §4.1).
type Hasher struct {
	projections [][]float32
	offsets     []float32
	metric      vectormath.Metric
	dimension   int
	numHashes   int
	bucketWidth float64
	seed        int64
}

// Config bundles the construction parameters for a Hasher.
type Config struct {
	Metric      vectormath.Metric
	Dimension   int
	NumHashes   int
	BucketWidth float64
	Seed        int64
}

// New draws NumHashes projection vectors in R^Dimension with components
// uniform in [-1, +1] and NumHashes offsets uniform in [0, BucketWidth),
// using Seed to drive the PRNG so the Hasher is fully reproducible across
// restarts (spec.md §3, testable property 1).
func New(cfg Config) (*Hasher, error) {
	if cfg.Dimension <= 0 {
		return nil, vdberrors.New(vdberrors.InvalidArgument, "hasher dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.NumHashes <= 0 {
		return nil, vdberrors.New(vdberrors.InvalidArgument, "hasher num_hashes must be positive, got %d", cfg.NumHashes)
	}
	if cfg.BucketWidth <= 0 {
		return nil, vdberrors.New(vdberrors.InvalidArgument, "hasher bucket_width must be positive, got %f", cfg.BucketWidth)
	}
	if !cfg.Metric.Valid() {
		return nil, vdberrors.New(vdberrors.InvalidArgument, "unknown metric %q", cfg.Metric)
	}

	src := rand.New(rand.NewSource(cfg.Seed))

	projections := make([][]float32, cfg.NumHashes)
	offsets := make([]float32, cfg.NumHashes)
	for i := 0; i < cfg.NumHashes; i++ {
		p := make([]float32, cfg.Dimension)
		for j := 0; j < cfg.Dimension; j++ {
			p[j] = float32(src.Float64()*2 - 1) // uniform in [-1, +1]
		}
		projections[i] = p
		offsets[i] = float32(src.Float64() * cfg.BucketWidth) // uniform in [0, w)
	}

	return &Hasher{
		dimension:   cfg.Dimension,
		numHashes:   cfg.NumHashes,
		bucketWidth: cfg.BucketWidth,
		metric:      cfg.Metric,
		seed:        cfg.Seed,
		projections: projections,
		offsets:     offsets,
	}, nil
}

// Dimension returns the vector dimension this Hasher was constructed for.
func (h *Hasher) Dimension() int { return h.dimension }

// NumHashes returns the number of projections combined into one bucket id.
func (h *Hasher) NumHashes() int { return h.numHashes }

// BucketWidth returns the configured bucket width.
func (h *Hasher) BucketWidth() float64 { return h.bucketWidth }

// Seed returns the PRNG seed this Hasher was constructed with.
func (h *Hasher) Seed() int64 { return h.seed }

// Hash computes the 64-bit bucket id for v (spec.md §4.1). It rejects
// vectors whose length does not equal the Hasher's configured dimension.
func (h *Hasher) Hash(v []float32) (uint64, error) {
	if len(v) != h.dimension {
		return 0, vdberrors.New(vdberrors.DimensionMismatch, "vector has %d dimensions, hasher expects %d", len(v), h.dimension)
	}

	buckets := make([]int64, h.numHashes)
	for i := 0; i < h.numHashes; i++ {
		s := vectormath.Project(h.metric, v, h.projections[i])
		b := int64FloorDiv(float64(s)+float64(h.offsets[i]), h.bucketWidth)
		buckets[i] = b
	}

	return Fold64(buckets), nil
}

// int64FloorDiv computes floor(num/denom) as a signed 64-bit integer,
// matching spec.md §4.1's "floor((s_i + offset_i) / w) as a signed integer".
func int64FloorDiv(num, denom float64) int64 {
	q := num / denom
	f := int64(q)
	if q < 0 && float64(f) != q {
		f--
	}
	return f
}

// Fold64 combines a sequence of signed 64-bit values into one 64-bit hash
// using the polynomial fold spec.md §4.1 prescribes: H starts at 0, M
// starts at 1; for each value b, H += b*M (cast to unsigned, wrapping), then
// M *= 31 (wrapping). This is also reused by internal/coordinator's
// HashBased routing strategy as the "same 64-bit fold used by the Hasher's
// combiner" spec.md §4.7 asks for.
func Fold64(values []int64) uint64 {
	var h, m uint64 = 0, 1
	for _, b := range values {
		h += uint64(b) * m
		m *= 31
	}
	return h
}

// FoldString folds a string's bytes through the same combiner Fold64 uses,
// giving routing strategies a stable 64-bit hash of a collection name or key
// without introducing a second hash family into the codebase.
func FoldString(s string) uint64 {
	values := make([]int64, len(s))
	for i, b := range []byte(s) {
		values[i] = int64(b)
	}
	return Fold64(values)
}
