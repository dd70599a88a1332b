package storage

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/dreamware/vecdb/internal/bucket"
	"github.com/dreamware/vecdb/internal/collection"
	"github.com/dreamware/vecdb/internal/lsh"
	"github.com/dreamware/vecdb/internal/vdberrors"
	"github.com/dreamware/vecdb/internal/vectormath"
)

// vectorsDirName is the one reserved directory name under a bucket
// directory; Load skips it when enumerating bucket-id subdirectories of a
// collection directory (spec.md §4.5).
const vectorsDirName = "vectors"

// bucketHeaderFile is the fixed filename of a bucket's header record.
const bucketHeaderFile = "0.bin"

// Storage persists collections, buckets, and vectors under root on fs
// (spec.md §4.5). root is typically "<data_root>/storage".
type Storage struct {
	fs   afero.Fs
	root string
}

// New creates a Storage rooted at root on fs.
func New(fs afero.Fs, root string) *Storage {
	return &Storage{fs: fs, root: root}
}

func (s *Storage) collectionDir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Storage) bucketDir(collectionName string, bucketID uint64) string {
	return filepath.Join(s.collectionDir(collectionName), strconv.FormatUint(bucketID, 10))
}

func (s *Storage) vectorsDir(collectionName string, bucketID uint64) string {
	return filepath.Join(s.bucketDir(collectionName, bucketID), vectorsDirName)
}

func (s *Storage) vectorPath(collectionName string, bucketID, vectorID uint64) string {
	return filepath.Join(s.vectorsDir(collectionName, bucketID), strconv.FormatUint(vectorID, 10)+".bin")
}

// SaveCollection writes col's header to <collection>/<hash>.bin, creating
// the collection directory if it does not already exist (spec.md §4.5,
// directory creation is idempotent).
func (s *Storage) SaveCollection(col *collection.Collection) error {
	dir := s.collectionDir(col.Name)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "create collection directory %q", dir)
	}

	h := collectionHeader{
		Name:      col.Name,
		ID:        lsh.FoldString(col.Name),
		Metric:    string(col.Metric),
		Dimension: col.Dimension,
	}
	path := filepath.Join(dir, strconv.FormatUint(h.ID, 10)+".bin")
	if err := afero.WriteFile(s.fs, path, h.encode(), 0o644); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "write collection header %q", path)
	}
	return nil
}

// SaveBucket writes b's header to <collection>/<bucket_id>/0.bin.
func (s *Storage) SaveBucket(collectionName string, b *bucket.Bucket) error {
	dir := s.bucketDir(collectionName, b.ID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "create bucket directory %q", dir)
	}

	h := bucketHeader{ID: b.ID, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}
	path := filepath.Join(dir, bucketHeaderFile)
	if err := afero.WriteFile(s.fs, path, h.encode(), 0o644); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "write bucket header %q", path)
	}
	return nil
}

// SaveVectorToBucket writes v's payload to
// <collection>/<bucket_id>/vectors/<vector_id>.bin.
func (s *Storage) SaveVectorToBucket(collectionName string, bucketID uint64, v bucket.Vector) error {
	dir := s.vectorsDir(collectionName, bucketID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "create vectors directory %q", dir)
	}

	rec := vectorRecord{Data: v.Data, Timestamp: v.Timestamp, Metadata: v.Metadata, ID: v.ID}
	path := s.vectorPath(collectionName, bucketID, v.ID)
	if err := afero.WriteFile(s.fs, path, rec.encode(), 0o644); err != nil {
		return vdberrors.Wrap(vdberrors.IO, err, "write vector %q", path)
	}
	return nil
}

// ReadCollection reads and decodes a collection's header. It returns
// NotFound if the collection directory holds no header file.
func (s *Storage) ReadCollection(name string) (*CollectionHeader, error) {
	dir := s.collectionDir(name)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, vdberrors.New(vdberrors.NotFound, "collection %q not found", name)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		if _, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".bin"), 10, 64); err != nil {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, vdberrors.Wrap(vdberrors.IO, err, "read collection header %q", name)
		}
		h, err := decodeCollectionHeader(data)
		if err != nil {
			return nil, err
		}
		return &CollectionHeader{Name: h.Name, ID: h.ID, Metric: h.Metric, Dimension: h.Dimension}, nil
	}
	return nil, vdberrors.New(vdberrors.NotFound, "collection %q has no header file", name)
}

// CollectionHeader is the decoded form of a persisted collection header.
type CollectionHeader struct {
	Name      string
	Metric    string
	ID        uint64
	Dimension int
}

// ReadBucket reads and decodes a bucket's header.
func (s *Storage) ReadBucket(collectionName string, bucketID uint64) (*BucketHeader, error) {
	path := filepath.Join(s.bucketDir(collectionName, bucketID), bucketHeaderFile)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, vdberrors.New(vdberrors.NotFound, "bucket %d of collection %q not found", bucketID, collectionName)
	}
	h, err := decodeBucketHeader(data)
	if err != nil {
		return nil, err
	}
	return &BucketHeader{ID: h.ID, CreatedAt: h.CreatedAt, UpdatedAt: h.UpdatedAt}, nil
}

// BucketHeader is the decoded form of a persisted bucket header.
type BucketHeader struct {
	ID        uint64
	CreatedAt int64
	UpdatedAt int64
}

// ReadVectorFromBucket reads and decodes one vector's payload.
func (s *Storage) ReadVectorFromBucket(collectionName string, bucketID, vectorID uint64) (bucket.Vector, error) {
	path := s.vectorPath(collectionName, bucketID, vectorID)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return bucket.Vector{}, vdberrors.New(vdberrors.NotFound, "vector %d not found in bucket %d", vectorID, bucketID)
	}
	rec, err := decodeVectorRecord(data)
	if err != nil {
		return bucket.Vector{}, err
	}
	return bucket.Vector{ID: rec.ID, Data: rec.Data, Timestamp: rec.Timestamp, Metadata: rec.Metadata}, nil
}

// ListCollections lists every collection directory under root.
func (s *Storage) ListCollections() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if s.fs.MkdirAll(s.root, 0o755) == nil {
			return []string{}, nil
		}
		return nil, vdberrors.Wrap(vdberrors.IO, err, "list collections under %q", s.root)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListBucketIDs lists every bucket-id subdirectory of a collection
// directory, skipping the reserved "vectors" name and anything that does
// not parse as a decimal u64 (spec.md §4.5 Load).
func (s *Storage) ListBucketIDs(collectionName string) ([]uint64, error) {
	dir := s.collectionDir(collectionName)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, vdberrors.Wrap(vdberrors.IO, err, "list buckets of collection %q", collectionName)
	}

	var ids []uint64
	for _, e := range entries {
		if !e.IsDir() || e.Name() == vectorsDirName {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListVectorIDs lists every vector id stored under a bucket's vectors
// directory.
func (s *Storage) ListVectorIDs(collectionName string, bucketID uint64) ([]uint64, error) {
	dir := s.vectorsDir(collectionName, bucketID)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, vdberrors.Wrap(vdberrors.IO, err, "list vectors of bucket %d", bucketID)
	}

	var ids []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".bin"), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Dump rewrites every collection in reg to disk in full: the collection
// header, then each bucket header, then each vector (spec.md §4.5 "Full
// dump of a collection"). It is not incremental.
func (s *Storage) Dump(reg *collection.Registry) error {
	for _, col := range reg.List() {
		if err := s.fs.RemoveAll(s.collectionDir(col.Name)); err != nil {
			return vdberrors.Wrap(vdberrors.IO, err, "clear collection directory %q", s.collectionDir(col.Name))
		}
		if err := s.SaveCollection(col); err != nil {
			return err
		}
		for _, b := range col.Buckets() {
			if err := s.SaveBucket(col.Name, b); err != nil {
				return err
			}
			for _, v := range b.Vectors() {
				if err := s.SaveVectorToBucket(col.Name, b.ID, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load reconstructs reg from whatever Dump previously wrote: it lists
// collection directories, parses each header, then each bucket's header and
// vector files (spec.md §4.5 "Load mirrors"). Collections already present
// in reg are left untouched; Storage only ever adds.
//
// The persisted collection header does not carry Hasher overrides
// (num_hashes, bucket_width, seed are not among spec.md §6's listed
// fields), so reloaded collections always use the package defaults for
// those — matching what the on-disk format actually records.
func (s *Storage) Load(reg *collection.Registry) error {
	names, err := s.ListCollections()
	if err != nil {
		return err
	}

	for _, name := range names {
		header, err := s.ReadCollection(name)
		if err != nil {
			if vdberrors.Is(err, vdberrors.NotFound) {
				continue
			}
			return err
		}

		metric, err := vectormath.ParseMetric(header.Metric)
		if err != nil {
			return err
		}
		col, err := collection.New(header.Name, metric, header.Dimension, collection.HasherConfig{})
		if err != nil {
			return err
		}
		if err := reg.Create(col); err != nil {
			if vdberrors.Is(err, vdberrors.AlreadyExists) {
				continue
			}
			return err
		}

		if err := s.loadBuckets(col, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) loadBuckets(col *collection.Collection, collectionName string) error {
	bucketIDs, err := s.ListBucketIDs(collectionName)
	if err != nil {
		return err
	}

	for _, bucketID := range bucketIDs {
		if _, err := s.ReadBucket(collectionName, bucketID); err != nil {
			return err
		}

		vectorIDs, err := s.ListVectorIDs(collectionName, bucketID)
		if err != nil {
			return err
		}
		for _, vectorID := range vectorIDs {
			v, err := s.ReadVectorFromBucket(collectionName, bucketID, vectorID)
			if err != nil {
				return err
			}
			if err := col.InsertVector(v); err != nil {
				return err
			}
		}
	}
	return nil
}
