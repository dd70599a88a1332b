package collection

import (
	"testing"

	"github.com/dreamware/vecdb/internal/vdberrors"
	"github.com/dreamware/vecdb/internal/vectormath"
)

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	c, err := New("docs", vectormath.Cosine, 3, HasherConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRejectsInvalidDimensionOrMetric(t *testing.T) {
	if _, err := New("bad", vectormath.Cosine, 0, HasherConfig{}); !vdberrors.Is(err, vdberrors.InvalidArgument) {
		t.Errorf("expected InvalidArgument for dimension 0, got %v", err)
	}
	if _, err := New("bad", "bogus", 3, HasherConfig{}); !vdberrors.Is(err, vdberrors.InvalidArgument) {
		t.Errorf("expected InvalidArgument for unknown metric, got %v", err)
	}
}

func TestNewAppliesHasherDefaults(t *testing.T) {
	c := newTestCollection(t)
	if c.NumHashes == 0 || c.Width == 0 || c.Seed == 0 {
		t.Errorf("expected defaults to be applied, got %+v", c)
	}
}

func TestCollectionInsertRejectsDimensionMismatch(t *testing.T) {
	c := newTestCollection(t)
	if _, err := c.Insert([]float32{1, 2}, nil); !vdberrors.Is(err, vdberrors.DimensionMismatch) {
		t.Errorf("expected DimensionMismatch, got %v", err)
	}
}

func TestCollectionInsertGetDelete(t *testing.T) {
	c := newTestCollection(t)
	id, err := c.Insert([]float32{1, 0, 0}, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	v, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Metadata["k"] != "v" {
		t.Errorf("metadata mismatch: %+v", v.Metadata)
	}

	if err := c.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(id); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestCollectionSimilarity(t *testing.T) {
	c := newTestCollection(t)
	c.Insert([]float32{1, 0, 0}, nil)
	c.Insert([]float32{0, 1, 0}, nil)

	matches, err := c.Similarity([]float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
}

func TestRegistryCreateGetDelete(t *testing.T) {
	r := NewRegistry()
	c := newTestCollection(t)

	if err := r.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(c); !vdberrors.Is(err, vdberrors.AlreadyExists) {
		t.Errorf("expected AlreadyExists on duplicate create, got %v", err)
	}

	got, err := r.Get("docs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "docs" {
		t.Errorf("name mismatch: %q", got.Name)
	}

	if err := r.Delete("docs"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Get("docs"); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
	if err := r.Delete("docs"); !vdberrors.Is(err, vdberrors.NotFound) {
		t.Errorf("expected NotFound on double delete, got %v", err)
	}
}

func TestRegistryListAndNames(t *testing.T) {
	r := NewRegistry()
	a, _ := New("a", vectormath.Cosine, 2, HasherConfig{})
	b, _ := New("b", vectormath.Euclidean, 2, HasherConfig{})
	r.Create(a)
	r.Create(b)

	if len(r.List()) != 2 {
		t.Errorf("got %d collections, want 2", len(r.List()))
	}
	names := r.Names()
	if len(names) != 2 {
		t.Errorf("got %d names, want 2", len(names))
	}
}
