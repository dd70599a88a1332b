package vectormath

import (
	"math"
	"testing"

	"github.com/dreamware/vecdb/internal/vdberrors"
)

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestParseMetric(t *testing.T) {
	for _, s := range []string{"Euclidean", "Cosine", "Manhattan"} {
		if _, err := ParseMetric(s); err != nil {
			t.Errorf("ParseMetric(%q) returned error: %v", s, err)
		}
	}

	if _, err := ParseMetric("Jaccard"); !vdberrors.Is(err, vdberrors.InvalidArgument) {
		t.Errorf("expected InvalidArgument for unknown metric, got %v", err)
	}
}

func TestCheckDimension(t *testing.T) {
	if err := CheckDimension([]float32{1, 2, 3}, 3); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := CheckDimension([]float32{1, 2}, 3); !vdberrors.Is(err, vdberrors.DimensionMismatch) {
		t.Errorf("expected DimensionMismatch, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if got := CosineSimilarity(a, b); !almostEqual(got, 1) {
		t.Errorf("identical vectors: got %v, want 1", got)
	}

	c := []float32{0, 1, 0}
	if got := CosineSimilarity(a, c); !almostEqual(got, 0) {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}

	zero := []float32{0, 0, 0}
	if got := CosineSimilarity(a, zero); got != 0 {
		t.Errorf("zero vector: got %v, want 0", got)
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}
	if got := EuclideanDistance(a, b); !almostEqual(got, 5) {
		t.Errorf("got %v, want 5", got)
	}
}

func TestManhattanDistance(t *testing.T) {
	a := []float32{1, 1}
	b := []float32{4, 5}
	if got := ManhattanDistance(a, b); !almostEqual(got, 7) {
		t.Errorf("got %v, want 7", got)
	}
}

func TestProjectDispatchesOnMetric(t *testing.T) {
	v := []float32{1, 2, 3}
	p := []float32{1, 0, 0}

	if got := Project(Euclidean, v, p); !almostEqual(got, DotProduct(v, p)) {
		t.Errorf("Euclidean projection mismatch: %v", got)
	}
	if got := Project(Cosine, v, p); !almostEqual(got, CosineSimilarity(v, p)) {
		t.Errorf("Cosine projection mismatch: %v", got)
	}
	if got := Project(Manhattan, v, p); !almostEqual(got, ManhattanDistance(v, p)) {
		t.Errorf("Manhattan projection mismatch: %v", got)
	}
}
