package index

import (
	"math/rand"
	"testing"

	kberrors "incidentkb/pkg/errors"
)

func TestFlatL2Index_AddSearch(t *testing.T) {
	idx, err := NewFlatL2Index(3)
	if err != nil {
		t.Fatal(err)
	}

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	for _, v := range vecs {
		if err := idx.Add(v); err != nil {
			t.Fatal(err)
		}
	}
	if idx.Len() != 3 {
		t.Errorf("Len=%d", idx.Len())
	}

	results, err := idx.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Position != 0 || results[0].Distance != 0 {
		t.Errorf("top result should be position 0 at distance 0, got %+v", results[0])
	}
	if results[1].Position != 1 {
		t.Errorf("second result should be position 1, got %d", results[1].Position)
	}
}

func TestFlatL2Index_SquaredDistance(t *testing.T) {
	idx, _ := NewFlatL2Index(2)
	_ = idx.Add([]float32{3, 4})

	results, err := idx.Search([]float32{0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Distance != 25 {
		t.Errorf("expected squared distance 25, got %f", results[0].Distance)
	}
}

func TestFlatL2Index_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewFlatL2Index(2)
	_ = idx.Add([]float32{0, 1})
	_ = idx.Add([]float32{1, 0})
	_ = idx.Add([]float32{0, -1})

	results, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.Position != i {
			t.Errorf("tie at rank %d: expected position %d, got %d", i, i, r.Position)
		}
	}
}

func TestFlatL2Index_ClampAndEmpty(t *testing.T) {
	idx, _ := NewFlatL2Index(2)

	results, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("empty index should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from empty index, got %d", len(results))
	}

	_ = idx.Add([]float32{1, 1})
	_ = idx.Add([]float32{2, 2})

	results, err = idx.Search([]float32{0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected k clamped to 2, got %d", len(results))
	}
}

func TestFlatL2Index_DimensionMismatch(t *testing.T) {
	idx, _ := NewFlatL2Index(3)

	err := idx.Add([]float32{1, 2})
	if !kberrors.HasCode(err, kberrors.CodeIndexDimensionMismatch) {
		t.Errorf("expected dimension mismatch on add, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("failed add must not grow the index, Len=%d", idx.Len())
	}

	_, err = idx.Search([]float32{1, 2, 3, 4}, 1)
	if !kberrors.HasCode(err, kberrors.CodeIndexDimensionMismatch) {
		t.Errorf("expected dimension mismatch on search, got %v", err)
	}

	if _, err := NewFlatL2Index(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestFlatL2Index_SortedAscending(t *testing.T) {
	const dim = 8
	rng := rand.New(rand.NewSource(7))
	idx, _ := NewFlatL2Index(dim)

	for i := 0; i < 200; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		if err := idx.Add(v); err != nil {
			t.Fatal(err)
		}
	}

	query := make([]float32, dim)
	for k := 1; k <= idx.Len(); k += 37 {
		results, err := idx.Search(query, k)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != k {
			t.Fatalf("k=%d: got %d results", k, len(results))
		}
		for i := 1; i < len(results); i++ {
			if results[i].Distance < results[i-1].Distance {
				t.Fatalf("k=%d: results not ascending at %d", k, i)
			}
		}
	}
}

func TestFlatL2Index_AddCopiesVector(t *testing.T) {
	idx, _ := NewFlatL2Index(2)
	v := []float32{1, 1}
	_ = idx.Add(v)
	v[0] = 100

	results, _ := idx.Search([]float32{1, 1}, 1)
	if results[0].Distance != 0 {
		t.Errorf("index must not alias caller slices, distance=%f", results[0].Distance)
	}
}

func BenchmarkFlatL2Index_Search(b *testing.B) {
	const dim = 256
	rng := rand.New(rand.NewSource(1))
	idx, _ := NewFlatL2Index(dim)
	for i := 0; i < 5000; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		_ = idx.Add(v)
	}
	query := make([]float32, dim)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(query, 3)
	}
}
