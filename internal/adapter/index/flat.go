package index

import (
	"sort"
	"sync"

	"incidentkb/internal/port"
	kberrors "incidentkb/pkg/errors"
)

// FlatL2Index is an exact nearest-neighbor index. Every search scans all
// stored vectors; incident corpora stay small enough for that.
type FlatL2Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

// NewFlatL2Index creates an empty index for vectors of the given dimension.
func NewFlatL2Index(dimension int) (*FlatL2Index, error) {
	if dimension <= 0 {
		return nil, kberrors.New(kberrors.CodeIndexDimensionMismatch, "dimension must be positive",
			kberrors.Field("dimension", dimension))
	}
	return &FlatL2Index{
		dimension: dimension,
		vectors:   make([][]float32, 0),
	}, nil
}

// Add appends a copy of vector.
func (x *FlatL2Index) Add(vector []float32) error {
	if len(vector) != x.dimension {
		return dimensionMismatch("add", x.dimension, len(vector))
	}

	vec := make([]float32, x.dimension)
	copy(vec, vector)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.vectors = append(x.vectors, vec)
	return nil
}

// Search returns the k closest vectors by squared L2 distance, ascending.
// Ties keep insertion order. k is clamped to the number of stored vectors.
func (x *FlatL2Index) Search(query []float32, k int) ([]port.Neighbor, error) {
	if len(query) != x.dimension {
		return nil, dimensionMismatch("search", x.dimension, len(query))
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.vectors) == 0 {
		return []port.Neighbor{}, nil
	}

	neighbors := make([]port.Neighbor, len(x.vectors))
	for i, vec := range x.vectors {
		neighbors[i] = port.Neighbor{Position: i, Distance: squaredL2(query, vec)}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// Len returns the number of stored vectors.
func (x *FlatL2Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dimension returns the fixed vector dimension.
func (x *FlatL2Index) Dimension() int {
	return x.dimension
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func dimensionMismatch(stage string, expected, got int) error {
	return kberrors.New(kberrors.CodeIndexDimensionMismatch, "vector dimension mismatch",
		kberrors.FieldStage(stage),
		kberrors.Field("expected", expected),
		kberrors.Field("got", got),
	)
}
