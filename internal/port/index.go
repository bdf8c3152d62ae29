package port

// SimilarityIndex holds vectors in insertion order and answers k-nearest
// queries by position.
type SimilarityIndex interface {
	// Add appends a vector. Its position is the previous Len().
	Add(vector []float32) error

	// Search returns up to k neighbors ordered by ascending distance.
	Search(query []float32, k int) ([]Neighbor, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimension returns the fixed vector dimension.
	Dimension() int
}

// Neighbor is a search hit.
type Neighbor struct {
	Position int     // Insertion position of the stored vector
	Distance float64 // Squared L2 distance to the query
}
