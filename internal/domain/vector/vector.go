// Package vector holds embedding vectors and the similarity math over them.
package vector

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/commentlens/internal/domain"
)

// Vector is a fixed-dimension embedding of one text.
type Vector []float32

// Dim returns the vector dimension.
func (v Vector) Dim() int { return len(v) }

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Zero-magnitude input yields 0; mismatched dimensions are an error.
func CosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("cosine %d vs %d: %w", len(a), len(b), domain.ErrVectorDimMismatch)
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// MeanCosine returns the arithmetic mean of cosine similarities between v and every member of set.
// An empty set yields 0.
func MeanCosine(v Vector, set []Vector) (float64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	var sum float64
	for i, s := range set {
		sim, err := CosineSimilarity(v, s)
		if err != nil {
			return 0, fmt.Errorf("member %d: %w", i, err)
		}
		sum += sim
	}
	return sum / float64(len(set)), nil
}

// Centroid returns the element-wise mean of set. Returns nil for an empty set.
func Centroid(set []Vector) (Vector, error) {
	if len(set) == 0 {
		return nil, nil
	}
	dim := len(set[0])
	acc := make([]float64, dim)
	for i, s := range set {
		if len(s) != dim {
			return nil, fmt.Errorf("centroid member %d has dim %d, want %d: %w",
				i, len(s), dim, domain.ErrVectorDimMismatch)
		}
		for j, f := range s {
			acc[j] += float64(f)
		}
	}

	out := make(Vector, dim)
	n := float64(len(set))
	for j := range acc {
		out[j] = float32(acc[j] / n)
	}
	return out, nil
}
