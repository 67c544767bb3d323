package database

import (
	"fmt"
	"math"
)

// DefaultDim is the embedding dimension produced by the dlib ResNet face extractor.
const DefaultDim = 128

// DefaultTolerance is the distance threshold below which a match is accepted.
const DefaultTolerance = 0.6

// Vector is a face embedding as produced by the external feature extractor.
type Vector []float32

// Dim returns the number of components.
func (v Vector) Dim() int {
	return len(v)
}

// Clone returns a copy that does not share the backing array.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether both vectors have the same length and bit-identical components.
func (v Vector) Equal(other Vector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if math.Float32bits(v[i]) != math.Float32bits(other[i]) {
			return false
		}
	}
	return true
}

// ValidateDim checks that the vector has exactly dim components, all finite.
func (v Vector) ValidateDim(dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: embedding has %d components, expected %d", ErrInvalidInput, len(v), dim)
	}
	for i, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: embedding component %d is not finite", ErrInvalidInput, i)
		}
	}
	return nil
}

// EuclideanDistance computes the L2 distance between two vectors of equal length.
// Accumulation happens in float64 so that identical inputs give exactly 0.
// Returns +Inf when the lengths differ.
func EuclideanDistance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
