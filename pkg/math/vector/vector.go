// Package vector provides the distance calculations used by MuninDB's
// nearest-neighbor search.
//
// All ranking goes through a Metric so that an index can fix one distance
// function for its entire lifetime. Use these functions instead of
// implementing your own to keep result ordering consistent across engines.
//
// Main Functions:
//   - EuclideanDistance: straight-line distance, the default search metric
//   - SquaredDistance: Euclidean without the square root, for rank-only work
//   - CosineDistance: angular distance (1 - cosine similarity)
//   - DotProduct: dot product with float64 accumulation
//   - Norm, Normalize, NormalizeInPlace: vector length helpers
package vector

import (
	"fmt"
	"math"
)

// Metric identifies the distance function an index ranks by. A Metric is
// chosen when an index is constructed and never changes afterwards.
type Metric int

const (
	// Euclidean ranks by straight-line (L2) distance. Identical vectors are
	// at distance 0. This is the default metric.
	Euclidean Metric = iota
	// Cosine ranks by angular difference, computed as 1 - cosine similarity.
	// Identical directions are at distance 0, opposite directions at 2.
	Cosine
)

// String returns the lowercase metric name used in configs and stats.
func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric converts a config string into a Metric.
// Accepts "euclidean" (or "l2") and "cosine". An empty string selects the
// default Euclidean metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "euclidean", "l2":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	default:
		return Euclidean, fmt.Errorf("unknown distance metric %q", s)
	}
}

// Distance computes the metric's distance between two equal-length vectors.
// Mismatched lengths return +Inf, the worst possible rank; callers are
// expected to validate dimensions before querying.
func (m Metric) Distance(a, b []float32) float64 {
	switch m {
	case Cosine:
		return CosineDistance(a, b)
	default:
		return EuclideanDistance(a, b)
	}
}

// EuclideanDistance calculates the L2 distance between two float32 vectors.
// Uses float64 accumulation for precision even with float32 inputs.
//
// Example:
//
//	a := []float32{0.0, 0.0}
//	b := []float32{3.0, 4.0}
//	d := EuclideanDistance(a, b)  // Returns 5.0
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	return math.Sqrt(SquaredDistance(a, b))
}

// SquaredDistance calculates the squared L2 distance. It ranks identically
// to EuclideanDistance while skipping the square root, so prefer it when
// only the ordering matters.
func SquaredDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return sum
}

// CosineDistance calculates 1 - cosine similarity between two float32
// vectors. Returns a value in [0, 2] where 0 = same direction, 1 =
// orthogonal, 2 = opposite. A zero vector has no direction and is treated
// as orthogonal to everything (distance 1).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// DotProduct calculates the dot product of two float32 vectors.
// Returns float64 for precision. Mismatched lengths return 0.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 length of the vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of the vector.
// The input vector is not modified. A zero vector normalizes to a zero
// vector of the same length.
func Normalize(vec []float32) []float32 {
	norm := Norm(vec)
	normalized := make([]float32, len(vec))
	if norm == 0 {
		return normalized
	}
	for i, v := range vec {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}

// NormalizeInPlace normalizes a vector in-place (modifies the input).
//
// WARNING: Modifies the input slice. Use Normalize() to preserve the
// original.
func NormalizeInPlace(v []float32) {
	norm := Norm(v)
	if norm == 0 {
		return
	}
	inv := float32(1.0 / norm)
	for i := range v {
		v[i] *= inv
	}
}
