// Package distance implements the dense and sparse distance kernels used
// by every index in GigaVector: Euclidean, cosine, dot product, and
// Manhattan.
package distance

import (
	"fmt"
	"math"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
)

// Metric identifies a distance kernel.
type Metric int

const (
	// Euclidean is the L2 distance, always non-negative.
	Euclidean Metric = iota
	// Cosine is 1 - cosine_similarity. Zero-norm pairs return 0.
	Cosine
	// Dot is the negated dot product, so that smaller is always closer,
	// consistent with the other metrics.
	Dot
	// Manhattan is the L1 distance.
	Manhattan
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	case Dot:
		return "dot"
	case Manhattan:
		return "manhattan"
	default:
		return "unknown"
	}
}

// ErrDimensionMismatch is returned whenever two operands disagree on
// dimension.
var ErrDimensionMismatch = fmt.Errorf("dimension mismatch")

// Dense computes the distance between two dense vectors under the given
// metric. It fails with ErrDimensionMismatch when len(a) != len(b).
func Dense(metric Metric, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	switch metric {
	case Euclidean:
		return euclidean(a, b), nil
	case Cosine:
		return cosine(a, b), nil
	case Dot:
		return dot(a, b), nil
	case Manhattan:
		return manhattan(a, b), nil
	default:
		return 0, fmt.Errorf("distance: unknown metric %v", metric)
	}
}

func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func manhattan(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float32(sum)
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(-sum)
}

func cosine(a, b []float32) float32 {
	var dotv, normA, normB float64
	for i := range a {
		dotv += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dotv / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(1 - sim)
}

// Normalize returns a copy of v scaled to unit L2 norm. A zero vector is
// returned unchanged.
func Normalize(v []float32) []float32 {
	var normSq float64
	for _, x := range v {
		normSq += float64(x) * float64(x)
	}
	if normSq == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	norm := math.Sqrt(normSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// SparseDot computes the dot product between two sparse vectors whose
// entries are sorted by index, via a merge-join over both entry lists.
func SparseDot(a, b []gvtypes.SparseEntry) float32 {
	var sum float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Index == b[j].Index:
			sum += float64(a[i].Value) * float64(b[j].Value)
			i++
			j++
		case a[i].Index < b[j].Index:
			i++
		default:
			j++
		}
	}
	return float32(sum)
}
