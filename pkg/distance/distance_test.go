package distance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
)

func TestDenseEuclidean(t *testing.T) {
	d, err := distance.Dense(distance.Euclidean, []float32{1, 0, 0, 0}, []float32{0.9, 0.1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.14142, d, 1e-4)
}

func TestDenseZero(t *testing.T) {
	d, err := distance.Dense(distance.Euclidean, []float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, float32(0), d)
}

func TestDimensionMismatch(t *testing.T) {
	for _, m := range []distance.Metric{distance.Euclidean, distance.Cosine, distance.Dot, distance.Manhattan} {
		_, err := distance.Dense(m, []float32{1, 2}, []float32{1, 2, 3})
		assert.ErrorIs(t, err, distance.ErrDimensionMismatch)
	}
}

func TestCosineZeroNorm(t *testing.T) {
	d, err := distance.Dense(distance.Cosine, []float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, float32(0), d)
}

func TestCosineIdentical(t *testing.T) {
	d, err := distance.Dense(distance.Cosine, []float32{1, 2, 3}, []float32{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestDotNegated(t *testing.T) {
	d, err := distance.Dense(distance.Dot, []float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, float32(-11), d)
}

func TestManhattan(t *testing.T) {
	d, err := distance.Dense(distance.Manhattan, []float32{1, 2}, []float32{4, -1})
	require.NoError(t, err)
	assert.Equal(t, float32(6), d)
}

func TestNormalize(t *testing.T) {
	out := distance.Normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, float64(out[0]*out[0]+out[1]*out[1]), 1e-5)
}

func TestNormalizeZero(t *testing.T) {
	out := distance.Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, out)
}

func TestSparseDot(t *testing.T) {
	a := []gvtypes.SparseEntry{{Index: 0, Value: 1}, {Index: 2, Value: 2}, {Index: 5, Value: 3}}
	b := []gvtypes.SparseEntry{{Index: 1, Value: 1}, {Index: 2, Value: 4}, {Index: 5, Value: 2}}
	assert.Equal(t, float32(2*4+3*2), distance.SparseDot(a, b))
}
