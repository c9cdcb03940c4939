package flat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/flat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

func TestFlatK2Dim4(t *testing.T) {
	s := soa.New(4)
	_, err := s.Append(1, []float32{1, 0, 0, 0}, nil) // A
	require.NoError(t, err)
	_, err = s.Append(2, []float32{0, 1, 0, 0}, nil) // B
	require.NoError(t, err)
	_, err = s.Append(3, []float32{0.9, 0.1, 0, 0}, nil) // C
	require.NoError(t, err)

	idx := flat.New(s)
	results, err := idx.Search([]float32{1, 0, 0, 0}, 2, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, uint64(0), results[0].Slot)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, uint64(2), results[1].Slot)
	assert.InDelta(t, 0.1414, results[1].Distance, 1e-3)
}

func TestFlatRangeSearch(t *testing.T) {
	s := soa.New(2)
	s.Append(1, []float32{0, 0}, nil)
	s.Append(2, []float32{1, 0}, nil)
	s.Append(3, []float32{5, 5}, nil)

	idx := flat.New(s)
	results, err := idx.RangeSearch([]float32{0, 0}, 1.5, 10, distance.Euclidean, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFlatDeletedNeverReturned(t *testing.T) {
	s := soa.New(2)
	slot, _ := s.Append(1, []float32{0, 0}, nil)
	s.Append(2, []float32{0, 0}, nil)
	require.NoError(t, s.Delete(slot))

	idx := flat.New(s)
	results, err := idx.Search([]float32{0, 0}, 5, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, slot, results[0].Slot)
}
