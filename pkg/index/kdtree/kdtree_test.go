package kdtree_test

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/kdtree"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

func buildSixPoints(t *testing.T) (*soa.Storage, *kdtree.Index) {
	t.Helper()
	s := soa.New(2)
	idx := kdtree.New(s)
	points := [][2]float32{{0, 0}, {8, 1}, {1, 8}, {9, 9}, {2, 2}, {7, 3}}
	for i, p := range points {
		slot, err := s.Append(uint64(i), []float32{p[0], p[1]}, nil)
		require.NoError(t, err)
		require.NoError(t, idx.Insert(slot))
	}
	return s, idx
}

func TestKDTreePartialSpacePruning(t *testing.T) {
	_, idx := buildSixPoints(t)
	results, err := idx.Search([]float32{2, 3}, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(4), results[0].Slot)
	assert.InDelta(t, 1.0, results[0].Distance, 1e-3)
}

func TestKDTreeMatchesBruteForceAtFullK(t *testing.T) {
	_, idx := buildSixPoints(t)

	results, err := idx.Search([]float32{5, 5}, 6, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 6)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}

	points := [][]float32{{0, 0}, {8, 1}, {1, 8}, {9, 9}, {2, 2}, {7, 3}}
	want := make([]float32, 0, len(points))
	for _, p := range points {
		d, err := distance.Dense(distance.Euclidean, []float32{5, 5}, p)
		require.NoError(t, err)
		want = append(want, d)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	for i, r := range results {
		assert.InDelta(t, want[i], r.Distance, 1e-5)
	}
}

func TestKDTreeDeleteLeavesNodeButHidesSlot(t *testing.T) {
	s, idx := buildSixPoints(t)
	require.NoError(t, s.Delete(4))
	require.NoError(t, idx.Delete(4))

	results, err := idx.Search([]float32{2, 3}, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, uint64(4), results[0].Slot)
}

// TestKDTreeSearchUsesTombstonedAncestorCoordinate covers a 1-D
// counter-example where a deleted root's splitting coordinate must
// still be read correctly to choose the near/far branch and compute
// the pruning bound: root [6] is deleted, then [6.5] and [5.99] are
// inserted either side of it. A query of [6] must return [5.99] (the
// true nearest point, distance 0.01), not [6.5] (distance 0.5) via a
// wrongly pruned far branch.
func TestKDTreeSearchUsesTombstonedAncestorCoordinate(t *testing.T) {
	s := soa.New(1)
	idx := kdtree.New(s)

	rootSlot, err := s.Append(0, []float32{6}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(rootSlot))
	require.NoError(t, s.Delete(rootSlot))
	require.NoError(t, idx.Delete(rootSlot))

	rSlot, err := s.Append(1, []float32{6.5}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(rSlot))

	lSlot, err := s.Append(2, []float32{5.99}, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(lSlot))

	results, err := idx.Search([]float32{6}, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, lSlot, results[0].Slot)
	assert.InDelta(t, 0.01, results[0].Distance, 1e-4)
}

func TestKDTreeRebuildAfterCompaction(t *testing.T) {
	s, idx := buildSixPoints(t)
	require.NoError(t, s.Delete(0))

	err := s.Compact(func(oldToNew map[uint64]uint64) {
		require.NoError(t, idx.Rebuild(s))
	})
	require.NoError(t, err)

	results, err := idx.Search([]float32{2, 2}, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestKDTreeSaveLoadRoundTrip(t *testing.T) {
	s, idx := buildSixPoints(t)

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf))

	loaded, err := kdtree.Load(&buf, s)
	require.NoError(t, err)

	want, err := idx.Search([]float32{2, 3}, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	got, err := loaded.Search([]float32{2, 3}, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	assert.Equal(t, want[0].Slot, got[0].Slot)
}
