package pq_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/pq"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// deterministicLCG gives reproducible pseudo-random points without a
// real RNG dependency, mirroring the ivfflat test helper.
type deterministicLCG struct{ state uint64 }

func (l *deterministicLCG) next() float64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return float64(l.state>>11) / float64(1<<53)
}

func sixteenTrainingPoints(rng *deterministicLCG) [][]float32 {
	points := make([][]float32, 16)
	for i := range points {
		v := make([]float32, 8)
		for d := 0; d < 8; d++ {
			v[d] = float32(rng.next())*2 - 1
		}
		points[i] = v
	}
	return points
}

// TestPQExactTop1AfterRerank trains and inserts the same 16 points with
// dim=8, m=2, nbits=2 (ksub=4), then queries with a training point and
// expects the exact rerank to return that same point at distance 0.
func TestPQExactTop1AfterRerank(t *testing.T) {
	rng := &deterministicLCG{state: 424242}
	points := sixteenTrainingPoints(rng)

	s := soa.New(8)
	for i, p := range points {
		_, err := s.Append(uint64(i+1), p, nil)
		require.NoError(t, err)
	}

	idx, err := pq.New(s, 8, pq.Config{M: 2, Nbits: 2, TrainIters: 15, Retain: true})
	require.NoError(t, err)
	require.NoError(t, idx.Train(points))

	for slot := uint64(0); slot < s.Count(); slot++ {
		require.NoError(t, idx.Insert(slot))
	}

	query := points[5]
	results, err := idx.Search(query, 1, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
	assert.Equal(t, uint64(5), results[0].Slot)
}

func TestPQDimensionNotDivisibleByM(t *testing.T) {
	s := soa.New(9)
	_, err := pq.New(s, 9, pq.Config{M: 2, Nbits: 2, TrainIters: 5})
	assert.Error(t, err)
}

func TestPQInsertBeforeTrainFails(t *testing.T) {
	s := soa.New(4)
	s.Append(1, []float32{1, 2, 3, 4}, nil)
	idx, err := pq.New(s, 4, pq.Config{M: 2, Nbits: 2, TrainIters: 5})
	require.NoError(t, err)
	err = idx.Insert(0)
	assert.Error(t, err)
}

func TestPQWithoutRetainSkipsExactRerank(t *testing.T) {
	rng := &deterministicLCG{state: 7}
	points := sixteenTrainingPoints(rng)

	s := soa.New(8)
	for i, p := range points {
		s.Append(uint64(i+1), p, nil)
	}

	idx, err := pq.New(s, 8, pq.Config{M: 2, Nbits: 2, TrainIters: 15, Retain: false})
	require.NoError(t, err)
	require.NoError(t, idx.Train(points))
	for slot := uint64(0); slot < s.Count(); slot++ {
		require.NoError(t, idx.Insert(slot))
	}

	results, err := idx.Search(points[0], 4, distance.Euclidean, nil)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestPQSaveLoadRoundTrip(t *testing.T) {
	rng := &deterministicLCG{state: 99}
	points := sixteenTrainingPoints(rng)

	s := soa.New(8)
	for i, p := range points {
		s.Append(uint64(i+1), p, nil)
	}

	idx, err := pq.New(s, 8, pq.Config{M: 2, Nbits: 2, TrainIters: 10, Retain: true})
	require.NoError(t, err)
	require.NoError(t, idx.Train(points))
	for slot := uint64(0); slot < s.Count(); slot++ {
		require.NoError(t, idx.Insert(slot))
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf))

	loaded, err := pq.Load(&buf, s)
	require.NoError(t, err)
	assert.True(t, loaded.Trained())
	assert.Equal(t, idx.Count(), loaded.Count())

	results, err := loaded.Search(points[3], 1, distance.Euclidean, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-4)
}
