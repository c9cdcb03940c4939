package ivfflat_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/ivfflat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// deterministicLCG produces a small, seeded pseudo-random sequence so
// the gaussian-cluster test is reproducible without a real RNG
// dependency.
type deterministicLCG struct{ state uint64 }

func (l *deterministicLCG) next() float64 {
	l.state = l.state*6364136223846793005 + 1442695040888963407
	return float64(l.state>>11) / float64(1<<53)
}

func (l *deterministicLCG) gaussian() float64 {
	u1 := l.next()
	u2 := l.next()
	if u1 < 1e-12 {
		u1 = 1e-12
	}
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func buildGaussianClusters(t *testing.T, perCluster int) (*soa.Storage, [][4]float32) {
	t.Helper()
	centers := [][4]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	s := soa.New(4)
	rng := &deterministicLCG{state: 12345}
	var id uint64
	for _, c := range centers {
		for i := 0; i < perCluster; i++ {
			v := make([]float32, 4)
			for d := 0; d < 4; d++ {
				v[d] = c[d] + float32(rng.gaussian())*0.05
			}
			id++
			_, err := s.Append(id, v, nil)
			require.NoError(t, err)
		}
	}
	return s, centers
}

func TestIVFFlatTrainAndInsert(t *testing.T) {
	s, _ := buildGaussianClusters(t, 100)
	idx := ivfflat.New(s, ivfflat.Config{Nlist: 3, Nprobe: 1, TrainIters: 25})

	var all [][]float32
	for slot := uint64(0); slot < s.Count(); slot++ {
		data, _, _, ok := s.Get(slot)
		if ok {
			all = append(all, append([]float32{}, data...))
		}
	}
	require.NoError(t, idx.Train(all))

	for slot := uint64(0); slot < s.Count(); slot++ {
		require.NoError(t, idx.Insert(slot))
	}
	assert.Equal(t, s.Count(), idx.Count())
}

func TestIVFFlatInsertBeforeTrainFails(t *testing.T) {
	s := soa.New(4)
	s.Append(1, []float32{1, 2, 3, 4}, nil)
	idx := ivfflat.New(s, ivfflat.Config{Nlist: 2, Nprobe: 1, TrainIters: 5})
	err := idx.Insert(0)
	assert.Error(t, err)
}

func TestIVFFlatRecallAtCenters(t *testing.T) {
	s, centers := buildGaussianClusters(t, 100)
	idx := ivfflat.New(s, ivfflat.Config{Nlist: 3, Nprobe: 1, TrainIters: 25})

	var all [][]float32
	for slot := uint64(0); slot < s.Count(); slot++ {
		data, _, _, _ := s.Get(slot)
		all = append(all, append([]float32{}, data...))
	}
	require.NoError(t, idx.Train(all))
	for slot := uint64(0); slot < s.Count(); slot++ {
		require.NoError(t, idx.Insert(slot))
	}

	for ci, c := range centers {
		query := []float32{c[0], c[1], c[2], c[3]}
		results, err := idx.Search(query, 50, distance.Euclidean, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, results)

		// Cluster ci occupies slots [ci*100, ci*100+100).
		inCluster := 0
		for _, r := range results {
			if r.Slot/100 == uint64(ci) {
				inCluster++
			}
		}
		assert.GreaterOrEqual(t, inCluster, 40, "center %d", ci)
	}
}

func TestIVFFlatSaveLoadRoundTrip(t *testing.T) {
	s, _ := buildGaussianClusters(t, 30)
	idx := ivfflat.New(s, ivfflat.Config{Nlist: 3, Nprobe: 2, TrainIters: 10})

	var all [][]float32
	for slot := uint64(0); slot < s.Count(); slot++ {
		data, _, _, _ := s.Get(slot)
		all = append(all, append([]float32{}, data...))
	}
	require.NoError(t, idx.Train(all))
	for slot := uint64(0); slot < s.Count(); slot++ {
		require.NoError(t, idx.Insert(slot))
	}

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf, 4))

	loaded, err := ivfflat.Load(&buf, s)
	require.NoError(t, err)
	assert.True(t, loaded.Trained())
	assert.Equal(t, idx.Count(), loaded.Count())
}
