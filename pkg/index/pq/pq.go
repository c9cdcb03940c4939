// Package pq implements Product Quantization: m sub-quantizers, an
// asymmetric-distance-computation (ADC) lookup table for approximate
// search, and an optional exact rerank over retained raw vectors.
package pq

import (
	"sort"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/topk"
)

// rangeSlack widens the approximate-distance admission threshold during
// RangeSearch to avoid missing points due to quantization error.
const rangeSlack = 1.5

// Config holds PQ training parameters. M must divide the namespace
// dimension; Nbits must be in [1,8].
type Config struct {
	M          int
	Nbits      uint8
	TrainIters int
	// Retain, when true, keeps the raw vector alongside each point's
	// code for exact rerank after the approximate ADC pass.
	Retain bool
}

// Index is the Product Quantization primary index.
type Index struct {
	storage *soa.Storage
	cfg     Config

	dim  int
	dsub int
	ksub int

	codebook []float32 // m * ksub * dsub
	codes    map[uint64][]byte
	raw      map[uint64][]float32

	trained bool
}

// New returns an untrained PQ index over storage. Fails with
// InvalidArgument when dim is not divisible by cfg.M.
func New(storage *soa.Storage, dim int, cfg Config) (*Index, error) {
	if cfg.M <= 0 || dim%cfg.M != 0 {
		return nil, gverrors.New("New", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"dimension %d not divisible by m=%d", dim, cfg.M)
	}
	if cfg.Nbits < 1 || cfg.Nbits > 8 {
		return nil, gverrors.New("New", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"nbits must be in [1,8], got %d", cfg.Nbits)
	}
	return &Index{
		storage: storage,
		cfg:     cfg,
		dim:     dim,
		dsub:    dim / cfg.M,
		ksub:    1 << cfg.Nbits,
		codes:   make(map[uint64][]byte),
		raw:     make(map[uint64][]float32),
	}, nil
}

var _ index.Index = (*Index)(nil)

// Trained reports whether Train has completed.
func (idx *Index) Trained() bool { return idx.trained }

// Train splits each training vector into m contiguous sub-vectors and
// runs k-means independently per sub-space with ksub clusters.
func (idx *Index) Train(samples [][]float32) error {
	if len(samples) == 0 {
		return gverrors.New("Train", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "no training samples")
	}
	m := idx.cfg.M
	idx.codebook = make([]float32, m*idx.ksub*idx.dsub)

	for sub := 0; sub < m; sub++ {
		subvecs := make([][]float32, len(samples))
		for i, s := range samples {
			subvecs[i] = s[sub*idx.dsub : (sub+1)*idx.dsub]
		}
		flat := trainSubKMeans(subvecs, idx.ksub, idx.dsub, idx.cfg.TrainIters)
		copy(idx.codebook[sub*idx.ksub*idx.dsub:(sub+1)*idx.ksub*idx.dsub], flat)
	}
	idx.trained = true
	return nil
}

func (idx *Index) subCodebook(sub int) []float32 {
	start := sub * idx.ksub * idx.dsub
	return idx.codebook[start : start+idx.ksub*idx.dsub]
}

func (idx *Index) centroid(sub, code int) []float32 {
	cb := idx.subCodebook(sub)
	return cb[code*idx.dsub : (code+1)*idx.dsub]
}

func (idx *Index) encode(v []float32) []byte {
	code := make([]byte, idx.cfg.M)
	for sub := 0; sub < idx.cfg.M; sub++ {
		subvec := v[sub*idx.dsub : (sub+1)*idx.dsub]
		cb := idx.subCodebook(sub)
		best := 0
		bestDist := sqDist(subvec, cb[0:idx.dsub])
		for c := 1; c < idx.ksub; c++ {
			d := sqDist(subvec, cb[c*idx.dsub:(c+1)*idx.dsub])
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		code[sub] = byte(best)
	}
	return code
}

// Insert encodes the slot's vector and stores its code, optionally
// retaining the raw vector for exact rerank. Fails with
// PreconditionFailed when the index has not been trained.
func (idx *Index) Insert(slot uint64) error {
	if !idx.trained {
		return gverrors.New("Insert", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "pq index not trained")
	}
	data, _, _, ok := idx.storage.Get(slot)
	if !ok {
		return nil
	}
	idx.codes[slot] = idx.encode(data)
	if idx.cfg.Retain {
		raw := make([]float32, len(data))
		copy(raw, data)
		idx.raw[slot] = raw
	}
	return nil
}

// Delete forgets the slot's code and retained raw vector.
func (idx *Index) Delete(slot uint64) error {
	delete(idx.codes, slot)
	delete(idx.raw, slot)
	return nil
}

// Count returns the number of encoded points.
func (idx *Index) Count() uint64 { return uint64(len(idx.codes)) }

// Rebuild re-encodes every live slot in storage, used after compaction.
func (idx *Index) Rebuild(storage *soa.Storage) error {
	idx.storage = storage
	idx.codes = make(map[uint64][]byte)
	idx.raw = make(map[uint64][]float32)
	if !idx.trained {
		return nil
	}
	var firstErr error
	storage.Walk(func(slot uint64, data []float32, id uint64, metadata gvtypes.Metadata) bool {
		if err := idx.Insert(slot); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// adcTable precomputes an m x ksub table of squared sub-distances from
// query to every sub-centroid.
func (idx *Index) adcTable(query []float32) [][]float32 {
	table := make([][]float32, idx.cfg.M)
	for sub := 0; sub < idx.cfg.M; sub++ {
		subq := query[sub*idx.dsub : (sub+1)*idx.dsub]
		row := make([]float32, idx.ksub)
		cb := idx.subCodebook(sub)
		for c := 0; c < idx.ksub; c++ {
			row[c] = float32(sqDist(subq, cb[c*idx.dsub:(c+1)*idx.dsub]))
		}
		table[sub] = row
	}
	return table
}

func (idx *Index) approxDistance(table [][]float32, code []byte) float32 {
	var sum float32
	for sub, c := range code {
		sum += table[sub][c]
	}
	return sqrtf32(float64(sum))
}

// Search computes an ADC table for query, scores every encoded point
// through a size-k heap by approximate distance, then — if raw vectors
// were retained — recomputes exact Euclidean distances on the drained
// candidates and re-sorts by exact distance, reporting the exact
// distance as the final score. When raw vectors were not retained, the
// approximate distance is reported unchanged rather than silently
// relabeling it as exact.
func (idx *Index) Search(query []float32, k int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	if !idx.trained {
		return nil, gverrors.New("Search", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "pq index not trained")
	}
	pred = filter.Coalesce(pred)
	table := idx.adcTable(query)

	// Admit in ascending slot order so that equal approximate distances
	// resolve to the earlier slot, as topk's tie-break promises.
	slots := make([]uint64, 0, len(idx.codes))
	for slot := range idx.codes {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	h := topk.New(k)
	for _, slot := range slots {
		_, _, metadata, ok := idx.storage.Get(slot)
		if !ok || !pred.Eval(metadata) {
			continue
		}
		d := idx.approxDistance(table, idx.codes[slot])
		h.Admit(d, slot)
	}

	entries := h.DrainSorted()
	out := make([]gvtypes.Result, len(entries))
	for i, e := range entries {
		out[i] = index.ResultFromStorage(idx.storage, e.Slot, e.Distance)
	}

	if idx.cfg.Retain {
		for i := range out {
			if raw, ok := idx.raw[out[i].Slot]; ok {
				exact, err := distance.Dense(distance.Euclidean, query, raw)
				if err == nil {
					out[i].Distance = exact
				}
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	}

	return out, nil
}

// RangeSearch admits points whose approximate distance is within
// radius*rangeSlack, then verifies against the true radius using exact
// distance when raw vectors are retained (falling back to the
// approximate distance otherwise).
func (idx *Index) RangeSearch(query []float32, radius float32, maxResults int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	if !idx.trained {
		return nil, gverrors.New("RangeSearch", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "pq index not trained")
	}
	pred = filter.Coalesce(pred)
	table := idx.adcTable(query)
	slack := radius * rangeSlack

	var out []gvtypes.Result
	for slot, code := range idx.codes {
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
		_, _, metadata, ok := idx.storage.Get(slot)
		if !ok || !pred.Eval(metadata) {
			continue
		}
		approx := idx.approxDistance(table, code)
		if approx > slack {
			continue
		}

		final := approx
		if raw, ok := idx.raw[slot]; ok {
			exact, err := distance.Dense(distance.Euclidean, query, raw)
			if err != nil {
				return nil, err
			}
			if exact > radius {
				continue
			}
			final = exact
		} else if approx > radius {
			continue
		}
		out = append(out, index.ResultFromStorage(idx.storage, slot, final))
	}
	return out, nil
}
