// Package ivfflat implements the IVF-Flat index: coarse k-means
// centroids plus per-centroid inverted posting lists of slot indices,
// with nprobe-bounded search.
package ivfflat

import (
	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/topk"
)

// Config holds IVF-Flat training/search parameters.
type Config struct {
	Nlist      int
	Nprobe     int
	TrainIters int
	UseCosine  bool
}

// Index is the IVF-Flat primary index.
type Index struct {
	storage *soa.Storage
	cfg     Config

	centroids [][]float32
	postings  [][]uint64
	trained   bool
}

// New returns an untrained IVF-Flat index over storage.
func New(storage *soa.Storage, cfg Config) *Index {
	return &Index{storage: storage, cfg: cfg}
}

var _ index.Index = (*Index)(nil)

// Trained reports whether Train has completed successfully.
func (idx *Index) Trained() bool { return idx.trained }

// Train runs k-means on the given sample vectors and initializes empty
// posting lists. Cosine mode normalizes the samples before training,
// since queries are normalized before cluster assignment and centroids
// must stay consistent with that convention.
func (idx *Index) Train(samples [][]float32) error {
	if len(samples) == 0 {
		return gverrors.New("Train", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "no training samples")
	}
	if idx.cfg.Nlist <= 0 {
		return gverrors.New("Train", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "nlist must be > 0")
	}

	prepped := samples
	if idx.cfg.UseCosine {
		prepped = make([][]float32, len(samples))
		for i, s := range samples {
			prepped[i] = distance.Normalize(s)
		}
	}

	idx.centroids = trainKMeans(prepped, idx.cfg.Nlist, idx.cfg.TrainIters)
	idx.postings = make([][]uint64, idx.cfg.Nlist)
	idx.trained = true
	return nil
}

// Insert assigns the slot's vector to its nearest centroid and appends
// it to that centroid's posting list. Fails with PreconditionFailed if
// the index has not been trained.
func (idx *Index) Insert(slot uint64) error {
	if !idx.trained {
		return gverrors.New("Insert", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "ivfflat index not trained")
	}
	data, _, _, ok := idx.storage.Get(slot)
	if !ok {
		return nil
	}
	q := data
	if idx.cfg.UseCosine {
		q = distance.Normalize(data)
	}
	c := nearestCentroid(idx.centroids, q)
	idx.postings[c] = append(idx.postings[c], slot)
	return nil
}

// Delete is a no-op; the storage tombstone hides the slot from scans.
func (idx *Index) Delete(slot uint64) error { return nil }

// Count returns the number of posted slots across every list.
func (idx *Index) Count() uint64 {
	var n uint64
	for _, p := range idx.postings {
		n += uint64(len(p))
	}
	return n
}

// Rebuild re-trains is not performed automatically (training is a
// separate explicit step); Rebuild re-assigns every live slot to the
// existing centroids, used after compaction.
func (idx *Index) Rebuild(storage *soa.Storage) error {
	idx.storage = storage
	if !idx.trained {
		return nil
	}
	idx.postings = make([][]uint64, idx.cfg.Nlist)

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

func (idx *Index) nearestCentroids(query []float32, nprobe int) []int {
	type cd struct {
		idx  int
		dist float32
	}
	cds := make([]cd, len(idx.centroids))
	for i, c := range idx.centroids {
		d, _ := distance.Dense(distance.Euclidean, query, c)
		cds[i] = cd{idx: i, dist: d}
	}
	// simple selection of nprobe smallest; nlist is small relative to
	// point counts so an O(nlist*nprobe) selection is adequate.
	out := make([]int, 0, nprobe)
	used := make([]bool, len(cds))
	for n := 0; n < nprobe && n < len(cds); n++ {
		best := -1
		for i, c := range cds {
			if used[i] {
				continue
			}
			if best == -1 || c.dist < cds[best].dist {
				best = i
			}
		}
		used[best] = true
		out = append(out, cds[best].idx)
	}
	return out
}

// Search finds the nprobe nearest centroids to query, unions their
// posting lists, and scans each with the chosen metric through a
// size-k bounded heap.
func (idx *Index) Search(query []float32, k int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	if !idx.trained {
		return nil, gverrors.New("Search", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "ivfflat index not trained")
	}
	pred = filter.Coalesce(pred)

	q := query
	if idx.cfg.UseCosine {
		q = distance.Normalize(query)
	}
	nprobe := idx.cfg.Nprobe
	if nprobe <= 0 || nprobe > idx.cfg.Nlist {
		nprobe = idx.cfg.Nlist
	}
	lists := idx.nearestCentroids(q, nprobe)

	h := topk.New(k)
	for _, li := range lists {
		for _, slot := range idx.postings[li] {
			data, _, metadata, ok := idx.storage.Get(slot)
			if !ok {
				continue
			}
			d, err := distance.Dense(metric, query, data)
			if err != nil {
				return nil, err
			}
			if !pred.Eval(metadata) {
				continue
			}
			h.Admit(d, slot)
		}
	}

	entries := h.DrainSorted()
	out := make([]gvtypes.Result, len(entries))
	for i, e := range entries {
		out[i] = index.ResultFromStorage(idx.storage, e.Slot, e.Distance)
	}
	return out, nil
}

// RangeSearch scans the nprobe nearest lists (or all lists when nprobe
// covers nlist), admitting every point within radius up to maxResults.
func (idx *Index) RangeSearch(query []float32, radius float32, maxResults int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	if !idx.trained {
		return nil, gverrors.New("RangeSearch", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "ivfflat index not trained")
	}
	pred = filter.Coalesce(pred)

	q := query
	if idx.cfg.UseCosine {
		q = distance.Normalize(query)
	}
	nprobe := idx.cfg.Nprobe
	if nprobe <= 0 || nprobe > idx.cfg.Nlist {
		nprobe = idx.cfg.Nlist
	}
	lists := idx.nearestCentroids(q, nprobe)

	var out []gvtypes.Result
	for _, li := range lists {
		for _, slot := range idx.postings[li] {
			if maxResults > 0 && len(out) >= maxResults {
				return out, nil
			}
			data, _, metadata, ok := idx.storage.Get(slot)
			if !ok {
				continue
			}
			d, err := distance.Dense(metric, query, data)
			if err != nil {
				return nil, err
			}
			if d > radius || !pred.Eval(metadata) {
				continue
			}
			out = append(out, index.ResultFromStorage(idx.storage, slot, d))
		}
	}
	return out, nil
}
