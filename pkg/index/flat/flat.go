// Package flat implements the brute-force exact index: a linear scan
// over the shared SoA storage with no auxiliary structure.
package flat

import (
	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/topk"
)

// Index is the flat (brute-force) primary index. It holds no state of
// its own beyond a pointer to the shared storage, scoring every live
// slot on each search.
type Index struct {
	storage *soa.Storage
}

// New returns a flat index over storage.
func New(storage *soa.Storage) *Index {
	return &Index{storage: storage}
}

// Insert is a no-op: flat has no auxiliary structure to update.
func (idx *Index) Insert(slot uint64) error { return nil }

// Delete is a no-op: the storage tombstone alone determines visibility.
func (idx *Index) Delete(slot uint64) error { return nil }

// Count returns the storage's total slot count.
func (idx *Index) Count() uint64 { return idx.storage.Count() }

// Rebuild only rebinds the index to storage: flat keeps no auxiliary
// structure to rebuild after compaction.
func (idx *Index) Rebuild(storage *soa.Storage) error {
	idx.storage = storage
	return nil
}

// Search scans every live slot, computes its distance, applies pred,
// and admits survivors into a size-k bounded heap.
func (idx *Index) Search(query []float32, k int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	pred = filter.Coalesce(pred)
	h := topk.New(k)

	var firstErr error
	idx.storage.Walk(func(slot uint64, data []float32, id uint64, metadata gvtypes.Metadata) bool {
		d, err := distance.Dense(metric, query, data)
		if err != nil {
			firstErr = err
			return false
		}
		if !pred.Eval(metadata) {
			return true
		}
		h.Admit(d, slot)
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}

	entries := h.DrainSorted()
	out := make([]gvtypes.Result, len(entries))
	for i, e := range entries {
		out[i] = index.ResultFromStorage(idx.storage, e.Slot, e.Distance)
	}
	return out, nil
}

// RangeSearch scans every live slot, admitting every point within
// radius up to maxResults. The order of returned results is not
// guaranteed.
func (idx *Index) RangeSearch(query []float32, radius float32, maxResults int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	pred = filter.Coalesce(pred)
	var out []gvtypes.Result
	var firstErr error

	idx.storage.Walk(func(slot uint64, data []float32, id uint64, metadata gvtypes.Metadata) bool {
		if maxResults > 0 && len(out) >= maxResults {
			return false
		}
		d, err := distance.Dense(metric, query, data)
		if err != nil {
			firstErr = err
			return false
		}
		if d > radius || !pred.Eval(metadata) {
			return true
		}
		out = append(out, index.ResultFromStorage(idx.storage, slot, d))
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

var _ index.Index = (*Index)(nil)
