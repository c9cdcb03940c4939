// Package sparse implements the sparse inverted index: a term→posting
// list structure over sparse vectors, with accumulator-based
// dot-product/cosine top-k search.
//
// Unlike the dense indices in pkg/index, which score slots held in a
// shared pkg/soa.Storage, the sparse index owns the vectors it is given
// outright — ownership of an inserted sparse vector transfers to the
// index, and there is no separate dense SoA array to index into. It
// therefore does not implement the shared index.Index interface, which
// is defined in terms of storage slots.
package sparse

import (
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/topk"
)

type posting struct {
	id    uint64
	value float32
}

// Index is the sparse inverted index over a fixed dimensionality.
// Search scores by plain dot product and never computes norms, so a
// cosine ranking holds only when stored and query vectors are unit
// length; Add does not check norms.
type Index struct {
	dim       uint32
	postings  map[uint32][]posting
	points    map[uint64]*gvtypes.SparseVector
	tombstone map[uint64]bool
}

// New returns an empty sparse index over dim terms.
func New(dim uint32) *Index {
	return &Index{
		dim:       dim,
		postings:  make(map[uint32][]posting),
		points:    make(map[uint64]*gvtypes.SparseVector),
		tombstone: make(map[uint64]bool),
	}
}

// Dim returns the term-space dimensionality.
func (idx *Index) Dim() uint32 { return idx.dim }

// Count returns the number of live (non-tombstoned) points.
func (idx *Index) Count() uint64 {
	var n uint64
	for id := range idx.points {
		if !idx.tombstone[id] {
			n++
		}
	}
	return n
}

// Add appends a posting for every non-zero entry of v and takes
// ownership of v. Fails with AlreadyExists if id is already present and
// live.
func (idx *Index) Add(v *gvtypes.SparseVector) error {
	if v.Dim != idx.dim {
		return gverrors.New("Add", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"dimension mismatch: index is %d, vector is %d", idx.dim, v.Dim)
	}
	if existing, ok := idx.points[v.ID]; ok && existing != nil && !idx.tombstone[v.ID] {
		return gverrors.New("Add", gverrors.KindAlreadyExists, gverrors.ErrAlreadyExists, "id %d already present", v.ID)
	}
	idx.points[v.ID] = v
	delete(idx.tombstone, v.ID)
	for _, e := range v.Entries {
		idx.postings[e.Index] = append(idx.postings[e.Index], posting{id: v.ID, value: e.Value})
	}
	return nil
}

// Delete tombstones id; its postings are left in place and skipped at
// search time, matching the dense indices' compaction-driven cleanup.
func (idx *Index) Delete(id uint64) error {
	if _, ok := idx.points[id]; !ok {
		return gverrors.New("Delete", gverrors.KindNotFound, gverrors.ErrNotFound, "id %d not found", id)
	}
	idx.tombstone[id] = true
	return nil
}

// Search walks the posting lists touched by query's non-zero entries,
// accumulating query.value * entry.value per candidate id, then drains
// a size-k heap of the accumulated scores. Reported distances follow
// the dense Dot-metric convention (negated, so lower is better) for
// consistency with pkg/distance.
func (idx *Index) Search(query *gvtypes.SparseVector, k int, pred filter.Predicate) ([]gvtypes.Result, error) {
	if query.Dim != idx.dim {
		return nil, gverrors.New("Search", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"dimension mismatch: index is %d, query is %d", idx.dim, query.Dim)
	}
	pred = filter.Coalesce(pred)

	accum := make(map[uint64]float32)
	for _, qe := range query.Entries {
		for _, p := range idx.postings[qe.Index] {
			if idx.tombstone[p.id] {
				continue
			}
			accum[p.id] += qe.Value * p.value
		}
	}

	h := topk.New(k)
	for id := range accum {
		sv := idx.points[id]
		if sv == nil || !pred.Eval(sv.Metadata) {
			continue
		}
		h.Admit(-accum[id], id)
	}

	entries := h.DrainSorted()
	out := make([]gvtypes.Result, len(entries))
	for i, e := range entries {
		sv := idx.points[e.Slot]
		out[i] = gvtypes.Result{
			Slot:     e.Slot,
			Distance: e.Distance,
			IsSparse: true,
			Sparse:   sv,
		}
	}
	return out, nil
}

// Walk visits every live point in the index in unspecified order.
func (idx *Index) Walk(fn func(v *gvtypes.SparseVector) bool) {
	for id, sv := range idx.points {
		if idx.tombstone[id] {
			continue
		}
		if !fn(sv) {
			return
		}
	}
}
