// Package kdtree implements the axis-cycling binary tree index over SoA
// storage slots. Nodes live in a flat arena addressed by integer index
// rather than raw pointers, so deletion of a subtree is just letting
// the arena entries go unreferenced on the next rebuild.
package kdtree

import (
	"math"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/topk"
)

const noChild = -1

// node is one arena entry: the storage slot it represents, the
// splitting axis chosen at its depth, and arena indices of its
// children (noChild when absent).
type node struct {
	slot        uint64
	axis        int
	left, right int32
}

// Index is the KD-tree primary index.
type Index struct {
	storage *soa.Storage
	dim     int
	nodes   []node
	root    int32
}

// New returns an empty KD-tree index over storage.
func New(storage *soa.Storage) *Index {
	return &Index{storage: storage, dim: storage.Dim(), root: noChild}
}

var _ index.Index = (*Index)(nil)

// Insert descends from the root comparing query[axis] vs the existing
// node's value at that axis, with axis = depth % D, placing the new
// node as a leaf. No rebalancing occurs.
func (idx *Index) Insert(slot uint64) error {
	data, _, _, ok := idx.storage.Get(slot)
	if !ok {
		return nil
	}
	newIdx := int32(len(idx.nodes))
	idx.nodes = append(idx.nodes, node{slot: slot, axis: 0, left: noChild, right: noChild})

	if idx.root == noChild {
		idx.root = newIdx
		return nil
	}

	depth := 0
	cur := idx.root
	for {
		n := &idx.nodes[cur]
		axis := depth % idx.dim
		existing, _, ok := idx.storage.GetRaw(n.slot)
		if !ok {
			existing = make([]float32, idx.dim)
		}

		var next *int32
		if data[axis] < existing[axis] {
			next = &n.left
		} else {
			next = &n.right
		}
		if *next == noChild {
			idx.nodes[newIdx].axis = (depth + 1) % idx.dim
			*next = newIdx
			return nil
		}
		cur = *next
		depth++
	}
}

// Delete leaves the node in place; the storage tombstone makes it
// invisible to the predicate pass.
func (idx *Index) Delete(slot uint64) error { return nil }

// Count returns the number of nodes ever inserted into the arena.
func (idx *Index) Count() uint64 { return uint64(len(idx.nodes)) }

// Rebuild discards the tree and reinserts every live slot in storage
// order, required after compaction since slot indices shift.
func (idx *Index) Rebuild(storage *soa.Storage) error {
	idx.storage = storage
	idx.dim = storage.Dim()
	idx.nodes = idx.nodes[:0]
	idx.root = noChild

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

// searchState threads the bounded heap, predicate, and metric through
// the recursive descent.
type searchState struct {
	query  []float32
	metric distance.Metric
	pred   filter.Predicate
	heap   *topk.Heap
}

// Search performs bounded best-first search: at each node it computes
// the node's distance and admits it, recurses into the child on the
// query's side of the splitting axis, then recurses into the other
// child only if the axis-aligned half-space distance could still hold a
// closer point than the current worst-of-k.
func (idx *Index) Search(query []float32, k int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error) {
	if idx.root == noChild {
		return nil, nil
	}
	st := &searchState{query: query, metric: metric, pred: filter.Coalesce(pred), heap: topk.New(k)}

	var searchErr error
	idx.search(idx.root, st, &searchErr)
	if searchErr != nil {
		return nil, searchErr
	}

	entries := st.heap.DrainSorted()
	out := make([]gvtypes.Result, len(entries))
	for i, e := range entries {
		out[i] = index.ResultFromStorage(idx.storage, e.Slot, e.Distance)
	}
	return out, nil
}

func (idx *Index) search(cur int32, st *searchState, errOut *error) {
	if cur == noChild {
		return
	}
	n := &idx.nodes[cur]

	// A tombstoned ancestor still holds its vector data until
	// compaction, and the axis value at this node must come from that
	// data regardless of tombstone state: falling back to zero here
	// corrupts near/far branch selection and the pruning bound for
	// every descendant, not just this node's own admission.
	rawData, _, okRaw := idx.storage.GetRaw(n.slot)
	if !okRaw {
		return
	}

	data, _, metadata, ok := idx.storage.Get(n.slot)
	if ok {
		d, err := distance.Dense(st.metric, st.query, data)
		if err != nil {
			*errOut = err
			return
		}
		if st.pred.Eval(metadata) {
			st.heap.Admit(d, n.slot)
		}
	}

	axis := n.axis
	existingAxis := rawData[axis]

	near, far := n.left, n.right
	if len(st.query) > axis && st.query[axis] >= existingAxis {
		near, far = n.right, n.left
	}

	idx.search(near, st, errOut)
	if *errOut != nil {
		return
	}

	worst, _ := st.heap.Worst()
	axisDist := float32(math.Abs(float64(st.query[axis]) - float64(existingAxis)))
	if !st.heap.Full() || axisDist < worst {
		idx.search(far, st, errOut)
	}
}

// RangeSearch falls back to a full traversal admitting every point
// within radius; KD-tree pruning for range queries is not worth the
// complexity at the scale this index targets, and correctness matters
// more than constant factors here.
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
	return out, firstErr
}
