// Package topk implements a fixed-capacity bounded max-heap of
// (distance, slot) pairs used by every index's top-k search.
package topk

import "container/heap"

// Entry is a single candidate: a storage slot and its distance from the
// query.
type Entry struct {
	Distance float32
	Slot     uint64

	// seq records insertion order so that ties break in favor of the
	// earlier-inserted slot, keeping the tie-break stable.
	seq int
}

// Heap is a bounded max-heap: it retains the k smallest-distance entries
// seen so far, with the largest of those k at the root so a new
// admission can be compared in O(1) before paying for a sift.
type Heap struct {
	k       int
	entries []Entry
	nextSeq int
}

// New returns an empty bounded heap with the given capacity. Capacity
// must be at least 1.
func New(k int) *Heap {
	if k < 1 {
		k = 1
	}
	return &Heap{k: k, entries: make([]Entry, 0, k)}
}

// Len implements heap.Interface.
func (h *Heap) Len() int { return len(h.entries) }

// Less implements heap.Interface: this is a max-heap on Distance, with
// ties broken by earlier insertion sequence winning (i.e. the *later*
// insertion is considered "larger" so it is evicted first on a tie).
func (h *Heap) Less(i, j int) bool {
	if h.entries[i].Distance != h.entries[j].Distance {
		return h.entries[i].Distance > h.entries[j].Distance
	}
	return h.entries[i].seq > h.entries[j].seq
}

// Swap implements heap.Interface.
func (h *Heap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

// Push implements heap.Interface. Use Admit to admit a candidate; this
// method exists only to satisfy container/heap.
func (h *Heap) Push(x any) { h.entries = append(h.entries, x.(Entry)) }

// Pop implements heap.Interface.
func (h *Heap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}

// Admit pushes (distance, slot) into the heap, admitting it if the heap
// is not yet at capacity, or replacing the current worst entry if d is
// strictly smaller. Returns true if the candidate was admitted (and thus
// retained, at least until a later smaller candidate evicts it).
func (h *Heap) Admit(d float32, slot uint64) bool {
	e := Entry{Distance: d, Slot: slot, seq: h.nextSeq}
	h.nextSeq++

	if len(h.entries) < h.k {
		heap.Push(h, e)
		return true
	}
	if d < h.entries[0].Distance {
		h.entries[0] = e
		heap.Fix(h, 0)
		return true
	}
	return false
}

// Full reports whether the heap has reached capacity.
func (h *Heap) Full() bool {
	return len(h.entries) >= h.k
}

// Worst returns the current worst (largest) distance retained, and
// whether the heap is non-empty.
func (h *Heap) Worst() (float32, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[0].Distance, true
}

// DrainSorted empties the heap and returns its entries in ascending
// distance order, ties broken by insertion order.
func (h *Heap) DrainSorted() []Entry {
	out := make([]Entry, len(h.entries))
	n := len(h.entries)
	for i := n - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Entry)
	}
	return out
}
