// Package index defines the shared capability interface implemented by
// every primary index (flat, KD-tree, IVF-Flat, PQ) so the namespace can
// hold one tagged-union variant and dispatch through a single interface,
// rather than a void*-and-typedef polymorphic pattern.
package index

import (
	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// Variant identifies which concrete index a namespace is configured
// with.
type Variant string

const (
	VariantFlat    Variant = "flat"
	VariantKDTree  Variant = "kdtree"
	VariantIVFFlat Variant = "ivfflat"
	VariantPQ      Variant = "pq"
	VariantSparse  Variant = "sparse"
)

// Index is the capability surface every primary index exposes. All
// indices operate over a single shared *soa.Storage by slot index;
// Insert and Delete are told which slot changed rather than being
// handed vector data directly, since the data already lives in storage.
type Index interface {
	// Insert incorporates a newly appended slot into the index's
	// auxiliary structures.
	Insert(slot uint64) error

	// Delete marks a slot as removed from the index's perspective. Most
	// indices rely on the storage tombstone and do nothing beyond that;
	// KD-tree in particular leaves its node in place.
	Delete(slot uint64) error

	// Search returns the top-k nearest neighbors to query under metric,
	// restricted to points for which pred.Eval(metadata) is true.
	Search(query []float32, k int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error)

	// RangeSearch returns every point within radius of query, up to
	// maxResults, not guaranteed sorted.
	RangeSearch(query []float32, radius float32, maxResults int, metric distance.Metric, pred filter.Predicate) ([]gvtypes.Result, error)

	// Count returns the number of slots the index is aware of (which may
	// include tombstoned slots it has not yet forgotten).
	Count() uint64

	// Rebuild reconstructs the index's auxiliary structures from
	// scratch against storage, used after compaction since slot indices
	// shift.
	Rebuild(storage *soa.Storage) error
}

// Candidate is an internal helper used by index implementations while
// scanning: a slot plus its computed distance, before the metadata
// predicate and heap admission.
type Candidate struct {
	Slot     uint64
	Distance float32
}

// ResultFromStorage builds a gvtypes.Result for a live slot, borrowing
// the vector data directly from storage.
func ResultFromStorage(s *soa.Storage, slot uint64, d float32) gvtypes.Result {
	data, id, meta, ok := s.Get(slot)
	if !ok {
		return gvtypes.Result{Slot: slot, Distance: d}
	}
	return gvtypes.Result{
		Slot:     slot,
		Distance: d,
		Vector: &gvtypes.Vector{
			ID:       id,
			Data:     data,
			Metadata: meta,
		},
	}
}
