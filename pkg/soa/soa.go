// Package soa implements the Structure-of-Arrays vector storage that
// every primary index operates over by slot index: a contiguous dense
// float array, a parallel metadata list, and a tombstone bitmap.
//
// A fourth parallel array (ids) tracks the caller-assigned point id
// alongside each slot: every index and search result needs to report
// the stable point id back to the caller, so it is carried here rather
// than re-derived elsewhere.
package soa

import (
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
)

const minCapacity = 16

// RebuildHook is invoked exactly once by Compact, after every live
// vector has been moved to its new slot, with the old->new slot map.
type RebuildHook func(oldToNew map[uint64]uint64)

// Storage is a slot-indexed Structure-of-Arrays store for one namespace's
// primary vector data.
type Storage struct {
	dim int

	data      []float32
	ids       []uint64
	metadata  []gvtypes.Metadata
	tombstone []bool

	count    uint64
	capacity uint64
}

// New creates an empty storage for the given dimension.
func New(dim int) *Storage {
	return &Storage{dim: dim}
}

// Dim returns the configured vector dimension.
func (s *Storage) Dim() int { return s.dim }

// Count returns the total number of slots ever appended (including
// tombstoned ones).
func (s *Storage) Count() uint64 { return s.count }

// Capacity returns the current slot capacity.
func (s *Storage) Capacity() uint64 { return s.capacity }

// LiveCount returns the number of non-tombstoned slots.
func (s *Storage) LiveCount() uint64 {
	var live uint64
	for _, t := range s.tombstone[:s.count] {
		if !t {
			live++
		}
	}
	return live
}

func (s *Storage) grow(minSlots uint64) {
	if minSlots <= s.capacity {
		return
	}
	newCap := s.capacity
	if newCap < minCapacity {
		newCap = minCapacity
	}
	for newCap < minSlots {
		newCap *= 2
	}

	newData := make([]float32, newCap*uint64(s.dim))
	copy(newData, s.data)
	s.data = newData

	newIDs := make([]uint64, newCap)
	copy(newIDs, s.ids)
	s.ids = newIDs

	newMeta := make([]gvtypes.Metadata, newCap)
	copy(newMeta, s.metadata)
	s.metadata = newMeta

	newTomb := make([]bool, newCap)
	copy(newTomb, s.tombstone)
	s.tombstone = newTomb

	s.capacity = newCap
}

// Append copies data into the dense array at the next free slot, takes
// ownership of metadata, clears the tombstone, and returns the
// pre-append count as the new slot index.
func (s *Storage) Append(id uint64, data []float32, metadata gvtypes.Metadata) (uint64, error) {
	if len(data) != s.dim {
		return 0, gverrors.New("Append", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"vector dimension %d != storage dimension %d", len(data), s.dim)
	}

	slot := s.count
	s.grow(s.count + 1)

	copy(s.data[slot*uint64(s.dim):(slot+1)*uint64(s.dim)], data)
	s.ids[slot] = id
	s.metadata[slot] = metadata
	s.tombstone[slot] = false
	s.count++

	return slot, nil
}

// Delete tombstones slot. Deleting a slot beyond count fails with
// OutOfRange; deleting an already-tombstoned slot is a no-op success.
func (s *Storage) Delete(slot uint64) error {
	if slot >= s.count {
		return gverrors.New("Delete", gverrors.KindOutOfRange, gverrors.ErrOutOfRange,
			"slot %d >= count %d", slot, s.count)
	}
	if s.tombstone[slot] {
		return nil
	}
	s.tombstone[slot] = true
	s.metadata[slot] = nil
	return nil
}

// Update overwrites the dense data at slot. It fails when the slot is
// tombstoned or out of range.
func (s *Storage) Update(slot uint64, data []float32) error {
	if slot >= s.count {
		return gverrors.New("Update", gverrors.KindOutOfRange, gverrors.ErrOutOfRange,
			"slot %d >= count %d", slot, s.count)
	}
	if s.tombstone[slot] {
		return gverrors.New("Update", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed,
			"slot %d is tombstoned", slot)
	}
	if len(data) != s.dim {
		return gverrors.New("Update", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"vector dimension %d != storage dimension %d", len(data), s.dim)
	}
	copy(s.data[slot*uint64(s.dim):(slot+1)*uint64(s.dim)], data)
	return nil
}

// Get returns the vector data, id and metadata for a live slot. Getting a
// tombstoned or out-of-range slot returns ok=false.
func (s *Storage) Get(slot uint64) (data []float32, id uint64, metadata gvtypes.Metadata, ok bool) {
	if slot >= s.count || s.tombstone[slot] {
		return nil, 0, nil, false
	}
	return s.data[slot*uint64(s.dim) : (slot+1)*uint64(s.dim)], s.ids[slot], s.metadata[slot], true
}

// GetRaw returns the vector data and id for slot regardless of
// tombstone state, failing only when slot is beyond count. Tombstoning
// preserves a slot's vector data until compaction, and index traversal
// code (e.g. KD-tree's ancestor lookups) needs that data to compute
// distances and pruning bounds even when the slot itself is no longer a
// live result.
func (s *Storage) GetRaw(slot uint64) (data []float32, id uint64, ok bool) {
	if slot >= s.count {
		return nil, 0, false
	}
	return s.data[slot*uint64(s.dim) : (slot+1)*uint64(s.dim)], s.ids[slot], true
}

// IsTombstoned reports whether slot has been deleted. Slots beyond count
// are reported as tombstoned.
func (s *Storage) IsTombstoned(slot uint64) bool {
	if slot >= s.count {
		return true
	}
	return s.tombstone[slot]
}

// EstimatedBytes returns an estimated byte footprint, used for quota
// enforcement: count*dim*4 (tombstoned slots included) plus the key and
// value bytes of live slots' metadata.
func (s *Storage) EstimatedBytes() uint64 {
	var metaBytes uint64
	for i, t := range s.tombstone[:s.count] {
		if t {
			continue
		}
		for _, p := range s.metadata[i] {
			metaBytes += uint64(len(p.Key) + len(p.Value))
		}
	}
	return s.count*uint64(s.dim)*4 + metaBytes
}

// Compact rebuilds storage to eliminate tombstones: it allocates fresh
// arrays sized to the live count, walks old slots in order copying live
// vectors into the new arrays, and invokes hook exactly once with the
// old->new slot map before returning. After Compact, LiveCount ==
// Count == Capacity and every tombstone is cleared. Compact is
// CompactBatched with no batching and no pause.
func (s *Storage) Compact(hook RebuildHook) error {
	return s.CompactBatched(0, hook, nil)
}

// CompactBatched behaves like Compact but, when batchSize > 0, calls
// pause after copying every batchSize live slots (except after the
// final batch). The new arrays are not swapped in until every slot has
// been copied, so a pause never exposes a partially rebuilt storage to
// readers; it only stretches out the time the caller's lock is held.
func (s *Storage) CompactBatched(batchSize uint64, hook RebuildHook, pause func()) error {
	live := s.LiveCount()

	newData := make([]float32, live*uint64(s.dim))
	newIDs := make([]uint64, live)
	newMeta := make([]gvtypes.Metadata, live)
	newTomb := make([]bool, live)

	oldToNew := make(map[uint64]uint64, live)
	var newSlot uint64
	var sinceLastPause uint64
	for old := uint64(0); old < s.count; old++ {
		if s.tombstone[old] {
			continue
		}
		copy(newData[newSlot*uint64(s.dim):(newSlot+1)*uint64(s.dim)], s.data[old*uint64(s.dim):(old+1)*uint64(s.dim)])
		newIDs[newSlot] = s.ids[old]
		newMeta[newSlot] = s.metadata[old]
		oldToNew[old] = newSlot
		newSlot++
		sinceLastPause++

		if batchSize > 0 && sinceLastPause >= batchSize && newSlot < live {
			sinceLastPause = 0
			if pause != nil {
				pause()
			}
		}
	}

	s.data = newData
	s.ids = newIDs
	s.metadata = newMeta
	s.tombstone = newTomb
	s.count = live
	s.capacity = live

	if hook != nil {
		hook(oldToNew)
	}
	return nil
}

// Walk calls fn for every live slot in increasing order, stopping early
// if fn returns false.
func (s *Storage) Walk(fn func(slot uint64, data []float32, id uint64, metadata gvtypes.Metadata) bool) {
	for slot := uint64(0); slot < s.count; slot++ {
		if s.tombstone[slot] {
			continue
		}
		if !fn(slot, s.data[slot*uint64(s.dim):(slot+1)*uint64(s.dim)], s.ids[slot], s.metadata[slot]) {
			return
		}
	}
}
