// Package jsonpath implements a minimal secondary index mapping a
// dotted metadata path to the set of slots whose metadata contains
// that path, for fast existence filters ahead of the opaque Predicate
// interface.
package jsonpath

import (
	"bytes"
	"io"
	"sync"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
)

// ASCII magic + version for the JSON-path index record.
var magicBytes = []byte("GV_JPI")

const version = uint32(1)

// Index maps a dotted metadata key path (e.g. "attrs.color") to the set
// of slots whose metadata contains that path, independent of the
// namespace's own lock.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[uint64]struct{}
}

// New returns an empty JSON-path index.
func New() *Index {
	return &Index{postings: make(map[string]map[uint64]struct{})}
}

// Insert registers slot against every metadata key present on it.
func (idx *Index) Insert(slot uint64, metadata gvtypes.Metadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, p := range metadata {
		set, ok := idx.postings[p.Key]
		if !ok {
			set = make(map[uint64]struct{})
			idx.postings[p.Key] = set
		}
		set[slot] = struct{}{}
	}
}

// Delete removes slot from the posting set of each path named in
// metadata; postings under other paths are left untouched.
func (idx *Index) Delete(slot uint64, metadata gvtypes.Metadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, p := range metadata {
		if set, ok := idx.postings[p.Key]; ok {
			delete(set, slot)
		}
	}
}

// Has reports whether path is indexed at all.
func (idx *Index) Has(path string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.postings[path]
	return ok
}

// Slots returns the set of slots whose metadata contains path.
func (idx *Index) Slots(path string) []uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	set := idx.postings[path]
	out := make([]uint64, 0, len(set))
	for slot := range set {
		out = append(out, slot)
	}
	return out
}

// Save writes every path and its posting slot list.
func (idx *Index) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	fw := persistence.NewWriter(w)
	fw.WriteRaw(magicBytes)
	fw.WriteU32(version)
	fw.WriteU32(uint32(len(idx.postings)))
	for path, set := range idx.postings {
		fw.WriteString(path)
		fw.WriteU32(uint32(len(set)))
		for slot := range set {
			fw.WriteU64(slot)
		}
	}
	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

// Load reads a JSON-path record back into a fresh Index.
func Load(r io.Reader) (*Index, error) {
	fr := persistence.NewReader(r)
	gotMagic := fr.ReadRaw(len(magicBytes))
	gotVersion := fr.ReadU32()
	if !bytes.Equal(gotMagic, magicBytes) {
		return nil, gverrors.New("Load", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "unsupported format: magic mismatch")
	}
	if gotVersion != version {
		return nil, gverrors.New("Load", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed,
			"unsupported version: %d != expected %d", gotVersion, version)
	}

	idx := New()
	pathCount := fr.ReadU32()
	for i := uint32(0); i < pathCount; i++ {
		path := fr.ReadString()
		n := fr.ReadU32()
		set := make(map[uint64]struct{}, n)
		for j := uint32(0); j < n; j++ {
			set[fr.ReadU64()] = struct{}{}
		}
		idx.postings[path] = set
	}
	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return idx, nil
}
