package sparse

import (
	"io"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
)

// Sparse record magic/version.
const (
	Magic   uint32 = 0x47565350 // "GVSP"
	Version uint32 = 1
)

// Save writes dim, live-count, and per-point id, non-zero entries, and
// length-prefixed metadata pairs. Tombstoned points are not persisted,
// matching the dense storage codec's live-only convention.
func (idx *Index) Save(w io.Writer) error {
	fw := persistence.NewWriter(w)
	fw.WriteMagicVersion(Magic, Version)
	fw.WriteU32(idx.dim)
	fw.WriteU64(idx.Count())

	idx.Walk(func(v *gvtypes.SparseVector) bool {
		fw.WriteU64(v.ID)
		fw.WriteU32(uint32(len(v.Entries)))
		for _, e := range v.Entries {
			fw.WriteU32(e.Index)
			fw.WriteF32(e.Value)
		}
		fw.WriteU32(uint32(len(v.Metadata)))
		for _, p := range v.Metadata {
			fw.WriteString(p.Key)
			fw.WriteString(p.Value)
		}
		return true
	})

	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

// Load reads a sparse record back into a fresh Index.
func Load(r io.Reader) (*Index, error) {
	fr := persistence.NewReader(r)
	magic, version := fr.ReadMagicVersion()
	if err := persistence.CheckMagicVersion("Load", magic, Magic, version, Version); err != nil {
		return nil, err
	}

	dim := fr.ReadU32()
	count := fr.ReadU64()
	idx := New(dim)

	for i := uint64(0); i < count; i++ {
		id := fr.ReadU64()
		nnz := fr.ReadU32()
		entries := make([]gvtypes.SparseEntry, nnz)
		for j := range entries {
			entries[j].Index = fr.ReadU32()
			entries[j].Value = fr.ReadF32()
		}
		metaCount := fr.ReadU32()
		meta := make(gvtypes.Metadata, metaCount)
		for j := range meta {
			meta[j].Key = fr.ReadString()
			meta[j].Value = fr.ReadString()
		}
		if fr.Err() != nil {
			return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
		}
		sv := &gvtypes.SparseVector{ID: id, Dim: dim, Entries: entries, Metadata: meta}
		if err := idx.Add(sv); err != nil {
			return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, err)
		}
	}

	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return idx, nil
}
