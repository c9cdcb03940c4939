package persistence

import (
	"io"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// Storage record magic/version.
const (
	StorageMagic   uint32 = 0x47565354 // "GVST"
	StorageVersion uint32 = 1
)

// SaveStorage writes dimension, live-count, and per live vector its u64
// id, raw floats and length-prefixed metadata pairs, in slot order.
func SaveStorage(w io.Writer, s *soa.Storage) error {
	fw := NewWriter(w)
	fw.WriteMagicVersion(StorageMagic, StorageVersion)
	fw.WriteU32(uint32(s.Dim()))
	fw.WriteU64(s.LiveCount())

	var walkErr error
	s.Walk(func(slot uint64, data []float32, id uint64, metadata gvtypes.Metadata) bool {
		fw.WriteU64(id)
		fw.WriteF32Slice(data)
		fw.WriteU32(uint32(len(metadata)))
		for _, p := range metadata {
			fw.WriteString(p.Key)
			fw.WriteString(p.Value)
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}
	if fw.Err() != nil {
		return gverrors.Wrap("SaveStorage", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

// LoadStorage reads a storage record back into a fresh *soa.Storage.
// Slots are reassigned in save order starting at 0, matching the
// guarantee that compaction (which SaveStorage always observes,
// conceptually, since it only persists live slots) produces a dense
// 0..live-count-1 range.
func LoadStorage(r io.Reader) (*soa.Storage, error) {
	fr := NewReader(r)
	magic, version := fr.ReadMagicVersion()
	if err := CheckMagicVersion("LoadStorage", magic, StorageMagic, version, StorageVersion); err != nil {
		return nil, err
	}

	dim := int(fr.ReadU32())
	liveCount := fr.ReadU64()

	s := soa.New(dim)
	for i := uint64(0); i < liveCount; i++ {
		id := fr.ReadU64()
		data := fr.ReadF32Slice(dim)
		metaCount := fr.ReadU32()
		meta := make(gvtypes.Metadata, metaCount)
		for j := range meta {
			meta[j].Key = fr.ReadString()
			meta[j].Value = fr.ReadString()
		}
		if fr.Err() != nil {
			return nil, gverrors.Wrap("LoadStorage", gverrors.KindCorrupt, fr.Err())
		}
		if _, err := s.Append(id, data, meta); err != nil {
			return nil, gverrors.Wrap("LoadStorage", gverrors.KindCorrupt, err)
		}
	}
	if fr.Err() != nil {
		return nil, gverrors.Wrap("LoadStorage", gverrors.KindCorrupt, fr.Err())
	}
	return s, nil
}
