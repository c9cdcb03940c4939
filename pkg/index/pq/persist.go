package pq

import (
	"io"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// PQ record magic/version.
const (
	Magic   uint32 = 0x47565051 // "GVPQ"
	Version uint32 = 1
)

// Save writes dimension, m, nbits, train_iters, the trained and retain
// flags, the codebook floats, then one record per encoded slot: the
// slot id, m code bytes, and — when raw vectors were retained — dim
// raw floats.
func (idx *Index) Save(w io.Writer) error {
	fw := persistence.NewWriter(w)
	fw.WriteMagicVersion(Magic, Version)
	fw.WriteU32(uint32(idx.dim))
	fw.WriteU8(uint8(idx.cfg.M))
	fw.WriteU8(idx.cfg.Nbits)
	fw.WriteU32(uint32(idx.cfg.TrainIters))
	fw.WriteU8(boolU8(idx.trained))
	fw.WriteU8(boolU8(idx.cfg.Retain))

	if idx.trained {
		fw.WriteF32Slice(idx.codebook)
	}

	fw.WriteU32(uint32(len(idx.codes)))
	for slot, code := range idx.codes {
		fw.WriteU64(slot)
		fw.WriteBytes(code)
		if idx.cfg.Retain {
			fw.WriteF32Slice(idx.raw[slot])
		}
	}

	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

func boolU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Load reads a PQ record back into a fresh Index bound to storage.
func Load(r io.Reader, storage *soa.Storage) (*Index, error) {
	fr := persistence.NewReader(r)
	magic, version := fr.ReadMagicVersion()
	if err := persistence.CheckMagicVersion("Load", magic, Magic, version, Version); err != nil {
		return nil, err
	}

	dim := int(fr.ReadU32())
	m := int(fr.ReadU8())
	nbits := fr.ReadU8()
	trainIters := int(fr.ReadU32())
	trained := fr.ReadU8() != 0
	retain := fr.ReadU8() != 0

	idx := &Index{
		storage: storage,
		cfg:     Config{M: m, Nbits: nbits, TrainIters: trainIters, Retain: retain},
		dim:     dim,
		dsub:    dim / m,
		ksub:    1 << nbits,
		codes:   make(map[uint64][]byte),
		raw:     make(map[uint64][]float32),
	}

	if trained {
		idx.codebook = fr.ReadF32Slice(m * idx.ksub * idx.dsub)
		idx.trained = true
	}

	n := fr.ReadU32()
	for i := uint32(0); i < n; i++ {
		slot := fr.ReadU64()
		code := fr.ReadBytes()
		idx.codes[slot] = code
		if retain {
			idx.raw[slot] = fr.ReadF32Slice(dim)
		}
	}

	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return idx, nil
}
