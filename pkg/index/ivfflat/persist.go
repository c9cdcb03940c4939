package ivfflat

import (
	"io"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// IVF-Flat record magic/version.
const (
	Magic   uint32 = 0x47564946 // "GVIF"
	Version uint32 = 1
)

// Save writes nlist/nprobe/train_iters/cosine-flag, the trained flag,
// the dimension, then (when trained) the codebook floats and nlist
// length-prefixed posting lists.
func (idx *Index) Save(w io.Writer, dim int) error {
	fw := persistence.NewWriter(w)
	fw.WriteMagicVersion(Magic, Version)
	fw.WriteU32(uint32(idx.cfg.Nlist))
	fw.WriteU32(uint32(idx.cfg.Nprobe))
	fw.WriteU32(uint32(idx.cfg.TrainIters))
	fw.WriteU32(boolU32(idx.cfg.UseCosine))
	fw.WriteU32(boolU32(idx.trained))
	fw.WriteU32(uint32(dim))

	if idx.trained {
		for _, c := range idx.centroids {
			fw.WriteF32Slice(c)
		}
		for _, p := range idx.postings {
			fw.WriteU32(uint32(len(p)))
			for _, slot := range p {
				fw.WriteU64(slot)
			}
		}
	}

	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Load reads an IVF-Flat record back into a fresh Index bound to
// storage.
func Load(r io.Reader, storage *soa.Storage) (*Index, error) {
	fr := persistence.NewReader(r)
	magic, version := fr.ReadMagicVersion()
	if err := persistence.CheckMagicVersion("Load", magic, Magic, version, Version); err != nil {
		return nil, err
	}

	cfg := Config{
		Nlist:      int(fr.ReadU32()),
		Nprobe:     int(fr.ReadU32()),
		TrainIters: int(fr.ReadU32()),
		UseCosine:  fr.ReadU32() != 0,
	}
	trained := fr.ReadU32() != 0
	dim := int(fr.ReadU32())

	idx := &Index{storage: storage, cfg: cfg}
	if trained {
		idx.centroids = make([][]float32, cfg.Nlist)
		for i := range idx.centroids {
			idx.centroids[i] = fr.ReadF32Slice(dim)
		}
		idx.postings = make([][]uint64, cfg.Nlist)
		for i := range idx.postings {
			n := fr.ReadU32()
			list := make([]uint64, n)
			for j := range list {
				list[j] = fr.ReadU64()
			}
			idx.postings[i] = list
		}
		idx.trained = true
	}

	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return idx, nil
}
