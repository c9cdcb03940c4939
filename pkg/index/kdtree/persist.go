package kdtree

import (
	"io"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// KD-tree record magic/version.
const (
	Magic   uint32 = 0x47564b44 // "GVKD"
	Version uint32 = 1
)

// Save flattens the tree by pre-order traversal: each node writes its
// axis (u32), slot (u64), and two 1-byte child-presence flags.
func (idx *Index) Save(w io.Writer) error {
	fw := persistence.NewWriter(w)
	fw.WriteMagicVersion(Magic, Version)
	fw.WriteU32(uint32(idx.dim))
	fw.WriteU32(uint32(len(idx.nodes)))

	idx.saveNode(fw, idx.root)

	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

func (idx *Index) saveNode(fw *persistence.Writer, cur int32) {
	if cur == noChild {
		return
	}
	n := &idx.nodes[cur]
	fw.WriteU32(uint32(n.axis))
	fw.WriteU64(n.slot)
	fw.WriteU8(boolByte(n.left != noChild))
	fw.WriteU8(boolByte(n.right != noChild))

	idx.saveNode(fw, n.left)
	idx.saveNode(fw, n.right)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Load reads a pre-order-flattened KD-tree back into a fresh Index
// bound to storage.
func Load(r io.Reader, storage *soa.Storage) (*Index, error) {
	fr := persistence.NewReader(r)
	magic, version := fr.ReadMagicVersion()
	if err := persistence.CheckMagicVersion("Load", magic, Magic, version, Version); err != nil {
		return nil, err
	}

	dim := int(fr.ReadU32())
	nodeCount := int(fr.ReadU32())

	idx := &Index{storage: storage, dim: dim, root: noChild, nodes: make([]node, 0, nodeCount)}
	if nodeCount > 0 {
		idx.root = idx.loadNode(fr)
	}
	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return idx, nil
}

func (idx *Index) loadNode(fr *persistence.Reader) int32 {
	axis := int(fr.ReadU32())
	slot := fr.ReadU64()
	hasLeft := fr.ReadU8() != 0
	hasRight := fr.ReadU8() != 0

	cur := int32(len(idx.nodes))
	idx.nodes = append(idx.nodes, node{slot: slot, axis: axis, left: noChild, right: noChild})

	if hasLeft {
		leftIdx := idx.loadNode(fr)
		idx.nodes[cur].left = leftIdx
	}
	if hasRight {
		rightIdx := idx.loadNode(fr)
		idx.nodes[cur].right = rightIdx
	}
	return cur
}
