// Package snapshot implements point-in-time, copy-on-create captures
// of a namespace's vector data: unbounded Snapshots and a bounded ring
// of Versions, both keyed by monotonically assigned snowflake ids.
package snapshot

import (
	"bytes"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
)

const maxLabelBytes = 63

// ASCII magic + version for the snapshot record.
var (
	magicBytes = []byte("GVSNAP")
	version    = uint32(1)
)

type point struct {
	id       uint64
	data     []float32
	metadata gvtypes.Metadata
}

// Snapshot is an immutable, owned copy of a namespace's live vector
// data at the moment Create was called.
type Snapshot struct {
	ID      uint64
	Label   string
	TakenAt time.Time
	Dim     int

	points []point
}

// GetVector returns a borrowed view of the point with the given id,
// valid for the snapshot's lifetime.
func (s *Snapshot) GetVector(id uint64) (*gvtypes.Vector, bool) {
	for _, p := range s.points {
		if p.id == id {
			return &gvtypes.Vector{ID: p.id, Data: p.data, Metadata: p.metadata}, true
		}
	}
	return nil, false
}

// Count returns the number of captured points.
func (s *Snapshot) Count() int { return len(s.points) }

func validateLabel(label string) error {
	if len(label) > maxLabelBytes {
		return gverrors.New("Create", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"label exceeds %d bytes", maxLabelBytes)
	}
	return nil
}

func capture(ns *namespace.Namespace, id uint64, label string) *Snapshot {
	ns.RLock()
	defer ns.RUnlock()

	storage := ns.Storage()
	snap := &Snapshot{ID: id, Label: label, TakenAt: time.Now(), Dim: storage.Dim()}
	storage.Walk(func(slot uint64, data []float32, pid uint64, metadata gvtypes.Metadata) bool {
		cp := make([]float32, len(data))
		copy(cp, data)
		snap.points = append(snap.points, point{id: pid, data: cp, metadata: metadata.Clone()})
		return true
	})
	return snap
}

// Save writes the snapshot's id, label, timestamp, dimension, and every
// captured point's id/data/metadata.
func (s *Snapshot) Save(w io.Writer) error {
	fw := persistence.NewWriter(w)
	fw.WriteRaw(magicBytes)
	fw.WriteU32(version)
	fw.WriteU64(s.ID)
	fw.WriteString(s.Label)
	fw.WriteU64(uint64(s.TakenAt.UnixMicro()))
	fw.WriteU32(uint32(s.Dim))
	fw.WriteU32(uint32(len(s.points)))
	for _, p := range s.points {
		fw.WriteU64(p.id)
		fw.WriteF32Slice(p.data)
		fw.WriteU32(uint32(len(p.metadata)))
		for _, kv := range p.metadata {
			fw.WriteString(kv.Key)
			fw.WriteString(kv.Value)
		}
	}
	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

// Load reads a snapshot record back.
func Load(r io.Reader) (*Snapshot, error) {
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

	s := &Snapshot{}
	s.ID = fr.ReadU64()
	s.Label = fr.ReadString()
	s.TakenAt = time.UnixMicro(int64(fr.ReadU64()))
	s.Dim = int(fr.ReadU32())
	n := fr.ReadU32()
	s.points = make([]point, n)
	for i := range s.points {
		s.points[i].id = fr.ReadU64()
		s.points[i].data = fr.ReadF32Slice(s.Dim)
		metaCount := fr.ReadU32()
		meta := make(gvtypes.Metadata, metaCount)
		for j := range meta {
			meta[j].Key = fr.ReadString()
			meta[j].Value = fr.ReadString()
		}
		s.points[i].metadata = meta
	}
	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return s, nil
}

// Manager owns an unbounded set of snapshots, keyed by id.
type Manager struct {
	idNode    *snowflake.Node
	snapshots map[uint64]*Snapshot
}

// NewManager returns an empty snapshot manager.
func NewManager(idNode *snowflake.Node) *Manager {
	return &Manager{idNode: idNode, snapshots: make(map[uint64]*Snapshot)}
}

// Create captures ns's live vector data under a new snapshot id.
func (m *Manager) Create(ns *namespace.Namespace, label string) (*Snapshot, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}
	id := uint64(m.idNode.Generate().Int64())
	snap := capture(ns, id, label)
	m.snapshots[id] = snap
	return snap, nil
}

// Get returns the snapshot registered under id, or NotFound.
func (m *Manager) Get(id uint64) (*Snapshot, error) {
	s, ok := m.snapshots[id]
	if !ok {
		return nil, gverrors.New("Get", gverrors.KindNotFound, gverrors.ErrNotFound, "snapshot %d not found", id)
	}
	return s, nil
}

// Delete removes a snapshot, after which borrowed get_vector pointers
// become invalid.
func (m *Manager) Delete(id uint64) error {
	if _, ok := m.snapshots[id]; !ok {
		return gverrors.New("Delete", gverrors.KindNotFound, gverrors.ErrNotFound, "snapshot %d not found", id)
	}
	delete(m.snapshots, id)
	return nil
}

// List returns every registered snapshot id.
func (m *Manager) List() []uint64 {
	out := make([]uint64, 0, len(m.snapshots))
	for id := range m.snapshots {
		out = append(out, id)
	}
	return out
}

// VersionManager owns a bounded ring of snapshots: creating past
// MaxVersions evicts the oldest.
type VersionManager struct {
	idNode      *snowflake.Node
	maxVersions int
	order       []uint64
	versions    map[uint64]*Snapshot
}

// NewVersionManager returns an empty version ring bounded to maxVersions.
func NewVersionManager(idNode *snowflake.Node, maxVersions int) *VersionManager {
	return &VersionManager{idNode: idNode, maxVersions: maxVersions, versions: make(map[uint64]*Snapshot)}
}

// Create captures ns, evicting the oldest version first if the ring is
// already at capacity.
func (m *VersionManager) Create(ns *namespace.Namespace, label string) (*Snapshot, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}
	if m.maxVersions > 0 && len(m.order) >= m.maxVersions {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.versions, oldest)
	}
	id := uint64(m.idNode.Generate().Int64())
	snap := capture(ns, id, label)
	m.versions[id] = snap
	m.order = append(m.order, id)
	return snap, nil
}

// Get returns the version registered under id, or NotFound.
func (m *VersionManager) Get(id uint64) (*Snapshot, error) {
	s, ok := m.versions[id]
	if !ok {
		return nil, gverrors.New("Get", gverrors.KindNotFound, gverrors.ErrNotFound, "version %d not found", id)
	}
	return s, nil
}

// List returns version ids oldest-first.
func (m *VersionManager) List() []uint64 {
	out := make([]uint64, len(m.order))
	copy(out, m.order)
	return out
}
