// Package namespace implements the per-namespace storage+index handle
// and the manager that owns a set of namespaces by name.
package namespace

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/flat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/ivfflat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/kdtree"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/pq"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/sparse"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// Config describes how a namespace's storage and primary index are
// constructed.
type Config struct {
	Name    string
	Dim     int
	Variant index.Variant
	Metric  distance.Metric

	KDTree  struct{} // axis-cycling KD-tree takes no construction parameters
	IVFFlat ivfflat.Config
	PQ      pq.Config

	// EnableSparse attaches an auxiliary sparse inverted index,
	// independent of the primary dense index.
	EnableSparse bool
	SparseDim    uint32

	// MaxVectors and MaxMemoryBytes enforce quotas on add_vector; zero
	// disables the corresponding check.
	MaxVectors     uint64
	MaxMemoryBytes uint64
}

// Namespace is a single named collection: a dense SoA store, its
// primary index, and an optional auxiliary sparse index. Sparse and
// other auxiliary indices use their own RW locks, independent of the
// primary namespace lock.
type Namespace struct {
	cfg Config

	mu      sync.RWMutex
	storage *soa.Storage
	primary index.Index

	sparseMu sync.RWMutex
	sparse   *sparse.Index

	createdAt time.Time
	updatedAt time.Time

	idNode *snowflake.Node
}

func newPrimaryIndex(storage *soa.Storage, cfg Config) (index.Index, error) {
	switch cfg.Variant {
	case index.VariantFlat:
		return flat.New(storage), nil
	case index.VariantKDTree:
		return kdtree.New(storage), nil
	case index.VariantIVFFlat:
		return ivfflat.New(storage, cfg.IVFFlat), nil
	case index.VariantPQ:
		return pq.New(storage, cfg.Dim, cfg.PQ)
	default:
		return nil, gverrors.New("newPrimaryIndex", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"unsupported primary index variant %q", cfg.Variant)
	}
}

// New constructs a namespace from cfg. idNode generates caller-facing
// vector ids when AddVector is used without a caller-supplied id.
func New(cfg Config, idNode *snowflake.Node) (*Namespace, error) {
	if cfg.Dim <= 0 {
		return nil, gverrors.New("New", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "dimension must be > 0")
	}
	storage := soa.New(cfg.Dim)
	primary, err := newPrimaryIndex(storage, cfg)
	if err != nil {
		return nil, err
	}

	ns := &Namespace{
		cfg:       cfg,
		storage:   storage,
		primary:   primary,
		createdAt: time.Now(),
		updatedAt: time.Now(),
		idNode:    idNode,
	}
	if cfg.EnableSparse {
		ns.sparse = sparse.New(cfg.SparseDim)
	}
	return ns, nil
}

// Name returns the namespace's name.
func (ns *Namespace) Name() string { return ns.cfg.Name }

// Dim returns the namespace's dense vector dimensionality.
func (ns *Namespace) Dim() int { return ns.cfg.Dim }

func (ns *Namespace) estimatedBytes() uint64 { return ns.storage.EstimatedBytes() }

func (ns *Namespace) checkQuota(addedMeta gvtypes.Metadata, addedDim int) error {
	if ns.cfg.MaxVectors > 0 && ns.storage.LiveCount()+1 > ns.cfg.MaxVectors {
		return gverrors.New("AddVector", gverrors.KindQuotaExceeded, gverrors.ErrQuotaExceeded,
			"namespace %q: max_vectors quota of %d would be exceeded", ns.cfg.Name, ns.cfg.MaxVectors)
	}
	if ns.cfg.MaxMemoryBytes > 0 {
		var metaBytes uint64
		for _, p := range addedMeta {
			metaBytes += uint64(len(p.Key) + len(p.Value))
		}
		projected := ns.estimatedBytes() + uint64(addedDim)*4 + metaBytes
		if projected > ns.cfg.MaxMemoryBytes {
			return gverrors.New("AddVector", gverrors.KindQuotaExceeded, gverrors.ErrQuotaExceeded,
				"namespace %q: max_memory_bytes quota of %d would be exceeded", ns.cfg.Name, ns.cfg.MaxMemoryBytes)
		}
	}
	return nil
}

// AddVector inserts data into storage and the primary index under the
// namespace write lock, enforcing quotas first. A zero id requests
// snowflake-generated id assignment.
func (ns *Namespace) AddVector(id uint64, data []float32, metadata gvtypes.Metadata) (uint64, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if err := ns.checkQuota(metadata, len(data)); err != nil {
		return 0, err
	}
	if id == 0 && ns.idNode != nil {
		id = uint64(ns.idNode.Generate().Int64())
	}

	slot, err := ns.storage.Append(id, data, metadata)
	if err != nil {
		return 0, err
	}
	if err := ns.primary.Insert(slot); err != nil {
		return 0, err
	}
	ns.updatedAt = time.Now()
	return id, nil
}

// UpdateVector overwrites the dense data stored for id in place, under
// the namespace write lock. It does not touch the primary index:
// Flat and KD-tree read dense data fresh from storage on every search,
// so they see the update immediately, but IVF-Flat's centroid
// assignment and PQ's quantized code are both computed once at Insert
// time and are not recomputed here — those two variants only pick up
// an update's effect on cluster/code placement at the next Rebuild
// (run after compaction). Returns NotFound if id is not present.
func (ns *Namespace) UpdateVector(id uint64, data []float32) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	slot, ok := ns.findSlot(id)
	if !ok {
		return gverrors.New("UpdateVector", gverrors.KindNotFound, gverrors.ErrNotFound, "id %d not found", id)
	}
	if err := ns.storage.Update(slot, data); err != nil {
		return err
	}
	ns.updatedAt = time.Now()
	return nil
}

// DeleteVector tombstones the slot holding id. Returns NotFound if id
// is not present.
func (ns *Namespace) DeleteVector(id uint64) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	slot, ok := ns.findSlot(id)
	if !ok {
		return gverrors.New("DeleteVector", gverrors.KindNotFound, gverrors.ErrNotFound, "id %d not found", id)
	}
	if err := ns.storage.Delete(slot); err != nil {
		return err
	}
	if err := ns.primary.Delete(slot); err != nil {
		return err
	}
	ns.updatedAt = time.Now()
	return nil
}

func (ns *Namespace) findSlot(id uint64) (uint64, bool) {
	var found uint64
	var ok bool
	ns.storage.Walk(func(slot uint64, data []float32, sid uint64, metadata gvtypes.Metadata) bool {
		if sid == id {
			found, ok = slot, true
			return false
		}
		return true
	})
	return found, ok
}

// Search dispatches to the primary index under a read lock.
func (ns *Namespace) Search(query []float32, k int, pred filter.Predicate) ([]gvtypes.Result, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.primary.Search(query, k, ns.cfg.Metric, pred)
}

// RangeSearch dispatches to the primary index under a read lock.
func (ns *Namespace) RangeSearch(query []float32, radius float32, maxResults int, pred filter.Predicate) ([]gvtypes.Result, error) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.primary.RangeSearch(query, radius, maxResults, ns.cfg.Metric, pred)
}

// Count returns the live vector count.
func (ns *Namespace) Count() uint64 {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	return ns.storage.LiveCount()
}

// Sparse returns the namespace's auxiliary sparse index, or nil when
// EnableSparse was not set. Callers are expected to use SparseMu for
// their own locking around multi-step operations.
func (ns *Namespace) Sparse() *sparse.Index { return ns.sparse }

// SparseMu exposes the sparse index's independent lock.
func (ns *Namespace) SparseMu() *sync.RWMutex { return &ns.sparseMu }

// Storage exposes the underlying SoA store, used by the vacuum worker
// to run compaction under the namespace's own write lock.
func (ns *Namespace) Storage() *soa.Storage { return ns.storage }

// Primary exposes the primary index, used by the vacuum worker to
// rebuild after compaction.
func (ns *Namespace) Primary() index.Index { return ns.primary }

// Lock and Unlock expose the namespace write lock directly to callers
// (the vacuum worker) that must hold it across a multi-step operation.
func (ns *Namespace) Lock()   { ns.mu.Lock() }
func (ns *Namespace) Unlock() { ns.mu.Unlock() }

// RLock and RUnlock expose the namespace read lock to callers (the
// snapshot manager) that need a consistent view across a multi-step
// read.
func (ns *Namespace) RLock()   { ns.mu.RLock() }
func (ns *Namespace) RUnlock() { ns.mu.RUnlock() }

// Touch updates the namespace's last-modified timestamp.
func (ns *Namespace) Touch() { ns.updatedAt = time.Now() }

// CreatedAt and UpdatedAt report the namespace's lifecycle timestamps.
func (ns *Namespace) CreatedAt() time.Time { return ns.createdAt }
func (ns *Namespace) UpdatedAt() time.Time { return ns.updatedAt }
