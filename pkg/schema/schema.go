// Package schema implements the named-vector store: an optional
// per-namespace map from field name to its own SoA storage and primary
// index, so a single point id can carry multiple independently
// searchable vector fields (e.g. "title_embedding", "body_embedding").
package schema

import (
	"bytes"
	"io"
	"sync"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/distance"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/filter"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/flat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/ivfflat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/kdtree"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/pq"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// Named-vectors record magic/version.
const (
	Magic   uint32 = 0x47564E56 // "GVNV"
	Version uint32 = 1
)

// FieldConfig describes one named vector field's dimension, index
// variant, and distance metric.
type FieldConfig struct {
	Dim     int
	Variant index.Variant
	Metric  distance.Metric
	IVFFlat ivfflat.Config
	PQ      pq.Config
}

type field struct {
	cfg     FieldConfig
	storage *soa.Storage
	primary index.Index
}

func newField(cfg FieldConfig) (*field, error) {
	storage := soa.New(cfg.Dim)
	var idx index.Index
	switch cfg.Variant {
	case index.VariantFlat:
		idx = flat.New(storage)
	case index.VariantKDTree:
		idx = kdtree.New(storage)
	case index.VariantIVFFlat:
		idx = ivfflat.New(storage, cfg.IVFFlat)
	case index.VariantPQ:
		var err error
		idx, err = pq.New(storage, cfg.Dim, cfg.PQ)
		if err != nil {
			return nil, err
		}
	default:
		return nil, gverrors.New("AddField", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument,
			"unsupported field index variant %q", cfg.Variant)
	}
	return &field{cfg: cfg, storage: storage, primary: idx}, nil
}

// Store holds a namespace's named vector fields, each guarded
// independently of the namespace's own primary-index lock.
type Store struct {
	mu     sync.RWMutex
	fields map[string]*field
}

// NewStore returns an empty named-vector store.
func NewStore() *Store {
	return &Store{fields: make(map[string]*field)}
}

// AddField registers a new named vector field. Fails with
// AlreadyExists if name is taken.
func (s *Store) AddField(name string, cfg FieldConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fields[name]; ok {
		return gverrors.New("AddField", gverrors.KindAlreadyExists, gverrors.ErrAlreadyExists, "field %q already exists", name)
	}
	f, err := newField(cfg)
	if err != nil {
		return err
	}
	s.fields[name] = f
	return nil
}

// Fields returns every registered field name.
func (s *Store) Fields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.fields))
	for name := range s.fields {
		out = append(out, name)
	}
	return out
}

func (s *Store) getField(name string) (*field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[name]
	if !ok {
		return nil, gverrors.New("getField", gverrors.KindNotFound, gverrors.ErrNotFound, "field %q not found", name)
	}
	return f, nil
}

// AddVector inserts data into the named field's own storage and index.
func (s *Store) AddVector(fieldName string, id uint64, data []float32, metadata gvtypes.Metadata) error {
	f, err := s.getField(fieldName)
	if err != nil {
		return err
	}
	slot, err := f.storage.Append(id, data, metadata)
	if err != nil {
		return err
	}
	return f.primary.Insert(slot)
}

// DeleteVector tombstones id within the named field.
func (s *Store) DeleteVector(fieldName string, id uint64) error {
	f, err := s.getField(fieldName)
	if err != nil {
		return err
	}
	var slot uint64
	var found bool
	f.storage.Walk(func(sl uint64, data []float32, sid uint64, metadata gvtypes.Metadata) bool {
		if sid == id {
			slot, found = sl, true
			return false
		}
		return true
	})
	if !found {
		return gverrors.New("DeleteVector", gverrors.KindNotFound, gverrors.ErrNotFound, "id %d not found in field %q", id, fieldName)
	}
	if err := f.storage.Delete(slot); err != nil {
		return err
	}
	return f.primary.Delete(slot)
}

// Search dispatches to the named field's primary index.
func (s *Store) Search(fieldName string, query []float32, k int, pred filter.Predicate) ([]gvtypes.Result, error) {
	f, err := s.getField(fieldName)
	if err != nil {
		return nil, err
	}
	return f.primary.Search(query, k, f.cfg.Metric, pred)
}

func saveFieldIndex(w io.Writer, f *field) error {
	switch idx := f.primary.(type) {
	case *flat.Index:
		return nil
	case *kdtree.Index:
		return idx.Save(w)
	case *ivfflat.Index:
		return idx.Save(w, f.cfg.Dim)
	case *pq.Index:
		return idx.Save(w)
	default:
		return gverrors.New("Save", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "field index variant has no Save method")
	}
}

func loadFieldIndex(r io.Reader, variant index.Variant, storage *soa.Storage) (index.Index, error) {
	switch variant {
	case index.VariantFlat:
		return flat.New(storage), nil
	case index.VariantKDTree:
		return kdtree.Load(r, storage)
	case index.VariantIVFFlat:
		return ivfflat.Load(r, storage)
	case index.VariantPQ:
		return pq.Load(r, storage)
	default:
		return nil, gverrors.New("Load", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "unsupported field index variant %q", variant)
	}
}

// Save writes every field's name, variant, storage, and index as
// length-prefixed nested records.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fw := persistence.NewWriter(w)
	fw.WriteMagicVersion(Magic, Version)
	fw.WriteU32(uint32(len(s.fields)))

	for name, f := range s.fields {
		fw.WriteString(name)
		fw.WriteString(string(f.cfg.Variant))

		var storageBuf bytes.Buffer
		if err := persistence.SaveStorage(&storageBuf, f.storage); err != nil {
			return err
		}
		fw.WriteBytes(storageBuf.Bytes())

		var indexBuf bytes.Buffer
		if err := saveFieldIndex(&indexBuf, f); err != nil {
			return err
		}
		fw.WriteBytes(indexBuf.Bytes())
	}

	if fw.Err() != nil {
		return gverrors.Wrap("Save", gverrors.KindIO, fw.Err())
	}
	return fw.Flush()
}

// Load reads a named-vector record back into a fresh Store. fieldCfgs
// supplies the per-field FieldConfig (index variant/metric/etc. aren't
// round-tripped through storage alone).
func Load(r io.Reader, fieldCfgs map[string]FieldConfig) (*Store, error) {
	fr := persistence.NewReader(r)
	magic, version := fr.ReadMagicVersion()
	if err := persistence.CheckMagicVersion("Load", magic, Magic, version, Version); err != nil {
		return nil, err
	}

	count := fr.ReadU32()
	s := NewStore()
	for i := uint32(0); i < count; i++ {
		name := fr.ReadString()
		variant := index.Variant(fr.ReadString())
		storageBytes := fr.ReadBytes()
		indexBytes := fr.ReadBytes()

		storage, err := persistence.LoadStorage(bytes.NewReader(storageBytes))
		if err != nil {
			return nil, err
		}
		primary, err := loadFieldIndex(bytes.NewReader(indexBytes), variant, storage)
		if err != nil {
			return nil, err
		}

		cfg := fieldCfgs[name]
		cfg.Dim = storage.Dim()
		cfg.Variant = variant
		s.fields[name] = &field{cfg: cfg, storage: storage, primary: primary}
	}

	if fr.Err() != nil {
		return nil, gverrors.Wrap("Load", gverrors.KindCorrupt, fr.Err())
	}
	return s, nil
}
