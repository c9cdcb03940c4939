package namespace

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/flat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/ivfflat"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/kdtree"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/pq"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/index/sparse"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/persistence"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/soa"
)

// Manager owns a set of namespaces keyed by name. A separate
// manager-level lock guards the name→namespace map; per-namespace
// locks guard each namespace's own storage and index. Exists and Get
// only take the manager's read lock; Create and Delete take its write
// lock.
type Manager struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace

	basePath string
	idNode   *snowflake.Node
	log      *zap.Logger
}

// NewManager returns an empty Manager. basePath, when non-empty, is
// used by SaveAll/LoadAll and by Delete's directory-entry cleanup.
func NewManager(basePath string, idNode *snowflake.Node, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		namespaces: make(map[string]*Namespace),
		basePath:   basePath,
		idNode:     idNode,
		log:        log,
	}
}

// Create registers a new namespace under cfg.Name. Fails with
// AlreadyExists if the name is taken.
func (m *Manager) Create(cfg Config) (*Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.namespaces[cfg.Name]; ok {
		return nil, gverrors.New("Create", gverrors.KindAlreadyExists, gverrors.ErrAlreadyExists, "namespace %q already exists", cfg.Name)
	}
	ns, err := New(cfg, m.idNode)
	if err != nil {
		return nil, err
	}
	m.namespaces[cfg.Name] = ns
	m.log.Info("namespace created", zap.String("name", cfg.Name), zap.String("variant", string(cfg.Variant)))
	return ns, nil
}

// Get returns the namespace registered under name, or NotFound.
func (m *Manager) Get(name string) (*Namespace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ns, ok := m.namespaces[name]
	if !ok {
		return nil, gverrors.New("Get", gverrors.KindNotFound, gverrors.ErrNotFound, "namespace %q not found", name)
	}
	return ns, nil
}

// Exists reports whether name is registered.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[name]
	return ok
}

// List returns every registered namespace name.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.namespaces))
	for name := range m.namespaces {
		out = append(out, name)
	}
	return out
}

// Delete removes a namespace and, when a base path was configured,
// removes its on-disk directory entry.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.namespaces[name]; !ok {
		return gverrors.New("Delete", gverrors.KindNotFound, gverrors.ErrNotFound, "namespace %q not found", name)
	}
	delete(m.namespaces, name)

	if m.basePath != "" {
		if err := os.RemoveAll(m.namespacePath(name)); err != nil && !os.IsNotExist(err) {
			return gverrors.Wrap("Delete", gverrors.KindIO, err)
		}
	}
	m.log.Info("namespace deleted", zap.String("name", name))
	return nil
}

func (m *Manager) namespacePath(name string) string {
	return filepath.Join(m.basePath, name)
}

// SaveAll persists every namespace concurrently to basePath, using
// errgroup to fan out the per-namespace writes and collect the first
// error.
func (m *Manager) SaveAll(ctx context.Context) error {
	if m.basePath == "" {
		return gverrors.New("SaveAll", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "no base path configured")
	}
	m.mu.RLock()
	snapshot := make(map[string]*Namespace, len(m.namespaces))
	for name, ns := range m.namespaces {
		snapshot[name] = ns
	}
	m.mu.RUnlock()

	g, _ := errgroup.WithContext(ctx)
	for name, ns := range snapshot {
		name, ns := name, ns
		g.Go(func() error {
			return m.saveNamespace(name, ns)
		})
	}
	return g.Wait()
}

func (m *Manager) saveNamespace(name string, ns *Namespace) error {
	if err := os.MkdirAll(m.namespacePath(name), 0o755); err != nil {
		return gverrors.Wrap("SaveAll", gverrors.KindIO, err)
	}

	ns.mu.RLock()
	defer ns.mu.RUnlock()

	storagePath := filepath.Join(m.namespacePath(name), "storage.bin")
	if err := persistence.AtomicReplace(storagePath, func(w io.Writer) error {
		return persistence.SaveStorage(w, ns.storage)
	}); err != nil {
		return err
	}

	indexPath := filepath.Join(m.namespacePath(name), "index.bin")
	if err := persistence.AtomicReplace(indexPath, func(w io.Writer) error {
		return saveIndex(w, ns.primary, ns.cfg.Dim)
	}); err != nil {
		return err
	}

	if ns.sparse == nil {
		return nil
	}
	ns.sparseMu.RLock()
	defer ns.sparseMu.RUnlock()

	sparsePath := filepath.Join(m.namespacePath(name), "sparse.bin")
	return persistence.AtomicReplace(sparsePath, func(w io.Writer) error {
		return ns.sparse.Save(w)
	})
}

// saveIndex dispatches to the concrete index's Save method. Flat has no
// on-disk state beyond storage.
func saveIndex(w io.Writer, idx index.Index, dim int) error {
	switch v := idx.(type) {
	case *flat.Index:
		return nil
	case *kdtree.Index:
		return v.Save(w)
	case *ivfflat.Index:
		return v.Save(w, dim)
	case *pq.Index:
		return v.Save(w)
	default:
		return gverrors.New("Save", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "index variant has no Save method")
	}
}

func loadIndex(r io.Reader, variant index.Variant, storage *soa.Storage) (index.Index, error) {
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
		return nil, gverrors.New("Load", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "unsupported primary index variant %q", variant)
	}
}

// LoadAll reads the directory under basePath of each namespace named in
// cfgs (keyed by name), reconstructing storage and the primary index from
// that config, concurrently via errgroup. Directories not named in cfgs
// are not loaded.
func (m *Manager) LoadAll(ctx context.Context, cfgs map[string]Config) error {
	if m.basePath == "" {
		return gverrors.New("LoadAll", gverrors.KindPreconditionFailed, gverrors.ErrPreconditionFailed, "no base path configured")
	}

	type result struct {
		name string
		ns   *Namespace
	}
	g, _ := errgroup.WithContext(ctx)
	results := make(chan result, len(cfgs))

	for name, cfg := range cfgs {
		name, cfg := name, cfg
		g.Go(func() error {
			ns, err := m.loadNamespace(name, cfg)
			if err != nil {
				return err
			}
			results <- result{name, ns}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(results)

	m.mu.Lock()
	defer m.mu.Unlock()
	for r := range results {
		m.namespaces[r.name] = r.ns
	}
	return nil
}

func (m *Manager) loadNamespace(name string, cfg Config) (*Namespace, error) {
	storagePath := filepath.Join(m.namespacePath(name), "storage.bin")
	sf, err := os.Open(storagePath)
	if err != nil {
		return nil, gverrors.Wrap("LoadAll", gverrors.KindIO, err)
	}
	defer sf.Close()

	storage, err := persistence.LoadStorage(sf)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(m.namespacePath(name), "index.bin")
	ixf, err := os.Open(indexPath)
	if err != nil {
		return nil, gverrors.Wrap("LoadAll", gverrors.KindIO, err)
	}
	defer ixf.Close()

	primary, err := loadIndex(ixf, cfg.Variant, storage)
	if err != nil {
		return nil, err
	}

	ns := &Namespace{
		cfg:     cfg,
		storage: storage,
		primary: primary,
		idNode:  m.idNode,
	}
	if cfg.EnableSparse {
		sparsePath := filepath.Join(m.namespacePath(name), "sparse.bin")
		spf, err := os.Open(sparsePath)
		if err != nil {
			return nil, gverrors.Wrap("LoadAll", gverrors.KindIO, err)
		}
		defer spf.Close()

		sp, err := sparse.Load(spf)
		if err != nil {
			return nil, err
		}
		ns.sparse = sp
	}
	return ns, nil
}
