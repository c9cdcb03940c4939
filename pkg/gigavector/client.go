package gigavector

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/gvtypes"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/snapshot"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/vacuum"
)

// Client is the top-level GigaVector handle: a namespace manager, one
// vacuum worker per namespace, and a shared snapshot manager. It is
// thread-safe and can be used concurrently, mirroring pkg/core.Client's
// RWMutex-guarded design.
type Client struct {
	cfg *Config
	log *zap.Logger

	mgr        *namespace.Manager
	idNode     *snowflake.Node
	snapshots  *snapshot.Manager

	mu      sync.RWMutex
	workers map[string]*vacuum.Worker
}

// NewClient constructs a Client from cfg, validating it first.
func NewClient(cfg *Config, log *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, gverrors.New("NewClient", gverrors.KindInvalidArgument, gverrors.ErrInvalidArgument, "nil config")
	}
	if log == nil {
		log = zap.NewNop()
	}

	idNode, err := snowflake.NewNode(cfg.SnowflakeNodeID)
	if err != nil {
		return nil, gverrors.Wrap("NewClient", gverrors.KindInvalidArgument, err)
	}

	mgr := namespace.NewManager(cfg.BasePath, idNode, log)
	client := &Client{
		cfg:       cfg,
		log:       log,
		mgr:       mgr,
		idNode:    idNode,
		snapshots: snapshot.NewManager(idNode),
		workers:   make(map[string]*vacuum.Worker),
	}

	for name, nsCfg := range cfg.Namespaces {
		resolved, err := nsCfg.toNamespaceConfig(name)
		if err != nil {
			return nil, err
		}
		if _, err := client.CreateNamespace(resolved); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// CreateNamespace registers a namespace and starts its background
// vacuum worker when an interval is configured.
func (c *Client) CreateNamespace(cfg namespace.Config) (*namespace.Namespace, error) {
	ns, err := c.mgr.Create(cfg)
	if err != nil {
		return nil, err
	}

	w := vacuum.NewWorker(ns, c.cfg.Vacuum, c.idNode, c.log)
	c.mu.Lock()
	c.workers[cfg.Name] = w
	c.mu.Unlock()

	if c.cfg.Vacuum.IntervalSec > 0 {
		w.Start(context.Background())
	}
	return ns, nil
}

// Namespace returns the namespace registered under name.
func (c *Client) Namespace(name string) (*namespace.Namespace, error) {
	return c.mgr.Get(name)
}

// DeleteNamespace stops its vacuum worker and removes it from the
// manager.
func (c *Client) DeleteNamespace(name string) error {
	c.mu.Lock()
	w, ok := c.workers[name]
	delete(c.workers, name)
	c.mu.Unlock()
	if ok {
		w.Stop()
	}
	return c.mgr.Delete(name)
}

// VacuumNamespace runs an on-demand compaction for name.
func (c *Client) VacuumNamespace(ctx context.Context, name string) (vacuum.Stats, error) {
	c.mu.RLock()
	w, ok := c.workers[name]
	c.mu.RUnlock()
	if !ok {
		return vacuum.Stats{}, gverrors.New("VacuumNamespace", gverrors.KindNotFound, gverrors.ErrNotFound, "namespace %q has no vacuum worker", name)
	}
	return w.RunOnce(ctx)
}

// Snapshot captures name's current vector data under label.
func (c *Client) Snapshot(name, label string) (*snapshot.Snapshot, error) {
	ns, err := c.mgr.Get(name)
	if err != nil {
		return nil, err
	}
	return c.snapshots.Create(ns, label)
}

// SaveAll persists every namespace to the configured base path.
func (c *Client) SaveAll(ctx context.Context) error {
	return c.mgr.SaveAll(ctx)
}

// LoadAll reconstructs every namespace in cfgs from the configured base
// path.
func (c *Client) LoadAll(ctx context.Context, cfgs map[string]namespace.Config) error {
	return c.mgr.LoadAll(ctx, cfgs)
}

// Close stops every namespace's background vacuum worker.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.workers {
		w.Stop()
	}
}

// AddVector is a convenience wrapper around Namespace(name).AddVector.
func (c *Client) AddVector(name string, id uint64, data []float32, metadata gvtypes.Metadata) (uint64, error) {
	ns, err := c.mgr.Get(name)
	if err != nil {
		return 0, err
	}
	return ns.AddVector(id, data, metadata)
}

// UpdateVector is a convenience wrapper around Namespace(name).UpdateVector.
func (c *Client) UpdateVector(name string, id uint64, data []float32) error {
	ns, err := c.mgr.Get(name)
	if err != nil {
		return err
	}
	return ns.UpdateVector(id, data)
}
