// Package vacuum implements the compaction engine: threshold-triggered
// or on-demand reclamation of tombstoned slots, with an optional
// background worker loop following an async goroutine-and-ticker
// pattern and an etcd-style scheduled-compaction idiom.
package vacuum

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jaywyawhare/GigaVector-sub002/pkg/gverrors"
	"github.com/jaywyawhare/GigaVector-sub002/pkg/namespace"
)

// State is the vacuum run's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config controls when a vacuum run triggers and how it paces itself.
type Config struct {
	MinDeletedCount        uint64
	MinFragmentationRatio  float64
	IntervalSec            int
	BatchSize              int
	LowPriority            bool
	LowPrioritySleepMillis int
}

// Stats reports the outcome of the most recent vacuum run.
type Stats struct {
	RunID                string
	BytesReclaimed       uint64
	VectorsCompacted     uint64
	FragmentationBefore  float64
	FragmentationAfter   float64
	Duration             time.Duration
	TotalRuns            uint64
}

// Worker drives compaction for a single namespace, either on demand via
// RunOnce or on an interval via Start/Stop.
type Worker struct {
	ns     *namespace.Namespace
	cfg    Config
	idNode *snowflake.Node
	log    *zap.Logger

	mu        sync.Mutex
	state     State
	lastStats Stats
	totalRuns uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker returns a vacuum worker bound to ns.
func NewWorker(ns *namespace.Namespace, cfg Config, idNode *snowflake.Node, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{ns: ns, cfg: cfg, idNode: idNode, log: log, state: StateIdle}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Stats returns a copy of the most recently completed run's stats.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastStats
}

func fragmentation(deleted, capacity uint64) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(deleted) / float64(capacity)
}

// ShouldRun reports whether the namespace's current deleted-slot count
// or fragmentation ratio crosses either configured threshold.
func (w *Worker) ShouldRun() bool {
	storage := w.ns.Storage()
	deleted := storage.Count() - storage.LiveCount()
	frag := fragmentation(deleted, storage.Capacity())
	return deleted >= w.cfg.MinDeletedCount || frag >= w.cfg.MinFragmentationRatio
}

// RunOnce compacts the namespace unconditionally, under the namespace
// write lock throughout, and rebuilds the primary index from the
// compacted storage. It never mutates the original arrays before the
// swap: soa.Storage.Compact allocates fresh arrays and only assigns
// them to the live struct once fully populated. When LowPriority is set
// and BatchSize > 0, the copy is chunked by BatchSize and a short sleep
// is interleaved between chunks, so a large compaction yields the CPU
// periodically instead of stalling everything else for one long pass;
// the namespace lock stays held for the whole run regardless.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	w.mu.Lock()
	w.state = StateRunning
	w.mu.Unlock()

	runID := ""
	if w.idNode != nil {
		runID = w.idNode.Generate().String()
	}
	correlationID := uuid.NewString()
	start := time.Now()

	w.log.Info("vacuum run starting",
		zap.String("namespace", w.ns.Name()),
		zap.String("run_id", runID),
		zap.String("correlation_id", correlationID),
	)

	w.ns.Lock()
	defer w.ns.Unlock()

	storage := w.ns.Storage()
	beforeBytes := storage.EstimatedBytes()
	beforeCount := storage.Count()
	beforeLive := storage.LiveCount()
	fragBefore := fragmentation(beforeCount-beforeLive, storage.Capacity())

	var pauseErr error
	pause := func() {
		if pauseErr != nil || !w.cfg.LowPriority || w.cfg.LowPrioritySleepMillis <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			pauseErr = ctx.Err()
		case <-time.After(time.Duration(w.cfg.LowPrioritySleepMillis) * time.Millisecond):
		}
	}

	if err := storage.CompactBatched(uint64(w.cfg.BatchSize), nil, pause); err != nil {
		w.fail(err)
		return Stats{}, gverrors.Wrap("RunOnce", gverrors.KindIO, err)
	}
	if err := w.ns.Primary().Rebuild(storage); err != nil {
		w.fail(err)
		return Stats{}, err
	}
	if pauseErr != nil {
		w.fail(pauseErr)
		return Stats{}, pauseErr
	}

	afterBytes := storage.EstimatedBytes()
	fragAfter := fragmentation(storage.Count()-storage.LiveCount(), storage.Capacity())
	w.ns.Touch()

	w.mu.Lock()
	w.totalRuns++
	stats := Stats{
		RunID:               runID,
		BytesReclaimed:      beforeBytes - afterBytes,
		VectorsCompacted:    beforeCount - beforeLive,
		FragmentationBefore: fragBefore,
		FragmentationAfter:  fragAfter,
		Duration:            time.Since(start),
		TotalRuns:           w.totalRuns,
	}
	w.lastStats = stats
	w.state = StateCompleted
	w.mu.Unlock()

	w.log.Info("vacuum run completed",
		zap.String("namespace", w.ns.Name()),
		zap.String("run_id", runID),
		zap.Uint64("vectors_compacted", stats.VectorsCompacted),
		zap.Uint64("bytes_reclaimed", stats.BytesReclaimed),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	w.state = StateFailed
	w.mu.Unlock()
	w.log.Error("vacuum run failed", zap.String("namespace", w.ns.Name()), zap.Error(err))
}

// Start launches the background loop: every IntervalSec, if ShouldRun
// reports true, a compaction runs. Stop cancels the loop and waits for
// it to exit.
func (w *Worker) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	interval := time.Duration(w.cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if w.ShouldRun() {
					if _, err := w.RunOnce(loopCtx); err != nil {
						w.log.Warn("background vacuum run failed", zap.String("namespace", w.ns.Name()), zap.Error(err))
					}
				}
			}
		}
	}()
}

// Stop cancels the background loop and blocks until it has exited.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}
