// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orchestrator is the core scheduler: two FIFO+priority queues,
// bounded worker pools, checkpoint/restore, graceful shutdown, and the
// space-reclamation pass. The queue-plus-fixed-worker-goroutines shape
// with context-cancel shutdown mirrors internal/services/transfer.Service;
// bounded concurrency uses golang.org/x/sync/semaphore.Weighted.
//
// Go has no native reentrant mutex, so a single "reentrant lock" is
// realized as a plain sync.Mutex plus the rule that any method already
// holding it calls only the "Locked" suffixed helpers, never the public
// entry points, to re-enter the dispatch path.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/finisher"
	"github.com/dualtier/tierd/internal/indexer"
	"github.com/dualtier/tierd/internal/relocator"
	"github.com/dualtier/tierd/internal/tagging"
	"github.com/dualtier/tierd/internal/torrentclient"
	"github.com/dualtier/tierd/pkg/diskspace"
	"github.com/dualtier/tierd/pkg/ringbuffer"
)

const (
	processHistoryCap = 10
	copyHistoryCap    = 20
	shutdownDrainWait = 30 * time.Second
)

// Config carries the orchestrator's tunables, all sourced from
// internal/config.
type Config struct {
	CacheRoot                string
	BulkRoot                 string
	StateDir                 string
	MaxConcurrentProcesses   int
	MaxConcurrentCopies      int
	DiskSpaceThresholdGiB    float64
	LocationTaggingEnabled   bool
	CacheTag                 string
	BulkTag                  string
	DryRun                   bool
}

// Orchestrator is the persistent in-memory scheduler.
type Orchestrator struct {
	cfg Config
	log zerolog.Logger

	client    torrentclient.Client
	finisher  *finisher.Finisher
	relocator *relocator.Relocator
	tagging   *tagging.Engine
	indexer   *indexer.Client

	mu              sync.Mutex
	torrentQueue    []domain.QueueItem
	copyQueue       []domain.CopyOperation
	runningTorrents map[string]*domain.ProcessRecord
	runningCopies   map[string]*domain.CopyOperation
	processHistory  *ringbuffer.Ring[domain.ProcessRecord]
	copyHistory     *ringbuffer.Ring[domain.CopyOperation]
	stats           domain.Statistics
	shuttingDown    bool

	torrentSem *semaphore.Weighted
	copySem    *semaphore.Weighted
	inFlight   sync.WaitGroup

	reconcileGroup singleflight.Group
}

// New builds an Orchestrator. Work is dispatched as soon as it is
// enqueued; RestoreFromCheckpoint rehydrates the queues and dispatches
// them.
func New(cfg Config, client torrentclient.Client, f *finisher.Finisher, r *relocator.Relocator, t *tagging.Engine, idx *indexer.Client, log zerolog.Logger) *Orchestrator {
	if cfg.MaxConcurrentProcesses < 1 {
		cfg.MaxConcurrentProcesses = 1
	}
	if cfg.MaxConcurrentCopies < 1 {
		cfg.MaxConcurrentCopies = 1
	}

	return &Orchestrator{
		cfg:             cfg,
		log:             log.With().Str("component", "orchestrator").Logger(),
		client:          client,
		finisher:        f,
		relocator:       r,
		tagging:         t,
		indexer:         idx,
		runningTorrents: make(map[string]*domain.ProcessRecord),
		runningCopies:   make(map[string]*domain.CopyOperation),
		processHistory:  ringbuffer.New[domain.ProcessRecord](processHistoryCap),
		copyHistory:     ringbuffer.New[domain.CopyOperation](copyHistoryCap),
		stats:           domain.Statistics{ServiceStartTime: time.Now()},
		torrentSem:      semaphore.NewWeighted(int64(cfg.MaxConcurrentProcesses)),
		copySem:         semaphore.NewWeighted(int64(cfg.MaxConcurrentCopies)),
	}
}

// errShuttingDown is returned by EnqueueTorrent once Shutdown has been
// called; it carries KindValidation so the HTTP layer maps it to a 400.
var errShuttingDown = domain.Validationf("orchestrator is shutting down")

// EnqueueTorrent appends a new torrent to the processing queue and
// attempts dispatch. desc may be minimal (hash-only); the Finisher
// hydrates it. Returns the queue id.
func (o *Orchestrator) EnqueueTorrent(desc domain.TorrentDescriptor, priority int) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.shuttingDown {
		return "", errShuttingDown
	}

	item := domain.QueueItem{
		ID:          uuid.NewString(),
		Descriptor:  desc,
		EnqueueTime: time.Now(),
		Priority:    priority,
	}
	o.torrentQueue = append(o.torrentQueue, item)
	sortTorrentQueue(o.torrentQueue)
	o.stats.APIRequests++
	o.stats.LastActivity = time.Now()

	o.dispatchTorrentsLocked()
	return item.ID, nil
}

func sortTorrentQueue(items []domain.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Less(&items[j])
	})
}

// dispatchTorrentsLocked pops queued items while a semaphore slot is free.
// Must be called with mu held.
func (o *Orchestrator) dispatchTorrentsLocked() {
	for len(o.torrentQueue) > 0 {
		if !o.torrentSem.TryAcquire(1) {
			return
		}
		item := o.torrentQueue[0]
		o.torrentQueue = o.torrentQueue[1:]

		record := &domain.ProcessRecord{
			ID:        uuid.NewString(),
			Hash:      item.Descriptor.Hash,
			StartTime: time.Now(),
			State:     domain.StateRunning,
		}
		o.runningTorrents[record.ID] = record

		o.inFlight.Add(1)
		go o.runTorrentWorker(record.ID, item.Descriptor)
	}

	if len(o.torrentQueue) == 0 && len(o.runningTorrents) == 0 {
		go o.TriggerSpaceReclamation(context.Background())
	}
}

// runTorrentWorker calls the Finisher and reports completion. Runs outside
// the lock; only the final completion callback re-enters it.
func (o *Orchestrator) runTorrentWorker(recordID string, desc domain.TorrentDescriptor) {
	defer o.inFlight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := o.finisher.Finish(ctx, desc)
	o.completeTorrent(recordID, err)
}

// completeTorrent marks the record COMPLETED/FAILED, updates counters,
// trims history, and dispatches again.
func (o *Orchestrator) completeTorrent(recordID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// The worker's slot is freed under the lock and before the re-dispatch
	// below, so that dispatch can hand it to the next queued item.
	o.torrentSem.Release(1)

	record, ok := o.runningTorrents[recordID]
	if !ok {
		return
	}
	delete(o.runningTorrents, recordID)

	now := time.Now()
	record.EndTime = &now
	if err != nil {
		record.State = domain.StateFailed
		record.Result = err.Error()
	} else {
		record.State = domain.StateCompleted
		record.Result = "ok"
	}

	o.processHistory.Push(*record)
	o.stats.TorrentsProcessed++
	o.stats.LastActivity = now

	o.dispatchTorrentsLocked()
}

// EnqueueCopy appends a copy operation and attempts dispatch. Implements
// tagging.CopyEnqueuer so the Tagging Engine's reconcile pass can hand off
// missing-bulk-copy torrents instead of copying inline.
func (o *Orchestrator) EnqueueCopy(ctx context.Context, hash, name, src, dst string, size int64, isMultiFile bool) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	batchID := uuid.NewString()
	op := domain.CopyOperation{
		ID:          uuid.NewString(),
		BatchID:     batchID,
		Hash:        hash,
		Name:        name,
		Src:         src,
		Dst:         dst,
		Size:        size,
		IsMultiFile: isMultiFile,
		EnqueueTime: time.Now(),
		State:       domain.StateRunning,
	}
	o.copyQueue = append(o.copyQueue, op)
	o.dispatchCopiesLocked()
	return batchID
}

func (o *Orchestrator) dispatchCopiesLocked() {
	for len(o.copyQueue) > 0 {
		if !o.copySem.TryAcquire(1) {
			return
		}
		op := o.copyQueue[0]
		o.copyQueue = o.copyQueue[1:]

		start := time.Now()
		op.StartTime = &start
		o.runningCopies[op.ID] = &op

		o.inFlight.Add(1)
		go o.runCopyWorker(op)
	}
}

func (o *Orchestrator) runCopyWorker(op domain.CopyOperation) {
	defer o.inFlight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok := o.finisher.Copier().CopyVerified(ctx, op.Src, op.Dst, op.IsMultiFile, o.finisher.RetryAttempts())
	var err error
	if !ok {
		err = fmt.Errorf("copy verification failed for %s -> %s", op.Src, op.Dst)
	} else if !o.cfg.DryRun {
		if tagErr := o.client.AddTags(ctx, []string{op.Hash}, []string{o.cfg.BulkTag}); tagErr != nil {
			o.log.Warn().Err(tagErr).Str("hash", op.Hash).Msg("failed to add bulk tag after copy")
		}
	}
	o.completeCopy(op.ID, err)
}

func (o *Orchestrator) completeCopy(opID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Freed before the re-dispatch below, as in completeTorrent.
	o.copySem.Release(1)

	op, ok := o.runningCopies[opID]
	if !ok {
		return
	}
	delete(o.runningCopies, opID)

	now := time.Now()
	op.EndTime = &now
	if err != nil {
		op.State = domain.StateFailed
		op.Result = err.Error()
		o.stats.CopiesFailed++
	} else {
		op.State = domain.StateCompleted
		op.Result = "ok"
		o.stats.CopiesCompleted++
	}

	o.copyHistory.Push(*op)
	o.dispatchCopiesLocked()
}

// ClearQueue drains the pending torrent queue (not running work) and
// returns the number of items removed.
func (o *Orchestrator) ClearQueue() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.torrentQueue)
	o.torrentQueue = nil
	return n
}

// Stats returns a snapshot of the statistics counters.
func (o *Orchestrator) Stats() domain.Statistics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Status is the full /status response shape.
type Status struct {
	Stats           domain.Statistics       `json:"statistics"`
	QueuedTorrents  int                     `json:"queued_torrents"`
	RunningTorrents int                     `json:"running_torrents"`
	QueuedCopies    int                     `json:"queued_copies"`
	RunningCopies   int                     `json:"running_copies"`
	Processes       []domain.ProcessRecord  `json:"processes"`
	Copies          []domain.CopyOperation  `json:"copies"`
}

// Status returns a full snapshot for the /status endpoint, including the
// bounded ProcessRecord/CopyOperation history rings.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Status{
		Stats:           o.stats,
		QueuedTorrents:  len(o.torrentQueue),
		RunningTorrents: len(o.runningTorrents),
		QueuedCopies:    len(o.copyQueue),
		RunningCopies:   len(o.runningCopies),
		Processes:       o.processHistory.Items(),
		Copies:          o.copyHistory.Items(),
	}
}

// CopyOperationsStatus reports the running/queued/history copy operations,
// optionally filtered to one batch.
func (o *Orchestrator) CopyOperationsStatus(batchID string) []domain.CopyOperation {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []domain.CopyOperation
	for _, op := range o.copyQueue {
		if batchID == "" || op.BatchID == batchID {
			out = append(out, op)
		}
	}
	for _, op := range o.runningCopies {
		if batchID == "" || op.BatchID == batchID {
			out = append(out, *op)
		}
	}
	for _, op := range o.copyHistory.Items() {
		if batchID == "" || op.BatchID == batchID {
			out = append(out, op)
		}
	}
	return out
}

// ReconcileTags runs the Tagging Engine's reconcile-existing pass,
// deduplicating concurrent callers via singleflight the same way
// transfer.Service dedups category creation (categoryCreationGroup):
// concurrent /tags/existing requests collapse into one reconcile pass
// instead of racing the torrent-client API. dryRunOverride, when
// non-nil, takes precedence over the Tagging Engine's configured
// default for this call only; it is folded into the singleflight key so
// a dry-run request never coalesces with a mutating one.
func (o *Orchestrator) ReconcileTags(ctx context.Context, dryRunOverride *bool) ([]tagging.ReconcilePlanItem, error) {
	key := "reconcile:default"
	if dryRunOverride != nil {
		key = fmt.Sprintf("reconcile:%v", *dryRunOverride)
	}
	v, err, _ := o.reconcileGroup.Do(key, func() (any, error) {
		return o.tagging.ReconcileExisting(ctx, o, dryRunOverride)
	})
	if err != nil {
		return nil, err
	}
	return v.([]tagging.ReconcilePlanItem), nil
}

// TagSummary delegates to the Tagging Engine's Summarize operation.
func (o *Orchestrator) TagSummary(ctx context.Context) (tagging.Summary, error) {
	return o.tagging.Summarize(ctx)
}

// availableBytesFn is overridden in tests.
var availableBytesFn = diskspace.AvailableBytes

func (o *Orchestrator) thresholdBytes() int64 {
	return int64(o.cfg.DiskSpaceThresholdGiB * 1024 * 1024 * 1024)
}

// SaveCheckpoint atomically persists the orchestrator's current state to
// {state-dir}/state/orchestrator_state.json (write temp -> rename).
func (o *Orchestrator) SaveCheckpoint() error {
	o.mu.Lock()
	checkpoint := domain.Checkpoint{
		Version:      domain.CheckpointSchemaVersion,
		ShutdownTime: time.Now(),
		Statistics:   o.stats,
	}
	for _, item := range o.torrentQueue {
		checkpoint.QueueItems = append(checkpoint.QueueItems, domain.CheckpointQueueItem{
			ID:          item.ID,
			TorrentData: item.Descriptor,
			QueuedTime:  item.EnqueueTime,
			Priority:    item.Priority,
		})
	}
	for _, rec := range o.runningTorrents {
		checkpoint.RunningProcesses = append(checkpoint.RunningProcesses, domain.CheckpointRunningProcess{
			ID:          rec.ID,
			TorrentHash: rec.Hash,
			StartTime:   rec.StartTime,
			Status:      string(rec.State),
		})
	}
	o.mu.Unlock()

	return writeCheckpointAtomic(o.checkpointPath(), checkpoint)
}

func (o *Orchestrator) checkpointPath() string {
	return filepath.Join(o.cfg.StateDir, "state", "orchestrator_state.json")
}

func writeCheckpointAtomic(path string, checkpoint domain.Checkpoint) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}

	tmp := path + ".tmp"
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}

// RestoreFromCheckpoint loads a valid checkpoint if present, rehydrates
// the pending queue, re-enqueues every previously-RUNNING record as a
// priority-10 item with a fresh enqueue time, restores monotonic counters
// only, and deletes the checkpoint file on success. Returns false if no
// valid checkpoint was found.
func (o *Orchestrator) RestoreFromCheckpoint() (bool, error) {
	path := o.checkpointPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read checkpoint: %w", err)
	}

	var checkpoint domain.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return false, fmt.Errorf("decode checkpoint: %w", err)
	}

	if !checkpoint.Valid(time.Now()) {
		o.log.Warn().Msg("ignoring stale or version-mismatched checkpoint")
		_ = os.Remove(path)
		return false, nil
	}

	o.mu.Lock()
	for _, item := range checkpoint.QueueItems {
		o.torrentQueue = append(o.torrentQueue, domain.QueueItem{
			ID:          item.ID,
			Descriptor:  item.TorrentData,
			EnqueueTime: item.QueuedTime,
			Priority:    item.Priority,
		})
	}
	for _, rec := range checkpoint.RunningProcesses {
		o.torrentQueue = append(o.torrentQueue, domain.QueueItem{
			ID:          uuid.NewString(),
			Descriptor:  domain.TorrentDescriptor{Hash: rec.TorrentHash},
			EnqueueTime: time.Now(),
			Priority:    domain.PriorityRestored,
		})
	}
	sortTorrentQueue(o.torrentQueue)

	o.stats.TorrentsProcessed = checkpoint.Statistics.TorrentsProcessed
	o.stats.SpaceManagementRuns = checkpoint.Statistics.SpaceManagementRuns
	o.stats.APIRequests = checkpoint.Statistics.APIRequests
	o.stats.CopiesCompleted = checkpoint.Statistics.CopiesCompleted
	o.stats.CopiesFailed = checkpoint.Statistics.CopiesFailed

	o.dispatchTorrentsLocked()
	o.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		o.log.Warn().Err(err).Msg("failed to remove checkpoint after restore")
	}
	return true, nil
}

// Shutdown refuses new work, checkpoints state, waits up to 30s for pools
// to drain, and logs out of the torrent client.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.shuttingDown = true
	o.mu.Unlock()

	if err := o.SaveCheckpoint(); err != nil {
		o.log.Error().Err(err).Msg("failed to save checkpoint during shutdown")
	}

	drained := make(chan struct{})
	go func() {
		o.inFlight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(shutdownDrainWait):
		o.log.Warn().Msg("shutdown drain wait exceeded, proceeding")
	case <-ctx.Done():
	}

	if err := o.client.Logout(ctx); err != nil {
		o.log.Warn().Err(err).Msg("torrent client logout failed during shutdown")
	}

	return nil
}
