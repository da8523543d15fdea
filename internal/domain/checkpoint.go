// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// CheckpointSchemaVersion is the only version this build accepts on load.
const CheckpointSchemaVersion = "1.0"

// CheckpointMaxAge rejects a checkpoint whose shutdown timestamp is older
// than this.
const CheckpointMaxAge = 24 * time.Hour

// CheckpointQueueItem is the serialized form of a pending QueueItem.
type CheckpointQueueItem struct {
	ID          string            `json:"id"`
	TorrentData TorrentDescriptor `json:"torrent_data"`
	QueuedTime  time.Time         `json:"queued_time"`
	Priority    int               `json:"priority"`
}

// CheckpointRunningProcess is the serialized form of a RUNNING ProcessRecord,
// re-enqueued (not resumed in place) on restart.
type CheckpointRunningProcess struct {
	ID          string     `json:"id"`
	TorrentHash string     `json:"torrent_hash"`
	StartTime   time.Time  `json:"start_time"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
}

// Statistics are the orchestrator's monotonic counters, exposed verbatim
// over /status and persisted across restarts (time-based fields are not
// restored; see Orchestrator.RestoreFromCheckpoint in the orchestrator
// package).
type Statistics struct {
	ServiceStartTime     time.Time `json:"service_start_time"`
	TorrentsProcessed    int64     `json:"torrents_processed"`
	SpaceManagementRuns  int64     `json:"space_management_runs"`
	APIRequests          int64     `json:"api_requests"`
	LastActivity         time.Time `json:"last_activity"`
	CopiesCompleted      int64     `json:"copies_completed"`
	CopiesFailed         int64     `json:"copies_failed"`
}

// Checkpoint is the full serialized orchestrator state, written atomically
// (temp file + rename) on graceful shutdown or an explicit /state/save.
type Checkpoint struct {
	Version          string                     `json:"version"`
	ShutdownTime     time.Time                  `json:"shutdown_time"`
	QueueItems       []CheckpointQueueItem      `json:"queue_items"`
	RunningProcesses []CheckpointRunningProcess `json:"running_processes"`
	Statistics       Statistics                 `json:"statistics"`
}

// Valid reports whether the checkpoint's schema version matches and its
// shutdown timestamp is not older than CheckpointMaxAge relative to now.
func (c *Checkpoint) Valid(now time.Time) bool {
	if c.Version != CheckpointSchemaVersion {
		return false
	}
	return now.Sub(c.ShutdownTime) <= CheckpointMaxAge
}
