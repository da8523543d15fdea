// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tagging computes and applies location tags (cache/bulk) per
// torrent. Ground truth for the location-tag bookkeeping pattern
// (adding/removing reserved tags based on observed state) is the
// internal/services/automations package, which performs the analogous job
// of reconciling tag state against observed torrent properties.
package tagging

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dualtier/tierd/internal/copyengine"
	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/torrentclient"
	"github.com/dualtier/tierd/pkg/pathutil"
)

// Config carries the reserved tag names and storage roots the Tagging
// Engine needs.
type Config struct {
	CacheTag  string
	BulkTag   string
	CacheRoot string
	BulkRoot  string
	DryRun    bool
}

// Engine implements the Summary and Reconcile-Existing operations.
type Engine struct {
	cfg    Config
	client torrentclient.Client
	copier *copyengine.Engine
	log    zerolog.Logger
}

// New builds a tagging Engine.
func New(cfg Config, client torrentclient.Client, copier *copyengine.Engine, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, client: client, copier: copier, log: log.With().Str("component", "tagging").Logger()}
}

// Summary counts torrents by location class.
type Summary struct {
	Total      int
	CacheOnly  int
	BulkOnly   int
	Dual       int
	Untagged   int
}

// Summarize enumerates all torrents and classifies each by the intersection
// of its tag set with the two reserved tags.
func (e *Engine) Summarize(ctx context.Context) (Summary, error) {
	torrents, err := e.client.TorrentsInfoFiltered(ctx, "", nil)
	if err != nil {
		return Summary{}, domain.Transient(err)
	}

	var s Summary
	for _, t := range torrents {
		s.Total++
		desc := domain.TorrentDescriptor{Tags: t.Tags}
		switch domain.ClassifyLocation(desc.TagSet(), e.cfg.CacheTag, e.cfg.BulkTag) {
		case domain.LocationCacheOnly:
			s.CacheOnly++
		case domain.LocationBulkOnly:
			s.BulkOnly++
		case domain.LocationDual:
			s.Dual++
		default:
			s.Untagged++
		}
	}
	return s, nil
}

// ReconcilePlanItem describes one planned or executed action for a single
// torrent during Reconcile-Existing.
type ReconcilePlanItem struct {
	Hash        string
	Name        string
	Action      string // "add_cache_tag" | "add_bulk_tag" | "enqueue_copy" | "untaggable"
	Reason      string
	CopyBatchID string
}

// CopyEnqueuer lets Reconcile-Existing hand a missing-bulk-copy torrent off
// to the orchestrator's copy queue instead of copying inline.
type CopyEnqueuer interface {
	EnqueueCopy(ctx context.Context, hash, name, src, dst string, size int64, isMultiFile bool) (batchID string)
}

// ReconcileExisting walks every torrent, ensures cache-tag/bulk-tag are
// present according to the reconcile rules, and enqueues a copy for any
// cache torrent whose bulk copy is missing or fails verification.
// In dry-run mode no mutation is performed; only the plan is returned.
// dryRunOverride, when non-nil, takes precedence over the Engine's
// construction-time Config.DryRun for this call only.
func (e *Engine) ReconcileExisting(ctx context.Context, enqueuer CopyEnqueuer, dryRunOverride *bool) ([]ReconcilePlanItem, error) {
	dryRun := e.cfg.DryRun
	if dryRunOverride != nil {
		dryRun = *dryRunOverride
	}

	torrents, err := e.client.TorrentsInfoFiltered(ctx, "", nil)
	if err != nil {
		return nil, domain.Transient(err)
	}

	var plan []ReconcilePlanItem
	cacheRoot := filepath.Clean(e.cfg.CacheRoot)
	bulkRoot := filepath.Clean(e.cfg.BulkRoot)

	for _, t := range torrents {
		desc := domain.TorrentDescriptor{Hash: t.Hash, Name: t.Name, ContentPath: t.ContentPath, Category: t.Category, Tags: t.Tags}

		switch {
		case strings.HasPrefix(filepath.Clean(t.ContentPath), cacheRoot):
			if !desc.HasTag(e.cfg.CacheTag) {
				plan = append(plan, ReconcilePlanItem{Hash: t.Hash, Name: t.Name, Action: "add_cache_tag"})
				if !dryRun {
					if err := e.client.AddTags(ctx, []string{t.Hash}, []string{e.cfg.CacheTag}); err != nil {
						e.log.Warn().Err(err).Str("hash", t.Hash).Msg("failed to add cache tag")
					}
				}
			}

			if t.Category == "" {
				plan = append(plan, ReconcilePlanItem{Hash: t.Hash, Name: t.Name, Action: "untaggable", Reason: "no category"})
				continue
			}

			expectedBulk := filepath.Join(bulkRoot, t.Category, pathutil.Trim(t.Name))
			// Reconcile runs off the torrent client's torrent list, which
			// doesn't carry a file count the way a completion notification
			// does; verifying as a tree (size+item-count) is a superset
			// check that also passes for true single-file torrents.
			if bulkPathVerifies(expectedBulk, t.ContentPath, true) {
				if !desc.HasTag(e.cfg.BulkTag) {
					plan = append(plan, ReconcilePlanItem{Hash: t.Hash, Name: t.Name, Action: "add_bulk_tag"})
					if !dryRun {
						if err := e.client.AddTags(ctx, []string{t.Hash}, []string{e.cfg.BulkTag}); err != nil {
							e.log.Warn().Err(err).Str("hash", t.Hash).Msg("failed to add bulk tag")
						}
					}
				}
				continue
			}

			item := ReconcilePlanItem{Hash: t.Hash, Name: t.Name, Action: "enqueue_copy"}
			if !dryRun && enqueuer != nil {
				item.CopyBatchID = enqueuer.EnqueueCopy(ctx, t.Hash, t.Name, t.ContentPath, expectedBulk, t.Size, true)
			}
			plan = append(plan, item)

		case strings.HasPrefix(filepath.Clean(t.ContentPath), bulkRoot):
			if !desc.HasTag(e.cfg.BulkTag) {
				plan = append(plan, ReconcilePlanItem{Hash: t.Hash, Name: t.Name, Action: "add_bulk_tag"})
				if !dryRun {
					if err := e.client.AddTags(ctx, []string{t.Hash}, []string{e.cfg.BulkTag}); err != nil {
						e.log.Warn().Err(err).Str("hash", t.Hash).Msg("failed to add bulk tag")
					}
				}
			}
		}
	}

	return plan, nil
}

// bulkPathVerifies reports whether expectedBulk exists and verifies
// against the cache copy.
func bulkPathVerifies(expectedBulk, cacheSrc string, isMultiFile bool) bool {
	if _, err := os.Stat(expectedBulk); err != nil {
		return false
	}
	ok, err := copyengine.Verify(cacheSrc, expectedBulk, isMultiFile)
	return err == nil && ok
}
