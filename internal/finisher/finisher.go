// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package finisher implements the on-completion pipeline: verified copy,
// tag, notify indexer. The hydrate-then-process shape mirrors
// internal/services/transfer.Service.processTransfer: a possibly-incomplete
// input is filled in from the torrent client first, then the same
// verified-copy-and-tag steps run regardless of whether the caller
// supplied a full descriptor or just a hash.
package finisher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualtier/tierd/internal/copyengine"
	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/indexer"
	"github.com/dualtier/tierd/internal/torrentclient"
	"github.com/dualtier/tierd/pkg/pathutil"
)

// stabilizationDelay is the pause before fetching file listings for a
// freshly-hydrated descriptor, to let torrent state settle.
const stabilizationDelay = 3 * time.Second

// Config carries the roots, tags, and tunables the Finisher needs.
type Config struct {
	CacheRoot         string
	BulkRoot          string
	CacheTag          string
	BulkTag           string
	AutoTagNew        bool
	CopyRetryAttempts int
	IndexerEnabled    bool
	DryRun            bool
}

// Finisher implements the single Finish operation.
type Finisher struct {
	cfg     Config
	client  torrentclient.Client
	copier  *copyengine.Engine
	indexer *indexer.Client
	log     zerolog.Logger

	sleep func(time.Duration)
}

// New builds a Finisher.
func New(cfg Config, client torrentclient.Client, copier *copyengine.Engine, indexerClient *indexer.Client, log zerolog.Logger) *Finisher {
	return &Finisher{
		cfg:     cfg,
		client:  client,
		copier:  copier,
		indexer: indexerClient,
		log:     log.With().Str("component", "finisher").Logger(),
		sleep:   time.Sleep,
	}
}

// Finish runs the full on-completion pipeline for one torrent descriptor.
// If the descriptor is minimal (hash-only), it is hydrated from the
// torrent client first.
func (f *Finisher) Finish(ctx context.Context, desc domain.TorrentDescriptor) error {
	desc, err := f.hydrateIfMinimal(ctx, desc)
	if err != nil {
		return err
	}

	if f.cfg.AutoTagNew && !f.cfg.DryRun {
		if strings.HasPrefix(filepath.Clean(desc.ContentPath), filepath.Clean(f.cfg.CacheRoot)) {
			if err := f.client.AddTags(ctx, []string{desc.Hash}, []string{f.cfg.CacheTag}); err != nil {
				f.log.Warn().Err(err).Str("hash", desc.Hash).Msg("failed to add cache tag")
			}
		}
	}

	if desc.Category == "" {
		return domain.Validationf("torrent %s has no category, cannot determine bulk destination", desc.Hash)
	}

	hddData := filepath.Join(f.cfg.BulkRoot, desc.Category, pathutil.Trim(desc.Name))

	copied, err := f.ensureCopied(ctx, desc, hddData)
	if err != nil {
		return err
	}
	if !copied {
		return domain.Fatalf("copy verification failed for %s -> %s after %d attempts", desc.ContentPath, hddData, f.retryAttempts())
	}

	if !f.cfg.DryRun {
		if err := f.client.AddTags(ctx, []string{desc.Hash}, []string{f.cfg.BulkTag}); err != nil {
			f.log.Warn().Err(err).Str("hash", desc.Hash).Msg("failed to add bulk tag")
		}
	}

	if f.cfg.IndexerEnabled && f.indexer != nil && !f.cfg.DryRun {
		f.indexer.NotifyMatching(ctx, desc.Category, desc.Hash, hddData)
	}

	f.log.Info().Str("hash", desc.Hash).Str("dst", hddData).Msg("finish complete")
	return nil
}

// hydrateIfMinimal fills in a hash-only descriptor from the torrent client,
// pausing briefly for torrent-state stabilization before the file listing
// is fetched.
func (f *Finisher) hydrateIfMinimal(ctx context.Context, desc domain.TorrentDescriptor) (domain.TorrentDescriptor, error) {
	if desc.IsComplete() {
		return desc, nil
	}
	if desc.Hash == "" {
		return desc, domain.Validationf("descriptor has neither hash nor complete data")
	}

	f.sleep(stabilizationDelay)

	torrents, err := f.client.TorrentsInfo(ctx, []string{desc.Hash})
	if err != nil {
		return desc, domain.Transient(fmt.Errorf("hydrate torrent info: %w", err))
	}
	if len(torrents) == 0 {
		return desc, domain.Fatalf("torrent %s not present", desc.Hash)
	}
	t := torrents[0]

	files, err := f.client.TorrentFiles(ctx, desc.Hash)
	numFiles := 1
	if err == nil {
		numFiles = len(files)
	}

	return domain.TorrentDescriptor{
		Hash:        t.Hash,
		Name:        t.Name,
		ContentPath: t.ContentPath,
		SavePath:    t.SavePath,
		SizeBytes:   t.Size,
		NumFiles:    numFiles,
		Category:    t.Category,
		Tags:        t.Tags,
		Tracker:     t.Tracker,
	}, nil
}

// ensureCopied returns true if hddData already verifies against the cache
// copy, or if a fresh verified copy succeeds.
func (f *Finisher) ensureCopied(ctx context.Context, desc domain.TorrentDescriptor, hddData string) (bool, error) {
	isMultiFile := desc.IsMultiFile()

	if ok, err := copyengine.Verify(desc.ContentPath, hddData, isMultiFile); err == nil && ok {
		return true, nil
	} else if err == nil {
		f.copier.Cleanup(hddData)
	}

	ok := f.copier.CopyVerified(ctx, desc.ContentPath, hddData, isMultiFile, f.retryAttempts())
	return ok, nil
}

func (f *Finisher) retryAttempts() int {
	return f.RetryAttempts()
}

// RetryAttempts returns the configured copy-retry attempt count (minimum
// 1), for callers that run copies outside of Finish (the orchestrator's
// copy queue worker).
func (f *Finisher) RetryAttempts() int {
	if f.cfg.CopyRetryAttempts < 1 {
		return 1
	}
	return f.cfg.CopyRetryAttempts
}

// Copier exposes the shared Copy Engine so the orchestrator's copy-queue
// worker can run copies with the same retry/verify/cleanup semantics
// Finish uses inline.
func (f *Finisher) Copier() *copyengine.Engine {
	return f.copier
}
