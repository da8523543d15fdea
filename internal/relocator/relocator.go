// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package relocator implements the multi-step protocol that moves a
// torrent's canonical location from cache to bulk and frees cache bytes.
// Both protocol variants follow the internal/services/transfer
// state-machine shape: a sequence of named steps, each logged, with a
// best-effort resume-if-was-running on any failure after the torrent has
// been paused.
package relocator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dualtier/tierd/internal/copyengine"
	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/linkresolver"
	"github.com/dualtier/tierd/internal/oracle"
	"github.com/dualtier/tierd/internal/pathmapper"
	"github.com/dualtier/tierd/internal/torrentclient"
	"github.com/dualtier/tierd/pkg/pathutil"
)

// Config carries the roots, tags, and tunables the Relocator needs.
type Config struct {
	CacheRoot           string
	BulkRoot            string
	CacheTag            string
	BulkTag             string
	CopyRetryAttempts   int
	ImportScriptEnabled bool
	LibraryRoots        []string
	DryRun              bool
}

// Relocator runs the plain and stream-aware relocation protocols.
type Relocator struct {
	cfg    Config
	client torrentclient.Client
	copier *copyengine.Engine
	oracle *oracle.Client
	mapper *pathmapper.Mapper
	log    zerolog.Logger

	// sleep is overridden in tests to avoid real delays.
	sleep func(time.Duration)
}

// New builds a Relocator.
func New(cfg Config, client torrentclient.Client, copier *copyengine.Engine, oracleClient *oracle.Client, mapper *pathmapper.Mapper, log zerolog.Logger) *Relocator {
	return &Relocator{
		cfg:    cfg,
		client: client,
		copier: copier,
		oracle: oracleClient,
		mapper: mapper,
		log:    log.With().Str("component", "relocator").Logger(),
		sleep:  time.Sleep,
	}
}

// Relocate runs the stream-aware variant first when import-script mode is
// enabled, falling back to the plain protocol on an "error" outcome. A
// skip-condition from the stream-aware variant is returned as-is: the
// caller must move on to the next candidate, never fall back.
func (r *Relocator) Relocate(ctx context.Context, desc domain.TorrentDescriptor) error {
	if r.cfg.ImportScriptEnabled {
		err := r.relocateStreamAware(ctx, desc)
		if err == nil {
			return nil
		}
		if _, skipped := domain.SkipReason(err); skipped {
			return err
		}
		r.log.Warn().Err(err).Str("hash", desc.Hash).Msg("stream-aware relocation failed, falling back to plain protocol")
	}
	return r.relocatePlain(ctx, desc)
}

// relocatePlain runs the plain 8-step relocation protocol: fetch state,
// pause if running, set location, ensure a verified bulk copy, run the
// safety check, remove the cache data, remove the cache tag, and resume
// if it was running.
func (r *Relocator) relocatePlain(ctx context.Context, desc domain.TorrentDescriptor) error {
	info, wasRunning, err := r.pauseIfRunning(ctx, desc.Hash)
	if err != nil {
		return err
	}

	if err := r.client.SetLocation(ctx, []string{desc.Hash}, filepath.Join(r.cfg.BulkRoot, desc.Category)); err != nil {
		r.resumeBestEffort(ctx, desc.Hash, wasRunning)
		return domain.Transient(fmt.Errorf("set location: %w", err))
	}
	r.sleep(500 * time.Millisecond)

	expectedBulk := filepath.Join(r.cfg.BulkRoot, desc.Category, pathutil.Trim(desc.Name))
	if err := r.ensureBulkCopy(ctx, info.ContentPath, expectedBulk, desc.NumFiles > 1); err != nil {
		r.resumeBestEffort(ctx, desc.Hash, wasRunning)
		return err
	}

	if err := r.safetyCheck(info.ContentPath); err != nil {
		r.resumeBestEffort(ctx, desc.Hash, wasRunning)
		return err
	}

	if err := r.removeCacheData(info.ContentPath); err != nil {
		r.resumeBestEffort(ctx, desc.Hash, wasRunning)
		return domain.Fatal(fmt.Errorf("remove cache data: %w", err))
	}

	if !r.cfg.DryRun {
		if err := r.client.RemoveTags(ctx, []string{desc.Hash}, []string{r.cfg.CacheTag}); err != nil {
			r.log.Warn().Err(err).Str("hash", desc.Hash).Msg("failed to remove cache tag")
		}
	}

	if wasRunning {
		r.resumeBestEffort(ctx, desc.Hash, true)
	}

	r.log.Info().Str("hash", desc.Hash).Str("dst", expectedBulk).Msg("relocation complete")
	return nil
}

// relocateStreamAware runs the import-script-mode variant: check the
// streaming oracle, discover library symlinks pointing at the cache copy,
// verify a bulk copy already exists, rewrite the links to hardlinks
// against bulk, then delegate to the plain protocol for the rest.
func (r *Relocator) relocateStreamAware(ctx context.Context, desc domain.TorrentDescriptor) error {
	info, err := r.currentInfo(ctx, desc.Hash)
	if err != nil {
		return err
	}

	if r.oracle != nil {
		active, _ := r.oracle.ActiveFiles(ctx)
		mapped := info.ContentPath
		if r.mapper != nil {
			mapped = r.mapper.ToRemote(info.ContentPath)
		}
		for file := range active {
			if file == mapped || isUnderPath(file, mapped) {
				return domain.Skip("streaming")
			}
		}
	}

	expectedBulk := filepath.Join(r.cfg.BulkRoot, desc.Category, pathutil.Trim(desc.Name))
	discovery, err := linkresolver.Discover(ctx, r.cfg.LibraryRoots, info.ContentPath, expectedBulk)
	if err != nil {
		return domain.Fatal(fmt.Errorf("discover links: %w", err))
	}
	if discovery.Total() == 0 {
		return domain.Skip("no_links")
	}

	ok, verr := copyengine.Verify(info.ContentPath, expectedBulk, desc.NumFiles > 1)
	if verr != nil || !ok {
		return domain.Skip("no_hdd_copy")
	}

	if len(discovery.Symlinks) > 0 {
		if err := linkresolver.RewriteAll(discovery.Symlinks, info.ContentPath, expectedBulk); err != nil {
			return domain.Fatal(fmt.Errorf("rewrite links: %w", err))
		}
	}

	return r.relocatePlain(ctx, desc)
}

// pauseIfRunning fetches current state and pauses the torrent if it is in
// one of the active states, returning whether it was running.
func (r *Relocator) pauseIfRunning(ctx context.Context, hash string) (torrentclient.TorrentInfo, bool, error) {
	info, err := r.currentInfo(ctx, hash)
	if err != nil {
		return torrentclient.TorrentInfo{}, false, err
	}

	if !torrentclient.RunningStates[info.State] {
		return info, false, nil
	}

	if err := r.client.Pause(ctx, []string{hash}); err != nil {
		return torrentclient.TorrentInfo{}, false, domain.Transient(fmt.Errorf("pause: %w", err))
	}
	r.sleep(1 * time.Second)
	return info, true, nil
}

func (r *Relocator) currentInfo(ctx context.Context, hash string) (torrentclient.TorrentInfo, error) {
	torrents, err := r.client.TorrentsInfo(ctx, []string{hash})
	if err != nil {
		return torrentclient.TorrentInfo{}, domain.Transient(fmt.Errorf("fetch torrent info: %w", err))
	}
	if len(torrents) == 0 {
		return torrentclient.TorrentInfo{}, domain.Fatalf("torrent %s not present", hash)
	}
	return torrents[0], nil
}

// ensureBulkCopy runs the Copy Engine unless expectedBulk already exists
// and verifies against src. An existing-but-mismatched destination is
// re-copied from scratch rather than trusted: nothing downstream of this
// call may delete the cache source unless the bulk destination has just
// verified, never merely "existed".
func (r *Relocator) ensureBulkCopy(ctx context.Context, src, expectedBulk string, isMultiFile bool) error {
	if _, err := os.Stat(expectedBulk); err == nil {
		if ok, verr := copyengine.Verify(src, expectedBulk, isMultiFile); verr == nil && ok {
			return nil
		}
	}
	attempts := r.cfg.CopyRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	if ok := r.copier.CopyVerified(ctx, src, expectedBulk, isMultiFile, attempts); !ok {
		return domain.Fatalf("copy verification failed for %s -> %s", src, expectedBulk)
	}
	return nil
}

// safetyCheck enforces the cross-cutting safety invariant: the real,
// normalized cache data path must lie strictly inside the configured
// cache root.
func (r *Relocator) safetyCheck(cacheDataPath string) error {
	real, err := filepath.EvalSymlinks(cacheDataPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing source counts as success for the delete step only;
			// there is nothing left to check or remove.
			return nil
		}
		return domain.Fatal(fmt.Errorf("resolve real path: %w", err))
	}

	cacheRoot, err := filepath.EvalSymlinks(r.cfg.CacheRoot)
	if err != nil {
		return domain.Fatal(fmt.Errorf("resolve cache root: %w", err))
	}

	common := commonPath(real, cacheRoot)
	if common != filepath.Clean(cacheRoot) {
		return domain.Fatalf("cache data path %q is not strictly inside cache root %q", real, cacheRoot)
	}
	return nil
}

func commonPath(a, b string) string {
	a = filepath.Clean(a)
	b = filepath.Clean(b)
	if a == b {
		return a
	}
	if isUnderPath(a, b) {
		return b
	}
	return ""
}

func isUnderPath(path, ancestor string) bool {
	path = filepath.Clean(path)
	ancestor = filepath.Clean(ancestor)
	if path == ancestor {
		return true
	}
	return len(path) > len(ancestor) && path[:len(ancestor)] == ancestor && path[len(ancestor)] == filepath.Separator
}

// removeCacheData removes the cache copy; a missing source is success.
func (r *Relocator) removeCacheData(cacheDataPath string) error {
	if r.cfg.DryRun {
		r.log.Info().Str("path", cacheDataPath).Msg("dry-run: skipping cache data removal")
		return nil
	}
	if err := os.RemoveAll(cacheDataPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *Relocator) resumeBestEffort(ctx context.Context, hash string, wasRunning bool) {
	if !wasRunning || r.cfg.DryRun {
		return
	}
	if err := r.client.Resume(ctx, []string{hash}); err != nil {
		r.log.Warn().Err(err).Str("hash", hash).Msg("failed to resume torrent after relocation attempt")
	}
}
