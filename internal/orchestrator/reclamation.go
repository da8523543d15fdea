// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/torrentclient"
)

type reclamationCandidate struct {
	info       torrentclient.TorrentInfo
	completion int64
}

// TriggerSpaceReclamation selects dual-located (or cache-path) completed
// torrents, sorts them oldest-first by completion timestamp, and relocates
// until enough bytes have been freed. A skip-reason from the Relocator
// moves to the next candidate; any other error stops the whole pass to
// avoid cascading damage.
func (o *Orchestrator) TriggerSpaceReclamation(ctx context.Context) error {
	o.mu.Lock()
	o.stats.SpaceManagementRuns++
	o.mu.Unlock()

	available, err := availableBytesFn(o.cfg.CacheRoot)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to probe cache free space, aborting reclamation pass")
		return err
	}

	needed := o.thresholdBytes() - available
	if needed <= 0 {
		return nil
	}

	candidates, err := o.selectCandidates(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to select reclamation candidates")
		return err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].completion < candidates[j].completion
	})

	var freed int64
	for _, candidate := range candidates {
		if freed >= needed {
			break
		}

		desc := domain.TorrentDescriptor{
			Hash:        candidate.info.Hash,
			Name:        candidate.info.Name,
			ContentPath: candidate.info.ContentPath,
			SizeBytes:   candidate.info.Size,
			Category:    candidate.info.Category,
			Tags:        candidate.info.Tags,
		}

		relocErr := o.relocator.Relocate(ctx, desc)
		if relocErr == nil {
			freed += candidate.info.Size
			o.log.Info().Str("hash", desc.Hash).Int64("freed_total", freed).Msg("reclaimed cache space")
			continue
		}

		if reason, skipped := domain.SkipReason(relocErr); skipped {
			o.log.Info().Str("hash", desc.Hash).Str("reason", reason).Msg("skipping reclamation candidate")
			continue
		}

		o.log.Error().Err(relocErr).Str("hash", desc.Hash).Msg("relocation error during reclamation, stopping pass")
		return relocErr
	}

	return nil
}

// selectCandidates fetches the eligible torrent set: dual-tagged torrents
// when location tagging is enabled, else any torrent whose content path
// lies under the cache root.
func (o *Orchestrator) selectCandidates(ctx context.Context) ([]reclamationCandidate, error) {
	var torrents []torrentclient.TorrentInfo
	var err error

	if o.cfg.LocationTaggingEnabled {
		torrents, err = o.client.TorrentsInfoFiltered(ctx, "", []string{o.cfg.CacheTag})
	} else {
		torrents, err = o.client.TorrentsInfoFiltered(ctx, "", nil)
	}
	if err != nil {
		return nil, domain.Transient(err)
	}

	cacheRoot := filepath.Clean(o.cfg.CacheRoot)
	out := make([]reclamationCandidate, 0, len(torrents))
	for _, t := range torrents {
		// A torrent with no recorded completion time is still downloading
		// or checking its initial download: neither branch below may
		// select it, so a never-completed torrent is never a candidate.
		if t.CompletionOn <= 0 {
			continue
		}

		if o.cfg.LocationTaggingEnabled {
			desc := domain.TorrentDescriptor{Tags: t.Tags}
			if !desc.HasTag(o.cfg.CacheTag) || !desc.HasTag(o.cfg.BulkTag) {
				continue
			}
		} else if !strings.HasPrefix(filepath.Clean(t.ContentPath), cacheRoot) {
			continue
		}

		completion := completionTimestamp(t)
		out = append(out, reclamationCandidate{info: t, completion: completion})
	}
	return out, nil
}

// completionTimestamp derives a sortable completion time: completion_on,
// falling through to last_activity, falling through to now. A torrent
// that falls through to now sorts after every torrent with a recorded
// time in the oldest-first eviction order.
func completionTimestamp(t torrentclient.TorrentInfo) int64 {
	if t.CompletionOn > 0 {
		return t.CompletionOn
	}
	if t.LastActivity > 0 {
		return t.LastActivity
	}
	return time.Now().Unix()
}
