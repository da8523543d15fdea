// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentclient

import (
	"context"
	"fmt"

	qbt "github.com/autobrr/go-qbittorrent"
)

func toTorrentInfo(t qbt.Torrent) TorrentInfo {
	return TorrentInfo{
		Hash:         t.Hash,
		Name:         t.Name,
		ContentPath:  t.ContentPath,
		SavePath:     t.SavePath,
		Size:         t.Size,
		Category:     t.Category,
		Tags:         t.Tags,
		Tracker:      t.Tracker,
		State:        TorrentState(t.State),
		CompletionOn: int64(t.CompletionOn),
		LastActivity: int64(t.LastActivity),
	}
}

// TorrentsInfo fetches the current state for a specific set of hashes.
// Returns an empty slice (not an error) if none are found.
func (l *Live) TorrentsInfo(ctx context.Context, hashes []string) ([]TorrentInfo, error) {
	client, err := l.ensure(ctx)
	if err != nil {
		return nil, err
	}

	torrents, err := client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: hashes})
	if err != nil {
		l.markUnhealthy()
		return nil, fmt.Errorf("fetch torrents info: %w", err)
	}

	out := make([]TorrentInfo, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, toTorrentInfo(t))
	}
	return out, nil
}

// TorrentsInfoFiltered fetches torrents by category and/or tags, used by
// the orchestrator's space-reclamation candidate selection to do a
// server-side filter rather than listing every torrent.
func (l *Live) TorrentsInfoFiltered(ctx context.Context, category string, tags []string) ([]TorrentInfo, error) {
	client, err := l.ensure(ctx)
	if err != nil {
		return nil, err
	}

	opts := qbt.TorrentFilterOptions{}
	if category != "" {
		opts.Category = category
	}
	if len(tags) > 0 {
		opts.Tag = tags[0]
	}

	torrents, err := client.GetTorrentsCtx(ctx, opts)
	if err != nil {
		l.markUnhealthy()
		return nil, fmt.Errorf("fetch filtered torrents: %w", err)
	}

	out := make([]TorrentInfo, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, toTorrentInfo(t))
	}
	return out, nil
}

// Pause pauses the given torrents.
func (l *Live) Pause(ctx context.Context, hashes []string) error {
	client, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	if err := client.PauseCtx(ctx, hashes); err != nil {
		l.markUnhealthy()
		return fmt.Errorf("pause torrents: %w", err)
	}
	return nil
}

// Resume resumes the given torrents.
func (l *Live) Resume(ctx context.Context, hashes []string) error {
	client, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	if err := client.ResumeCtx(ctx, hashes); err != nil {
		l.markUnhealthy()
		return fmt.Errorf("resume torrents: %w", err)
	}
	return nil
}

// SetLocation sets the save location for the given torrents.
func (l *Live) SetLocation(ctx context.Context, hashes []string, location string) error {
	client, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	if err := client.SetLocationCtx(ctx, hashes, location); err != nil {
		l.markUnhealthy()
		return fmt.Errorf("set location: %w", err)
	}
	return nil
}

// TorrentFiles lists the files within a torrent.
func (l *Live) TorrentFiles(ctx context.Context, hash string) ([]FileEntry, error) {
	client, err := l.ensure(ctx)
	if err != nil {
		return nil, err
	}
	files, err := client.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		l.markUnhealthy()
		return nil, fmt.Errorf("get torrent files: %w", err)
	}

	out := make([]FileEntry, 0, len(*files))
	for _, f := range *files {
		out = append(out, FileEntry{Name: f.Name, Size: int64(f.Size)})
	}
	return out, nil
}

// AddTags adds the given tags to the given torrents.
func (l *Live) AddTags(ctx context.Context, hashes []string, tags []string) error {
	client, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	if err := client.AddTagsCtx(ctx, hashes, tags); err != nil {
		l.markUnhealthy()
		return fmt.Errorf("add tags: %w", err)
	}
	return nil
}

// RemoveTags removes the given tags from the given torrents.
func (l *Live) RemoveTags(ctx context.Context, hashes []string, tags []string) error {
	client, err := l.ensure(ctx)
	if err != nil {
		return err
	}
	if err := client.RemoveTagsCtx(ctx, hashes, tags); err != nil {
		l.markUnhealthy()
		return fmt.Errorf("remove tags: %w", err)
	}
	return nil
}

var _ Client = (*Live)(nil)
