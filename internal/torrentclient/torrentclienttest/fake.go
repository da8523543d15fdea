// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentclienttest provides an in-memory fake of
// torrentclient.Client for use across component test suites, following
// internal/testdb's pattern of a shared, importable test helper package
// rather than duplicating stubs per-package.
package torrentclienttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/dualtier/tierd/internal/torrentclient"
)

// Fake is an in-memory torrentclient.Client double.
type Fake struct {
	mu sync.Mutex

	Torrents map[string]torrentclient.TorrentInfo
	Files    map[string][]torrentclient.FileEntry

	PauseCalls    [][]string
	ResumeCalls   [][]string
	LocationCalls []LocationCall
	AddTagCalls   []TagCall
	DelTagCalls   []TagCall

	// FailSetLocation, when non-nil, is returned by SetLocation instead of succeeding.
	FailSetLocation error

	LogoutCalls int
}

type LocationCall struct {
	Hashes   []string
	Location string
}

type TagCall struct {
	Hashes []string
	Tags   []string
}

// New builds an empty Fake.
func New() *Fake {
	return &Fake{
		Torrents: make(map[string]torrentclient.TorrentInfo),
		Files:    make(map[string][]torrentclient.FileEntry),
	}
}

// Put registers a torrent the fake will report.
func (f *Fake) Put(t torrentclient.TorrentInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Torrents[t.Hash] = t
}

func (f *Fake) TorrentsInfo(_ context.Context, hashes []string) ([]torrentclient.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []torrentclient.TorrentInfo
	for _, h := range hashes {
		if t, ok := f.Torrents[h]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *Fake) TorrentsInfoFiltered(_ context.Context, category string, tags []string) ([]torrentclient.TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []torrentclient.TorrentInfo
	for _, t := range f.Torrents {
		if category != "" && t.Category != category {
			continue
		}
		if len(tags) > 0 {
			matched := false
			for _, want := range tags {
				if containsTag(t.Tags, want) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func containsTag(tagCSV, want string) bool {
	start := 0
	for i := 0; i <= len(tagCSV); i++ {
		if i == len(tagCSV) || tagCSV[i] == ',' {
			if tagCSV[start:i] == want {
				return true
			}
			start = i + 1
		}
	}
	return false
}

func (f *Fake) Pause(_ context.Context, hashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PauseCalls = append(f.PauseCalls, hashes)
	for _, h := range hashes {
		if t, ok := f.Torrents[h]; ok {
			t.State = "pausedDL"
			f.Torrents[h] = t
		}
	}
	return nil
}

func (f *Fake) Resume(_ context.Context, hashes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResumeCalls = append(f.ResumeCalls, hashes)
	return nil
}

func (f *Fake) SetLocation(_ context.Context, hashes []string, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSetLocation != nil {
		return f.FailSetLocation
	}
	f.LocationCalls = append(f.LocationCalls, LocationCall{Hashes: hashes, Location: location})
	for _, h := range hashes {
		if t, ok := f.Torrents[h]; ok {
			t.SavePath = location
			f.Torrents[h] = t
		}
	}
	return nil
}

func (f *Fake) TorrentFiles(_ context.Context, hash string) ([]torrentclient.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	files, ok := f.Files[hash]
	if !ok {
		return nil, fmt.Errorf("no files registered for hash %q", hash)
	}
	return files, nil
}

func (f *Fake) AddTags(_ context.Context, hashes []string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AddTagCalls = append(f.AddTagCalls, TagCall{Hashes: hashes, Tags: tags})
	for _, h := range hashes {
		t, ok := f.Torrents[h]
		if !ok {
			continue
		}
		for _, tag := range tags {
			if !containsTag(t.Tags, tag) {
				if t.Tags == "" {
					t.Tags = tag
				} else {
					t.Tags = t.Tags + "," + tag
				}
			}
		}
		f.Torrents[h] = t
	}
	return nil
}

func (f *Fake) RemoveTags(_ context.Context, hashes []string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DelTagCalls = append(f.DelTagCalls, TagCall{Hashes: hashes, Tags: tags})
	for _, h := range hashes {
		t, ok := f.Torrents[h]
		if !ok {
			continue
		}
		t.Tags = removeTag(t.Tags, tags)
		f.Torrents[h] = t
	}
	return nil
}

func removeTag(tagCSV string, remove []string) string {
	removeSet := make(map[string]bool, len(remove))
	for _, r := range remove {
		removeSet[r] = true
	}
	var kept []string
	start := 0
	for i := 0; i <= len(tagCSV); i++ {
		if i == len(tagCSV) || tagCSV[i] == ',' {
			tag := tagCSV[start:i]
			if tag != "" && !removeSet[tag] {
				kept = append(kept, tag)
			}
			start = i + 1
		}
	}
	out := ""
	for i, t := range kept {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

func (f *Fake) Logout(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return nil
}

var _ torrentclient.Client = (*Fake)(nil)
