// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package linkresolver discovers and rewrites symlinks and legacy hardlinks
// in media-library roots that reference the cache tier, so that import-
// script-mode eviction can preserve library entries.
//
// Discovery walks each library root the way
// internal/services/orphanscan.walkScanRoot does (filepath.WalkDir,
// symlink-aware, permission errors skipped); hardlink identity reuses
// pkg/hardlink.FileID ((device, inode) pair) the same way
// internal/services/automations/hardlink_index.go builds its duplicate
// index.
package linkresolver

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dualtier/tierd/pkg/hardlink"
)

// Symlink describes a discovered library symlink whose target lies under
// the cache path.
type Symlink struct {
	// LinkPath is the symlink's own path in the library.
	LinkPath string
	// Target is the symlink's (possibly relative) readlink target.
	Target string
	// IsDir reports whether the symlink points at a directory.
	IsDir bool
}

// Hardlink describes a discovered library file sharing (device, inode) with
// a file under the bulk path — a "legacy" hardlink predating a symlink-based
// setup.
type Hardlink struct {
	LinkPath string
	BulkPath string
}

// Discovery is the disjoint result of walking the library roots once.
type Discovery struct {
	Symlinks  []Symlink
	Hardlinks []Hardlink
}

// Total returns the combined count of discovered links.
func (d *Discovery) Total() int {
	return len(d.Symlinks) + len(d.Hardlinks)
}

// Discover walks every root in libraryRoots and classifies entries into
// symlinks pointing under cachePath and hardlinks sharing identity with a
// file under bulkPath. The two sets are disjoint: an entry is either a
// symlink or a plain file, never both.
func Discover(ctx context.Context, libraryRoots []string, cachePath, bulkPath string) (*Discovery, error) {
	bulkIndex, err := indexBulkFileIDs(bulkPath)
	if err != nil {
		return nil, err
	}

	result := &Discovery{}
	cacheClean := filepath.Clean(cachePath)

	for _, root := range libraryRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if walkErr != nil {
				if os.IsPermission(walkErr) {
					return nil
				}
				return walkErr
			}

			if d.Type()&fs.ModeSymlink != 0 {
				target, err := os.Readlink(path)
				if err != nil {
					return nil
				}
				resolved := target
				if !filepath.IsAbs(resolved) {
					resolved = filepath.Join(filepath.Dir(path), target)
				}
				if isUnder(filepath.Clean(resolved), cacheClean) {
					info, statErr := os.Stat(path)
					isDir := statErr == nil && info.IsDir()
					result.Symlinks = append(result.Symlinks, Symlink{
						LinkPath: path,
						Target:   target,
						IsDir:    isDir,
					})
				}
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			id, nlink, err := hardlink.GetFileID(info, path)
			if err != nil || nlink < 2 {
				return nil
			}
			if bulkFile, ok := bulkIndex[id]; ok {
				result.Hardlinks = append(result.Hardlinks, Hardlink{LinkPath: path, BulkPath: bulkFile})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// indexBulkFileIDs walks bulkPath once, recording the FileID of every file
// so hardlink discovery is a map lookup per library file rather than an
// O(n*m) comparison.
func indexBulkFileIDs(bulkPath string) (map[hardlink.FileID]string, error) {
	index := make(map[hardlink.FileID]string)
	if bulkPath == "" {
		return index, nil
	}

	err := filepath.WalkDir(bulkPath, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) || os.IsPermission(walkErr) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		id, _, err := hardlink.GetFileID(info, path)
		if err != nil {
			return nil
		}
		index[id] = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}

func isUnder(path, ancestor string) bool {
	if path == ancestor {
		return true
	}
	return strings.HasPrefix(path, ancestor+string(filepath.Separator))
}
