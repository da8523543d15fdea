// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package linkresolver

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RewriteAll rewrites every discovered symlink to a hardlink against its
// bulk-tier equivalent. Each link is rewritten atomically: for a file
// symlink, create a sibling hardlink under a temp name then rename it over
// the symlink; for a directory symlink, unlink it and reconstruct the
// subtree under the same path with mkdir + hardlink-per-file. Any single
// failure aborts the whole relocation with an error.
func RewriteAll(symlinks []Symlink, cachePath, bulkPath string) error {
	for _, link := range symlinks {
		if err := rewriteOne(link, cachePath, bulkPath); err != nil {
			return fmt.Errorf("rewrite link %s: %w", link.LinkPath, err)
		}
	}
	return nil
}

func rewriteOne(link Symlink, cachePath, bulkPath string) error {
	bulkEquivalent, err := translateToBulk(link, cachePath, bulkPath)
	if err != nil {
		return err
	}

	if link.IsDir {
		return rewriteDirSymlink(link.LinkPath, bulkEquivalent)
	}
	return rewriteFileSymlink(link.LinkPath, bulkEquivalent)
}

// translateToBulk resolves the symlink's cache-rooted target to its
// bulk-tier equivalent path by replacing the cache prefix with the bulk
// prefix.
func translateToBulk(link Symlink, cachePath, bulkPath string) (string, error) {
	target := link.Target
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(link.LinkPath), target)
	}
	target = filepath.Clean(target)
	cacheClean := filepath.Clean(cachePath)

	rel, err := filepath.Rel(cacheClean, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("symlink target %q is not under cache root %q", target, cacheClean)
	}
	return filepath.Join(bulkPath, rel), nil
}

// rewriteFileSymlink replaces a file symlink with a hardlink to the bulk
// file, atomic via a sibling temp name + rename.
func rewriteFileSymlink(linkPath, bulkTarget string) error {
	tmp := linkPath + ".tierd-tmp-" + uuid.NewString()
	if err := os.Link(bulkTarget, tmp); err != nil {
		return fmt.Errorf("create temp hardlink: %w", err)
	}
	if err := os.Rename(tmp, linkPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp hardlink over symlink: %w", err)
	}
	return nil
}

// rewriteDirSymlink unlinks a directory symlink and reconstructs the
// subtree beneath the same path with mkdir + hardlink-per-file.
func rewriteDirSymlink(linkPath, bulkDir string) error {
	if err := os.Remove(linkPath); err != nil {
		return fmt.Errorf("remove directory symlink: %w", err)
	}

	return filepath.WalkDir(bulkDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(bulkDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(linkPath, rel)

		if d.IsDir() {
			info, statErr := d.Info()
			mode := fs.FileMode(0o755)
			if statErr == nil {
				mode = info.Mode().Perm()
			}
			return os.MkdirAll(dest, mode)
		}
		return os.Link(path, dest)
	})
}
