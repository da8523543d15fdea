// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !windows

// Package hardlink identifies physical files across hardlinks so the Link
// Resolver can tell a legacy library hardlink apart from an unrelated file
// sharing a name, without following symlinks or hashing contents. Adapted
// from pkg/hardlink (autobrr/qui), which solves the same problem for its
// orphan-scan and cross-seed hardlink indexing.
package hardlink

import (
	"errors"
	"os"
	"syscall"
)

// FileID uniquely identifies a physical file on disk. On Unix this is the
// (device, inode) pair; it is comparable and usable as a map key.
type FileID struct {
	Dev uint64
	Ino uint64
}

// IsZero reports whether the FileID is the uninitialized zero value.
func (f FileID) IsZero() bool {
	return f.Dev == 0 && f.Ino == 0
}

// GetFileID returns the FileID and hardlink count for fi.
func GetFileID(fi os.FileInfo, _ string) (FileID, uint64, error) {
	sys, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return FileID{}, 0, errors.New("failed to get syscall.Stat_t")
	}
	return FileID{Dev: uint64(sys.Dev), Ino: sys.Ino}, uint64(sys.Nlink), nil //nolint:gosec // sys.Dev is always non-negative
}
