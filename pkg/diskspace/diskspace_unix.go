// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !windows

// Package diskspace probes available free space on the cache tier so the
// orchestrator's space-reclamation pass knows how many bytes it still
// needs to free. Grounded on
// internal/services/automations.getLocalFreeSpaceBytes, which uses the
// same unix.Statfs-based probe for its free-space automation rules.
package diskspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// AvailableBytes returns the bytes available to unprivileged users on the
// filesystem containing path.
func AvailableBytes(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
