// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build windows

package diskspace

import (
	"fmt"
	"syscall"
	"unsafe"
)

// AvailableBytes returns the bytes available to the current user on the
// volume containing path, via GetDiskFreeSpaceExW.
func AvailableBytes(path string) (int64, error) {
	var freeBytesAvailable uint64

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("encode path: %w", err)
	}

	proc := syscall.NewLazyDLL("kernel32.dll").NewProc("GetDiskFreeSpaceExW")
	ret, _, callErr := proc.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		0,
		0,
	)
	if ret == 0 {
		return 0, fmt.Errorf("GetDiskFreeSpaceExW %s: %w", path, callErr)
	}
	return int64(freeBytesAvailable), nil
}
