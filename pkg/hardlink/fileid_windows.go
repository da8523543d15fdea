// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build windows

package hardlink

import (
	"fmt"
	"os"
	"syscall"
)

const fileReadAttributes = 0x0080

// FileID uniquely identifies a physical file on disk. On Windows this is
// the (VolumeSerialNumber, FileIndexHigh, FileIndexLow) tuple.
type FileID struct {
	VolumeSerial uint32
	IndexHigh    uint32
	IndexLow     uint32
}

// IsZero reports whether the FileID is the uninitialized zero value.
func (f FileID) IsZero() bool {
	return f.VolumeSerial == 0 && f.IndexHigh == 0 && f.IndexLow == 0
}

// GetFileID returns the FileID and hardlink count for the file at path.
func GetFileID(_ os.FileInfo, path string) (FileID, uint64, error) {
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return FileID{}, 0, fmt.Errorf("convert path: %w", err)
	}

	handle, err := syscall.CreateFile(
		pathPtr,
		fileReadAttributes,
		syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE|syscall.FILE_SHARE_DELETE,
		nil,
		syscall.OPEN_EXISTING,
		syscall.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return FileID{}, 0, fmt.Errorf("open file: %w", err)
	}
	defer syscall.CloseHandle(handle)

	var info syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(handle, &info); err != nil {
		return FileID{}, 0, fmt.Errorf("get file information: %w", err)
	}

	return FileID{
		VolumeSerial: info.VolumeSerialNumber,
		IndexHigh:    info.FileIndexHigh,
		IndexLow:     info.FileIndexLow,
	}, uint64(info.NumberOfLinks), nil
}
