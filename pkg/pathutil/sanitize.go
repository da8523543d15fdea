// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathutil sanitizes a torrent or tracker name into a safe
// filesystem path segment, the way pkg/pathutil does for cross-seed and
// dirscan destination paths. tierd uses it to build
// `bulk-root / category / trim(name)` without reproducing illegal
// characters or Windows-reserved device names on disk.
package pathutil

import (
	"strings"
)

var illegalChars = map[rune]bool{
	'<': true, '>': true, ':': true, '"': true,
	'/': true, '\\': true, '|': true, '?': true, '*': true,
}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizePathSegment strips illegal path characters, trims trailing dots
// and spaces, and escapes Windows-reserved device names with a leading
// underscore so the result is safe to use as a single path component on
// any target filesystem.
func SanitizePathSegment(name string) string {
	var b strings.Builder
	for _, r := range name {
		if illegalChars[r] {
			continue
		}
		b.WriteRune(r)
	}
	trimmed := strings.TrimRight(b.String(), ". ")

	if trimmed == "" {
		return "_"
	}
	if reservedNames[strings.ToUpper(trimmed)] {
		return "_" + trimmed
	}
	return trimmed
}

// Trim is the `trim(name)` operation used when computing a bulk-tier
// destination path from a torrent's display name.
func Trim(name string) string {
	return SanitizePathSegment(name)
}
