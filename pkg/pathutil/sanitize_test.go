// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "MyTorrent", "MyTorrent"},
		{"name with spaces", "My Torrent", "My Torrent"},
		{"strips illegal chars", "Name<>:\"/\\|?*Tail", "NameTail"},
		{"removes trailing dots", "Name...", "Name"},
		{"removes trailing spaces", "Name   ", "Name"},
		{"windows reserved CON", "CON", "_CON"},
		{"windows reserved case-insensitive", "con", "_con"},
		{"reserved name not at start", "MyCON", "MyCON"},
		{"empty string", "", "_"},
		{"all illegal chars", "<>:\"/\\|?*", "_"},
		{"unicode preserved", "映画.2024", "映画.2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizePathSegment(tt.input))
		})
	}
}
