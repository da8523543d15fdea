// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pathmapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRemotePicksLongestPrefix(t *testing.T) {
	m := New([]Mapping{
		{Local: "/data", Remote: "/mnt/data"},
		{Local: "/data/sonarr", Remote: "/mnt/media/sonarr"},
	})

	assert.Equal(t, "/mnt/media/sonarr/show/ep1.mkv", m.ToRemote("/data/sonarr/show/ep1.mkv"))
	assert.Equal(t, "/mnt/data/radarr/movie.mkv", m.ToRemote("/data/radarr/movie.mkv"))
}

func TestToRemoteNoMappingReturnsNormalized(t *testing.T) {
	m := New([]Mapping{{Local: "/data", Remote: "/mnt/data"}})
	assert.Equal(t, "/other/path", m.ToRemote(`\other\path\`))
}

func TestSameFile(t *testing.T) {
	m := New([]Mapping{{Local: "/data", Remote: "/mnt/data"}})

	assert.True(t, m.SameFile("/data/sonarr/ep1.mkv", "/mnt/data/sonarr/ep1.mkv"))
	assert.True(t, m.SameFile("/data/sonarr", "/mnt/data/sonarr/ep1.mkv"))
	assert.False(t, m.SameFile("/data/sonarr/ep1.mkv", "/mnt/data/radarr/movie.mkv"))
}

func TestRoundTrip(t *testing.T) {
	m := New([]Mapping{{Local: "/data", Remote: "/mnt/data"}})
	remote := m.ToRemote("/data/sonarr/ep1.mkv")
	assert.Equal(t, "/data/sonarr/ep1.mkv", m.ToLocal(remote))
}
