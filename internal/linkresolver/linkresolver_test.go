// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package linkresolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDiscoverFindsCacheRootedSymlink(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, "cache")
	bulk := filepath.Join(root, "bulk")
	library := filepath.Join(root, "library")

	writeFile(t, filepath.Join(cache, "radarr", "movie.mkv"), "data")
	writeFile(t, filepath.Join(bulk, "radarr", "movie.mkv"), "data")

	libLink := filepath.Join(library, "radarr", "movie.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(libLink), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(cache, "radarr", "movie.mkv"), libLink))

	disc, err := Discover(context.Background(), []string{library}, cache, bulk)
	require.NoError(t, err)

	require.Len(t, disc.Symlinks, 1)
	assert.Equal(t, libLink, disc.Symlinks[0].LinkPath)
	assert.False(t, disc.Symlinks[0].IsDir)
}

func TestDiscoverFindsLegacyHardlink(t *testing.T) {
	root := t.TempDir()
	bulk := filepath.Join(root, "bulk")
	library := filepath.Join(root, "library")

	bulkFile := filepath.Join(bulk, "radarr", "movie.mkv")
	writeFile(t, bulkFile, "data")

	libFile := filepath.Join(library, "radarr", "movie.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(libFile), 0o755))
	require.NoError(t, os.Link(bulkFile, libFile))

	disc, err := Discover(context.Background(), []string{library}, filepath.Join(root, "cache"), bulk)
	require.NoError(t, err)

	require.Len(t, disc.Hardlinks, 1)
	assert.Equal(t, libFile, disc.Hardlinks[0].LinkPath)
}

func TestRewriteFileSymlinkBecomesHardlink(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, "cache")
	bulk := filepath.Join(root, "bulk")

	cacheFile := filepath.Join(cache, "radarr", "movie.mkv")
	bulkFile := filepath.Join(bulk, "radarr", "movie.mkv")
	writeFile(t, cacheFile, "data")
	writeFile(t, bulkFile, "data")

	libLink := filepath.Join(root, "library", "movie.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(libLink), 0o755))
	require.NoError(t, os.Symlink(cacheFile, libLink))

	err := RewriteAll([]Symlink{{LinkPath: libLink, Target: cacheFile, IsDir: false}}, cache, bulk)
	require.NoError(t, err)

	info, err := os.Lstat(libLink)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink)

	content, err := os.ReadFile(libLink)
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
}
