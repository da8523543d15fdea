// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
cacheRoot = "/cache"
bulkRoot = "/bulk"
stateDir = "/state"
`)

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.TorrentClientHost)
	assert.Equal(t, 8080, cfg.TorrentClientPort)
	assert.Equal(t, 3, cfg.MaxConcurrentProcesses)
	assert.Equal(t, 1, cfg.MaxConcurrentCopyOperations)
	assert.Equal(t, 3, cfg.CopyRetryAttempts)
	assert.Equal(t, 100.0, cfg.DiskSpaceThresholdGiB)
	assert.Equal(t, "ssd", cfg.CacheTag)
	assert.Equal(t, "hdd", cfg.BulkTag)
	assert.True(t, cfg.LocationTaggingEnabled)
}

func TestNewGeneratesDefaultConfigWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	_, err := New(path)
	// cacheRoot/bulkRoot/stateDir are empty in the generated default, so
	// validation fails, but the file must still have been written.
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestValidateRejectsEmptyCredentials(t *testing.T) {
	cfg := validBaseConfig()
	cfg.TorrentClientUsername = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsPortOutOfRange(t *testing.T) {
	cfg := validBaseConfig()
	cfg.HTTPPort = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsIndistinctTags(t *testing.T) {
	cfg := validBaseConfig()
	cfg.BulkTag = cfg.CacheTag
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSubMinimumRetryAndConcurrency(t *testing.T) {
	cfg := validBaseConfig()
	cfg.CopyRetryAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = validBaseConfig()
	cfg.MaxConcurrentProcesses = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := validBaseConfig()
	assert.NoError(t, cfg.Validate())
}

func validBaseConfig() Config {
	return Config{
		CacheRoot: "/cache", BulkRoot: "/bulk", StateDir: "/state",
		TorrentClientUsername: "admin", TorrentClientPassword: "adminadmin", TorrentClientPort: 8080,
		HTTPPort: 8081, CacheTag: "ssd", BulkTag: "hdd",
		CopyRetryAttempts: 3, MaxConcurrentProcesses: 3, MaxConcurrentCopyOperations: 1,
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
cacheRoot = "/cache"
bulkRoot = "/bulk"
stateDir = "/state"
`)

	os.Setenv("TIERD_HTTPPORT", "9999")
	defer os.Unsetenv("TIERD_HTTPPORT")

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTPPort)
}
