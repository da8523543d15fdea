// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package copyengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyVerifiedSingleFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "movie.mkv")
	dst := filepath.Join(root, "dst", "movie.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("hello world"), 0o644))

	e := New(false, zerolog.Nop())
	ok := e.CopyVerified(context.Background(), src, dst, false, 3)
	require.True(t, ok)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

func TestCopyVerifiedTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("bb"), 0o644))

	e := New(false, zerolog.Nop())
	ok := e.CopyVerified(context.Background(), src, dst, true, 3)
	require.True(t, ok)

	b, err := os.ReadFile(filepath.Join(dst, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bb", string(b))
}

func TestCopyVerifiedDryRun(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src.mkv")
	dst := filepath.Join(root, "dst.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	e := New(true, zerolog.Nop())
	ok := e.CopyVerified(context.Background(), src, dst, false, 3)
	require.True(t, ok)

	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}

func TestVerifySizeMismatchFails(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src.mkv")
	dst := filepath.Join(root, "dst.mkv")
	require.NoError(t, os.WriteFile(src, []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("123"), 0o644))

	ok, err := Verify(src, dst, false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCopyVerifiedSkipsVerifyWhenDisabled(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src.mkv")
	dst := filepath.Join(root, "dst.mkv")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	e := New(false, zerolog.Nop())
	e.VerificationEnabled = false
	ok := e.CopyVerified(context.Background(), src, dst, false, 3)
	require.True(t, ok)

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestCleanupMissingDestIsSuccess(t *testing.T) {
	e := New(false, zerolog.Nop())
	e.Cleanup(filepath.Join(t.TempDir(), "missing"))
}
