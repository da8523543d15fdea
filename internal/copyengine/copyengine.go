// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package copyengine performs verified file/tree copies with retry and
// destination cleanup. The copy itself is delegated to
// github.com/otiai10/copy (copy2-semantics: preserves mtime/perm, handles
// both files and directory trees, tolerates an existing destination) —
// the same library sgl-project-ome uses for its model-store staging copy
// (internal/ome-agent/enigma/enigma.go). Retry is handled with
// github.com/avast/retry-go.
package copyengine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	retry "github.com/avast/retry-go"
	cp "github.com/otiai10/copy"
	"github.com/rs/zerolog"
)

// Engine performs verified copies. DryRun short-circuits CopyVerified to
// true without touching disk. VerificationEnabled defaults to true; when
// an operator sets it false (trading safety for throughput on a trusted
// filesystem), CopyVerified trusts a clean cp.Copy without comparing
// sizes/counts afterward.
type Engine struct {
	DryRun              bool
	VerificationEnabled bool
	log                 zerolog.Logger
}

// New builds a copy Engine with verification enabled.
func New(dryRun bool, log zerolog.Logger) *Engine {
	return &Engine{DryRun: dryRun, VerificationEnabled: true, log: log.With().Str("component", "copyengine").Logger()}
}

// CopyVerified ensures dst's parent directory exists, copies src to dst,
// then verifies the result. On verification failure the destination is
// recursively removed and the copy retried up to attempts times; final
// failure returns false. Dry-run mode short-circuits to true.
func (e *Engine) CopyVerified(ctx context.Context, src, dst string, isMultiFile bool, attempts int) bool {
	if e.DryRun {
		e.log.Info().Str("src", src).Str("dst", dst).Msg("dry-run: skipping copy")
		return true
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	err := retry.Do(
		func() error {
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return fmt.Errorf("ensure base dir: %w", err)
			}
			if err := cp.Copy(src, dst, cp.Options{PreserveTimes: true, PreserveOwner: true}); err != nil {
				return fmt.Errorf("copy: %w", err)
			}
			if !e.VerificationEnabled {
				return nil
			}
			ok, err := Verify(src, dst, isMultiFile)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			if !ok {
				e.Cleanup(dst)
				return fmt.Errorf("verification failed for %s -> %s", src, dst)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.OnRetry(func(n uint, err error) {
			lastErr = err
			e.log.Warn().Err(err).Uint("attempt", n+1).Str("src", src).Str("dst", dst).Msg("copy attempt failed, retrying")
		}),
	)
	if err != nil {
		e.log.Error().Err(err).Str("src", src).Str("dst", dst).Msg("copy failed after all retries")
		_ = lastErr
		return false
	}
	return true
}

// Cleanup removes a partial destination. A missing destination counts as
// success.
func (e *Engine) Cleanup(dst string) {
	if err := os.RemoveAll(dst); err != nil && !os.IsNotExist(err) {
		e.log.Warn().Err(err).Str("dst", dst).Msg("failed to clean up partial destination")
	}
}

// Verify checks that src and dst match: size-only for single files,
// size-plus-item-count for trees (walked without following symlinks).
func Verify(src, dst string, isMultiFile bool) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat src: %w", err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat dst: %w", err)
	}

	if !isMultiFile && !srcInfo.IsDir() {
		return srcInfo.Size() == dstInfo.Size(), nil
	}

	srcSize, srcCount, err := walkSizeAndCount(src)
	if err != nil {
		return false, err
	}
	dstSize, dstCount, err := walkSizeAndCount(dst)
	if err != nil {
		return false, err
	}
	return srcSize == dstSize && srcCount == dstCount, nil
}

func walkSizeAndCount(root string) (size int64, count int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		count++
		return nil
	})
	return size, count, err
}
