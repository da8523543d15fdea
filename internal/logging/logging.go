// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logging builds the root zerolog.Logger tierd's components
// derive their "component"-scoped child loggers from, rotating to disk via
// gopkg.in/natefinch/lumberjack.v2 when a log path is configured. Grounded
// on internal/logger.New's lumberjack+zerolog wiring, simplified to a
// single process-wide logger rather than a per-prefix cache since every
// tierd component already scopes itself with .With().Str("component", ...).
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the root logger.
type Options struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// New builds the root logger. When Path is empty, logs go to stdout only.
// The configured level is applied through zerolog's global level, the same
// gate SetLevel changes later.
func New(opts Options) zerolog.Logger {
	var writer zerolog.LevelWriter
	if opts.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    maxOrDefault(opts.MaxSizeMB, 50),
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(os.Stdout, rotating)
	} else {
		writer = zerolog.MultiLevelWriter(os.Stdout)
	}

	zerolog.SetGlobalLevel(ParseLevel(opts.Level))
	logger := zerolog.New(writer).With().Timestamp().Logger()
	return logger
}

func maxOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ParseLevel maps a config/API level string to a zerolog.Level, defaulting
// to Info for anything unrecognized.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLevel changes the process-wide minimum log level at runtime. Every
// logger derived from New shares zerolog's package-level gate, so this
// takes effect for already-constructed component loggers too, without
// requiring them to be rebuilt.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}
