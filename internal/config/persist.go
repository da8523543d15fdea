// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var logSettingKeys = []string{"logPath", "logLevel", "logMaxSize", "logMaxBackups"}

// updateLogSettingsInTOML rewrites the four log settings in place within an
// existing config.toml's text, preserving surrounding comments and section
// ordering, instead of blindly re-serializing the whole file (which would
// drop the user's comments). A key with no existing line gets one appended
// before the first `[section]` header, or at the end if there is none.
func updateLogSettingsInTOML(content, level, path string, maxSize, maxBackups int) string {
	values := map[string]string{
		"logPath":       fmt.Sprintf("%q", path),
		"logLevel":      fmt.Sprintf("%q", level),
		"logMaxSize":    fmt.Sprintf("%d", maxSize),
		"logMaxBackups": fmt.Sprintf("%d", maxBackups),
	}

	for _, key := range logSettingKeys {
		content = setOrAppendKey(content, key, values[key])
	}
	return content
}

// PersistLogLevel rewrites configPath's on-disk logLevel (and the other
// three log settings, unchanged) so a runtime log-level change survives a
// restart. A missing configPath is not an error: tierd can run without a
// config file on disk, in which case the level change is process-local
// only.
func PersistLogLevel(configPath string, cfg Config, level string) error {
	if configPath == "" {
		return nil
	}
	content, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", configPath, err)
	}

	updated := updateLogSettingsInTOML(string(content), level, cfg.LogPath, cfg.LogMaxSize, cfg.LogMaxBackups)
	if err := os.WriteFile(configPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}
	return nil
}

func setOrAppendKey(content, key, value string) string {
	pattern := regexp.MustCompile(`(?m)^#?\s*` + regexp.QuoteMeta(key) + `\s*=.*$`)
	line := key + ` = ` + value
	if pattern.MatchString(content) {
		return pattern.ReplaceAllString(content, line)
	}

	if idx := strings.Index(content, "\n["); idx != -1 {
		return content[:idx+1] + line + "\n" + content[idx+1:]
	}
	return strings.TrimRight(content, "\n") + "\n" + line + "\n"
}
