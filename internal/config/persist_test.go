// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUpdateLogSettingsInTOMLUpdatesCommentedKeysInPlace(t *testing.T) {
	content := `# tierd config.toml - auto-generated on first run

# Log file path
#logPath = "/var/log/tierd/tierd.log"

# Log rotation
#logMaxSize = 50
#logMaxBackups = 3

logLevel = "INFO"

[httpTimeouts]
#readTimeout = 60
`
	updated := updateLogSettingsInTOML(content, "DEBUG", "/custom/tierd.log", 25, 7)

	httpIndex := strings.Index(updated, "[httpTimeouts]")
	if httpIndex == -1 {
		t.Fatalf("missing httpTimeouts section:\n%s", updated)
	}

	lastLogPath := strings.LastIndex(updated, "logPath")
	if lastLogPath == -1 || lastLogPath > httpIndex {
		t.Fatalf("logPath not updated in place before httpTimeouts section:\n%s", updated)
	}

	if !strings.Contains(updated, `logPath = "/custom/tierd.log"`) {
		t.Fatalf("logPath not updated:\n%s", updated)
	}
	if !strings.Contains(updated, "logMaxSize = 25") {
		t.Fatalf("logMaxSize not updated:\n%s", updated)
	}
	if !strings.Contains(updated, "logMaxBackups = 7") {
		t.Fatalf("logMaxBackups not updated:\n%s", updated)
	}
	if !strings.Contains(updated, `logLevel = "DEBUG"`) {
		t.Fatalf("logLevel not updated:\n%s", updated)
	}
}

func TestUpdateLogSettingsInTOMLAppendsMissingKeys(t *testing.T) {
	content := "cacheRoot = \"/cache\"\n"
	updated := updateLogSettingsInTOML(content, "WARN", "/log/tierd.log", 10, 2)

	for _, want := range []string{`logLevel = "WARN"`, `logPath = "/log/tierd.log"`, "logMaxSize = 10", "logMaxBackups = 2"} {
		if !strings.Contains(updated, want) {
			t.Fatalf("missing %q in:\n%s", want, updated)
		}
	}
}

func TestPersistLogLevelRewritesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("logLevel = \"INFO\"\ncacheRoot = \"/cache\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Config{LogPath: "/var/log/tierd/tierd.log", LogMaxSize: 50, LogMaxBackups: 3}
	if err := PersistLogLevel(path, cfg, "DEBUG"); err != nil {
		t.Fatalf("PersistLogLevel: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(content), `logLevel = "DEBUG"`) {
		t.Fatalf("logLevel not updated:\n%s", content)
	}
	if !strings.Contains(string(content), `cacheRoot = "/cache"`) {
		t.Fatalf("unrelated key lost:\n%s", content)
	}
}

func TestPersistLogLevelMissingFileIsNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.toml")
	if err := PersistLogLevel(path, Config{}, "DEBUG"); err != nil {
		t.Fatalf("PersistLogLevel on missing file should be a no-op, got: %v", err)
	}
}

func TestPersistLogLevelEmptyPathIsNotError(t *testing.T) {
	if err := PersistLogLevel("", Config{}, "DEBUG"); err != nil {
		t.Fatalf("PersistLogLevel with empty path should be a no-op, got: %v", err)
	}
}
