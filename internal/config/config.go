// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads tierd's configuration from a TOML file on disk
// with environment-variable overrides: github.com/spf13/viper reads the
// file, AutomaticEnv with a "TIERD" prefix lets deployers override any
// key without touching the file, and validation is explicit Go code
// rather than a schema library.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full set of recognized configuration keys.
type Config struct {
	CacheRoot string `toml:"cacheRoot" mapstructure:"cacheRoot"`
	BulkRoot  string `toml:"bulkRoot" mapstructure:"bulkRoot"`
	StateDir  string `toml:"stateDir" mapstructure:"stateDir"`

	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	TorrentClientHost      string `toml:"torrentClientHost" mapstructure:"torrentClientHost"`
	TorrentClientPort      int    `toml:"torrentClientPort" mapstructure:"torrentClientPort"`
	TorrentClientUsername  string `toml:"torrentClientUsername" mapstructure:"torrentClientUsername"`
	TorrentClientPassword  string `toml:"torrentClientPassword" mapstructure:"torrentClientPassword"`
	TorrentClientVerifyTLS bool   `toml:"torrentClientVerifyTls" mapstructure:"torrentClientVerifyTls"`

	HTTPHost string `toml:"httpHost" mapstructure:"httpHost"`
	HTTPPort int    `toml:"httpPort" mapstructure:"httpPort"`
	APIKey   string `toml:"apiKey" mapstructure:"apiKey"`

	MaxConcurrentProcesses      int     `toml:"maxConcurrentProcesses" mapstructure:"maxConcurrentProcesses"`
	MaxConcurrentCopyOperations int     `toml:"maxConcurrentCopyOperations" mapstructure:"maxConcurrentCopyOperations"`
	CopyRetryAttempts           int     `toml:"copyRetryAttempts" mapstructure:"copyRetryAttempts"`
	DiskSpaceThresholdGiB       float64 `toml:"diskSpaceThresholdGib" mapstructure:"diskSpaceThresholdGib"`

	DryRun                 bool `toml:"dryRun" mapstructure:"dryRun"`
	VerificationEnabled    bool `toml:"verificationEnabled" mapstructure:"verificationEnabled"`
	LocationTaggingEnabled bool `toml:"locationTaggingEnabled" mapstructure:"locationTaggingEnabled"`
	AutoTagNew             bool `toml:"autoTagNew" mapstructure:"autoTagNew"`

	CacheTag string `toml:"cacheTag" mapstructure:"cacheTag"`
	BulkTag  string `toml:"bulkTag" mapstructure:"bulkTag"`

	IndexerNotifyEnabled bool `toml:"indexerNotifyEnabled" mapstructure:"indexerNotifyEnabled"`

	SonarrURL         string   `toml:"sonarrUrl" mapstructure:"sonarrUrl"`
	SonarrAPIKey      string   `toml:"sonarrApiKey" mapstructure:"sonarrApiKey"`
	SonarrCategoryTag string   `toml:"sonarrCategoryTag" mapstructure:"sonarrCategoryTag"`
	SonarrRootFolders []string `toml:"sonarrRootFolders" mapstructure:"sonarrRootFolders"`

	RadarrURL         string   `toml:"radarrUrl" mapstructure:"radarrUrl"`
	RadarrAPIKey      string   `toml:"radarrApiKey" mapstructure:"radarrApiKey"`
	RadarrCategoryTag string   `toml:"radarrCategoryTag" mapstructure:"radarrCategoryTag"`
	RadarrRootFolders []string `toml:"radarrRootFolders" mapstructure:"radarrRootFolders"`

	ImportScriptEnabled bool `toml:"importScriptEnabled" mapstructure:"importScriptEnabled"`

	TautulliURL    string `toml:"tautulliUrl" mapstructure:"tautulliUrl"`
	TautulliAPIKey string `toml:"tautulliApiKey" mapstructure:"tautulliApiKey"`

	PlexPathMappings map[string]string `toml:"plexPathMappings" mapstructure:"plexPathMappings"`
}

// New loads configuration from configPath, applying defaults first and
// environment-variable overrides last, then validates the result.
func New(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TIERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
			if err := writeDefaultConfig(configPath); err != nil {
				return nil, fmt.Errorf("write default config %s: %w", configPath, err)
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read freshly written config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("torrentClientHost", "localhost")
	v.SetDefault("torrentClientPort", 8080)
	v.SetDefault("torrentClientUsername", "admin")
	v.SetDefault("torrentClientPassword", "adminadmin")
	v.SetDefault("torrentClientVerifyTls", true)

	v.SetDefault("httpHost", "127.0.0.1")
	v.SetDefault("httpPort", 8081)

	v.SetDefault("maxConcurrentProcesses", 3)
	v.SetDefault("maxConcurrentCopyOperations", 1)
	v.SetDefault("copyRetryAttempts", 3)
	v.SetDefault("diskSpaceThresholdGib", 100.0)

	v.SetDefault("dryRun", false)
	v.SetDefault("verificationEnabled", true)
	v.SetDefault("locationTaggingEnabled", true)
	v.SetDefault("autoTagNew", true)

	v.SetDefault("cacheTag", "ssd")
	v.SetDefault("bulkTag", "hdd")

	v.SetDefault("indexerNotifyEnabled", true)
	v.SetDefault("importScriptEnabled", false)

	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
}

// Validate rejects empty credentials, out-of-range ports, indistinct or
// empty location tags, and sub-minimum retry/concurrency values.
func (c *Config) Validate() error {
	if c.CacheRoot == "" {
		return fmt.Errorf("cacheRoot must not be empty")
	}
	if c.BulkRoot == "" {
		return fmt.Errorf("bulkRoot must not be empty")
	}
	if c.StateDir == "" {
		return fmt.Errorf("stateDir must not be empty")
	}

	if c.TorrentClientUsername == "" || c.TorrentClientPassword == "" {
		return fmt.Errorf("torrentClientUsername and torrentClientPassword must not be empty")
	}
	if err := validatePort(c.TorrentClientPort, "torrentClientPort"); err != nil {
		return err
	}
	if err := validatePort(c.HTTPPort, "httpPort"); err != nil {
		return err
	}

	if c.CacheTag == "" || c.BulkTag == "" {
		return fmt.Errorf("cacheTag and bulkTag must not be empty")
	}
	if c.CacheTag == c.BulkTag {
		return fmt.Errorf("cacheTag and bulkTag must be distinct, got %q", c.CacheTag)
	}

	if c.CopyRetryAttempts < 1 {
		return fmt.Errorf("copyRetryAttempts must be >= 1, got %d", c.CopyRetryAttempts)
	}
	if c.MaxConcurrentProcesses < 1 {
		return fmt.Errorf("maxConcurrentProcesses must be >= 1, got %d", c.MaxConcurrentProcesses)
	}
	if c.MaxConcurrentCopyOperations < 1 {
		return fmt.Errorf("maxConcurrentCopyOperations must be >= 1, got %d", c.MaxConcurrentCopyOperations)
	}

	return nil
}

func validatePort(port int, field string) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in [1,65535], got %d", field, port)
	}
	return nil
}

// writeDefaultConfig writes a commented starter TOML file to configPath
// on first run. Directories are created as needed.
func writeDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(configPath, []byte(defaultConfigTOML), 0o644)
}

const defaultConfigTOML = `# tierd config.toml - auto-generated on first run

# Storage tiers
#cacheRoot = "/mnt/cache"
#bulkRoot = "/mnt/bulk"
#stateDir = "/var/lib/tierd"

# Logging
#logPath = "/var/log/tierd/tierd.log"
#logLevel = "INFO"
#logMaxSize = 50
#logMaxBackups = 3

# Torrent client
#torrentClientHost = "localhost"
#torrentClientPort = 8080
#torrentClientUsername = "admin"
#torrentClientPassword = "adminadmin"
#torrentClientVerifyTls = true

# HTTP surface
#httpHost = "127.0.0.1"
#httpPort = 8081
#apiKey = ""

# Concurrency and copy tuning
#maxConcurrentProcesses = 3
#maxConcurrentCopyOperations = 1
#copyRetryAttempts = 3
#diskSpaceThresholdGib = 100

# Behavior flags
#dryRun = false
#verificationEnabled = true
#locationTaggingEnabled = true
#autoTagNew = true
#cacheTag = "ssd"
#bulkTag = "hdd"

# Indexer notification
#indexerNotifyEnabled = true
#sonarrUrl = ""
#sonarrApiKey = ""
#sonarrCategoryTag = ""
#radarrUrl = ""
#radarrApiKey = ""
#radarrCategoryTag = ""

# Import-script mode
#importScriptEnabled = false
#tautulliUrl = ""
#tautulliApiKey = ""
`
