// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dualtier/tierd/internal/api"
	"github.com/dualtier/tierd/internal/config"
	"github.com/dualtier/tierd/internal/copyengine"
	"github.com/dualtier/tierd/internal/finisher"
	"github.com/dualtier/tierd/internal/indexer"
	"github.com/dualtier/tierd/internal/logging"
	"github.com/dualtier/tierd/internal/metrics"
	"github.com/dualtier/tierd/internal/oracle"
	"github.com/dualtier/tierd/internal/orchestrator"
	"github.com/dualtier/tierd/internal/pathmapper"
	"github.com/dualtier/tierd/internal/relocator"
	"github.com/dualtier/tierd/internal/tagging"
	"github.com/dualtier/tierd/internal/torrentclient"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tierd daemon (default action)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, dryRun)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.toml", "path to config.toml")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run every mutating operation in dry-run mode")

	return cmd
}

func runServe(ctx context.Context, configPath string, dryRunFlag bool) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dryRun := cfg.DryRun || dryRunFlag

	log := logging.New(logging.Options{
		Level: cfg.LogLevel, Path: cfg.LogPath,
		MaxSizeMB: cfg.LogMaxSize, MaxBackups: cfg.LogMaxBackups,
	})

	client := torrentclient.NewLive(
		fmt.Sprintf("http://%s:%d", cfg.TorrentClientHost, cfg.TorrentClientPort),
		cfg.TorrentClientUsername, cfg.TorrentClientPassword, cfg.TorrentClientVerifyTLS,
		log,
	)

	copier := copyengine.New(dryRun, log)
	copier.VerificationEnabled = cfg.VerificationEnabled

	var indexerClient *indexer.Client
	if cfg.IndexerNotifyEnabled {
		var targets []indexer.Target
		if cfg.SonarrURL != "" {
			targets = append(targets, indexer.Target{Kind: indexer.KindSonarr, URL: cfg.SonarrURL, APIKey: cfg.SonarrAPIKey, CategoryTag: cfg.SonarrCategoryTag})
		}
		if cfg.RadarrURL != "" {
			targets = append(targets, indexer.Target{Kind: indexer.KindRadarr, URL: cfg.RadarrURL, APIKey: cfg.RadarrAPIKey, CategoryTag: cfg.RadarrCategoryTag})
		}
		indexerClient = indexer.New(targets, log)
	}

	var oracleClient *oracle.Client
	if cfg.TautulliURL != "" {
		oracleClient = oracle.New(cfg.TautulliURL, cfg.TautulliAPIKey, log)
	}

	var mappings []pathmapper.Mapping
	for local, remote := range cfg.PlexPathMappings {
		mappings = append(mappings, pathmapper.Mapping{Local: local, Remote: remote})
	}
	mapper := pathmapper.New(mappings)

	f := finisher.New(finisher.Config{
		CacheRoot: cfg.CacheRoot, BulkRoot: cfg.BulkRoot,
		CacheTag: cfg.CacheTag, BulkTag: cfg.BulkTag,
		AutoTagNew: cfg.AutoTagNew, CopyRetryAttempts: cfg.CopyRetryAttempts,
		IndexerEnabled: cfg.IndexerNotifyEnabled, DryRun: dryRun,
	}, client, copier, indexerClient, log)

	r := relocator.New(relocator.Config{
		CacheRoot: cfg.CacheRoot, BulkRoot: cfg.BulkRoot,
		CacheTag: cfg.CacheTag, BulkTag: cfg.BulkTag,
		CopyRetryAttempts: cfg.CopyRetryAttempts,
		ImportScriptEnabled: cfg.ImportScriptEnabled,
		LibraryRoots: append(append([]string{}, cfg.SonarrRootFolders...), cfg.RadarrRootFolders...),
		DryRun: dryRun,
	}, client, copier, oracleClient, mapper, log)

	tag := tagging.New(tagging.Config{
		CacheTag: cfg.CacheTag, BulkTag: cfg.BulkTag,
		CacheRoot: cfg.CacheRoot, BulkRoot: cfg.BulkRoot, DryRun: dryRun,
	}, client, copier, log)

	orch := orchestrator.New(orchestrator.Config{
		CacheRoot: cfg.CacheRoot, BulkRoot: cfg.BulkRoot, StateDir: cfg.StateDir,
		MaxConcurrentProcesses: cfg.MaxConcurrentProcesses, MaxConcurrentCopies: cfg.MaxConcurrentCopyOperations,
		DiskSpaceThresholdGiB: cfg.DiskSpaceThresholdGiB, LocationTaggingEnabled: cfg.LocationTaggingEnabled,
		CacheTag: cfg.CacheTag, BulkTag: cfg.BulkTag, DryRun: dryRun,
	}, client, f, r, tag, indexerClient, log)

	if restored, err := orch.RestoreFromCheckpoint(); err != nil {
		log.Error().Err(err).Msg("failed to restore checkpoint")
	} else if restored {
		log.Info().Msg("restored pending work from checkpoint")
	}

	router := api.NewRouter(api.Dependencies{
		Orchestrator:    orch,
		APIKey:          cfg.APIKey,
		Log:             log,
		MetricsRegistry: metrics.NewRegistry(orch),
		ConfigPath:      configPath,
		Config:          *cfg,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("tierd listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("orchestrator shutdown failed")
	}

	return nil
}
