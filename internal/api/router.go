// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api wires the HTTP control surface: the middleware chain,
// shared-secret auth, and the route table (global middleware, then
// grouped routes).
package api

import (
	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dualtier/tierd/internal/api/handlers"
	apimiddleware "github.com/dualtier/tierd/internal/api/middleware"
	"github.com/dualtier/tierd/internal/config"
	"github.com/dualtier/tierd/internal/orchestrator"
)

// Dependencies holds everything the router needs to build its handlers.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	APIKey       string
	Log          zerolog.Logger

	// MetricsRegistry, when non-nil, is exposed unauthenticated at
	// /metrics, matching /health's no-auth treatment.
	MetricsRegistry *prometheus.Registry

	// ConfigPath and Config back the runtime /config/log-level endpoint.
	// ConfigPath empty means there is no on-disk config.toml to persist
	// changes to; the level still changes for the running process.
	ConfigPath string
	Config     config.Config
}

// NewRouter builds the full chi router for the control surface.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(apimiddleware.HTTPLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// HTTP compression - handles gzip, brotli, zstd, deflate automatically.
	if compressor, err := httpcompression.DefaultAdapter(); err != nil {
		deps.Log.Error().Err(err).Msg("failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	healthHandler := handlers.NewHealthHandler()
	orchHandler := handlers.NewOrchestratorHandler(deps.Orchestrator, deps.Log)
	configHandler := handlers.NewConfigHandler(deps.ConfigPath, deps.Config, deps.Log)

	r.Get("/health", healthHandler.Health)

	if deps.MetricsRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(apimiddleware.APIKeyFromQuery("api_key"))
		r.Use(apimiddleware.RequireAPIKey(deps.APIKey))

		r.Get("/status", orchHandler.Status)
		r.Post("/notify/torrent-finished", orchHandler.NotifyTorrentFinished)
		r.Post("/space-management/trigger", orchHandler.TriggerSpaceManagement)
		r.Post("/queue/clear", orchHandler.ClearQueue)
		r.Post("/tags/existing", orchHandler.ReconcileExisting)
		r.Get("/tags/summary", orchHandler.TagSummary)
		r.Post("/state/save", orchHandler.SaveState)
		r.Get("/copy-operations/status", orchHandler.CopyOperationsStatus)
		r.Post("/config/log-level", configHandler.SetLogLevel)
	})

	return r
}
