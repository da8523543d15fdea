// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package handlers implements the HTTP endpoints of the orchestrator's
// control surface, one small handler struct per resource: each handler
// takes exactly the collaborator it needs, decodes its own body, and
// writes its own JSON response rather than routing through a shared
// generic responder.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dualtier/tierd/internal/config"
	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/logging"
	"github.com/dualtier/tierd/internal/orchestrator"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusForErr(err error) int {
	outcome, ok := domain.AsOutcome(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if outcome.Kind == domain.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HealthHandler serves the unauthenticated liveness probe.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "tierd"})
}

// OrchestratorHandler exposes the orchestrator's queue, status, and
// tagging operations over HTTP.
type OrchestratorHandler struct {
	orch *orchestrator.Orchestrator
	log  zerolog.Logger
}

func NewOrchestratorHandler(orch *orchestrator.Orchestrator, log zerolog.Logger) *OrchestratorHandler {
	return &OrchestratorHandler{orch: orch, log: log.With().Str("component", "api").Logger()}
}

type notifyTorrentFinishedRequest struct {
	Hash     string                   `json:"hash"`
	Params   *domain.TorrentDescriptor `json:"params,omitempty"`
	Priority int                      `json:"priority,omitempty"`
}

// NotifyTorrentFinished handles POST /notify/torrent-finished.
func (h *OrchestratorHandler) NotifyTorrentFinished(w http.ResponseWriter, r *http.Request) {
	var req notifyTorrentFinishedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hash, err := domain.ParseInfohash(req.Hash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	desc := domain.TorrentDescriptor{Hash: hash.String()}
	if req.Params != nil {
		desc = *req.Params
		desc.Hash = hash.String()
	}

	queueID, err := h.orch.EnqueueTorrent(desc, req.Priority)
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"queue_id": queueID})
}

// Status handles GET /status.
func (h *OrchestratorHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Status())
}

// TriggerSpaceManagement handles POST /space-management/trigger.
func (h *OrchestratorHandler) TriggerSpaceManagement(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.TriggerSpaceReclamation(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("manual space reclamation failed")
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ClearQueue handles POST /queue/clear.
func (h *OrchestratorHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	cleared := h.orch.ClearQueue()
	writeJSON(w, http.StatusOK, map[string]int{"cleared_count": cleared})
}

type reconcileRequest struct {
	DryRun *bool `json:"dry_run,omitempty"`
}

// ReconcileExisting handles POST /tags/existing.
func (h *OrchestratorHandler) ReconcileExisting(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	plan, err := h.orch.ReconcileTags(r.Context(), req.DryRun)
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// TagSummary handles GET /tags/summary.
func (h *OrchestratorHandler) TagSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.orch.TagSummary(r.Context())
	if err != nil {
		writeError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SaveState handles POST /state/save.
func (h *OrchestratorHandler) SaveState(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.SaveCheckpoint(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// CopyOperationsStatus handles GET /copy-operations/status.
func (h *OrchestratorHandler) CopyOperationsStatus(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batch_id")
	ops := h.orch.CopyOperationsStatus(batchID)
	writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

var validLogLevels = map[string]bool{
	"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true,
}

// ConfigHandler exposes runtime-adjustable settings that don't belong to
// the torrent-processing pipeline itself.
type ConfigHandler struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
}

func NewConfigHandler(configPath string, cfg config.Config, log zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{configPath: configPath, cfg: cfg, log: log.With().Str("component", "api").Logger()}
}

type logLevelRequest struct {
	Level string `json:"level"`
}

// SetLogLevel handles POST /config/log-level. It takes effect immediately
// for every component logger (they share zerolog's global level gate) and
// is persisted to config.toml so it survives a restart.
func (h *ConfigHandler) SetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req logLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	level := strings.ToUpper(req.Level)
	if !validLogLevels[level] {
		writeError(w, http.StatusBadRequest, "level must be one of TRACE, DEBUG, INFO, WARN, ERROR")
		return
	}

	logging.SetLevel(level)
	if err := config.PersistLogLevel(h.configPath, h.cfg, level); err != nil {
		h.log.Warn().Err(err).Msg("log level changed but could not be persisted to config.toml")
	}
	h.cfg.LogLevel = level

	writeJSON(w, http.StatusOK, map[string]string{"level": level})
}
