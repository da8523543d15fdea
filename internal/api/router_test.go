// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualtier/tierd/internal/config"
	"github.com/dualtier/tierd/internal/copyengine"
	"github.com/dualtier/tierd/internal/finisher"
	"github.com/dualtier/tierd/internal/metrics"
	"github.com/dualtier/tierd/internal/orchestrator"
	"github.com/dualtier/tierd/internal/relocator"
	"github.com/dualtier/tierd/internal/tagging"
	"github.com/dualtier/tierd/internal/torrentclient/torrentclienttest"
)

func newTestRouter(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	root := t.TempDir()
	cache := filepath.Join(root, "cache")
	bulk := filepath.Join(root, "bulk")
	require.NoError(t, os.MkdirAll(cache, 0o755))

	fake := torrentclienttest.New()
	copier := copyengine.New(true, zerolog.Nop())
	cfg := orchestrator.Config{
		CacheRoot: cache, BulkRoot: bulk, StateDir: root,
		MaxConcurrentProcesses: 2, MaxConcurrentCopies: 1,
		CacheTag: "ssd", BulkTag: "hdd",
	}
	f := finisher.New(finisher.Config{CacheRoot: cache, BulkRoot: bulk, CacheTag: "ssd", BulkTag: "hdd", CopyRetryAttempts: 1}, fake, copier, nil, zerolog.Nop())
	r := relocator.New(relocator.Config{CacheRoot: cache, BulkRoot: bulk, CacheTag: "ssd", BulkTag: "hdd", CopyRetryAttempts: 1}, fake, copier, nil, nil, zerolog.Nop())
	tag := tagging.New(tagging.Config{CacheTag: "ssd", BulkTag: "hdd", CacheRoot: cache, BulkRoot: bulk}, fake, copier, zerolog.Nop())

	orch := orchestrator.New(cfg, fake, f, r, tag, nil, zerolog.Nop())
	router := NewRouter(Dependencies{
		Orchestrator:    orch,
		APIKey:          apiKey,
		Log:             zerolog.Nop(),
		MetricsRegistry: metrics.NewRegistry(orch),
	})
	return httptest.NewServer(router)
}

func TestHealthSurvivesCompressionMiddleware(t *testing.T) {
	srv := newTestRouter(t, "")
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsRequiresNoAuth(t *testing.T) {
	srv := newTestRouter(t, "secret")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthRequiresNoAuth(t *testing.T) {
	srv := newTestRouter(t, "secret")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedEndpointRejectsMissingKey(t *testing.T) {
	srv := newTestRouter(t, "secret")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedEndpointAcceptsHeaderKey(t *testing.T) {
	srv := newTestRouter(t, "secret")
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedEndpointAcceptsQueryKey(t *testing.T) {
	srv := newTestRouter(t, "secret")
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status?api_key=secret")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotifyTorrentFinishedRejectsBadHash(t *testing.T) {
	srv := newTestRouter(t, "")
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"hash": "not-a-hash"})
	resp, err := http.Post(srv.URL+"/notify/torrent-finished", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotifyTorrentFinishedReturnsQueueID(t *testing.T) {
	srv := newTestRouter(t, "")
	defer srv.Close()

	hash := "A"
	for len(hash) < 40 {
		hash += "A"
	}
	body, _ := json.Marshal(map[string]any{"hash": hash})
	resp, err := http.Post(srv.URL+"/notify/torrent-finished", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.NotEmpty(t, decoded["queue_id"])
}

func TestSetLogLevelPersistsToConfigFile(t *testing.T) {
	root := t.TempDir()
	cache := filepath.Join(root, "cache")
	bulk := filepath.Join(root, "bulk")
	require.NoError(t, os.MkdirAll(cache, 0o755))

	configPath := filepath.Join(root, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("logLevel = \"INFO\"\n"), 0o644))

	fake := torrentclienttest.New()
	copier := copyengine.New(true, zerolog.Nop())
	cfg := orchestrator.Config{CacheRoot: cache, BulkRoot: bulk, StateDir: root, MaxConcurrentProcesses: 2, MaxConcurrentCopies: 1, CacheTag: "ssd", BulkTag: "hdd"}
	f := finisher.New(finisher.Config{CacheRoot: cache, BulkRoot: bulk, CacheTag: "ssd", BulkTag: "hdd", CopyRetryAttempts: 1}, fake, copier, nil, zerolog.Nop())
	r := relocator.New(relocator.Config{CacheRoot: cache, BulkRoot: bulk, CacheTag: "ssd", BulkTag: "hdd", CopyRetryAttempts: 1}, fake, copier, nil, nil, zerolog.Nop())
	tag := tagging.New(tagging.Config{CacheTag: "ssd", BulkTag: "hdd", CacheRoot: cache, BulkRoot: bulk}, fake, copier, zerolog.Nop())
	orch := orchestrator.New(cfg, fake, f, r, tag, nil, zerolog.Nop())

	router := NewRouter(Dependencies{
		Orchestrator: orch,
		Log:          zerolog.Nop(),
		ConfigPath:   configPath,
		Config:       config.Config{LogLevel: "INFO"},
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"level": "debug"})
	resp, err := http.Post(srv.URL+"/config/log-level", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "DEBUG", decoded["level"])

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), `logLevel = "DEBUG"`)
}

func TestSetLogLevelRejectsUnknownLevel(t *testing.T) {
	srv := newTestRouter(t, "")
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"level": "not-a-level"})
	resp, err := http.Post(srv.URL+"/config/log-level", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueueClearReturnsCount(t *testing.T) {
	srv := newTestRouter(t, "")
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/queue/clear", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, 0, decoded["cleared_count"])
}
