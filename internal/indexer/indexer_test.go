// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyMatchingCallsRightTarget(t *testing.T) {
	var received scanCommandPayload
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New([]Target{
		{Kind: KindSonarr, URL: server.URL, APIKey: "sonarr-key", CategoryTag: "sonarr"},
		{Kind: KindRadarr, URL: server.URL, APIKey: "radarr-key", CategoryTag: "radarr"},
	}, zerolog.Nop())

	c.NotifyMatching(context.Background(), "radarr", "A000", "/bulk/radarr/movie.mkv")

	assert.Equal(t, "radarr-key", gotAPIKey)
	assert.Equal(t, "DownloadedMoviesScan", received.Name)
	assert.Equal(t, "/bulk/radarr/movie.mkv", received.Path)
}

func TestNotifyMatchingCaseInsensitive(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New([]Target{{Kind: KindSonarr, URL: server.URL, APIKey: "k", CategoryTag: "Sonarr"}}, zerolog.Nop())
	c.NotifyMatching(context.Background(), "SONARR", "abc", "/bulk/sonarr/show/ep.mkv")

	assert.True(t, called)
}

func TestNotifyMatchingNoMatchIsNoop(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New([]Target{{Kind: KindRadarr, URL: server.URL, APIKey: "k", CategoryTag: "radarr"}}, zerolog.Nop())
	c.NotifyMatching(context.Background(), "lidarr", "abc", "/bulk/lidarr/album")

	assert.False(t, called)
}

func TestNotifyMatchingSwallowsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New([]Target{{Kind: KindRadarr, URL: server.URL, APIKey: "k", CategoryTag: "radarr"}}, zerolog.Nop())
	c.retries = 1
	c.NotifyMatching(context.Background(), "radarr", "abc", "/bulk/radarr/movie.mkv")
}
