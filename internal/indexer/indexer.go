// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer notifies the downstream media indexer (Sonarr or Radarr)
// that a download has finished and moved to its final path. The request
// shape and best-effort retry policy mirror
// internal/services/notifications.Service: build a small JSON payload,
// POST it with a bounded *http.Client and a context timeout, and retry
// transient failures without ever failing the caller's overall operation.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// Kind distinguishes the two supported indexer flavors, which differ only
// in their scan command name.
type Kind string

const (
	KindSonarr Kind = "sonarr"
	KindRadarr Kind = "radarr"
)

func (k Kind) scanCommand() string {
	if k == KindSonarr {
		return "DownloadedEpisodesScan"
	}
	return "DownloadedMoviesScan"
}

// Target is one configured indexer instance.
type Target struct {
	Kind        Kind
	URL         string
	APIKey      string
	CategoryTag string
}

// Matches reports whether category matches this target's configured
// category tag, case-insensitively.
func (t Target) Matches(category string) bool {
	if t.CategoryTag == "" {
		return false
	}
	return strings.EqualFold(t.CategoryTag, category)
}

// Client notifies one or more configured indexer targets.
type Client struct {
	targets    []Target
	httpClient *http.Client
	retries    uint
	log        zerolog.Logger
}

// New builds an indexer Client for the given targets.
func New(targets []Target, log zerolog.Logger) *Client {
	return &Client{
		targets:    targets,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retries:    3,
		log:        log.With().Str("component", "indexer").Logger(),
	}
}

type scanCommandPayload struct {
	Name             string `json:"name"`
	Path             string `json:"path,omitempty"`
	DownloadClientID string `json:"downloadClientId,omitempty"`
}

// NotifyMatching finds the target whose category tag matches category
// (case-insensitive) and notifies it. If no target matches, this is a
// no-op. Failures are logged and swallowed: indexer notification never
// fails the caller's overall operation.
func (c *Client) NotifyMatching(ctx context.Context, category, infohash, path string) {
	for _, target := range c.targets {
		if !target.Matches(category) {
			continue
		}
		if err := c.notify(ctx, target, infohash, path); err != nil {
			c.log.Warn().Err(err).Str("indexer", string(target.Kind)).Str("hash", infohash).Msg("indexer notify failed after retries")
		}
		return
	}
}

func (c *Client) notify(ctx context.Context, target Target, infohash, path string) error {
	if target.URL == "" {
		return nil
	}

	payload := scanCommandPayload{
		Name:             target.Kind.scanCommand(),
		Path:             path,
		DownloadClientID: infohash,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode scan command: %w", err)
	}

	return retry.Do(
		func() error { return c.postCommand(ctx, target, encoded) },
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Err(err).Uint("attempt", n+1).Str("indexer", string(target.Kind)).Msg("indexer notify attempt failed, retrying")
		}),
	)
}

func (c *Client) postCommand(ctx context.Context, target Target, body []byte) error {
	url := strings.TrimRight(target.URL, "/") + "/api/v3/command"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", target.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}
	return nil
}
