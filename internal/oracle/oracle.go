// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package oracle talks to the streaming-activity oracle (Tautulli): it
// fetches the set of currently-playing file paths so eviction can avoid
// yanking a file mid-stream. HTTP client shape follows
// internal/services/jackett.Client (trimmed base URL, bounded *http.Client
// with an explicit timeout, context-scoped requests).
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// activeSessionStates are the session states that count as "currently
// streaming".
var activeSessionStates = map[string]bool{
	"playing":   true,
	"paused":    true,
	"buffering": true,
}

// Client queries Tautulli's activity API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds an oracle Client. baseURL and apiKey come from config; an
// empty baseURL means the oracle is not configured (ActiveFiles then
// always returns an empty set without making a request).
func New(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        log.With().Str("component", "oracle").Logger(),
	}
}

type activityResponse struct {
	Response struct {
		Data struct {
			Sessions []session `json:"sessions"`
		} `json:"data"`
	} `json:"response"`
}

type session struct {
	File  string `json:"file"`
	State string `json:"state"`
}

// ActiveFiles issues one request to the oracle and returns the set of file
// paths whose session state is currently playing, paused, or buffering.
//
// Failures (network, non-2xx status, malformed body) degrade to an empty
// set and a logged warning, and the returned error is nil in every case:
// the default policy here is "empty means no streams" (fail-open on
// evict), acceptable because files are preserved on the bulk tier before
// the cache copy is ever deleted. A caller cannot tell an unreachable
// oracle from one that reports no sessions.
func (c *Client) ActiveFiles(ctx context.Context) (map[string]struct{}, error) {
	empty := map[string]struct{}{}
	if c.baseURL == "" {
		return empty, nil
	}

	u := fmt.Sprintf("%s/api/v2?apikey=%s&cmd=get_activity", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to build activity request")
		return empty, nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("activity request failed")
		return empty, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("activity request returned non-success status")
		return empty, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to read activity response body")
		return empty, nil
	}

	var parsed activityResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warn().Err(err).Msg("failed to parse activity response")
		return empty, nil
	}

	out := make(map[string]struct{}, len(parsed.Response.Data.Sessions))
	for _, s := range parsed.Response.Data.Sessions {
		if s.File == "" {
			continue
		}
		if activeSessionStates[strings.ToLower(s.State)] {
			out[s.File] = struct{}{}
		}
	}
	return out, nil
}
