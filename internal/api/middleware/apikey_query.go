// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import "net/http"

// APIKeyFromQuery promotes an api_key query param into the X-API-Key
// header so RequireAPIKey sees it regardless of which form the caller used.
func APIKeyFromQuery(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") == "" {
				if apiKey := r.URL.Query().Get(param); apiKey != "" {
					r.Header.Set("X-API-Key", apiKey)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
