// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import "net/http"

// RequireAPIKey enforces the shared-secret check: every request must carry
// the configured key as an X-API-Key header, or it is rejected with 401.
// An empty configured key disables the check (local/dev use).
func RequireAPIKey(configuredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if configuredKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("X-API-Key") != configuredKey {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
