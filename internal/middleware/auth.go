// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package middleware

import (
	"crypto/subtle"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/metrics"
)

// APIKeyAuth requires every request to carry an x-api-key header matching
// the configured secret. The comparison is constant-time so the key cannot
// be probed byte by byte through response timing.
func APIKeyAuth(apiKey string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("x-api-key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				metrics.APIAuthFailures.Inc()
				logging.Warn().
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Msg("Rejected request with bad or missing API key")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status": "error",
					"error": map[string]any{
						"code":    "AUTHENTICATION_ERROR",
						"message": "Invalid or missing API key",
					},
				})
				return
			}
			next(w, r)
		}
	}
}
