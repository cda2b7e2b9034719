// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/models"
	"github.com/tomtom215/traktrelay/internal/trakt"
	"github.com/tomtom215/traktrelay/internal/validation"
)

// sanitizeLogValue replaces control characters so attacker-supplied values
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondUpstreamError maps an upstream failure to a response, preserving
// Trakt's error code and description when present.
func respondUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *trakt.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Description
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}
		respondJSON(w, http.StatusBadGateway, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    "UPSTREAM_ERROR",
				Message: message,
				Details: map[string]interface{}{
					"upstream_status": apiErr.StatusCode,
					"upstream_code":   apiErr.Code,
				},
			},
		})
		return
	}
	respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Upstream request failed", err)
}

// validateRequest validates a struct and converts failures to the API
// error format.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default value. A
// present but non-numeric value is a client error, not a default.
func getIntParam(r *http.Request, key string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer, got %q", key, sanitizeLogValue(value))
	}
	return intValue, nil
}

// getBoolParam extracts a boolean query parameter. "1" and "true" read as
// true; everything else as false.
func getBoolParam(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true":
		return true
	}
	return false
}

// paginateFlat slices a filtered flat collection into the requested page
// and produces pagination metadata describing the post-filter set.
func paginateFlat(items []models.FlatItem, page, limit int) ([]models.FlatItem, models.Pagination) {
	total := len(items)
	if limit <= 0 {
		return items, models.Pagination{
			ItemCount: total,
			PageCount: 1,
			Limit:     total,
			Page:      1,
		}
	}
	if page < 1 {
		page = 1
	}

	pageCount := (total + limit - 1) / limit
	if pageCount == 0 {
		pageCount = 1
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return items[start:end], models.Pagination{
		ItemCount: total,
		PageCount: pageCount,
		Limit:     limit,
		Page:      page,
	}
}
