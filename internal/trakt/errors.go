// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// APIError is a non-2xx response from the Trakt API, carrying the provider's
// machine-readable error code and human-readable description when the body
// contained them.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("trakt api error %d: %s - %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("trakt api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is a 401 APIError.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// newAPIError decodes a Trakt error body into an APIError. Trakt error
// bodies look like {"error":"invalid_grant","error_description":"..."}.
// An undecodable body still yields a useful status-only error.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Description = payload.ErrorDescription
	}
	return apiErr
}
