// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package models

import "time"

// APIResponse is the standardized response wrapper for all endpoints.
//
// Count is the number of items in Data after filtering and re-pagination.
// Total is the pre-pagination total and is omitted when it equals Count,
// so the common single-page case stays compact.
//
// Example success:
//
//	{
//	  "status": "success",
//	  "count": 20,
//	  "total": 153,
//	  "data": [...],
//	  "pagination": {"itemCount": 153, "pageCount": 8, "limit": 20, "page": 1},
//	  "metadata": {"timestamp": "2026-08-31T12:00:00Z", "cached": true}
//	}
type APIResponse struct {
	Status     string      `json:"status"`
	Count      int         `json:"count,omitempty"`
	Total      int         `json:"total,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
	Error      *APIError   `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached,omitempty"`
}

// APIError is the structured error payload.
//
// Common codes: VALIDATION_ERROR, AUTHENTICATION_ERROR, UPSTREAM_ERROR,
// NOT_FOUND, RATE_LIMIT_EXCEEDED, INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
