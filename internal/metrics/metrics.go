// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package metrics defines the Prometheus instrumentation for the proxy:
// cache efficiency, upstream request latency and errors, token refresh
// outcomes, and inbound API traffic. All collectors are registered on the
// default registry via promauto and exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits by resource type",
		},
		[]string{"type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses by resource type",
		},
		[]string{"type"},
	)

	CacheStaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_served_total",
			Help: "Total number of stale cache entries served after a failed live fetch",
		},
		[]string{"type"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_memory_entries",
			Help: "Current number of entries in the memory cache tier",
		},
	)

	CacheSweepEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_sweep_evictions_total",
			Help: "Total number of expired entries evicted by the background sweep",
		},
	)

	// Upstream (Trakt) Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream Trakt API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_request_errors_total",
			Help: "Total number of failed upstream Trakt API requests",
		},
		[]string{"reason"},
	)

	// Token Metrics
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refresh_total",
			Help: "Total number of OAuth token refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Enrichment Metrics
	IndexBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrichment_index_build_duration_seconds",
			Help:    "Duration of enrichment index builds in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index"},
	)

	// Inbound API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of inbound API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of inbound API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_auth_failures_total",
			Help: "Total number of inbound requests rejected for a bad or missing API key",
		},
	)
)

// RecordAPIRequest records one inbound API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIndexBuild records one enrichment index construction.
func RecordIndexBuild(index string, duration time.Duration) {
	IndexBuildDuration.WithLabelValues(index).Observe(duration.Seconds())
}
