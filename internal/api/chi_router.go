// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package api provides HTTP routing using Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/traktrelay/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so it can be used with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires the handler and middleware stacks into the Chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	apiKey        string
}

// NewRouter builds the router over a prepared handler.
func NewRouter(handler *Handler, mw *ChiMiddleware, apiKey string) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		apiKey:        apiKey,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	// Health gets its own permissive rate limit and no API-key check, so
	// monitoring keeps working when a key is rotated.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
	})

	// Data endpoints: rate limited, measured, and API-key protected.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.APIKeyAuth(router.apiKey)))

		r.Get("/history", router.handler.History)
		r.Get("/ratings", router.handler.Ratings)
		r.Get("/watchlist", router.handler.Watchlist)
		r.Get("/trending", router.handler.Trending)
		r.Get("/trending/full", router.handler.TrendingFull)
		r.Get("/search", router.handler.Search)
		r.Get("/stats", router.handler.Stats)

		r.Delete("/cache", router.handler.CacheFlushAll)
		r.Delete("/cache/{type}", router.handler.CacheFlushType)
	})

	// Observability.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
