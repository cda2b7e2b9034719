// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/traktrelay/internal/cache"
	"github.com/tomtom215/traktrelay/internal/enrich"
	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/models"
	"github.com/tomtom215/traktrelay/internal/trakt"
)

// Handler serves the proxy's HTTP API. All collection endpoints share the
// same shape: fetch the (cached) collection from upstream, enrich through
// the join indices, flatten, apply query filters, then re-paginate the
// filtered set client-side. Upstream pagination is only a fetch detail.
type Handler struct {
	client    trakt.API
	enricher  *enrich.Service
	store     *cache.Store
	tokens    *trakt.TokenManager
	startedAt time.Time
}

// NewHandler builds the API handler over the cached client, the enrichment
// service, and the cache store it manages. tokens may be nil; the health
// endpoint then omits the token snapshot.
func NewHandler(client trakt.API, enricher *enrich.Service, store *cache.Store, tokens *trakt.TokenManager) *Handler {
	return &Handler{
		client:    client,
		enricher:  enricher,
		store:     store,
		tokens:    tokens,
		startedAt: time.Now(),
	}
}

// fetchOptions translates the bound request into upstream call options. The
// full collection is fetched so filtering and sorting see every item; the
// request's own page/limit apply after the filter pass.
func (req collectionRequest) fetchOptions() trakt.Options {
	return trakt.Options{
		Type:         req.Type,
		Query:        req.Query,
		Limit:        maxCollectionFetch,
		ForceRefresh: req.Force,
	}
}

// respondCollection applies the filter/sort/paginate pipeline to a
// flattened collection and writes the success envelope. cached marks the
// response as served from the cache rather than a live upstream fetch.
func respondCollection(w http.ResponseWriter, req collectionRequest, items []models.FlatItem, cached bool) {
	items = req.filterFlat(items)
	req.sortFlat(items)
	page, pagination := paginateFlat(items, req.Page, req.Limit)

	resp := &models.APIResponse{
		Status:     "success",
		Count:      len(page),
		Data:       page,
		Pagination: &pagination,
		Metadata:   models.Metadata{Timestamp: time.Now().UTC(), Cached: cached},
	}
	if pagination.ItemCount != len(page) {
		resp.Total = pagination.ItemCount
	}
	respondJSON(w, http.StatusOK, resp)
}

// History returns the user's watch history, enriched and flattened.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	req, err := bindCollectionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, hit := trakt.WithCacheHit(r.Context())
	items, _, err := h.client.History(ctx, req.fetchOptions())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	ix, err := h.enricher.All(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondCollection(w, req, enrich.FlattenHistory(items, ix), hit.Hit())
}

// Ratings returns everything the user has rated, enriched and flattened.
func (h *Handler) Ratings(w http.ResponseWriter, r *http.Request) {
	req, err := bindCollectionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, hit := trakt.WithCacheHit(r.Context())
	items, _, err := h.client.Ratings(ctx, req.fetchOptions())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	ix, err := h.enricher.All(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondCollection(w, req, enrich.FlattenRatings(items, ix), hit.Hit())
}

// Watchlist returns the user's watchlist, enriched and flattened.
func (h *Handler) Watchlist(w http.ResponseWriter, r *http.Request) {
	req, err := bindCollectionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, hit := trakt.WithCacheHit(r.Context())
	items, _, err := h.client.Watchlist(ctx, req.fetchOptions())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	ix, err := h.enricher.All(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondCollection(w, req, enrich.FlattenWatchlist(items, ix), hit.Hit())
}

// Trending returns what is trending on Trakt, flattened but without the
// personal enrichment join. Use TrendingFull for the enriched variant.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	req, err := bindCollectionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, hit := trakt.WithCacheHit(r.Context())
	items, _, err := h.client.Trending(ctx, req.fetchOptions())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondCollection(w, req, enrich.FlattenTrending(items, enrich.EmptyIndices()), hit.Hit())
}

// TrendingFull is Trending joined against the user's ratings, watched, and
// favorites indices, so trending entries the user has already seen carry
// their personal fields.
func (h *Handler) TrendingFull(w http.ResponseWriter, r *http.Request) {
	req, err := bindCollectionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, hit := trakt.WithCacheHit(r.Context())
	items, _, err := h.client.Trending(ctx, req.fetchOptions())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	ix, err := h.enricher.All(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondCollection(w, req, enrich.FlattenTrending(items, ix), hit.Hit())
}

// Search runs a text search against Trakt and enriches the results.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := bindCollectionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "query parameter is required", nil)
		return
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	ctx, hit := trakt.WithCacheHit(r.Context())
	items, _, err := h.client.Search(ctx, req.fetchOptions())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	ix, err := h.enricher.All(r.Context())
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondCollection(w, req, enrich.FlattenSearch(items, ix), hit.Hit())
}

// Stats returns the user's aggregate Trakt statistics verbatim.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, hit := trakt.WithCacheHit(r.Context())
	stats, err := h.client.Stats(ctx)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     stats,
		Metadata: models.Metadata{Timestamp: time.Now().UTC(), Cached: hit.Hit()},
	})
}

// Health reports process liveness plus cache-tier counters. It never calls
// upstream, so it stays green through Trakt outages.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cache":          h.store.Stats(),
	}
	if h.tokens != nil {
		token := map[string]interface{}{
			"present": h.tokens.AccessToken() != "",
		}
		if expiresAt := h.tokens.ExpiresAt(); !expiresAt.IsZero() {
			token["expires_at"] = expiresAt.UTC()
		}
		data["token"] = token
	}
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// CacheFlushType evicts every cache entry of one resource type across both
// tiers. Flushing an index source also drops the built indices so the next
// join rebuilds from fresh data.
func (h *Handler) CacheFlushType(w http.ResponseWriter, r *http.Request) {
	cacheType := chi.URLParam(r, "type")
	if !slices.Contains(cache.Types(), cacheType) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown cache type: "+sanitizeLogValue(cacheType), nil)
		return
	}

	removed := h.store.FlushType(cacheType)
	switch cacheType {
	case cache.TypeRatings, cache.TypeWatched, cache.TypeFavorites:
		h.enricher.Invalidate()
	}

	logging.Info().Str("cache_type", cacheType).Int("removed", removed).Msg("Cache type flushed")
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"flushed": cacheType,
			"removed": removed,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// CacheFlushAll evicts the entire cache and drops every built index.
func (h *Handler) CacheFlushAll(w http.ResponseWriter, r *http.Request) {
	removed := h.store.FlushAll()
	h.enricher.Invalidate()

	logging.Info().Int("removed", removed).Msg("Cache flushed")
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"flushed": "all",
			"removed": removed,
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
