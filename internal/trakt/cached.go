// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"context"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/traktrelay/internal/cache"
	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/metrics"
	"github.com/tomtom215/traktrelay/internal/models"
)

// TTLPolicy maps cache types to their nominal TTL. Fast-changing resources
// (history, ratings) get short TTLs; slow-changing ones (watchlist,
// trending) get long ones.
type TTLPolicy map[string]time.Duration

// DefaultTTLPolicy returns the built-in per-resource TTLs.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		cache.TypeHistory:   5 * time.Minute,
		cache.TypeRatings:   5 * time.Minute,
		cache.TypeFavorites: 15 * time.Minute,
		cache.TypeWatched:   10 * time.Minute,
		cache.TypeWatchlist: time.Hour,
		cache.TypeTrending:  time.Hour,
		cache.TypeSearch:    30 * time.Minute,
		cache.TypeStats:     30 * time.Minute,
	}
}

// ttl returns the TTL for cacheType, falling back to 15 minutes for types
// the policy does not name.
func (p TTLPolicy) ttl(cacheType string) time.Duration {
	if d, ok := p[cacheType]; ok {
		return d
	}
	return 15 * time.Minute
}

// CachedClient wraps an API with the two-tier cache. Every call derives a
// cache key from the resource type and call options; hits are served from
// the cache, misses call through and populate it with the resource's TTL.
//
// ForceRefresh on Options skips the cache read for that one call. If the
// forced live call fails and a previously cached value exists, the stale
// value is returned with a warning instead of the error.
type CachedClient struct {
	upstream API
	store    *cache.Store
	ttls     TTLPolicy
}

var _ API = (*CachedClient)(nil)

// NewCachedClient wraps upstream with the cache store. A nil ttls uses
// DefaultTTLPolicy.
func NewCachedClient(upstream API, store *cache.Store, ttls TTLPolicy) *CachedClient {
	if ttls == nil {
		ttls = DefaultTTLPolicy()
	}
	return &CachedClient{upstream: upstream, store: store, ttls: ttls}
}

type cacheHitKey struct{}

// CacheHit reports whether a call made inside the annotated context was
// answered from the cache rather than a live upstream fetch. Stale values
// served on upstream failure count as cache-derived.
type CacheHit struct {
	hit atomic.Bool
}

// Hit reports whether a cache hit was recorded.
func (h *CacheHit) Hit() bool {
	return h.hit.Load()
}

// WithCacheHit derives a context whose cached-client calls record hits on
// the returned flag. Handlers use it to annotate responses as
// cache-derived.
func WithCacheHit(ctx context.Context) (context.Context, *CacheHit) {
	h := &CacheHit{}
	return context.WithValue(ctx, cacheHitKey{}, h), h
}

func markCacheHit(ctx context.Context) {
	if h, ok := ctx.Value(cacheHitKey{}).(*CacheHit); ok {
		h.hit.Store(true)
	}
}

// cachedPayload is the cached representation of a resource response: the
// decoded items plus the pagination metadata that arrived with them, so a
// cache hit can reproduce the full upstream answer.
type cachedPayload[T any] struct {
	Data       T                 `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// cachedFetch is the caching decorator shared by all resource methods.
func cachedFetch[T any](
	ctx context.Context,
	cc *CachedClient,
	cacheType string,
	opts Options,
	fetch func() (T, models.Pagination, error),
) (T, models.Pagination, error) {
	key := cache.BuildKey(cacheType, opts.params())

	if !opts.ForceRefresh {
		if payload, ok := readCached[T](cc, key, cacheType); ok {
			markCacheHit(ctx)
			return payload.Data, payload.Pagination, nil
		}
	}

	data, pg, err := fetch()
	if err != nil {
		// Stale-on-error: a failed live call falls back to whatever the
		// cache still holds rather than failing the request.
		if payload, ok := readCached[T](cc, key, cacheType); ok {
			logging.Warn().Err(err).Str("key", key).Msg("Live fetch failed; serving stale cached value")
			metrics.CacheStaleServed.WithLabelValues(cacheType).Inc()
			markCacheHit(ctx)
			return payload.Data, payload.Pagination, nil
		}
		var zero T
		return zero, models.Pagination{}, err
	}

	writeCached(cc, key, cacheType, cachedPayload[T]{Data: data, Pagination: pg})
	return data, pg, nil
}

func readCached[T any](cc *CachedClient, key, cacheType string) (cachedPayload[T], bool) {
	var payload cachedPayload[T]
	raw, ok := cc.store.Get(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return payload, false
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry; dropping")
		cc.store.Delete(key)
		metrics.CacheMisses.WithLabelValues(cacheType).Inc()
		return payload, false
	}
	metrics.CacheHits.WithLabelValues(cacheType).Inc()
	return payload, true
}

func writeCached[T any](cc *CachedClient, key, cacheType string, payload cachedPayload[T]) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to serialize cache entry")
		return
	}
	cc.store.Set(key, raw, cache.SetOptions{
		TTL:      cc.ttls.ttl(cacheType),
		FuzzyTTL: true,
	})
}

func (cc *CachedClient) History(ctx context.Context, opts Options) ([]models.HistoryItem, models.Pagination, error) {
	return cachedFetch(ctx, cc, cache.TypeHistory, opts, func() ([]models.HistoryItem, models.Pagination, error) {
		return cc.upstream.History(ctx, opts)
	})
}

func (cc *CachedClient) Ratings(ctx context.Context, opts Options) ([]models.RatingItem, models.Pagination, error) {
	return cachedFetch(ctx, cc, cache.TypeRatings, opts, func() ([]models.RatingItem, models.Pagination, error) {
		return cc.upstream.Ratings(ctx, opts)
	})
}

func (cc *CachedClient) Favorites(ctx context.Context, opts Options) ([]models.FavoriteItem, models.Pagination, error) {
	return cachedFetch(ctx, cc, cache.TypeFavorites, opts, func() ([]models.FavoriteItem, models.Pagination, error) {
		return cc.upstream.Favorites(ctx, opts)
	})
}

func (cc *CachedClient) Watched(ctx context.Context, opts Options) ([]models.WatchedItem, error) {
	items, _, err := cachedFetch(ctx, cc, cache.TypeWatched, opts, func() ([]models.WatchedItem, models.Pagination, error) {
		items, err := cc.upstream.Watched(ctx, opts)
		return items, models.Pagination{}, err
	})
	return items, err
}

func (cc *CachedClient) Watchlist(ctx context.Context, opts Options) ([]models.WatchlistItem, models.Pagination, error) {
	return cachedFetch(ctx, cc, cache.TypeWatchlist, opts, func() ([]models.WatchlistItem, models.Pagination, error) {
		return cc.upstream.Watchlist(ctx, opts)
	})
}

func (cc *CachedClient) Trending(ctx context.Context, opts Options) ([]models.TrendingItem, models.Pagination, error) {
	// Normalize before key derivation so the implicit default and the
	// explicit "movies" share one cache entry.
	if opts.Type == "" {
		opts.Type = "movies"
	}
	return cachedFetch(ctx, cc, cache.TypeTrending, opts, func() ([]models.TrendingItem, models.Pagination, error) {
		return cc.upstream.Trending(ctx, opts)
	})
}

func (cc *CachedClient) Search(ctx context.Context, opts Options) ([]models.SearchResult, models.Pagination, error) {
	return cachedFetch(ctx, cc, cache.TypeSearch, opts, func() ([]models.SearchResult, models.Pagination, error) {
		return cc.upstream.Search(ctx, opts)
	})
}

func (cc *CachedClient) Stats(ctx context.Context) (*models.UserStats, error) {
	stats, _, err := cachedFetch(ctx, cc, cache.TypeStats, Options{}, func() (*models.UserStats, models.Pagination, error) {
		stats, err := cc.upstream.Stats(ctx)
		return stats, models.Pagination{}, err
	})
	return stats, err
}

// SourceCacheKey returns the cache key the wrapper uses for a resource
// call. The enrichment index layer uses it to piggyback index validity on
// the cached source entry's TTL.
func SourceCacheKey(cacheType string, opts Options) string {
	return cache.BuildKey(cacheType, opts.params())
}

// Store exposes the underlying cache store for admin operations.
func (cc *CachedClient) Store() *cache.Store {
	return cc.store
}
