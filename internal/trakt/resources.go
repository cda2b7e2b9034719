// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package trakt

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/traktrelay/internal/models"
)

// Options are the per-call parameters shared by the resource methods. Zero
// values mean "not set": an empty Type drops the :type path segment, a zero
// Limit disables the item cap.
type Options struct {
	// Type filters by media type using Trakt's plural path form
	// ("movies", "shows", "seasons", "episodes").
	Type string

	// Query is the search term. Only meaningful for Search.
	Query string

	// Limit caps the total number of items fetched across pages.
	Limit int

	// ForceRefresh bypasses the cache read for this call. Interpreted by
	// the cached wrapper; the raw client ignores it.
	ForceRefresh bool
}

// params returns the parameter bag for URL building and cache keys.
// ForceRefresh is deliberately excluded: a forced call must produce the
// same cache key as a normal one so it refreshes the same entry.
func (o Options) params() map[string]any {
	p := make(map[string]any)
	if o.Type != "" {
		p["type"] = o.Type
	}
	if o.Query != "" {
		p["query"] = o.Query
	}
	if o.Limit > 0 {
		p["limit"] = o.Limit
	}
	return p
}

// API is the resource surface of the Trakt client. Client implements it
// against the live API; CachedClient wraps any API with the cache layer.
type API interface {
	History(ctx context.Context, opts Options) ([]models.HistoryItem, models.Pagination, error)
	Ratings(ctx context.Context, opts Options) ([]models.RatingItem, models.Pagination, error)
	Favorites(ctx context.Context, opts Options) ([]models.FavoriteItem, models.Pagination, error)
	Watched(ctx context.Context, opts Options) ([]models.WatchedItem, error)
	Watchlist(ctx context.Context, opts Options) ([]models.WatchlistItem, models.Pagination, error)
	Trending(ctx context.Context, opts Options) ([]models.TrendingItem, models.Pagination, error)
	Search(ctx context.Context, opts Options) ([]models.SearchResult, models.Pagination, error)
	Stats(ctx context.Context) (*models.UserStats, error)
}

var _ API = (*Client)(nil)

// History returns the authenticated user's watch history, newest first.
func (c *Client) History(ctx context.Context, opts Options) ([]models.HistoryItem, models.Pagination, error) {
	return fetchAll[models.HistoryItem](ctx, c, "/users/me/history/:type", opts.params(), opts.Limit)
}

// Ratings returns everything the user has rated.
func (c *Client) Ratings(ctx context.Context, opts Options) ([]models.RatingItem, models.Pagination, error) {
	return fetchAll[models.RatingItem](ctx, c, "/users/me/ratings/:type", opts.params(), opts.Limit)
}

// Favorites returns the user's favorites list.
func (c *Client) Favorites(ctx context.Context, opts Options) ([]models.FavoriteItem, models.Pagination, error) {
	return fetchAll[models.FavoriteItem](ctx, c, "/users/me/favorites/:type", opts.params(), opts.Limit)
}

// Watched returns the user's watched collection with play counts. The
// endpoint requires a media type; when opts.Type is empty both movies and
// shows are fetched concurrently and concatenated.
func (c *Client) Watched(ctx context.Context, opts Options) ([]models.WatchedItem, error) {
	if opts.Type != "" {
		return fetchOne[[]models.WatchedItem](ctx, c, "/sync/watched/:type", opts.params())
	}

	results := make([][]models.WatchedItem, 2)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	for i, mediaType := range []string{"movies", "shows"} {
		p.Go(func(ctx context.Context) error {
			items, err := fetchOne[[]models.WatchedItem](ctx, c, "/sync/watched/:type", map[string]any{"type": mediaType})
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return append(results[0], results[1]...), nil
}

// Watchlist returns the user's watchlist.
func (c *Client) Watchlist(ctx context.Context, opts Options) ([]models.WatchlistItem, models.Pagination, error) {
	return fetchAll[models.WatchlistItem](ctx, c, "/users/me/watchlist/:type", opts.params(), opts.Limit)
}

// Trending returns what is trending on Trakt right now. Defaults to movies
// when no type is given, since the endpoint has no untyped form.
func (c *Client) Trending(ctx context.Context, opts Options) ([]models.TrendingItem, models.Pagination, error) {
	if opts.Type == "" {
		opts.Type = "movies"
	}
	return fetchAll[models.TrendingItem](ctx, c, "/:type/trending", opts.params(), opts.Limit)
}

// Search runs a text search across the given media type.
func (c *Client) Search(ctx context.Context, opts Options) ([]models.SearchResult, models.Pagination, error) {
	return fetchAll[models.SearchResult](ctx, c, "/search/:type", opts.params(), opts.Limit)
}

// Stats returns the user's aggregate statistics.
func (c *Client) Stats(ctx context.Context) (*models.UserStats, error) {
	return fetchOne[*models.UserStats](ctx, c, "/users/me/stats", nil)
}
