// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/traktrelay/internal/cache"
	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/metrics"
	"github.com/tomtom215/traktrelay/internal/models"
	"github.com/tomtom215/traktrelay/internal/trakt"
)

// indexState holds one built index and the guard serializing its rebuilds.
type indexState[T any] struct {
	mu    sync.Mutex
	built map[string]T
}

// Service owns the three lazily built enrichment indices. An index is
// rebuilt only when it has never been built or its source resource's cache
// entry has expired, so rebuild frequency follows the source TTL.
//
// The client is expected to be the cached wrapper: fetching a source
// collection repopulates its cache entry, which is what makes the validity
// check meaningful.
type Service struct {
	client trakt.API
	store  *cache.Store

	ratings   indexState[models.RatingItem]
	watched   indexState[models.WatchedItem]
	favorites indexState[models.FavoriteItem]
}

// NewService builds an enrichment service over the cached client and its
// backing store.
func NewService(client trakt.API, store *cache.Store) *Service {
	return &Service{client: client, store: store}
}

// All resolves the three indices concurrently and returns them as one
// bundle. Construction is a barrier: no enrichment happens until every
// index is complete, so a join pass never mixes fresh and half-built data.
func (s *Service) All(ctx context.Context) (*Indices, error) {
	var out Indices

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		idx, err := s.ratingsIndex(ctx)
		if err != nil {
			return err
		}
		out.Ratings = idx
		return nil
	})
	p.Go(func(ctx context.Context) error {
		idx, err := s.watchedIndex(ctx)
		if err != nil {
			return err
		}
		out.Watched = idx
		return nil
	})
	p.Go(func(ctx context.Context) error {
		idx, err := s.favoritesIndex(ctx)
		if err != nil {
			return err
		}
		out.Favorites = idx
		return nil
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// sourceValid reports whether the cached source entry backing an index is
// still live. Index validity piggybacks on the source's cache TTL.
func (s *Service) sourceValid(cacheType string) bool {
	return s.store.Has(trakt.SourceCacheKey(cacheType, trakt.Options{}))
}

func (s *Service) ratingsIndex(ctx context.Context) (map[string]models.RatingItem, error) {
	s.ratings.mu.Lock()
	defer s.ratings.mu.Unlock()

	if s.ratings.built != nil && s.sourceValid(cache.TypeRatings) {
		return s.ratings.built, nil
	}

	start := time.Now()
	items, _, err := s.client.Ratings(ctx, trakt.Options{})
	if err != nil {
		return nil, err
	}
	s.ratings.built = buildRatingsIndex(items)
	metrics.RecordIndexBuild("ratings", time.Since(start))
	logging.Debug().Int("entries", len(s.ratings.built)).Msg("Ratings index rebuilt")
	return s.ratings.built, nil
}

func (s *Service) watchedIndex(ctx context.Context) (map[string]models.WatchedItem, error) {
	s.watched.mu.Lock()
	defer s.watched.mu.Unlock()

	if s.watched.built != nil && s.sourceValid(cache.TypeWatched) {
		return s.watched.built, nil
	}

	start := time.Now()
	items, err := s.client.Watched(ctx, trakt.Options{})
	if err != nil {
		return nil, err
	}
	s.watched.built = buildWatchedIndex(items)
	metrics.RecordIndexBuild("watched", time.Since(start))
	logging.Debug().Int("entries", len(s.watched.built)).Msg("Watched index rebuilt")
	return s.watched.built, nil
}

func (s *Service) favoritesIndex(ctx context.Context) (map[string]models.FavoriteItem, error) {
	s.favorites.mu.Lock()
	defer s.favorites.mu.Unlock()

	if s.favorites.built != nil && s.sourceValid(cache.TypeFavorites) {
		return s.favorites.built, nil
	}

	start := time.Now()
	items, _, err := s.client.Favorites(ctx, trakt.Options{})
	if err != nil {
		return nil, err
	}
	s.favorites.built = buildFavoritesIndex(items)
	metrics.RecordIndexBuild("favorites", time.Since(start))
	logging.Debug().Int("entries", len(s.favorites.built)).Msg("Favorites index rebuilt")
	return s.favorites.built, nil
}

// Invalidate drops every built index. Called after a cache flush so the
// next join rebuilds from fresh sources.
func (s *Service) Invalidate() {
	s.ratings.mu.Lock()
	s.ratings.built = nil
	s.ratings.mu.Unlock()

	s.watched.mu.Lock()
	s.watched.built = nil
	s.watched.mu.Unlock()

	s.favorites.mu.Lock()
	s.favorites.built = nil
	s.favorites.mu.Unlock()
}
