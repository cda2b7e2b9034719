// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package enrich joins ratings, watched-item and favorites data onto
// primary Trakt collections by composite key, and flattens the enriched
// records into the client-facing shape.
//
// The three indices are built lazily from the cached source resources and
// stay valid exactly as long as their source cache entry does, so index
// rebuild cadence tracks each resource's own TTL instead of a separate
// timer.
package enrich

import (
	"github.com/tomtom215/traktrelay/internal/models"
)

// Indices bundles the three composite-key lookup maps used by a join pass.
// All three are complete before any record is enriched.
type Indices struct {
	Ratings   map[string]models.RatingItem
	Watched   map[string]models.WatchedItem
	Favorites map[string]models.FavoriteItem
}

// EmptyIndices returns an index bundle with no entries. Every lookup
// misses, so flattening through it yields plain, un-enriched records.
func EmptyIndices() *Indices {
	return &Indices{}
}

// buildRatingsIndex maps composite key to rating record. Un-joinable
// records (no payload or no trakt id) are skipped.
func buildRatingsIndex(items []models.RatingItem) map[string]models.RatingItem {
	idx := make(map[string]models.RatingItem, len(items))
	for _, item := range items {
		key, ok := item.Key()
		if !ok {
			continue
		}
		idx[key] = item
	}
	return idx
}

// buildWatchedIndex maps composite key to watched record. Duplicate keys
// keep the entry with the most recent LastWatchedAt.
func buildWatchedIndex(items []models.WatchedItem) map[string]models.WatchedItem {
	idx := make(map[string]models.WatchedItem, len(items))
	for _, item := range items {
		key, ok := item.Key()
		if !ok {
			continue
		}
		if existing, dup := idx[key]; dup && existing.LastWatchedAt.After(item.LastWatchedAt) {
			continue
		}
		idx[key] = item
	}
	return idx
}

func buildFavoritesIndex(items []models.FavoriteItem) map[string]models.FavoriteItem {
	idx := make(map[string]models.FavoriteItem, len(items))
	for _, item := range items {
		key, ok := item.Key()
		if !ok {
			continue
		}
		idx[key] = item
	}
	return idx
}

// Lookup resolves one composite key across all three indices and returns
// the enrichment fields for it. A pure function of (key, indices): plays
// defaults to 0 and favorite stays absent when nothing matches.
func (ix *Indices) Lookup(key string) models.Enrichment {
	var e models.Enrichment

	if r, ok := ix.Ratings[key]; ok {
		rating := r.Rating
		ratedAt := r.RatedAt
		e.Rating = &rating
		e.RatedAt = &ratedAt
	}
	if w, ok := ix.Watched[key]; ok {
		e.Plays = w.Plays
		if !w.LastWatchedAt.IsZero() {
			lastWatched := w.LastWatchedAt
			e.LastWatchedAt = &lastWatched
		}
		e.RewatchStartedAt = w.ResetAt
	}
	if f, ok := ix.Favorites[key]; ok {
		e.Favorite = true
		e.FavoriteNote = f.Notes
	}
	return e
}

// Enrich resolves a record's composite key and returns its enrichment. An
// un-joinable record enriches to the zero Enrichment (plays 0, everything
// else absent).
func (ix *Indices) Enrich(item models.MediaItem) models.Enrichment {
	key, ok := item.Key()
	if !ok {
		return models.Enrichment{}
	}
	return ix.Lookup(key)
}
