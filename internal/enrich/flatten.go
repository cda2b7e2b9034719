// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package enrich

import (
	"fmt"

	"github.com/tomtom215/traktrelay/internal/models"
)

// flatten projects one media record plus its enrichment into the flat
// client shape. Branching is on the effective type; combinations the
// branches don't match leave their fields absent, so partial upstream
// records degrade instead of erroring.
func flatten(item models.MediaItem, e models.Enrichment) models.FlatItem {
	flat := models.FlatItem{Type: item.EffectiveType()}

	switch flat.Type {
	case models.MediaTypeMovie:
		if item.Movie != nil {
			flat.Title = item.Movie.Title
			flat.Year = item.Movie.Year
		}
	case models.MediaTypeShow:
		if item.Show != nil {
			flat.Title = item.Show.Title
			flat.Year = item.Show.Year
		}
	case models.MediaTypeSeason:
		if item.Season != nil {
			flat.Season = item.Season.Number
			if item.Show != nil {
				flat.Title = fmt.Sprintf("%s - Season %d", item.Show.Title, item.Season.Number)
				flat.ShowTitle = item.Show.Title
				flat.ShowYear = item.Show.Year
			}
		}
	case models.MediaTypeEpisode:
		if item.Episode != nil {
			flat.EpisodeTitle = item.Episode.Title
			flat.EpisodeNumber = item.Episode.Number
			flat.Season = item.Episode.Season
		}
		if item.Show != nil {
			flat.ShowTitle = item.Show.Title
			flat.ShowYear = item.Show.Year
		}
	}

	flat.Rating = e.Rating
	flat.RatedAt = e.RatedAt
	flat.Plays = e.Plays
	flat.LastWatchedAt = e.LastWatchedAt
	flat.RewatchStartedAt = e.RewatchStartedAt
	flat.Favorite = e.Favorite
	flat.FavoriteNote = e.FavoriteNote
	return flat
}

// FlattenHistory enriches and flattens watch-history records. Each record's
// own watched_at is primary; the index's last_watched_at is kept only when
// it differs, to avoid a redundant duplicate field.
func FlattenHistory(items []models.HistoryItem, ix *Indices) []models.FlatItem {
	out := make([]models.FlatItem, 0, len(items))
	for _, item := range items {
		flat := flatten(item.MediaItem, ix.Enrich(item.MediaItem))

		watchedAt := item.WatchedAt
		flat.WatchedAt = &watchedAt
		flat.RatedAt = nil
		if flat.LastWatchedAt != nil && flat.LastWatchedAt.Equal(watchedAt) {
			flat.LastWatchedAt = nil
		}
		out = append(out, flat)
	}
	return out
}

// FlattenRatings enriches and flattens rated records. The record's own
// rating and rated_at win over the index, which holds the same data.
func FlattenRatings(items []models.RatingItem, ix *Indices) []models.FlatItem {
	out := make([]models.FlatItem, 0, len(items))
	for _, item := range items {
		flat := flatten(item.MediaItem, ix.Enrich(item.MediaItem))

		rating := item.Rating
		ratedAt := item.RatedAt
		flat.Rating = &rating
		flat.RatedAt = &ratedAt
		out = append(out, flat)
	}
	return out
}

// FlattenWatchlist enriches and flattens watchlist records.
func FlattenWatchlist(items []models.WatchlistItem, ix *Indices) []models.FlatItem {
	out := make([]models.FlatItem, 0, len(items))
	for _, item := range items {
		flat := flatten(item.MediaItem, ix.Enrich(item.MediaItem))
		flat.RatedAt = nil
		out = append(out, flat)
	}
	return out
}

// FlattenTrending enriches and flattens trending records.
func FlattenTrending(items []models.TrendingItem, ix *Indices) []models.FlatItem {
	out := make([]models.FlatItem, 0, len(items))
	for _, item := range items {
		flat := flatten(item.MediaItem, ix.Enrich(item.MediaItem))
		flat.RatedAt = nil
		out = append(out, flat)
	}
	return out
}

// FlattenSearch enriches and flattens search results.
func FlattenSearch(items []models.SearchResult, ix *Indices) []models.FlatItem {
	out := make([]models.FlatItem, 0, len(items))
	for _, item := range items {
		flat := flatten(item.MediaItem, ix.Enrich(item.MediaItem))
		flat.RatedAt = nil
		out = append(out, flat)
	}
	return out
}
