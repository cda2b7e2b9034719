// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package models defines the Trakt resource types shared across the proxy.
//
// Trakt does not expose a single global media identifier. Each record is a
// discriminated union over movie/show/season/episode, and identity across
// the system is the composite key "{type}:{trakt_id}" derived from the
// payload selected by the type tag. Records whose payload or identifier is
// missing are un-joinable and enrich to empty fields instead of failing.
package models

import (
	"fmt"
	"time"
)

// MediaType discriminates the nested payload that carries a record's identity.
type MediaType string

// Media types returned by Trakt.
const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeShow    MediaType = "show"
	MediaTypeSeason  MediaType = "season"
	MediaTypeEpisode MediaType = "episode"
)

// IDs holds the external identifiers Trakt attaches to every media object.
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// Movie is a Trakt movie payload.
type Movie struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Show is a Trakt show payload.
type Show struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
	IDs   IDs    `json:"ids"`
}

// Season is a Trakt season payload.
type Season struct {
	Number int `json:"number"`
	IDs    IDs `json:"ids"`
}

// Episode is a Trakt episode payload.
type Episode struct {
	Season int    `json:"season"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	IDs    IDs    `json:"ids"`
}

// MediaItem is the discriminated union at the heart of every Trakt
// collection record. Exactly one payload matching Type is expected; episode
// and season records additionally carry the owning Show.
type MediaItem struct {
	Type    MediaType `json:"type,omitempty"`
	Movie   *Movie    `json:"movie,omitempty"`
	Show    *Show     `json:"show,omitempty"`
	Season  *Season   `json:"season,omitempty"`
	Episode *Episode  `json:"episode,omitempty"`
}

// EffectiveType returns the record's type tag, inferring it from the
// populated payload when the tag is absent (the /sync/watched endpoints
// omit it).
func (m MediaItem) EffectiveType() MediaType {
	if m.Type != "" {
		return m.Type
	}
	switch {
	case m.Movie != nil:
		return MediaTypeMovie
	case m.Episode != nil:
		return MediaTypeEpisode
	case m.Season != nil:
		return MediaTypeSeason
	case m.Show != nil:
		return MediaTypeShow
	}
	return ""
}

// Key derives the composite identity "{type}:{trakt_id}". The second return
// is false when the payload selected by the type tag is missing or carries
// no Trakt id; such records are un-joinable and must be skipped, not failed.
func (m MediaItem) Key() (string, bool) {
	mediaType := m.EffectiveType()

	var id int
	switch mediaType {
	case MediaTypeMovie:
		if m.Movie != nil {
			id = m.Movie.IDs.Trakt
		}
	case MediaTypeShow:
		if m.Show != nil {
			id = m.Show.IDs.Trakt
		}
	case MediaTypeSeason:
		if m.Season != nil {
			id = m.Season.IDs.Trakt
		}
	case MediaTypeEpisode:
		if m.Episode != nil {
			id = m.Episode.IDs.Trakt
		}
	default:
		return "", false
	}

	if id == 0 {
		return "", false
	}
	return fmt.Sprintf("%s:%d", mediaType, id), true
}

// HistoryItem is one watch-history entry (/sync/history).
type HistoryItem struct {
	ID        int64     `json:"id"`
	WatchedAt time.Time `json:"watched_at"`
	Action    string    `json:"action,omitempty"` // "watch", "scrobble" or "checkin"
	MediaItem
}

// RatingItem is one rated record (/sync/ratings).
type RatingItem struct {
	RatedAt time.Time `json:"rated_at"`
	Rating  int       `json:"rating"`
	MediaItem
}

// WatchedItem is one aggregate watched record (/sync/watched). ResetAt is
// set when the user restarted a rewatch of the item.
type WatchedItem struct {
	Plays         int        `json:"plays"`
	LastWatchedAt time.Time  `json:"last_watched_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at,omitempty"`
	ResetAt       *time.Time `json:"reset_at,omitempty"`
	MediaItem
}

// WatchlistItem is one watchlist entry (/sync/watchlist).
type WatchlistItem struct {
	Rank     int       `json:"rank,omitempty"`
	ListedAt time.Time `json:"listed_at"`
	Notes    string    `json:"notes,omitempty"`
	MediaItem
}

// FavoriteItem is one favorites entry (/users/me/favorites).
type FavoriteItem struct {
	Rank     int       `json:"rank,omitempty"`
	ListedAt time.Time `json:"listed_at"`
	Notes    string    `json:"notes,omitempty"`
	MediaItem
}

// TrendingItem is one trending entry (/movies/trending, /shows/trending).
type TrendingItem struct {
	Watchers int `json:"watchers"`
	MediaItem
}

// SearchResult is one text-search match (/search).
type SearchResult struct {
	Score float64 `json:"score"`
	MediaItem
}

// StatsBucket aggregates counters for one media category in user stats.
type StatsBucket struct {
	Plays     int `json:"plays,omitempty"`
	Watched   int `json:"watched,omitempty"`
	Minutes   int `json:"minutes,omitempty"`
	Collected int `json:"collected,omitempty"`
	Ratings   int `json:"ratings,omitempty"`
	Comments  int `json:"comments,omitempty"`
}

// UserStats is the /users/me/stats response.
type UserStats struct {
	Movies   StatsBucket `json:"movies"`
	Shows    StatsBucket `json:"shows"`
	Seasons  StatsBucket `json:"seasons"`
	Episodes StatsBucket `json:"episodes"`
	Network  StatsBucket `json:"network"`
	Ratings  struct {
		Total        int            `json:"total"`
		Distribution map[string]int `json:"distribution,omitempty"`
	} `json:"ratings"`
}

// Pagination describes the page window of a collection response, parsed
// from Trakt's X-Pagination-* headers.
type Pagination struct {
	ItemCount int `json:"itemCount"`
	PageCount int `json:"pageCount"`
	Limit     int `json:"limit"`
	Page      int `json:"page"`
}

// Enrichment carries the optional fields joined onto a primary record from
// the ratings/watched/favorites indices. Plays defaults to 0 on join
// misses; Favorite is true or absent, never false.
type Enrichment struct {
	Rating           *int       `json:"rating,omitempty"`
	RatedAt          *time.Time `json:"rated_at,omitempty"`
	Plays            int        `json:"plays"`
	LastWatchedAt    *time.Time `json:"last_watched_at,omitempty"`
	RewatchStartedAt *time.Time `json:"rewatch_started_at,omitempty"`
	Favorite         bool       `json:"favorite,omitempty"`
	FavoriteNote     string     `json:"favorite_note,omitempty"`
}
