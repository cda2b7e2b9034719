// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package models

import "time"

// FlatItem is the client-facing projection of an enriched record. Field
// order is part of the contract: type first, then the type-specific title
// fields, then the enrichment fields. Struct tag order fixes the JSON
// order; absent branch fields are omitted rather than zeroed so partial
// upstream records degrade to partially empty objects.
//
// Season records synthesize Title as "{show title} - Season {n}".
type FlatItem struct {
	Type MediaType `json:"type"`

	// movie/show (Title/Year) and season (synthesized Title)
	Title string `json:"title,omitempty"`
	Year  int    `json:"year,omitempty"`

	// season/episode context
	ShowTitle     string `json:"show_title,omitempty"`
	ShowYear      int    `json:"show_year,omitempty"`
	EpisodeTitle  string `json:"episode_title,omitempty"`
	EpisodeNumber int    `json:"episode,omitempty"`
	Season        int    `json:"season,omitempty"`

	// enrichment fields, always trailing
	Rating           *int       `json:"rating,omitempty"`
	RatedAt          *time.Time `json:"rated_at,omitempty"`
	Plays            int        `json:"plays"`
	WatchedAt        *time.Time `json:"watched_at,omitempty"`
	LastWatchedAt    *time.Time `json:"last_watched_at,omitempty"`
	RewatchStartedAt *time.Time `json:"rewatch_started_at,omitempty"`
	Favorite         bool       `json:"favorite,omitempty"`
	FavoriteNote     string     `json:"favorite_note,omitempty"`
}
