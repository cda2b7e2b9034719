// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/traktrelay/internal/models"
)

// maxCollectionFetch caps how many items a collection endpoint pulls from
// upstream before filtering, so one request cannot spiral into fetching an
// unbounded history.
const maxCollectionFetch = 1000

// collectionRequest is the shared query-parameter shape of the collection
// endpoints (history, ratings, watchlist, trending, search).
type collectionRequest struct {
	Type      string `validate:"omitempty,oneof=movies shows seasons episodes"`
	Query     string `validate:"omitempty,min=1,max=200"`
	Limit     int    `validate:"min=0,max=500"`
	Page      int    `validate:"min=0"`
	MinRating int    `validate:"min=0,max=10"`
	Sort      string `validate:"omitempty,oneof=watched_at rated_at rating title year plays"`
	Force     bool
}

// bindCollectionRequest reads the shared query parameters. Defaults: limit
// 20, page 1. A malformed numeric parameter is returned as an error rather
// than silently replaced with its default.
func bindCollectionRequest(r *http.Request) (collectionRequest, error) {
	limit, err := getIntParam(r, "limit", 20)
	if err != nil {
		return collectionRequest{}, err
	}
	page, err := getIntParam(r, "page", 1)
	if err != nil {
		return collectionRequest{}, err
	}
	minRating, err := getIntParam(r, "min_rating", 0)
	if err != nil {
		return collectionRequest{}, err
	}
	return collectionRequest{
		Type:      r.URL.Query().Get("type"),
		Query:     r.URL.Query().Get("query"),
		Limit:     limit,
		Page:      page,
		MinRating: minRating,
		Sort:      r.URL.Query().Get("sort"),
		Force:     getBoolParam(r, "force"),
	}, nil
}

// hasFilters reports whether the request narrows the collection after the
// upstream fetch, which forces client-side re-pagination.
func (req collectionRequest) hasFilters() bool {
	return req.MinRating > 0 || req.Sort != ""
}

// filterFlat applies the post-fetch filters to a flattened collection.
func (req collectionRequest) filterFlat(items []models.FlatItem) []models.FlatItem {
	if req.MinRating <= 0 {
		return items
	}
	out := items[:0:0]
	for _, item := range items {
		if item.Rating != nil && *item.Rating >= req.MinRating {
			out = append(out, item)
		}
	}
	return out
}

// sortFlat orders a flattened collection by the requested sort key,
// descending for recency/score keys and ascending for titles.
func (req collectionRequest) sortFlat(items []models.FlatItem) {
	switch req.Sort {
	case "watched_at":
		sort.SliceStable(items, func(i, j int) bool {
			return timePtrAfter(items[i].WatchedAt, items[j].WatchedAt)
		})
	case "rated_at":
		sort.SliceStable(items, func(i, j int) bool {
			return timePtrAfter(items[i].RatedAt, items[j].RatedAt)
		})
	case "rating":
		sort.SliceStable(items, func(i, j int) bool {
			return intPtrValue(items[i].Rating) > intPtrValue(items[j].Rating)
		})
	case "title":
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(sortTitle(items[i])) < strings.ToLower(sortTitle(items[j]))
		})
	case "year":
		sort.SliceStable(items, func(i, j int) bool {
			return sortYear(items[i]) > sortYear(items[j])
		})
	case "plays":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Plays > items[j].Plays
		})
	}
}

func timePtrAfter(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

func intPtrValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func sortTitle(item models.FlatItem) string {
	if item.Title != "" {
		return item.Title
	}
	return item.ShowTitle
}

func sortYear(item models.FlatItem) int {
	if item.Year != 0 {
		return item.Year
	}
	return item.ShowYear
}
