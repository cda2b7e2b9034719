// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Cache type prefixes. Each upstream resource gets its own key namespace so
// FlushType can invalidate one resource without touching the others.
const (
	TypeHistory   = "history"
	TypeRatings   = "ratings"
	TypeFavorites = "favorites"
	TypeWatched   = "watched"
	TypeWatchlist = "watchlist"
	TypeTrending  = "trending"
	TypeSearch    = "search"
	TypeStats     = "stats"
)

// Types lists every cache type namespace, for bulk operations and
// validation of flush requests.
func Types() []string {
	return []string{
		TypeHistory, TypeRatings, TypeFavorites, TypeWatched,
		TypeWatchlist, TypeTrending, TypeSearch, TypeStats,
	}
}

// BuildKey derives a deterministic cache key from a cache type and a
// parameter bag. Parameters are sorted by name so insertion order never
// changes the key, and nil-valued parameters are dropped so an absent
// parameter and an explicit "use default" produce the same key.
//
//	BuildKey("history", map[string]any{"type": "movies", "limit": 50})
//	→ "history:limit=50&type=movies"
func BuildKey(cacheType string, params map[string]any) string {
	if len(params) == 0 {
		return cacheType
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return cacheType
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(cacheType)
	sb.WriteByte(':')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		fmt.Fprintf(&sb, "%s=%v", k, params[k])
	}
	return sb.String()
}
