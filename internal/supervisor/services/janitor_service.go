// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package services

import (
	"context"
	"time"

	"github.com/tomtom215/traktrelay/internal/cache"
	"github.com/tomtom215/traktrelay/internal/logging"
	"github.com/tomtom215/traktrelay/internal/metrics"
)

// JanitorService periodically sweeps the cache store: expired memory
// entries are evicted in bulk and the durable tier's value log is
// garbage collected. Expired entries are also dropped lazily on read, so
// the sweep only bounds memory held by keys nobody asks for again.
type JanitorService struct {
	store    *cache.Store
	interval time.Duration
}

// NewJanitorService builds the sweep janitor. A non-positive interval
// falls back to one minute.
func NewJanitorService(store *cache.Store, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &JanitorService{
		store:    store,
		interval: interval,
	}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evicted := j.store.Sweep()
			stats := j.store.Stats()
			metrics.CacheSweepEvictions.Add(float64(evicted))
			metrics.CacheEntries.Set(float64(stats.TotalKeys))
			if evicted > 0 {
				logging.Debug().
					Int("evicted", evicted).
					Int64("remaining", stats.TotalKeys).
					Msg("Cache sweep completed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (j *JanitorService) String() string {
	return "cache-janitor"
}
