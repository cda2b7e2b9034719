// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

// Package cache implements the two-tier response cache: a process-local
// memory tier for the fast path and a BadgerDB tier that survives restarts.
// Values are stored as serialized JSON in both tiers so a hit from either
// decodes identically.
package cache

import (
	"strings"
	"sync"
	"time"
)

// entry is one memory-resident cached value. A zero ExpiresAt means the
// entry never expires.
type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Stats tracks memory-tier performance counters.
type Stats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	TotalKeys int64     `json:"total_keys"`
	LastSweep time.Time `json:"last_sweep"`
}

// Memory is the in-process cache tier. Reads and writes are synchronous
// map operations, so a Get immediately following a Set in the same process
// can never miss. Expired entries are dropped lazily on read and in bulk
// by Sweep, which the cache janitor service drives.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	statsMu sync.Mutex
	stats   Stats
}

// NewMemory creates an empty memory tier.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Get returns the cached bytes and the remaining TTL for key. The boolean
// is false when the key is absent or expired; expired entries are removed.
func (m *Memory) Get(key string) ([]byte, time.Duration, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.recordMiss()
		return nil, 0, false
	}

	now := time.Now()
	if e.expired(now) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		m.recordMiss()
		m.recordEvictions(1)
		return nil, 0, false
	}

	m.recordHit()
	var remaining time.Duration
	if !e.expiresAt.IsZero() {
		remaining = e.expiresAt.Sub(now)
	}
	return e.data, remaining, true
}

// Has reports whether key holds an unexpired entry without touching the
// hit/miss counters.
func (m *Memory) Has(key string) bool {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	return ok && !e.expired(time.Now())
}

// Set stores data under key with the given TTL. A non-positive TTL stores
// the entry without expiry.
func (m *Memory) Set(key string, data []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry{data: data, expiresAt: expiresAt}
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.statsMu.Lock()
	m.stats.TotalKeys = total
	m.statsMu.Unlock()
}

// Delete removes key. Safe to call for absent keys.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	_, existed := m.entries[key]
	delete(m.entries, key)
	m.mu.Unlock()

	if existed {
		m.recordEvictions(1)
	}
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns the number removed.
func (m *Memory) DeletePrefix(prefix string) int {
	m.mu.Lock()
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.recordEvictions(int64(removed))
	m.statsMu.Lock()
	m.stats.TotalKeys = total
	m.statsMu.Unlock()
	return removed
}

// Clear removes all entries in one map swap and returns the number removed.
func (m *Memory) Clear() int {
	m.mu.Lock()
	evicted := int64(len(m.entries))
	m.entries = make(map[string]entry)
	m.mu.Unlock()

	m.statsMu.Lock()
	m.stats.Evictions += evicted
	m.stats.TotalKeys = 0
	m.statsMu.Unlock()
	return int(evicted)
}

// Sweep removes all expired entries and returns the number evicted.
func (m *Memory) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	evicted := 0
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			evicted++
		}
	}
	total := int64(len(m.entries))
	m.mu.Unlock()

	m.statsMu.Lock()
	m.stats.Evictions += int64(evicted)
	m.stats.TotalKeys = total
	m.stats.LastSweep = now
	m.statsMu.Unlock()
	return evicted
}

// GetStats returns a snapshot of the counters.
func (m *Memory) GetStats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// HitRate returns the hit rate as a percentage.
func (m *Memory) HitRate() float64 {
	s := m.GetStats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

func (m *Memory) recordHit() {
	m.statsMu.Lock()
	m.stats.Hits++
	m.statsMu.Unlock()
}

func (m *Memory) recordMiss() {
	m.statsMu.Lock()
	m.stats.Misses++
	m.statsMu.Unlock()
}

func (m *Memory) recordEvictions(n int64) {
	if n == 0 {
		return
	}
	m.statsMu.Lock()
	m.stats.Evictions += n
	m.statsMu.Unlock()
}
