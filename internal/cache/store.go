// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package cache

import (
	"math/rand"
	"time"

	"github.com/tomtom215/traktrelay/internal/logging"
)

// SetOptions control how an entry is written to the store.
type SetOptions struct {
	// TTL is the base lifetime. Zero or negative means no expiry.
	TTL time.Duration

	// MemoryOnly skips the durable tier. Used for values that are cheap to
	// recompute or must not survive a restart.
	MemoryOnly bool

	// FuzzyTTL jitters the TTL by ±10% so entries written together do not
	// all expire in the same instant.
	FuzzyTTL bool
}

// Store is the two-tier cache: an in-process memory tier in front of a
// durable BadgerDB tier. Values are serialized bytes; both tiers hold the
// same representation. The memory tier is authoritative for reads; durable
// hits are mirrored back into memory with whatever lifetime the durable
// entry had left, never a fresh TTL.
type Store struct {
	memory  *Memory
	durable *Durable
	rnd     *rand.Rand
}

// NewStore builds a Store over the given tiers. durable may be nil, which
// degrades the store to memory-only operation.
func NewStore(memory *Memory, durable *Durable) *Store {
	return &Store{
		memory:  memory,
		durable: durable,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// fuzzTTL returns ttl jittered uniformly within ±10%.
func (s *Store) fuzzTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	// Uniform in [0.9, 1.1].
	factor := 0.9 + s.rnd.Float64()*0.2
	return time.Duration(float64(ttl) * factor)
}

// Set writes data under key per opts. The memory write happens first and
// always succeeds; the durable write is best-effort and only logged on
// failure, so a sick disk degrades the cache rather than the request path.
func (s *Store) Set(key string, data []byte, opts SetOptions) {
	ttl := opts.TTL
	if opts.FuzzyTTL {
		ttl = s.fuzzTTL(ttl)
	}

	s.memory.Set(key, data, ttl)

	if opts.MemoryOnly || s.durable == nil {
		return
	}
	if err := s.durable.Set(key, data, ttl); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Durable cache write failed")
	}
}

// Get returns the cached bytes for key, consulting memory first and the
// durable tier on a memory miss. A durable hit is mirrored into memory
// with the entry's remaining TTL so a restart does not extend lifetimes.
func (s *Store) Get(key string) ([]byte, bool) {
	if data, _, ok := s.memory.Get(key); ok {
		return data, true
	}

	if s.durable == nil {
		return nil, false
	}

	data, remaining, found, err := s.durable.Get(key)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Durable cache read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	s.memory.Set(key, data, remaining)
	return data, true
}

// Has reports whether key is present in either tier without touching hit
// and miss counters.
func (s *Store) Has(key string) bool {
	if s.memory.Has(key) {
		return true
	}
	if s.durable == nil {
		return false
	}
	found, err := s.durable.Has(key)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Durable cache check failed")
		return false
	}
	return found
}

// Delete removes key from both tiers.
func (s *Store) Delete(key string) {
	s.memory.Delete(key)
	if s.durable == nil {
		return
	}
	if err := s.durable.Delete(key); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Durable cache delete failed")
	}
}

// FlushType removes all entries for one resource type from both tiers and
// returns the number of memory entries removed. BuildKey with no params
// yields the bare cacheType, so the type's keyspace is the bare key plus
// everything under the ":" prefix.
func (s *Store) FlushType(cacheType string) int {
	prefix := cacheType + ":"
	n := s.memory.DeletePrefix(prefix)
	if s.memory.Has(cacheType) {
		s.memory.Delete(cacheType)
		n++
	}
	if s.durable != nil {
		if _, err := s.durable.DeletePrefix(prefix); err != nil {
			logging.Warn().Err(err).Str("type", cacheType).Msg("Durable cache flush failed")
		}
		if err := s.durable.Delete(cacheType); err != nil {
			logging.Warn().Err(err).Str("type", cacheType).Msg("Durable cache flush failed")
		}
	}
	logging.Info().Str("type", cacheType).Int("entries", n).Msg("Cache type flushed")
	return n
}

// FlushAll empties both tiers and returns the number of memory entries
// removed.
func (s *Store) FlushAll() int {
	n := s.memory.Clear()
	if s.durable != nil {
		if err := s.durable.Clear(); err != nil {
			logging.Warn().Err(err).Msg("Durable cache clear failed")
		}
	}
	logging.Info().Int("entries", n).Msg("Cache flushed")
	return n
}

// Sweep evicts expired memory entries and runs durable value-log GC. It is
// invoked periodically by the cache janitor service.
func (s *Store) Sweep() int {
	n := s.memory.Sweep()
	if s.durable != nil {
		if err := s.durable.RunGC(); err != nil {
			logging.Warn().Err(err).Msg("Durable cache GC failed")
		}
	}
	return n
}

// Stats returns memory-tier statistics.
func (s *Store) Stats() Stats {
	return s.memory.GetStats()
}

// Close closes the durable tier, if any.
func (s *Store) Close() error {
	if s.durable == nil {
		return nil
	}
	return s.durable.Close()
}
