// Traktrelay - Caching Trakt API Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/traktrelay

package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// durableKeyPrefix namespaces query-cache entries inside the BadgerDB so
// other durable state can share the same database.
const durableKeyPrefix = "querycache:"

// Durable is the BadgerDB-backed cache tier. Badger enforces per-entry TTL
// natively, so expiry of durable entries is delegated to it; the remaining
// TTL is read back from the entry metadata on hits so the memory mirror
// cannot outlive its durable source.
type Durable struct {
	db *badger.DB
}

// OpenDurable opens (or creates) a BadgerDB at dir and returns the durable
// tier. The caller owns closing it.
func OpenDurable(dir string) (*Durable, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // cache writes are chatty; rely on our own logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Durable{db: db}, nil
}

// NewDurable wraps an already-open BadgerDB.
func NewDurable(db *badger.DB) *Durable {
	return &Durable{db: db}
}

// Get returns the stored bytes and remaining TTL for key. A zero remaining
// TTL with found=true means the entry has no expiry. Badger drops expired
// entries itself, so an expired key reads as absent.
func (d *Durable) Get(key string) (data []byte, remaining time.Duration, found bool, err error) {
	err = d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(durableKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}

		if exp := item.ExpiresAt(); exp > 0 {
			until := time.Unix(int64(exp), 0)
			remaining = time.Until(until)
			if remaining <= 0 {
				// TTL elapsed but the entry has not been vacuumed yet.
				return nil
			}
		}

		data, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, 0, false, err
	}
	return data, remaining, found, nil
}

// Set stores data under key. A non-positive TTL stores without expiry.
func (d *Durable) Set(key string, data []byte, ttl time.Duration) error {
	return d.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(durableKeyPrefix+key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Has reports whether key holds an unexpired entry.
func (d *Durable) Has(key string) (bool, error) {
	found := false
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(durableKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Delete removes key. Absent keys are not an error.
func (d *Durable) Delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(durableKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// DeletePrefix removes every entry whose cache key starts with prefix and
// returns the number removed.
func (d *Durable) DeletePrefix(prefix string) (int, error) {
	full := []byte(durableKeyPrefix + prefix)

	// Collect first, then delete: Badger forbids writes during iteration.
	var keys [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(full); it.ValidForPrefix(full); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}

	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes for prefix %s: %w", prefix, err)
	}
	return len(keys), nil
}

// Clear removes every query-cache entry.
func (d *Durable) Clear() error {
	_, err := d.DeletePrefix("")
	return err
}

// RunGC triggers one round of Badger value-log garbage collection. Called
// periodically by the cache janitor; ErrNoRewrite (nothing to collect) is
// not an error.
func (d *Durable) RunGC() error {
	err := d.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the underlying database.
func (d *Durable) Close() error {
	return d.db.Close()
}
