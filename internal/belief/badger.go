// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package belief

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/adlift/internal/metrics"
)

// beliefKeyPrefix namespaces belief records in BadgerDB.
const beliefKeyPrefix = "belief:"

// BadgerStore implements Store on BadgerDB for durable single-node
// deployments. Badger's serializable transactions provide the atomic
// update primitive: a Put re-checks the record version inside the
// transaction, and both a version mismatch and a Badger write conflict
// surface as ErrConflict for the caller's bounded retry.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an opened BadgerDB handle.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens (or creates) a BadgerDB at path and wraps it.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // routed through zerolog by the caller if needed
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w: %v", path, ErrUnavailable, err)
	}
	return &BadgerStore{db: db}, nil
}

func beliefKey(fingerprint string) []byte {
	return []byte(beliefKeyPrefix + fingerprint)
}

// Get returns the state for a fingerprint, or ErrNotFound.
func (b *BadgerStore) Get(_ context.Context, fingerprint string) (State, error) {
	defer metrics.ObserveStoreOperation("get", "badger", time.Now())

	var st State
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(beliefKey(fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get %s: %w", fingerprint, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get %s: %w: %v", fingerprint, ErrUnavailable, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &st)
		})
	})
	if err != nil {
		return State{}, err
	}
	return st, nil
}

// Put writes the state if the stored version matches expectedVersion.
func (b *BadgerStore) Put(_ context.Context, st State, expectedVersion uint64) (State, error) {
	defer metrics.ObserveStoreOperation("put", "badger", time.Now())

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(beliefKey(st.Fingerprint))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expectedVersion != 0 {
				return fmt.Errorf("put %s: %w", st.Fingerprint, ErrConflict)
			}
		case err != nil:
			return fmt.Errorf("put %s: %w: %v", st.Fingerprint, ErrUnavailable, err)
		default:
			var existing State
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); verr != nil {
				return fmt.Errorf("put %s: decode existing: %w", st.Fingerprint, verr)
			}
			if existing.Version != expectedVersion {
				return fmt.Errorf("put %s: version %d != %d: %w",
					st.Fingerprint, expectedVersion, existing.Version, ErrConflict)
			}
			if merr := checkMonotonic(existing, st); merr != nil {
				return fmt.Errorf("put %s: %w", st.Fingerprint, merr)
			}
		}

		st.Version = expectedVersion + 1
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("put %s: marshal: %w", st.Fingerprint, err)
		}
		return txn.Set(beliefKey(st.Fingerprint), data)
	})

	// A Badger transaction conflict means another writer landed first.
	if errors.Is(err, badger.ErrConflict) {
		return State{}, fmt.Errorf("put %s: %w", st.Fingerprint, ErrConflict)
	}
	if err != nil {
		return State{}, err
	}

	st.Version = expectedVersion + 1
	return st, nil
}

// Snapshot returns a point-in-time copy of all states.
func (b *BadgerStore) Snapshot(_ context.Context) ([]State, error) {
	defer metrics.ObserveStoreOperation("snapshot", "badger", time.Now())

	var out []State
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(beliefKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var st State
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &st)
			}); err != nil {
				return fmt.Errorf("snapshot: decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByCategory returns all states in a product category.
func (b *BadgerStore) ListByCategory(ctx context.Context, category string) ([]State, error) {
	all, err := b.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []State
	for _, st := range all {
		if st.Pattern.Category == category {
			out = append(out, st)
		}
	}
	return out, nil
}

// Close closes the underlying BadgerDB.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
