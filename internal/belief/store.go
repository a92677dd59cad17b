// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package belief

import (
	"context"
	"errors"
)

// Store sentinel errors. Callers branch with errors.Is.
var (
	// ErrNotFound indicates no state exists for the fingerprint.
	ErrNotFound = errors.New("belief state not found")

	// ErrConflict indicates a versioned Put lost an optimistic-concurrency
	// race. Retryable: the caller re-reads and re-applies.
	ErrConflict = errors.New("belief update conflict")

	// ErrInvalidEvent indicates an unknown event type or malformed
	// observation. The update is skipped; not fatal.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnavailable indicates the backing store cannot be reached.
	// Retryable by the caller; updates are never silently dropped.
	ErrUnavailable = errors.New("belief store unavailable")

	// errInvariant indicates a Put attempted to decrease alpha or beta.
	errInvariant = errors.New("belief invariant violation: alpha/beta may not decrease")
)

// Store is the versioned atomic store for belief states. It is the
// storage-agnostic seam for the "atomic column increment" contract: a
// Put with the expected version either lands the whole new state or
// fails with ErrConflict, never a partial write.
//
// Reads return value copies, so a reader can never observe a torn state
// mixing two partial updates.
type Store interface {
	// Get returns the state for a fingerprint, or ErrNotFound.
	Get(ctx context.Context, fingerprint string) (State, error)

	// Put writes the state if the stored version equals expectedVersion.
	// expectedVersion 0 means "create"; a concurrent create surfaces as
	// ErrConflict. On success the returned state carries the incremented
	// version.
	Put(ctx context.Context, st State, expectedVersion uint64) (State, error)

	// Snapshot returns a point-in-time copy of all states.
	Snapshot(ctx context.Context) ([]State, error)

	// ListByCategory returns copies of all states in a product category.
	ListByCategory(ctx context.Context, category string) ([]State, error)

	// Close releases store resources.
	Close() error
}

// checkMonotonic verifies the non-decreasing alpha/beta invariant on
// update. prev is the currently stored state.
func checkMonotonic(prev, next State) error {
	if next.Alpha < prev.Alpha || next.Beta < prev.Beta {
		return errInvariant
	}
	if next.Alpha <= 0 || next.Beta <= 0 {
		return errInvariant
	}
	return nil
}
