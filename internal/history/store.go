// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package history persists the append-only observation log. Belief
// states hold only aggregate counters; the trend classifier and the
// auto-retrainer need the raw event sequence, which lives here.
//
// The log is append-only: observations are never updated or deleted.
// Reads are time-windowed and ordered by event timestamp.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/adlift/internal/pattern"
)

// ErrUnavailable indicates the backing log cannot be reached. Callers
// treat it as transient and retryable.
var ErrUnavailable = errors.New("observation log unavailable")

// Store is the observation log contract.
type Store interface {
	// Append records one observation. Duplicate IDs are ignored so that
	// redelivered events do not double-count.
	Append(ctx context.Context, obs pattern.Observation) error

	// ByFingerprint returns a pattern's observations at or after since,
	// ordered by ascending timestamp.
	ByFingerprint(ctx context.Context, fingerprint string, since time.Time) ([]pattern.Observation, error)

	// ByCategory returns a category's most recent observations at or
	// after since, ordered by ascending timestamp, capped at limit
	// (0 means no cap).
	ByCategory(ctx context.Context, category string, since time.Time, limit int) ([]pattern.Observation, error)

	// Close releases the backing resources.
	Close() error
}
