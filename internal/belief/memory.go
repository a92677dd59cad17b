// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package belief

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/adlift/internal/metrics"
)

// MemoryStore is an in-memory Store for tests and embedded deployments.
// States are held by value under a single mutex, so every read is a
// consistent copy and every Put is atomic.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

// Get returns the state for a fingerprint, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, fingerprint string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[fingerprint]
	if !ok {
		return State{}, fmt.Errorf("get %s: %w", fingerprint, ErrNotFound)
	}
	return st, nil
}

// Put writes the state under optimistic concurrency control.
func (m *MemoryStore) Put(_ context.Context, st State, expectedVersion uint64) (State, error) {
	defer metrics.ObserveStoreOperation("put", "memory", time.Now())

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.states[st.Fingerprint]
	switch {
	case !ok && expectedVersion != 0:
		return State{}, fmt.Errorf("put %s: %w", st.Fingerprint, ErrConflict)
	case ok && existing.Version != expectedVersion:
		return State{}, fmt.Errorf("put %s: version %d != %d: %w",
			st.Fingerprint, expectedVersion, existing.Version, ErrConflict)
	case ok:
		if err := checkMonotonic(existing, st); err != nil {
			return State{}, fmt.Errorf("put %s: %w", st.Fingerprint, err)
		}
	}

	st.Version = expectedVersion + 1
	m.states[st.Fingerprint] = st
	return st, nil
}

// Snapshot returns a point-in-time copy of all states.
func (m *MemoryStore) Snapshot(_ context.Context) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

// ListByCategory returns all states in a product category.
func (m *MemoryStore) ListByCategory(_ context.Context, category string) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []State
	for _, st := range m.states {
		if st.Pattern.Category == category {
			out = append(out, st)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
