// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/adlift/internal/pattern"
)

// MemoryStore is an in-memory observation log for tests and embedded
// single-process deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	obs  []pattern.Observation
	seen map[string]struct{}
}

// NewMemoryStore creates an empty in-memory observation log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// Append records one observation, ignoring duplicate IDs.
func (s *MemoryStore) Append(_ context.Context, obs pattern.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obs.ID != "" {
		if _, dup := s.seen[obs.ID]; dup {
			return nil
		}
		s.seen[obs.ID] = struct{}{}
	}
	s.obs = append(s.obs, obs)
	return nil
}

// ByFingerprint returns a pattern's observations since the cutoff,
// ordered by ascending timestamp.
func (s *MemoryStore) ByFingerprint(_ context.Context, fingerprint string, since time.Time) ([]pattern.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pattern.Observation
	for _, o := range s.obs {
		if o.Pattern.Fingerprint() == fingerprint && !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	sortByTime(out)
	return out, nil
}

// ByCategory returns a category's observations since the cutoff,
// ordered by ascending timestamp, keeping the most recent limit entries.
func (s *MemoryStore) ByCategory(_ context.Context, category string, since time.Time, limit int) ([]pattern.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pattern.Observation
	for _, o := range s.obs {
		if o.Pattern.Category == category && !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	sortByTime(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Close is a no-op for the in-memory log.
func (s *MemoryStore) Close() error { return nil }

func sortByTime(obs []pattern.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})
}
