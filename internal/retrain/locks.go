// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package retrain

import "sync"

// Locks is a per-category mutex registry. The retrainer holds a
// category's lock across its whole evaluate-and-record cycle, and bulk
// re-seed paths take the same lock, so the two can never interleave on
// one category.
type Locks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// NewLocks creates an empty lock registry.
func NewLocks() *Locks {
	return &Locks{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the category's mutex, creating it on first use, and
// returns the unlock function.
func (l *Locks) Lock(category string) func() {
	l.mu.Lock()
	cm, ok := l.m[category]
	if !ok {
		cm = &sync.Mutex{}
		l.m[category] = cm
	}
	l.mu.Unlock()

	cm.Lock()
	return cm.Unlock
}
