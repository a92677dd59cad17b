// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package retrain

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/adlift/internal/logging"
)

// LogReporter emits reports to the structured log only.
type LogReporter struct{}

// Record logs the report.
func (LogReporter) Record(_ context.Context, r Report) error {
	logging.Info().
		Str("category", r.Category).
		Time("window_start", r.WindowStart).
		Time("window_end", r.WindowEnd).
		Int("patterns", r.Patterns).
		Int("observations", r.Observations).
		Float64("mae", r.MAE).
		Float64("hit_rate", r.HitRate).
		Str("trend", r.Trend).
		Msg("retrain report")
	return nil
}

// MemoryReporter keeps reports in memory, deduplicated per category and
// window, which makes re-running an aligned window idempotent.
type MemoryReporter struct {
	mu      sync.Mutex
	byKey   map[string]Report
	ordered []Report
}

// NewMemoryReporter creates an empty in-memory reporter.
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{byKey: make(map[string]Report)}
}

// Record stores the report, ignoring a repeat of the same window.
func (m *MemoryReporter) Record(_ context.Context, r Report) error {
	key := fmt.Sprintf("%s@%d", r.Category, r.WindowEnd.UnixNano())
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byKey[key]; dup {
		return nil
	}
	m.byKey[key] = r
	m.ordered = append(m.ordered, r)
	return nil
}

// Reports returns the recorded reports in arrival order.
func (m *MemoryReporter) Reports() []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Report, len(m.ordered))
	copy(out, m.ordered)
	return out
}
