// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package belief maintains the durable Beta-belief record per creative
// pattern and the atomic update path that is the only way to mutate it.
//
// The invariants the package enforces:
//
//   - alpha > 0 and beta > 0 at all times
//   - alpha and beta are non-decreasing: updates only add pseudo-count
//   - mean = alpha / (alpha + beta)
//   - states are mutated exclusively through Updater.ApplyEvent, which
//     uses optimistic concurrency (versioned Put with bounded retry) so
//     concurrent observations on the same pattern never lose updates
package belief

import (
	"time"

	"github.com/tomtom215/adlift/internal/pattern"
	"github.com/tomtom215/adlift/internal/stats"
)

// State is the durable Beta-belief record for one pattern.
// One State exists per distinct Pattern; it is created on first
// observation or explicit seeding and never deleted.
type State struct {
	// Fingerprint is the pattern identity hash, the storage key.
	Fingerprint string `json:"fingerprint"`

	// Pattern is the immutable pattern identity.
	Pattern pattern.Pattern `json:"pattern"`

	// Alpha is the Beta success pseudo-count. Always > 0, never decreases.
	Alpha float64 `json:"alpha"`

	// Beta is the Beta failure pseudo-count. Always > 0, never decreases.
	Beta float64 `json:"beta"`

	// Weight is the ranking weight (benchmark 2.0, client 1.0).
	Weight float64 `json:"weight"`

	// Source records benchmark vs. client provenance.
	Source pattern.Source `json:"source"`

	// SampleSize counts observations applied to this state.
	SampleSize int64 `json:"sample_size"`

	// TotalConversions counts success observations.
	TotalConversions int64 `json:"total_conversions"`

	// TotalClicks counts click-level exposures.
	TotalClicks int64 `json:"total_clicks"`

	// AvgCVR is the belief mean, recomputed on every update.
	AvgCVR float64 `json:"avg_cvr"`

	// Version is the optimistic-concurrency version, incremented by the
	// store on every successful Put.
	Version uint64 `json:"version"`

	// CreatedAt is when the state was first seeded.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Mean returns alpha / (alpha + beta).
func (s State) Mean() float64 {
	return s.Alpha / (s.Alpha + s.Beta)
}

// Distribution returns the Beta distribution the state encodes.
func (s State) Distribution() stats.Beta {
	return stats.Beta{Alpha: s.Alpha, Beta: s.Beta}
}

// Uncertainty returns a 0-1 measure of how little evidence the state
// carries: 1.0 for a fresh prior, approaching 0 as samples accumulate.
func (s State) Uncertainty() float64 {
	return 1.0 / (1.0 + float64(s.SampleSize)/10.0)
}
