// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package pattern defines the creative pattern identity model: the five
// creative dimensions plus product category, the dimension vocabulary,
// observation events, and the event weighting table.
//
// A Pattern is a value type. Its identity is the combination of all six
// attributes; the Fingerprint is a stable hash of that combination and is
// used as the storage key everywhere else in the engine. Patterns are
// created on first observation (or explicit seeding) and never change.
package pattern

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Dimension identifies one axis of a creative pattern.
type Dimension int

const (
	// DimHook is the opening hook style of the creative.
	DimHook Dimension = iota
	// DimEmotion is the dominant emotional tone.
	DimEmotion
	// DimPacing is the edit pacing of the creative.
	DimPacing
	// DimCTA is the call-to-action style.
	DimCTA
	// DimPain is the target audience pain point addressed.
	DimPain
	// DimCategory is the product category the pattern is scoped to.
	DimCategory
)

// String returns the canonical dimension name.
func (d Dimension) String() string {
	switch d {
	case DimHook:
		return "hook_type"
	case DimEmotion:
		return "emotion"
	case DimPacing:
		return "pacing"
	case DimCTA:
		return "cta_type"
	case DimPain:
		return "target_audience_pain"
	case DimCategory:
		return "product_category"
	default:
		return "unknown"
	}
}

// Dimensions lists all pattern dimensions in canonical order.
var Dimensions = []Dimension{DimHook, DimEmotion, DimPacing, DimCTA, DimPain, DimCategory}

// Source identifies where a pattern's evidence originates.
type Source int

const (
	// SourceClient is a pattern observed from the client's own creatives.
	SourceClient Source = iota
	// SourceBenchmark is a pattern seeded from market benchmark data.
	SourceBenchmark
)

// String returns a human-readable source name.
func (s Source) String() string {
	switch s {
	case SourceClient:
		return "client"
	case SourceBenchmark:
		return "benchmark"
	default:
		return "unknown"
	}
}

// Weight returns the ranking weight applied during Thompson sampling.
// Benchmark patterns carry double weight because their priors encode
// market-scale evidence.
func (s Source) Weight() float64 {
	if s == SourceBenchmark {
		return 2.0
	}
	return 1.0
}

// Pattern is the identity of a creative pattern: a specific combination of
// creative attributes within a product category. Attributes are immutable
// once the pattern exists.
type Pattern struct {
	// Hook is the opening hook style (e.g. "question", "bold_claim").
	Hook string `json:"hook_type" validate:"required"`

	// Emotion is the dominant emotional tone (e.g. "urgency", "trust").
	Emotion string `json:"emotion" validate:"required"`

	// Pacing is the edit pacing ("fast", "medium", "slow").
	Pacing string `json:"pacing" validate:"required"`

	// CTA is the call-to-action style (e.g. "shop_now", "try_free").
	CTA string `json:"cta_type" validate:"required"`

	// Pain is the audience pain point addressed (e.g. "time", "money").
	Pain string `json:"target_audience_pain" validate:"required"`

	// Category is the product category the pattern is scoped to.
	Category string `json:"product_category" validate:"required"`
}

// Value returns the pattern's value for the given dimension.
func (p Pattern) Value(d Dimension) string {
	switch d {
	case DimHook:
		return p.Hook
	case DimEmotion:
		return p.Emotion
	case DimPacing:
		return p.Pacing
	case DimCTA:
		return p.CTA
	case DimPain:
		return p.Pain
	case DimCategory:
		return p.Category
	default:
		return ""
	}
}

// Fingerprint returns the stable identity hash of the pattern.
// The hash is FNV-64a over the canonical pipe-joined encoding, so equal
// patterns always produce equal fingerprints across processes.
func (p Pattern) Fingerprint() string {
	h := fnv.New64a()
	for i, d := range Dimensions {
		if i > 0 {
			_, _ = h.Write([]byte{'|'})
		}
		_, _ = h.Write([]byte(p.Value(d)))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// SharedDimensions counts creative dimensions (category excluded) on which
// two patterns agree. Used by partial-match estimation and gap redundancy.
func (p Pattern) SharedDimensions(other Pattern) int {
	n := 0
	if p.Hook == other.Hook {
		n++
	}
	if p.Emotion == other.Emotion {
		n++
	}
	if p.Pacing == other.Pacing {
		n++
	}
	if p.CTA == other.CTA {
		n++
	}
	if p.Pain == other.Pain {
		n++
	}
	return n
}

// String returns a compact human-readable pattern description.
func (p Pattern) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s@%s", p.Hook, p.Emotion, p.Pacing, p.CTA, p.Pain, p.Category)
}

// Observation is a single ephemeral conversion-funnel event attributed to
// a pattern. Observations are inputs only; they are never stored on the
// belief record itself.
type Observation struct {
	// ID is the unique observation identifier, used for tracing and
	// ingest deduplication.
	ID string `json:"id"`

	// Pattern is the creative pattern the event is attributed to.
	Pattern Pattern `json:"pattern" validate:"required"`

	// EventType names the funnel event (view, click, purchase, ...).
	// Must exist in the weighting table.
	EventType string `json:"event_type" validate:"required"`

	// Success indicates whether the event counts as a conversion success.
	Success bool `json:"success"`

	// Source identifies benchmark vs. client provenance.
	Source Source `json:"source"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp" validate:"required"`
}
