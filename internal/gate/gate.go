// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package gate decides when a pattern has earned expensive downstream
// analysis. The decision policy is deterministic and evaluated in order:
// benchmark patterns always trigger, then the early-winner rule, then the
// confirmed-winner rule. Trigger dispatch is fire-and-forget: the engine
// never blocks on the downstream analyzer.
package gate

import (
	"math"

	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/pattern"
	"github.com/tomtom215/adlift/internal/stats"
)

// Trigger reasons, in policy order.
const (
	ReasonBenchmark       = "benchmark"
	ReasonEarlyWinner     = "early_winner"
	ReasonConfirmedWinner = "confirmed_winner"
	ReasonNone            = "none"
)

// Metrics is the observed performance input to a gate decision.
type Metrics struct {
	// Pattern is the pattern under evaluation.
	Pattern pattern.Pattern `json:"pattern"`

	// IsBenchmark marks market benchmark patterns, which always trigger.
	IsBenchmark bool `json:"is_benchmark"`

	// Impressions is the click-level exposure count.
	Impressions int64 `json:"impressions"`

	// Conversions is the success count.
	Conversions int64 `json:"conversions"`
}

// CVR returns conversions / impressions, or 0 with no impressions.
func (m Metrics) CVR() float64 {
	if m.Impressions == 0 {
		return 0
	}
	return float64(m.Conversions) / float64(m.Impressions)
}

// Decision is the gate output.
type Decision struct {
	// Trigger indicates downstream analysis should run.
	Trigger bool `json:"trigger"`

	// Reason names the matched policy rule, or "none".
	Reason string `json:"reason"`

	// CVR is the observed conversion rate evaluated.
	CVR float64 `json:"cvr"`

	// Baseline is the category baseline the CVR was compared against.
	Baseline float64 `json:"baseline"`

	// Confidence is the normal-approximation confidence at the
	// configured level, 0 when impressions or conversions are zero.
	Confidence float64 `json:"confidence"`
}

// Config holds the gate policy thresholds. All of these are
// configuration, never embedded constants.
type Config struct {
	// EarlyImpressions is the minimum exposure for the early-winner rule.
	EarlyImpressions int64 `koanf:"early_impressions" validate:"gte=1"`

	// ConfirmedImpressions is the minimum exposure for the
	// confirmed-winner rule.
	ConfirmedImpressions int64 `koanf:"confirmed_impressions" validate:"gte=1"`

	// EarlyMultiplier is the baseline multiple an early winner must beat.
	EarlyMultiplier float64 `koanf:"early_multiplier" validate:"gt=0"`

	// ConfidenceLevel sets the z-score for the confidence formula
	// (0.80 -> z = 1.28).
	ConfidenceLevel float64 `koanf:"confidence_level" validate:"gt=0,lt=1"`

	// MinConfidence is the confirmed-winner confidence floor.
	MinConfidence float64 `koanf:"min_confidence" validate:"gte=0,lte=1"`

	// DefaultBaseline is used for categories missing a baseline entry.
	DefaultBaseline float64 `koanf:"default_baseline" validate:"gt=0"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		EarlyImpressions:     100,
		ConfirmedImpressions: 500,
		EarlyMultiplier:      1.5,
		ConfidenceLevel:      0.80,
		MinConfidence:        0.80,
		DefaultBaseline:      0.02,
	}
}

// Baselines maps product category to its baseline CVR.
type Baselines map[string]float64

// Gate evaluates the trigger policy.
type Gate struct {
	cfg       Config
	baselines Baselines
	z         float64
}

// New creates a gate. Zero config fields receive defaults.
func New(cfg Config, baselines Baselines) *Gate {
	def := DefaultConfig()
	if cfg.EarlyImpressions == 0 {
		cfg.EarlyImpressions = def.EarlyImpressions
	}
	if cfg.ConfirmedImpressions == 0 {
		cfg.ConfirmedImpressions = def.ConfirmedImpressions
	}
	if cfg.EarlyMultiplier == 0 {
		cfg.EarlyMultiplier = def.EarlyMultiplier
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = def.ConfidenceLevel
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.DefaultBaseline == 0 {
		cfg.DefaultBaseline = def.DefaultBaseline
	}
	return &Gate{cfg: cfg, baselines: baselines, z: stats.ZScore(cfg.ConfidenceLevel)}
}

// Baseline returns the category baseline CVR, falling back to the default.
func (g *Gate) Baseline(category string) float64 {
	if b, ok := g.baselines[category]; ok && b > 0 {
		return b
	}
	return g.cfg.DefaultBaseline
}

// Decide evaluates the policy in order; the first matching rule wins.
func (g *Gate) Decide(m Metrics) Decision {
	baseline := g.Baseline(m.Pattern.Category)
	cvr := m.CVR()
	conf := g.confidence(m.Impressions, m.Conversions)

	d := Decision{CVR: cvr, Baseline: baseline, Confidence: conf, Reason: ReasonNone}

	switch {
	case m.IsBenchmark:
		d.Trigger = true
		d.Reason = ReasonBenchmark
	case m.Impressions >= g.cfg.EarlyImpressions && cvr >= g.cfg.EarlyMultiplier*baseline:
		d.Trigger = true
		d.Reason = ReasonEarlyWinner
	case m.Impressions >= g.cfg.ConfirmedImpressions && cvr >= baseline && conf >= g.cfg.MinConfidence:
		d.Trigger = true
		d.Reason = ReasonConfirmedWinner
	}

	metrics.GateTriggersTotal.WithLabelValues(d.Reason).Inc()
	return d
}

// confidence is the normal-approximation confidence in the observed CVR:
// 1 minus the relative margin of error at the configured z. Returns 0
// when impressions or conversions are zero.
func (g *Gate) confidence(n, k int64) float64 {
	if n == 0 || k == 0 {
		return 0
	}
	p := float64(k) / float64(n)
	moe := g.z * math.Sqrt(p*(1-p)/float64(n))
	c := 1 - moe/p
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
