// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package explore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/adlift/internal/history"
	"github.com/tomtom215/adlift/internal/pattern"
)

// Stability labels a pattern's performance character.
type Stability string

const (
	// StabilityStable marks durable performance worth ongoing investment.
	StabilityStable Stability = "STABLE"
	// StabilityTrend marks performance riding a passing wave.
	StabilityTrend Stability = "TREND"
	// StabilityUncertain marks insufficient or conflicting evidence.
	StabilityUncertain Stability = "UNCERTAIN"
)

// TrendReport is the classifier output for one pattern.
type TrendReport struct {
	// Fingerprint identifies the classified pattern.
	Fingerprint string `json:"fingerprint"`

	// Label is the stability classification.
	Label Stability `json:"label"`

	// Score is the 0-100 stability score; higher means more durable.
	Score float64 `json:"score"`

	// FirstHalfCVR and SecondHalfCVR are the window means.
	FirstHalfCVR  float64 `json:"first_half_cvr"`
	SecondHalfCVR float64 `json:"second_half_cvr"`

	// Observations is the evidence volume the report is based on.
	Observations int `json:"observations"`

	// Reasoning lists the factors behind the score.
	Reasoning []string `json:"reasoning"`
}

// TrendConfig holds classification policy.
type TrendConfig struct {
	// Window bounds how far back observations are read.
	Window time.Duration `koanf:"window"`

	// MinObservations is the evidence floor below which the classifier
	// returns UNCERTAIN.
	MinObservations int `koanf:"min_observations" validate:"gte=2"`

	// StableScore and TrendScore are the label cut points: score at or
	// above StableScore is STABLE, at or below TrendScore is TREND.
	StableScore float64 `koanf:"stable_score" validate:"gt=0,lte=100"`
	TrendScore  float64 `koanf:"trend_score" validate:"gte=0,lt=100"`

	// LongLived is the lifespan at which a pattern counts as long-lived;
	// ShortLived the lifespan below which it counts as short-lived.
	LongLived  time.Duration `koanf:"long_lived"`
	ShortLived time.Duration `koanf:"short_lived"`

	// ActiveWithin is how recent the last observation must be for the
	// pattern to count as still active.
	ActiveWithin time.Duration `koanf:"active_within"`
}

// DefaultTrendConfig returns production defaults.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		Window:          90 * 24 * time.Hour,
		MinObservations: 10,
		StableScore:     65,
		TrendScore:      35,
		LongLived:       14 * 24 * time.Hour,
		ShortLived:      7 * 24 * time.Hour,
		ActiveWithin:    3 * 24 * time.Hour,
	}
}

// TrendClassifier labels patterns STABLE, TREND or UNCERTAIN from the
// observation log: internal drift between the first and second half of
// the window, plus the external temporal spread (long-lived and still
// active reads stable; short-lived and aging reads trend).
type TrendClassifier struct {
	log history.Store
	cfg TrendConfig

	// now is injected for deterministic tests.
	now func() time.Time
}

// NewTrendClassifier creates a classifier. Zero config fields receive
// defaults.
func NewTrendClassifier(log history.Store, cfg TrendConfig) *TrendClassifier {
	def := DefaultTrendConfig()
	if cfg.Window == 0 {
		cfg.Window = def.Window
	}
	if cfg.MinObservations == 0 {
		cfg.MinObservations = def.MinObservations
	}
	if cfg.StableScore == 0 {
		cfg.StableScore = def.StableScore
	}
	if cfg.TrendScore == 0 {
		cfg.TrendScore = def.TrendScore
	}
	if cfg.LongLived == 0 {
		cfg.LongLived = def.LongLived
	}
	if cfg.ShortLived == 0 {
		cfg.ShortLived = def.ShortLived
	}
	if cfg.ActiveWithin == 0 {
		cfg.ActiveWithin = def.ActiveWithin
	}
	return &TrendClassifier{log: log, cfg: cfg, now: time.Now}
}

// halfStats is the mean/variance summary of one window half. Pure.
type halfStats struct {
	mean     float64
	variance float64
	n        int
}

func summarize(obs []pattern.Observation) halfStats {
	if len(obs) == 0 {
		return halfStats{}
	}
	var sum float64
	for _, o := range obs {
		if o.Success {
			sum++
		}
	}
	mean := sum / float64(len(obs))
	// Bernoulli sample variance.
	return halfStats{mean: mean, variance: mean * (1 - mean), n: len(obs)}
}

// Classify reads the pattern's windowed observations and produces a
// stability report. Too little evidence yields UNCERTAIN, not an error.
func (c *TrendClassifier) Classify(ctx context.Context, fingerprint string) (TrendReport, error) {
	now := c.now()
	obs, err := c.log.ByFingerprint(ctx, fingerprint, now.Add(-c.cfg.Window))
	if err != nil {
		return TrendReport{}, fmt.Errorf("classify %s: %w", fingerprint, err)
	}

	report := TrendReport{Fingerprint: fingerprint, Observations: len(obs)}
	if len(obs) < c.cfg.MinObservations {
		report.Label = StabilityUncertain
		report.Score = 30
		report.Reasoning = []string{
			fmt.Sprintf("only %d observations in window, need %d to classify", len(obs), c.cfg.MinObservations),
		}
		return report, nil
	}

	mid := len(obs) / 2
	first := summarize(obs[:mid])
	second := summarize(obs[mid:])
	report.FirstHalfCVR = first.mean
	report.SecondHalfCVR = second.mean

	score := 50.0
	var reasons []string

	// Internal trend: relative drift between halves.
	overall := (first.mean*float64(first.n) + second.mean*float64(second.n)) / float64(first.n+second.n)
	drift := math.Abs(second.mean - first.mean)
	relDrift := 0.0
	if overall > 0 {
		relDrift = drift / overall
	} else if drift > 0 {
		relDrift = 1
	}
	switch {
	case relDrift < 0.2:
		score += 25
		reasons = append(reasons, fmt.Sprintf("performance steady across window halves (%.1f%% vs %.1f%%)",
			100*first.mean, 100*second.mean))
	case relDrift > 0.5:
		score -= 25
		reasons = append(reasons, fmt.Sprintf("performance drifted %.0f%% between window halves (%.1f%% vs %.1f%%)",
			100*relDrift, 100*first.mean, 100*second.mean))
	default:
		reasons = append(reasons, fmt.Sprintf("moderate drift between window halves (%.1f%% vs %.1f%%)",
			100*first.mean, 100*second.mean))
	}

	// Noise: high combined variance erodes confidence in either label.
	avgVar := (first.variance + second.variance) / 2
	if avgVar > 0.2 {
		score -= 10
		reasons = append(reasons, "high outcome variance within window halves")
	}

	// External temporal spread.
	lifespan := obs[len(obs)-1].Timestamp.Sub(obs[0].Timestamp)
	age := now.Sub(obs[len(obs)-1].Timestamp)
	switch {
	case lifespan >= c.cfg.LongLived && age <= c.cfg.ActiveWithin:
		score += 15
		reasons = append(reasons, fmt.Sprintf("long-lived (%.0f days) and still active", lifespan.Hours()/24))
	case lifespan < c.cfg.ShortLived && age > c.cfg.ShortLived:
		score -= 15
		reasons = append(reasons, fmt.Sprintf("short-lived (%.0f days) and aging (%.0f days since last event)",
			lifespan.Hours()/24, age.Hours()/24))
	}

	report.Score = clampScore(score)
	switch {
	case report.Score >= c.cfg.StableScore:
		report.Label = StabilityStable
	case report.Score <= c.cfg.TrendScore:
		report.Label = StabilityTrend
	default:
		report.Label = StabilityUncertain
	}
	report.Reasoning = reasons
	return report, nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
