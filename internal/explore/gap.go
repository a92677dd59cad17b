// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package explore holds the exploration-quality auxiliaries: the gap
// analyzer (untested combinations worth trying), the trend classifier
// (is a pattern's performance stable or a passing trend) and the
// uniqueness scorer (is a candidate creative too derivative to test).
//
// Everything here is built from pure grouping functions over typed
// maps; the analyzers keep no mutable state between calls.
package explore

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/pattern"
)

// creativeDimensions are the dimensions enumerated by the gap analyzer;
// category is fixed per call.
var creativeDimensions = []pattern.Dimension{
	pattern.DimHook, pattern.DimEmotion, pattern.DimPacing, pattern.DimCTA, pattern.DimPain,
}

// Gap is one untested combination worth testing.
type Gap struct {
	// Pattern is the untested combination.
	Pattern pattern.Pattern `json:"pattern"`

	// Score is the gap value: mean success rate of the combination's
	// proven dimension values, minus the redundancy penalty.
	Score float64 `json:"score"`

	// Redundancy is the 0-1 overlap of this combination with the
	// already-tested pattern set.
	Redundancy float64 `json:"redundancy"`

	// ProvenDimensions counts dimension values backed by enough evidence.
	ProvenDimensions int `json:"proven_dimensions"`

	// Reasoning explains the placement.
	Reasoning string `json:"reasoning"`
}

// GapConfig holds gap analysis policy.
type GapConfig struct {
	// MinDimensionClicks is the aggregate click volume a dimension value
	// needs before its success rate counts as proven.
	MinDimensionClicks int64 `koanf:"min_dimension_clicks" validate:"gte=1"`

	// MinProvenDimensions is how many of a combination's five dimension
	// values must be proven for it to be scored at all.
	MinProvenDimensions int `koanf:"min_proven_dimensions" validate:"gte=1,lte=5"`

	// ScoreThreshold drops combinations scoring below it.
	ScoreThreshold float64 `koanf:"score_threshold" validate:"gte=0"`

	// RedundancyWeight scales the overlap penalty.
	RedundancyWeight float64 `koanf:"redundancy_weight" validate:"gte=0"`

	// MaxResults caps the returned gap list.
	MaxResults int `koanf:"max_results" validate:"gte=1"`
}

// DefaultGapConfig returns production defaults.
func DefaultGapConfig() GapConfig {
	return GapConfig{
		MinDimensionClicks:  10,
		MinProvenDimensions: 3,
		ScoreThreshold:      0.01,
		RedundancyWeight:    0.02,
		MaxResults:          20,
	}
}

// GapAnalyzer finds untested vocabulary combinations whose dimension
// values have performed well in tested patterns.
type GapAnalyzer struct {
	store belief.Store
	vocab *pattern.Vocabulary
	cfg   GapConfig
}

// NewGapAnalyzer creates a gap analyzer. Zero config fields receive
// defaults.
func NewGapAnalyzer(store belief.Store, vocab *pattern.Vocabulary, cfg GapConfig) *GapAnalyzer {
	def := DefaultGapConfig()
	if cfg.MinDimensionClicks == 0 {
		cfg.MinDimensionClicks = def.MinDimensionClicks
	}
	if cfg.MinProvenDimensions == 0 {
		cfg.MinProvenDimensions = def.MinProvenDimensions
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.RedundancyWeight == 0 {
		cfg.RedundancyWeight = def.RedundancyWeight
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = def.MaxResults
	}
	return &GapAnalyzer{store: store, vocab: vocab, cfg: cfg}
}

// dimRate is the aggregated evidence behind one dimension value.
type dimRate struct {
	clicks      int64
	conversions int64
}

func (r dimRate) rate() float64 {
	if r.clicks == 0 {
		return 0
	}
	return float64(r.conversions) / float64(r.clicks)
}

// dimensionRates groups tested evidence by dimension value. Pure.
func dimensionRates(states []belief.State) map[pattern.Dimension]map[string]dimRate {
	out := make(map[pattern.Dimension]map[string]dimRate, len(creativeDimensions))
	for _, d := range creativeDimensions {
		out[d] = make(map[string]dimRate)
	}
	for _, st := range states {
		for _, d := range creativeDimensions {
			v := st.Pattern.Value(d)
			agg := out[d][v]
			agg.clicks += st.TotalClicks
			agg.conversions += st.TotalConversions
			out[d][v] = agg
		}
	}
	return out
}

// FindGaps enumerates the untested combinations for a category and
// returns those scoring above the threshold, ranked descending. A
// category with no tested patterns yields no gaps: there is no evidence
// to extrapolate from yet.
func (a *GapAnalyzer) FindGaps(ctx context.Context, category string) ([]Gap, error) {
	states, err := a.store.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("find gaps: %w", err)
	}
	if len(states) == 0 {
		return nil, nil
	}

	rates := dimensionRates(states)
	tested := make(map[string]struct{}, len(states))
	for _, st := range states {
		tested[st.Pattern.Fingerprint()] = struct{}{}
	}

	var gaps []Gap
	for _, hook := range a.vocab.Values(pattern.DimHook) {
		for _, emotion := range a.vocab.Values(pattern.DimEmotion) {
			for _, pacing := range a.vocab.Values(pattern.DimPacing) {
				for _, cta := range a.vocab.Values(pattern.DimCTA) {
					for _, pain := range a.vocab.Values(pattern.DimPain) {
						p := pattern.Pattern{
							Hook: hook, Emotion: emotion, Pacing: pacing,
							CTA: cta, Pain: pain, Category: category,
						}
						if _, done := tested[p.Fingerprint()]; done {
							continue
						}
						if g, ok := a.score(p, rates, states); ok {
							gaps = append(gaps, g)
						}
					}
				}
			}
		}
	}

	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].Score != gaps[j].Score {
			return gaps[i].Score > gaps[j].Score
		}
		return gaps[i].Pattern.Fingerprint() < gaps[j].Pattern.Fingerprint()
	})
	if len(gaps) > a.cfg.MaxResults {
		gaps = gaps[:a.cfg.MaxResults]
	}
	return gaps, nil
}

// score evaluates one untested combination against the dimension
// evidence and the tested set.
func (a *GapAnalyzer) score(p pattern.Pattern, rates map[pattern.Dimension]map[string]dimRate, states []belief.State) (Gap, bool) {
	var (
		sum    float64
		proven int
	)
	for _, d := range creativeDimensions {
		agg := rates[d][p.Value(d)]
		if agg.clicks >= a.cfg.MinDimensionClicks {
			sum += agg.rate()
			proven++
		}
	}
	if proven < a.cfg.MinProvenDimensions {
		return Gap{}, false
	}

	redundancy := redundancy(p, states)
	score := sum/float64(proven) - a.cfg.RedundancyWeight*redundancy
	if score < a.cfg.ScoreThreshold {
		return Gap{}, false
	}

	return Gap{
		Pattern:          p,
		Score:            score,
		Redundancy:       redundancy,
		ProvenDimensions: proven,
		Reasoning: fmt.Sprintf("%d/5 dimension values proven, avg success %.1f%%, redundancy %.0f%%",
			proven, 100*sum/float64(proven), 100*redundancy),
	}, true
}

// redundancy is the 0-1 mean dimensional overlap between a candidate
// and the tested patterns. Pure.
func redundancy(p pattern.Pattern, states []belief.State) float64 {
	if len(states) == 0 {
		return 0
	}
	total := 0
	for _, st := range states {
		total += p.SharedDimensions(st.Pattern)
	}
	return float64(total) / float64(len(states)*len(creativeDimensions))
}
