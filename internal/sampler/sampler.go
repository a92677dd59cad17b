// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package sampler ranks candidate patterns to test next using Thompson
// sampling: one Beta draw per pattern, weighted by provenance, plus an
// exploration bonus that keeps low-evidence patterns from being starved.
//
// Rankings are intentionally stochastic and re-drawn on every call. The
// random source is injected per call so tests are reproducible; callers
// in production pass a time-seeded source.
package sampler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/pattern"
)

// Recommendation is one ranked pattern suggestion.
type Recommendation struct {
	// Pattern is the suggested pattern to test.
	Pattern pattern.Pattern `json:"pattern"`

	// Fingerprint is the pattern identity hash.
	Fingerprint string `json:"fingerprint"`

	// SampledScore is the final ranking score for this round:
	// draw * weight + exploration bonus (similarity-scaled if borrowed).
	SampledScore float64 `json:"sampled_score"`

	// EstimatedCVR is the belief mean (similarity-scaled if borrowed).
	EstimatedCVR float64 `json:"estimated_cvr"`

	// SampleSize is the evidence volume behind the pattern.
	SampleSize int64 `json:"sample_size"`

	// Uncertainty is 0-1: 1.0 for untested, approaching 0 with evidence.
	Uncertainty float64 `json:"uncertainty"`

	// Rank is the 1-based position in this round's ranking.
	Rank int `json:"rank"`

	// Reasoning is a human-readable explanation of the placement.
	Reasoning string `json:"reasoning"`

	// SourceCategory is set when the pattern was borrowed from a similar
	// category; empty for native patterns.
	SourceCategory string `json:"source_category,omitempty"`

	// Similarity is the category similarity used to scale borrowed
	// estimates; 1.0 for native patterns.
	Similarity float64 `json:"similarity"`
}

// SimilarityGraph is the static weighted category similarity map,
// consulted only when a target category's pattern set is too sparse.
type SimilarityGraph map[string]map[string]float64

// MostSimilar returns up to limit categories ordered by descending
// similarity to the target.
func (g SimilarityGraph) MostSimilar(category string, limit int) []Neighbor {
	edges := g[category]
	out := make([]Neighbor, 0, len(edges))
	for cat, sim := range edges {
		if sim > 0 && cat != category {
			out = append(out, Neighbor{Category: cat, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Neighbor is one similar-category edge.
type Neighbor struct {
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}

// Config holds Thompson sampling policy.
type Config struct {
	// ExplorationCap is the sample size above which the exploration
	// bonus reaches zero.
	ExplorationCap int64 `koanf:"exploration_cap" validate:"gte=1"`

	// BonusMax is the exploration bonus granted to a fully untested
	// pattern; it decays linearly to zero at ExplorationCap samples.
	BonusMax float64 `koanf:"bonus_max" validate:"gte=0"`

	// MinPatterns is the category pattern count below which the sampler
	// borrows candidates from similar categories.
	MinPatterns int `koanf:"min_patterns" validate:"gte=0"`

	// MaxNeighbors bounds how many similar categories are borrowed from.
	MaxNeighbors int `koanf:"max_neighbors" validate:"gte=1"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ExplorationCap: 30,
		BonusMax:       0.15,
		MinPatterns:    5,
		MaxNeighbors:   3,
	}
}

// Sampler draws Thompson-sampled rankings from the belief store.
type Sampler struct {
	store belief.Store
	graph SimilarityGraph
	cfg   Config
}

// New creates a sampler. Zero config fields receive defaults.
func New(store belief.Store, graph SimilarityGraph, cfg Config) *Sampler {
	def := DefaultConfig()
	if cfg.ExplorationCap == 0 {
		cfg.ExplorationCap = def.ExplorationCap
	}
	if cfg.BonusMax == 0 {
		cfg.BonusMax = def.BonusMax
	}
	if cfg.MinPatterns == 0 {
		cfg.MinPatterns = def.MinPatterns
	}
	if cfg.MaxNeighbors == 0 {
		cfg.MaxNeighbors = def.MaxNeighbors
	}
	return &Sampler{store: store, graph: graph, cfg: cfg}
}

// SelectNext returns up to n patterns ranked by this round's Thompson
// draws. Every call re-draws, so consecutive calls produce different
// rankings with high probability.
//
// Zero known patterns is not an error: the fixed seed-pattern list for
// the category is returned with sample_size 0 and uncertainty 1.0. A
// sparse category (fewer than MinPatterns) is supplemented with patterns
// borrowed from the most-similar categories, their estimates scaled by
// the similarity coefficient and provenance attached.
func (s *Sampler) SelectNext(ctx context.Context, category string, n int, rng *rand.Rand) ([]Recommendation, error) {
	if n <= 0 {
		n = 5
	}

	states, err := s.store.ListByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("select next: %w", err)
	}

	if len(states) == 0 {
		metrics.RecommendationRounds.WithLabelValues("cold_start").Inc()
		return coldStartSeeds(category, n), nil
	}

	mode := "standard"
	candidates := make([]Recommendation, 0, len(states)+4)
	for _, st := range states {
		candidates = append(candidates, s.draw(st, rng, "", 1.0))
	}

	if len(states) < s.cfg.MinPatterns && s.graph != nil {
		mode = "cross_category"
		native := make(map[string]struct{}, len(states))
		for _, st := range states {
			native[st.Fingerprint] = struct{}{}
		}
		for _, nb := range s.graph.MostSimilar(category, s.cfg.MaxNeighbors) {
			borrowed, err := s.store.ListByCategory(ctx, nb.Category)
			if err != nil {
				return nil, fmt.Errorf("borrow from %s: %w", nb.Category, err)
			}
			for _, st := range borrowed {
				if _, dup := native[st.Fingerprint]; dup {
					continue
				}
				candidates = append(candidates, s.draw(st, rng, nb.Category, nb.Similarity))
			}
		}
	}
	metrics.RecommendationRounds.WithLabelValues(mode).Inc()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].SampledScore > candidates[j].SampledScore
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates, nil
}

// draw produces one Thompson draw for a state. Borrowed states have
// their draw and estimate scaled by the category similarity.
func (s *Sampler) draw(st belief.State, rng *rand.Rand, sourceCategory string, similarity float64) Recommendation {
	metrics.ThompsonDrawsTotal.Inc()

	score := st.Distribution().Sample(rng) * st.Weight
	bonus := 0.0
	if st.SampleSize < s.cfg.ExplorationCap {
		bonus = s.cfg.BonusMax * (1 - float64(st.SampleSize)/float64(s.cfg.ExplorationCap))
	}

	return Recommendation{
		Pattern:        st.Pattern,
		Fingerprint:    st.Fingerprint,
		SampledScore:   score*similarity + bonus,
		EstimatedCVR:   st.Mean() * similarity,
		SampleSize:     st.SampleSize,
		Uncertainty:    st.Uncertainty(),
		Reasoning:      reasoning(st, sourceCategory, similarity),
		SourceCategory: sourceCategory,
		Similarity:     similarity,
	}
}

// reasoning renders the human-readable placement explanation from
// sample-size and mean-CVR thresholds.
func reasoning(st belief.State, sourceCategory string, similarity float64) string {
	var base string
	switch {
	case st.SampleSize == 0:
		base = "untested pattern, pure exploration"
	case st.SampleSize < 10:
		base = fmt.Sprintf("early signal only (%d samples), exploration bonus applied", st.SampleSize)
	case st.SampleSize < 100:
		base = fmt.Sprintf("promising but under-tested: %.1f%% cvr over %d samples", st.Mean()*100, st.SampleSize)
	default:
		base = fmt.Sprintf("proven performer: %.1f%% cvr over %d samples", st.Mean()*100, st.SampleSize)
	}
	if st.Source == pattern.SourceBenchmark {
		base += " (market benchmark)"
	}
	if sourceCategory != "" {
		base += fmt.Sprintf("; borrowed from %s (similarity %.2f)", sourceCategory, similarity)
	}
	return base
}

// seedCombos is the fixed cold-start seed list: broadly applicable
// hook/emotion/pacing/cta/pain combinations to bootstrap a category
// with zero history.
var seedCombos = []pattern.Pattern{
	{Hook: "question", Emotion: "curiosity", Pacing: "fast", CTA: "learn_more", Pain: "time"},
	{Hook: "problem", Emotion: "urgency", Pacing: "fast", CTA: "shop_now", Pain: "money"},
	{Hook: "social_proof", Emotion: "trust", Pacing: "medium", CTA: "try_free", Pain: "confidence"},
	{Hook: "before_after", Emotion: "excitement", Pacing: "medium", CTA: "shop_now", Pain: "status"},
	{Hook: "bold_claim", Emotion: "urgency", Pacing: "fast", CTA: "limited_offer", Pain: "convenience"},
	{Hook: "curiosity", Emotion: "belonging", Pacing: "slow", CTA: "sign_up", Pain: "health"},
}

// coldStartSeeds returns the fixed seed-pattern list for a category.
func coldStartSeeds(category string, n int) []Recommendation {
	out := make([]Recommendation, 0, n)
	for i, combo := range seedCombos {
		if i >= n {
			break
		}
		p := combo
		p.Category = category
		out = append(out, Recommendation{
			Pattern:      p,
			Fingerprint:  p.Fingerprint(),
			SampledScore: 0,
			EstimatedCVR: 0,
			SampleSize:   0,
			Uncertainty:  1.0,
			Rank:         i + 1,
			Reasoning:    "cold start: seed pattern, no category history yet",
			Similarity:   1.0,
		})
	}
	return out
}
