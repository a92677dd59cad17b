// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package estimator predicts conversion rate for a creative attribute
// combination before any spend, with a defensible credible interval.
//
// Resolution runs over a point-in-time snapshot of the belief store and
// is fully deterministic: exact match first, then partial match over
// patterns sharing at least one dimension, then Bayesian backoff onto
// category-level and single-dimension evidence. An empty store yields an
// explicit cold-start estimate, never an error.
package estimator

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/stats"
)

// Method identifies how an estimate was resolved.
type Method int

const (
	// MethodExactMatch used a well-sampled belief for the exact combination.
	MethodExactMatch Method = iota
	// MethodPartialMatch aggregated beliefs sharing at least one dimension.
	MethodPartialMatch
	// MethodBayesianBackoff combined category and single-dimension evidence.
	MethodBayesianBackoff
	// MethodColdStart means the store held no usable evidence at all.
	MethodColdStart
)

// String returns the wire name of the method.
func (m Method) String() string {
	switch m {
	case MethodExactMatch:
		return "exact_match"
	case MethodPartialMatch:
		return "partial_match"
	case MethodBayesianBackoff:
		return "bayesian_backoff"
	case MethodColdStart:
		return "cold_start"
	default:
		return "unknown"
	}
}

// Query names the creative attribute combination to predict.
// Category is optional; when set, evidence is scoped to that category.
type Query struct {
	Hook     string `json:"hook_type"`
	Emotion  string `json:"emotion"`
	Pacing   string `json:"pacing"`
	CTA      string `json:"cta_type"`
	Category string `json:"product_category,omitempty"`
}

// Estimate is the prediction output.
type Estimate struct {
	// PredictedCVR is the point estimate (posterior mean).
	PredictedCVR float64 `json:"predicted_cvr"`

	// Interval is the credible interval at the configured level.
	Interval stats.Interval `json:"interval"`

	// SampleSize is the evidence volume behind the estimate.
	SampleSize int64 `json:"sample_size"`

	// Confidence blends sample volume and interval width into [0, 1].
	Confidence float64 `json:"confidence_score"`

	// Method records how the estimate was resolved.
	Method Method `json:"method"`
}

// Config holds estimator policy.
type Config struct {
	// MinExact is the minimum sample size for an exact match.
	MinExact int64 `koanf:"min_exact" validate:"gte=1"`

	// Level is the credible interval level (e.g. 0.95).
	Level float64 `koanf:"interval_level" validate:"gt=0,lt=1"`

	// ConfidenceSaturation is the sample size at which sample-volume
	// confidence saturates.
	ConfidenceSaturation int64 `koanf:"confidence_saturation" validate:"gte=1"`

	// MaxCIWidth normalizes interval width into confidence: an interval
	// this wide (or wider) contributes zero confidence.
	MaxCIWidth float64 `koanf:"max_ci_width" validate:"gt=0"`

	// CategoryPriorStrength is the pseudo-count mass granted to the
	// category-wide prior during backoff.
	CategoryPriorStrength float64 `koanf:"category_prior_strength" validate:"gt=0"`

	// DimensionEvidenceCap bounds the pseudo-count mass any single
	// dimension contributes during backoff.
	DimensionEvidenceCap float64 `koanf:"dimension_evidence_cap" validate:"gt=0"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MinExact:              10,
		Level:                 0.95,
		ConfidenceSaturation:  50,
		MaxCIWidth:            0.25,
		CategoryPriorStrength: 10,
		DimensionEvidenceCap:  20,
	}
}

// Estimator resolves CVR predictions against the belief store.
type Estimator struct {
	store    belief.Store
	strategy stats.IntervalStrategy
	cfg      Config
}

// New creates an estimator. Zero config fields receive defaults.
func New(store belief.Store, strategy stats.IntervalStrategy, cfg Config) *Estimator {
	def := DefaultConfig()
	if cfg.MinExact == 0 {
		cfg.MinExact = def.MinExact
	}
	if cfg.Level == 0 {
		cfg.Level = def.Level
	}
	if cfg.ConfidenceSaturation == 0 {
		cfg.ConfidenceSaturation = def.ConfidenceSaturation
	}
	if cfg.MaxCIWidth == 0 {
		cfg.MaxCIWidth = def.MaxCIWidth
	}
	if cfg.CategoryPriorStrength == 0 {
		cfg.CategoryPriorStrength = def.CategoryPriorStrength
	}
	if cfg.DimensionEvidenceCap == 0 {
		cfg.DimensionEvidenceCap = def.DimensionEvidenceCap
	}
	if strategy == nil {
		strategy = stats.BetaQuantileInterval{}
	}
	return &Estimator{store: store, strategy: strategy, cfg: cfg}
}

// Predict resolves a CVR estimate for the attribute combination.
// Deterministic for a fixed store state: no randomness, and evidence is
// folded in a canonical order.
func (e *Estimator) Predict(ctx context.Context, q Query) (Estimate, error) {
	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return Estimate{}, fmt.Errorf("predict: %w", err)
	}

	// Canonical order keeps floating-point accumulation identical
	// across calls regardless of map iteration order in the store.
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Fingerprint < snapshot[j].Fingerprint
	})

	if q.Category != "" {
		snapshot = filterCategory(snapshot, q.Category)
	}

	if len(snapshot) == 0 {
		metrics.PredictionsTotal.WithLabelValues(MethodColdStart.String()).Inc()
		return e.coldStart(), nil
	}

	if est, ok := e.exactMatch(snapshot, q); ok {
		metrics.PredictionsTotal.WithLabelValues(MethodExactMatch.String()).Inc()
		return est, nil
	}
	if est, ok := e.partialMatch(snapshot, q); ok {
		metrics.PredictionsTotal.WithLabelValues(MethodPartialMatch.String()).Inc()
		return est, nil
	}

	est := e.bayesianBackoff(snapshot, q)
	metrics.PredictionsTotal.WithLabelValues(est.Method.String()).Inc()
	return est, nil
}

// coldStart is the explicit no-data result: zero prediction, the full
// interval, zero confidence. Callers render it as "not enough data yet".
func (e *Estimator) coldStart() Estimate {
	return Estimate{
		PredictedCVR: 0,
		Interval:     stats.Interval{Lower: 0, Upper: 1},
		SampleSize:   0,
		Confidence:   0,
		Method:       MethodColdStart,
	}
}

// exactMatch aggregates states matching all four queried dimensions.
func (e *Estimator) exactMatch(snapshot []belief.State, q Query) (Estimate, bool) {
	var alpha, beta float64
	var samples int64

	for _, st := range snapshot {
		if matchCount(st, q) == 4 {
			alpha += st.Alpha
			beta += st.Beta
			samples += st.SampleSize
		}
	}

	if samples < e.cfg.MinExact || alpha+beta == 0 {
		return Estimate{}, false
	}
	return e.finish(stats.Beta{Alpha: alpha, Beta: beta}, samples, MethodExactMatch), true
}

// partialMatch aggregates states sharing at least one dimension, each
// weighted by (#matching dimensions x clicks).
func (e *Estimator) partialMatch(snapshot []belief.State, q Query) (Estimate, bool) {
	var weightedMean, totalWeight float64
	var samples int64

	for _, st := range snapshot {
		matches := matchCount(st, q)
		if matches == 0 {
			continue
		}
		w := float64(matches) * float64(st.TotalClicks+1)
		weightedMean += st.Mean() * w
		totalWeight += w
		samples += st.SampleSize
	}

	if totalWeight == 0 || samples < e.cfg.MinExact/2 {
		return Estimate{}, false
	}

	mean := weightedMean / totalWeight
	// Express the aggregate as an equivalent Beta with the aggregate
	// sample size as pseudo-count mass, so the interval honestly
	// reflects how much evidence backs the blend.
	k := float64(samples)
	d := stats.Beta{Alpha: mean*k + 1, Beta: (1-mean)*k + 1}
	return e.finish(d, samples, MethodPartialMatch), true
}

// bayesianBackoff combines a category-wide prior with whatever
// single-dimension evidence exists (hook-only, emotion-only, pacing-only)
// via posterior pseudo-count accumulation.
func (e *Estimator) bayesianBackoff(snapshot []belief.State, q Query) Estimate {
	catMean, catSamples := aggregateMean(snapshot, func(belief.State) bool { return true })
	if catSamples == 0 {
		return e.coldStart()
	}

	alpha := catMean * e.cfg.CategoryPriorStrength
	beta := (1 - catMean) * e.cfg.CategoryPriorStrength
	samples := catSamples

	singles := []func(belief.State) bool{
		func(st belief.State) bool { return st.Pattern.Hook == q.Hook },
		func(st belief.State) bool { return st.Pattern.Emotion == q.Emotion },
		func(st belief.State) bool { return st.Pattern.Pacing == q.Pacing },
	}
	for _, match := range singles {
		mean, n := aggregateMean(snapshot, match)
		if n == 0 {
			continue
		}
		k := float64(n)
		if k > e.cfg.DimensionEvidenceCap {
			k = e.cfg.DimensionEvidenceCap
		}
		alpha += mean * k
		beta += (1 - mean) * k
	}

	if alpha <= 0 {
		alpha = 1e-9
	}
	if beta <= 0 {
		beta = 1e-9
	}
	return e.finish(stats.Beta{Alpha: alpha, Beta: beta}, samples, MethodBayesianBackoff)
}

// finish computes the interval and blended confidence for a posterior.
func (e *Estimator) finish(d stats.Beta, samples int64, method Method) Estimate {
	interval := e.strategy.Interval(d, e.cfg.Level)

	sampleConf := float64(samples) / float64(e.cfg.ConfidenceSaturation)
	if sampleConf > 1 {
		sampleConf = 1
	}
	widthConf := 1 - interval.Width()/e.cfg.MaxCIWidth
	if widthConf < 0 {
		widthConf = 0
	}

	conf := 0.6*sampleConf + 0.4*widthConf
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return Estimate{
		PredictedCVR: d.Mean(),
		Interval:     interval,
		SampleSize:   samples,
		Confidence:   conf,
		Method:       method,
	}
}

// matchCount counts queried dimensions a state matches (0-4).
func matchCount(st belief.State, q Query) int {
	n := 0
	if st.Pattern.Hook == q.Hook {
		n++
	}
	if st.Pattern.Emotion == q.Emotion {
		n++
	}
	if st.Pattern.Pacing == q.Pacing {
		n++
	}
	if st.Pattern.CTA == q.CTA {
		n++
	}
	return n
}

// aggregateMean returns the sample-weighted mean CVR and total samples of
// states accepted by the filter.
func aggregateMean(snapshot []belief.State, accept func(belief.State) bool) (float64, int64) {
	var sum, weight float64
	var samples int64
	for _, st := range snapshot {
		if !accept(st) {
			continue
		}
		w := float64(st.SampleSize + 1)
		sum += st.Mean() * w
		weight += w
		samples += st.SampleSize
	}
	if weight == 0 {
		return 0, 0
	}
	return sum / weight, samples
}

// filterCategory keeps states in the given category.
func filterCategory(snapshot []belief.State, category string) []belief.State {
	out := snapshot[:0]
	for _, st := range snapshot {
		if st.Pattern.Category == category {
			out = append(out, st)
		}
	}
	return out
}
