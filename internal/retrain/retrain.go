// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package retrain runs the periodic consistency check: does the current
// belief state actually predict what happened? Each cycle replays the
// recent observation window per category, compares the estimator's
// predictions against realized conversion rates, and records a report
// with the mean absolute error and credible-interval hit rate.
//
// The retrainer is a suture.Service and is idempotent: windows are
// aligned to the cycle interval, so re-running a cycle reproduces the
// same report instead of double-recording.
package retrain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/estimator"
	"github.com/tomtom215/adlift/internal/history"
	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/pattern"
)

// Trend verdicts comparing a report against the previous cycle.
const (
	TrendImproving = "improving"
	TrendDegrading = "degrading"
	TrendFlat      = "flat"
	TrendBaseline  = "baseline"
)

// Report is one category's evaluation for one window.
type Report struct {
	// Category is the evaluated product category.
	Category string `json:"category"`

	// WindowStart and WindowEnd bound the evaluated observations.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	// Patterns is how many patterns had enough window evidence to score.
	Patterns int `json:"patterns"`

	// Observations is the total window event count behind the report.
	Observations int `json:"observations"`

	// MAE is the mean absolute error between predicted and realized CVR.
	MAE float64 `json:"mae"`

	// HitRate is the share of realized CVRs inside the predicted
	// credible interval.
	HitRate float64 `json:"hit_rate"`

	// Trend compares this MAE against the previous cycle's.
	Trend string `json:"trend"`
}

// Reporter consumes retrain reports.
type Reporter interface {
	Record(ctx context.Context, r Report) error
}

// Config holds retrainer policy.
type Config struct {
	// Interval is the cycle period; windows align to it.
	Interval time.Duration `koanf:"interval"`

	// Window is how far back each cycle evaluates.
	Window time.Duration `koanf:"window"`

	// BatchSize caps observations read per category per cycle.
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// MinPatternSamples is the window evidence floor per pattern.
	MinPatternSamples int `koanf:"min_pattern_samples" validate:"gte=1"`

	// Epsilon is the MAE change below which the trend is flat.
	Epsilon float64 `koanf:"epsilon" validate:"gte=0"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:          time.Hour,
		Window:            24 * time.Hour,
		BatchSize:         5000,
		MinPatternSamples: 5,
		Epsilon:           0.002,
	}
}

// Retrainer is the periodic evaluation service.
type Retrainer struct {
	store    belief.Store
	log      history.Store
	est      *estimator.Estimator
	reporter Reporter
	locks    *Locks
	cfg      Config

	// now is injected for deterministic tests.
	now func() time.Time

	lastMAE map[string]float64
}

// New creates a retrainer. Zero config fields receive defaults. The
// locks registry must be the same one bulk re-seed paths use, so a cycle
// and a re-seed of one category cannot interleave.
func New(store belief.Store, log history.Store, est *estimator.Estimator, reporter Reporter, locks *Locks, cfg Config) *Retrainer {
	def := DefaultConfig()
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Window == 0 {
		cfg.Window = def.Window
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MinPatternSamples == 0 {
		cfg.MinPatternSamples = def.MinPatternSamples
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &Retrainer{
		store:    store,
		log:      log,
		est:      est,
		reporter: reporter,
		locks:    locks,
		cfg:      cfg,
		now:      time.Now,
		lastMAE:  make(map[string]float64),
	}
}

// Serve implements suture.Service: run one cycle per interval until the
// context is canceled. A failed cycle is logged and retried next tick
// rather than crashing the service.
func (r *Retrainer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			metrics.RetrainRunsTotal.WithLabelValues("error").Inc()
			logging.Error().Err(err).Msg("retrain cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce evaluates every known category for the current aligned window.
func (r *Retrainer) RunOnce(ctx context.Context) error {
	end := r.now().Truncate(r.cfg.Interval)
	start := end.Add(-r.cfg.Window)

	categories, err := r.categories(ctx)
	if err != nil {
		return fmt.Errorf("retrain: %w", err)
	}

	for _, cat := range categories {
		report, ok, err := r.evaluateCategory(ctx, cat, start, end)
		if err != nil {
			return fmt.Errorf("retrain %s: %w", cat, err)
		}
		if !ok {
			continue
		}
		if err := r.reporter.Record(ctx, report); err != nil {
			return fmt.Errorf("record retrain report for %s: %w", cat, err)
		}
		metrics.RetrainPredictionError.WithLabelValues(cat).Set(report.MAE)
		metrics.RetrainHitRate.WithLabelValues(cat).Set(report.HitRate)
		logging.Info().
			Str("category", cat).
			Int("patterns", report.Patterns).
			Float64("mae", report.MAE).
			Float64("hit_rate", report.HitRate).
			Str("trend", report.Trend).
			Msg("retrain cycle evaluated")
	}
	metrics.RetrainRunsTotal.WithLabelValues("ok").Inc()
	return nil
}

// categories lists every category present in the belief store, sorted
// for deterministic cycle order.
func (r *Retrainer) categories(ctx context.Context) ([]string, error) {
	snapshot, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, st := range snapshot {
		seen[st.Pattern.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out, nil
}

// windowedCVR is one pattern's realized window performance. Pure.
type windowedCVR struct {
	pattern  pattern.Pattern
	events   int
	realized float64
}

// groupRealized groups window observations by fingerprint and computes
// realized CVRs, keeping only patterns with enough window evidence. Pure.
func groupRealized(obs []pattern.Observation, minSamples int) []windowedCVR {
	type agg struct {
		p       pattern.Pattern
		n, wins int
	}
	byFP := make(map[string]*agg)
	for _, o := range obs {
		fp := o.Pattern.Fingerprint()
		a, ok := byFP[fp]
		if !ok {
			a = &agg{p: o.Pattern}
			byFP[fp] = a
		}
		a.n++
		if o.Success {
			a.wins++
		}
	}

	fps := make([]string, 0, len(byFP))
	for fp, a := range byFP {
		if a.n >= minSamples {
			fps = append(fps, fp)
		}
	}
	sort.Strings(fps)

	out := make([]windowedCVR, 0, len(fps))
	for _, fp := range fps {
		a := byFP[fp]
		out = append(out, windowedCVR{
			pattern:  a.p,
			events:   a.n,
			realized: float64(a.wins) / float64(a.n),
		})
	}
	return out
}

// evaluateCategory scores one category under its category lock. Returns
// ok=false when the window holds too little evidence to report on.
func (r *Retrainer) evaluateCategory(ctx context.Context, category string, start, end time.Time) (Report, bool, error) {
	unlock := r.locks.Lock(category)
	defer unlock()

	obs, err := r.log.ByCategory(ctx, category, start, r.cfg.BatchSize)
	if err != nil {
		return Report{}, false, err
	}
	// Window alignment: drop anything at or past the aligned end so a
	// re-run of the same window sees the same evidence.
	trimmed := obs[:0:len(obs)]
	for _, o := range obs {
		if o.Timestamp.Before(end) {
			trimmed = append(trimmed, o)
		}
	}

	scored := groupRealized(trimmed, r.cfg.MinPatternSamples)
	if len(scored) == 0 {
		return Report{}, false, nil
	}

	var (
		absErr float64
		hits   int
		events int
	)
	for _, w := range scored {
		est, err := r.est.Predict(ctx, estimator.Query{
			Hook:     w.pattern.Hook,
			Emotion:  w.pattern.Emotion,
			Pacing:   w.pattern.Pacing,
			CTA:      w.pattern.CTA,
			Category: category,
		})
		if err != nil {
			return Report{}, false, err
		}
		absErr += math.Abs(est.PredictedCVR - w.realized)
		if est.Interval.Contains(w.realized) {
			hits++
		}
		events += w.events
	}

	report := Report{
		Category:     category,
		WindowStart:  start,
		WindowEnd:    end,
		Patterns:     len(scored),
		Observations: events,
		MAE:          absErr / float64(len(scored)),
		HitRate:      float64(hits) / float64(len(scored)),
	}
	report.Trend = r.trend(category, report.MAE)
	return report, true, nil
}

// trend compares the category's MAE against its previous cycle.
func (r *Retrainer) trend(category string, mae float64) string {
	prev, ok := r.lastMAE[category]
	r.lastMAE[category] = mae
	if !ok {
		return TrendBaseline
	}
	switch {
	case mae < prev-r.cfg.Epsilon:
		return TrendImproving
	case mae > prev+r.cfg.Epsilon:
		return TrendDegrading
	default:
		return TrendFlat
	}
}
