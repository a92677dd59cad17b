// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

// Package engine is the facade over the pattern-performance components:
// one place the host wires up and the only surface callers touch.
// Request paths (webhook handlers, prediction UIs) call into it
// directly; the ingest pipeline and the retrainer drive the same
// components as services.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/estimator"
	"github.com/tomtom215/adlift/internal/explore"
	"github.com/tomtom215/adlift/internal/gate"
	"github.com/tomtom215/adlift/internal/history"
	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/pattern"
	"github.com/tomtom215/adlift/internal/retrain"
	"github.com/tomtom215/adlift/internal/sampler"
)

// Engine bundles the belief store and every analyzer behind one API.
type Engine struct {
	store      belief.Store
	log        history.Store
	updater    *belief.Updater
	estimator  *estimator.Estimator
	sampler    *sampler.Sampler
	gate       *gate.Gate
	dispatcher *gate.Dispatcher
	gaps       *explore.GapAnalyzer
	trends     *explore.TrendClassifier
	uniqueness *explore.UniquenessScorer
	locks      *retrain.Locks

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Deps carries the wired components. Rand is optional; when nil a
// time-seeded source is used. Tests inject a fixed-seed source for
// reproducible rankings.
type Deps struct {
	Store      belief.Store
	Log        history.Store
	Updater    *belief.Updater
	Estimator  *estimator.Estimator
	Sampler    *sampler.Sampler
	Gate       *gate.Gate
	Dispatcher *gate.Dispatcher
	Gaps       *explore.GapAnalyzer
	Trends     *explore.TrendClassifier
	Uniqueness *explore.UniquenessScorer
	Locks      *retrain.Locks
	Rand       *rand.Rand
}

// New assembles the engine.
func New(d Deps) *Engine {
	rng := d.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // sampling, not crypto
	}
	locks := d.Locks
	if locks == nil {
		locks = retrain.NewLocks()
	}
	return &Engine{
		store:      d.Store,
		log:        d.Log,
		updater:    d.Updater,
		estimator:  d.Estimator,
		sampler:    d.Sampler,
		gate:       d.Gate,
		dispatcher: d.Dispatcher,
		gaps:       d.Gaps,
		trends:     d.Trends,
		uniqueness: d.Uniqueness,
		locks:      locks,
		rng:        rng,
	}
}

// Locks exposes the category lock registry shared with the retrainer.
func (e *Engine) Locks() *retrain.Locks { return e.locks }

// ApplyEvent applies one observation to the pattern's belief, appends
// it to the observation log and evaluates the significance gate,
// dispatching a trigger when it fires. Returns the updated state.
func (e *Engine) ApplyEvent(ctx context.Context, obs pattern.Observation) (belief.State, error) {
	state, err := e.updater.ApplyEvent(ctx, obs)
	if err != nil {
		return belief.State{}, err
	}
	if err := e.log.Append(ctx, obs); err != nil {
		// The belief update already landed; the log is advisory.
		logger := logging.Ctx(ctx)
		logger.Warn().Err(err).Str("observation_id", obs.ID).Msg("observation log append failed")
	}

	decision := e.gate.Decide(gate.Metrics{
		Pattern:     state.Pattern,
		IsBenchmark: state.Source == pattern.SourceBenchmark,
		Impressions: state.TotalClicks,
		Conversions: state.TotalConversions,
	})
	if decision.Trigger && e.dispatcher != nil {
		e.dispatcher.Dispatch(ctx, gate.Trigger{
			Fingerprint: state.Fingerprint,
			Pattern:     state.Pattern,
			Decision:    decision,
			At:          obs.Timestamp,
		})
	}
	return state, nil
}

// Predict resolves a CVR estimate for an attribute combination.
func (e *Engine) Predict(ctx context.Context, q estimator.Query) (estimator.Estimate, error) {
	return e.estimator.Predict(ctx, q)
}

// SelectNext returns this round's Thompson-sampled test recommendations.
func (e *Engine) SelectNext(ctx context.Context, category string, n int) ([]sampler.Recommendation, error) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.sampler.SelectNext(ctx, category, n, e.rng)
}

// Decide evaluates the significance gate for externally supplied
// metrics without mutating anything.
func (e *Engine) Decide(m gate.Metrics) gate.Decision {
	return e.gate.Decide(m)
}

// FindGaps lists untested combinations worth testing for a category.
func (e *Engine) FindGaps(ctx context.Context, category string) ([]explore.Gap, error) {
	return e.gaps.FindGaps(ctx, category)
}

// ClassifyTrend labels a pattern STABLE, TREND or UNCERTAIN.
func (e *Engine) ClassifyTrend(ctx context.Context, fingerprint string) (explore.TrendReport, error) {
	return e.trends.Classify(ctx, fingerprint)
}

// ScoreUniqueness rates a candidate creative against the category's
// tested history and the public reference corpus.
func (e *Engine) ScoreUniqueness(ctx context.Context, cand explore.Candidate, ref explore.Reference) (explore.UniquenessReport, error) {
	own, err := e.store.ListByCategory(ctx, cand.Pattern.Category)
	if err != nil {
		return explore.UniquenessReport{}, fmt.Errorf("score uniqueness: %w", err)
	}
	return e.uniqueness.Score(cand, own, ref), nil
}

// SeedBenchmarks bulk-creates benchmark beliefs for a category under
// the category lock, so a concurrent retrain cycle sees either none or
// all of the seeds. Idempotent: existing states are left untouched.
func (e *Engine) SeedBenchmarks(ctx context.Context, category string, patterns []pattern.Pattern, now time.Time) (int, error) {
	unlock := e.locks.Lock(category)
	defer unlock()

	created := 0
	for _, p := range patterns {
		if p.Category != category {
			return created, fmt.Errorf("seed benchmarks: pattern %s is not in category %s", p, category)
		}
		st, err := e.updater.Seed(ctx, p, pattern.SourceBenchmark, now)
		if err != nil {
			return created, err
		}
		if st.CreatedAt.Equal(now) {
			created++
		}
	}
	return created, nil
}

// Status summarizes the engine's persisted state.
type Status struct {
	// Patterns is the total distinct pattern count.
	Patterns int `json:"patterns"`

	// Benchmarks is how many patterns are benchmark-sourced.
	Benchmarks int `json:"benchmarks"`

	// Categories is the distinct category count.
	Categories int `json:"categories"`

	// Observations is the total evidence volume across patterns.
	Observations int64 `json:"observations"`
}

// Status reports aggregate counts from the belief store.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("status: %w", err)
	}
	cats := make(map[string]struct{})
	s := Status{Patterns: len(snapshot)}
	for _, st := range snapshot {
		cats[st.Pattern.Category] = struct{}{}
		s.Observations += st.SampleSize
		if st.Source == pattern.SourceBenchmark {
			s.Benchmarks++
		}
	}
	s.Categories = len(cats)
	return s, nil
}
