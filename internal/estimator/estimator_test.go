// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package estimator

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/pattern"
	"github.com/tomtom215/adlift/internal/stats"
)

func basePattern() pattern.Pattern {
	return pattern.Pattern{
		Hook:     "question",
		Emotion:  "urgency",
		Pacing:   "fast",
		CTA:      "shop_now",
		Pain:     "time",
		Category: "skincare",
	}
}

func baseQuery() Query {
	return Query{Hook: "question", Emotion: "urgency", Pacing: "fast", CTA: "shop_now"}
}

// feed applies n purchase-grade events with success probability p.
func feed(t *testing.T, u *belief.Updater, pat pattern.Pattern, n int, p float64, rng *rand.Rand) {
	t.Helper()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		obs, err := pattern.NewObservation(pat, pattern.EventPurchase, rng.Float64() < p,
			pattern.SourceClient, ts.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("observation: %v", err)
		}
		if _, err := u.ApplyEvent(context.Background(), obs); err != nil {
			t.Fatalf("apply event %d: %v", i, err)
		}
	}
}

func TestPredictColdStart(t *testing.T) {
	e := New(belief.NewMemoryStore(), nil, Config{})

	est, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict on empty store error: %v", err)
	}
	if est.Method != MethodColdStart {
		t.Errorf("method = %s, want cold_start", est.Method)
	}
	if est.Confidence != 0 || est.SampleSize != 0 {
		t.Errorf("cold start confidence=%v samples=%d, want zeros", est.Confidence, est.SampleSize)
	}
	if est.Interval.Lower != 0 || est.Interval.Upper != 1 {
		t.Errorf("cold start interval = %+v, want [0,1]", est.Interval)
	}
}

func TestPredictExactMatch(t *testing.T) {
	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(11))

	feed(t, u, basePattern(), 40, 0.25, rng)

	e := New(store, nil, Config{})
	est, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if est.Method != MethodExactMatch {
		t.Fatalf("method = %s, want exact_match", est.Method)
	}
	if est.SampleSize != 40 {
		t.Errorf("sample size = %d, want 40", est.SampleSize)
	}
	if !est.Interval.Contains(est.PredictedCVR) {
		t.Errorf("interval %+v does not contain prediction %v", est.Interval, est.PredictedCVR)
	}
	if est.Confidence <= 0 || est.Confidence > 1 {
		t.Errorf("confidence = %v, want (0,1]", est.Confidence)
	}
}

func TestPredictPartialMatch(t *testing.T) {
	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(12))

	// Evidence shares only hook and pacing with the query.
	p := basePattern()
	p.Emotion = "trust"
	p.CTA = "learn_more"
	feed(t, u, p, 30, 0.2, rng)

	e := New(store, nil, Config{})
	est, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if est.Method != MethodPartialMatch {
		t.Fatalf("method = %s, want partial_match", est.Method)
	}
	if est.PredictedCVR <= 0 || est.PredictedCVR >= 1 {
		t.Errorf("prediction = %v out of range", est.PredictedCVR)
	}
}

func TestPredictBayesianBackoff(t *testing.T) {
	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(13))

	// Category evidence exists, but shares no queried dimension and has
	// too little volume for partial match: only 3 samples (< MinExact/2).
	p := pattern.Pattern{Hook: "social_proof", Emotion: "trust", Pacing: "slow",
		CTA: "learn_more", Pain: "money", Category: "skincare"}
	feed(t, u, p, 3, 0.5, rng)

	e := New(store, nil, Config{})
	est, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if est.Method != MethodBayesianBackoff {
		t.Fatalf("method = %s, want bayesian_backoff", est.Method)
	}
	if est.PredictedCVR <= 0 || est.PredictedCVR >= 1 {
		t.Errorf("backoff prediction = %v out of range", est.PredictedCVR)
	}
}

// TestPredictDeterministic asserts two consecutive calls with no
// intervening events return identical results.
func TestPredictDeterministic(t *testing.T) {
	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(14))

	feed(t, u, basePattern(), 25, 0.3, rng)
	other := basePattern()
	other.Hook = "bold_claim"
	feed(t, u, other, 25, 0.1, rng)

	e := New(store, nil, Config{})
	first, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("first Predict error: %v", err)
	}
	second, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("second Predict error: %v", err)
	}

	if first != second {
		t.Errorf("consecutive predictions differ:\n  %+v\n  %+v", first, second)
	}
}

// TestPredictConverges feeds synthetic observations from a known true CVR
// and checks the prediction approaches it as evidence accumulates.
func TestPredictConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("convergence simulation skipped in short mode")
	}

	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(15))

	const trueP = 0.3
	feed(t, u, basePattern(), 2000, trueP, rng)

	e := New(store, nil, Config{})
	est, err := e.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}

	if math.Abs(est.PredictedCVR-trueP) > 0.04 {
		t.Errorf("prediction = %v, want within 0.04 of %v", est.PredictedCVR, trueP)
	}
	if !est.Interval.Contains(trueP) {
		t.Errorf("interval %+v does not contain true p %v", est.Interval, trueP)
	}
	if est.Confidence < 0.8 {
		t.Errorf("confidence = %v after 2000 samples, want >= 0.8", est.Confidence)
	}
}

func TestPredictCategoryScope(t *testing.T) {
	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(16))

	feed(t, u, basePattern(), 30, 0.3, rng)

	e := New(store, nil, Config{})
	q := baseQuery()
	q.Category = "fitness" // no fitness evidence exists

	est, err := e.Predict(context.Background(), q)
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if est.Method != MethodColdStart {
		t.Errorf("method = %s, want cold_start for empty category", est.Method)
	}
}

func TestNormalApproxStrategyInjectable(t *testing.T) {
	store := belief.NewMemoryStore()
	u := belief.NewUpdater(store, pattern.DefaultWeighting(), nil, belief.DefaultUpdaterConfig())
	rng := rand.New(rand.NewSource(17))
	feed(t, u, basePattern(), 100, 0.2, rng)

	exact := New(store, stats.BetaQuantileInterval{}, Config{})
	approx := New(store, stats.NormalApproxInterval{}, Config{})

	e1, err := exact.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	e2, err := approx.Predict(context.Background(), baseQuery())
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}

	if e1.PredictedCVR != e2.PredictedCVR {
		t.Errorf("point estimates differ across strategies: %v vs %v", e1.PredictedCVR, e2.PredictedCVR)
	}
	if math.Abs(e1.Interval.Lower-e2.Interval.Lower) > 0.02 {
		t.Errorf("strategies diverge too far on 100 samples: %+v vs %+v", e1.Interval, e2.Interval)
	}
}
