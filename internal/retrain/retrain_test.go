// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package retrain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/estimator"
	"github.com/tomtom215/adlift/internal/history"
	"github.com/tomtom215/adlift/internal/pattern"
)

var retrainPattern = pattern.Pattern{
	Hook: "question", Emotion: "urgency", Pacing: "fast",
	CTA: "shop_now", Pain: "time", Category: "skincare",
}

// fixture seeds a well-observed pattern (belief mean ~30%) and a window
// of observations realizing ~30%, so predictions should line up.
func fixture(t *testing.T, now time.Time) (*Retrainer, *MemoryReporter) {
	t.Helper()
	store := belief.NewMemoryStore()
	st := belief.State{
		Fingerprint:      retrainPattern.Fingerprint(),
		Pattern:          retrainPattern,
		Alpha:            31,
		Beta:             71,
		Weight:           1.0,
		Source:           pattern.SourceClient,
		SampleSize:       100,
		TotalClicks:      100,
		TotalConversions: 30,
		CreatedAt:        now.Add(-30 * 24 * time.Hour),
		UpdatedAt:        now,
	}
	st.AvgCVR = st.Mean()
	if _, err := store.Put(context.Background(), st, 0); err != nil {
		t.Fatalf("seed belief: %v", err)
	}

	log := history.NewMemoryStore()
	windowEnd := now.Truncate(time.Hour)
	for i := 0; i < 20; i++ {
		o := pattern.Observation{
			ID:        fmt.Sprintf("rt-%d", i),
			Pattern:   retrainPattern,
			EventType: "click",
			Success:   i%10 < 3, // realized 30%
			Source:    pattern.SourceClient,
			Timestamp: windowEnd.Add(-time.Duration(i+1) * time.Minute),
		}
		if err := log.Append(context.Background(), o); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	reporter := NewMemoryReporter()
	est := estimator.New(store, nil, estimator.Config{})
	r := New(store, log, est, reporter, NewLocks(), Config{})
	r.now = func() time.Time { return now }
	return r, reporter
}

func TestRunOnceProducesAccurateReport(t *testing.T) {
	now := time.Date(2026, 3, 21, 12, 34, 0, 0, time.UTC)
	r, reporter := fixture(t, now)

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	reports := reporter.Reports()
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	rep := reports[0]
	if rep.Category != "skincare" {
		t.Errorf("category = %q", rep.Category)
	}
	if rep.Patterns != 1 || rep.Observations != 20 {
		t.Errorf("patterns/observations = %d/%d, want 1/20", rep.Patterns, rep.Observations)
	}
	// Belief mean ~30.4%, realized 30%: tight agreement.
	if rep.MAE > 0.02 {
		t.Errorf("MAE = %.4f, want < 0.02 with matching evidence", rep.MAE)
	}
	if rep.HitRate != 1 {
		t.Errorf("hit rate = %v, want 1 with realized CVR inside the interval", rep.HitRate)
	}
	if rep.Trend != TrendBaseline {
		t.Errorf("first cycle trend = %q, want baseline", rep.Trend)
	}
	if !rep.WindowEnd.Equal(now.Truncate(time.Hour)) {
		t.Errorf("window end = %v, want aligned to the hour", rep.WindowEnd)
	}
}

func TestRunOnceIdempotentWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 21, 12, 34, 0, 0, time.UTC)
	r, reporter := fixture(t, now)

	for i := 0; i < 3; i++ {
		if err := r.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce %d: %v", i, err)
		}
	}

	if n := len(reporter.Reports()); n != 1 {
		t.Errorf("got %d reports after 3 runs of one window, want 1", n)
	}
}

func TestRunOnceSkipsThinWindows(t *testing.T) {
	now := time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)
	store := belief.NewMemoryStore()
	st := belief.State{
		Fingerprint: retrainPattern.Fingerprint(),
		Pattern:     retrainPattern,
		Alpha:       2, Beta: 2,
		Weight:    1.0,
		CreatedAt: now, UpdatedAt: now,
	}
	if _, err := store.Put(context.Background(), st, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reporter := NewMemoryReporter()
	r := New(store, history.NewMemoryStore(), estimator.New(store, nil, estimator.Config{}), reporter, NewLocks(), Config{})
	r.now = func() time.Time { return now }

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n := len(reporter.Reports()); n != 0 {
		t.Errorf("got %d reports with an empty observation window, want 0", n)
	}
}

func TestTrendVerdicts(t *testing.T) {
	r := New(belief.NewMemoryStore(), history.NewMemoryStore(), nil, NewMemoryReporter(), NewLocks(), Config{Epsilon: 0.002})

	if got := r.trend("skincare", 0.05); got != TrendBaseline {
		t.Errorf("first cycle = %q, want baseline", got)
	}
	if got := r.trend("skincare", 0.02); got != TrendImproving {
		t.Errorf("lower MAE = %q, want improving", got)
	}
	if got := r.trend("skincare", 0.021); got != TrendFlat {
		t.Errorf("within epsilon = %q, want flat", got)
	}
	if got := r.trend("skincare", 0.08); got != TrendDegrading {
		t.Errorf("higher MAE = %q, want degrading", got)
	}
}

func TestCategoryLockBlocksCycle(t *testing.T) {
	now := time.Date(2026, 3, 21, 12, 34, 0, 0, time.UTC)
	r, reporter := fixture(t, now)

	// Simulate a bulk re-seed holding the category lock.
	unlock := r.locks.Lock("skincare")

	done := make(chan error, 1)
	go func() { done <- r.RunOnce(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	if n := len(reporter.Reports()); n != 0 {
		t.Errorf("cycle recorded %d reports while the category lock was held", n)
	}

	unlock()
	if err := <-done; err != nil {
		t.Fatalf("RunOnce after unlock: %v", err)
	}
	if n := len(reporter.Reports()); n != 1 {
		t.Errorf("got %d reports after unlock, want 1", n)
	}
}

func TestLocksIndependentPerCategory(t *testing.T) {
	locks := NewLocks()
	unlockA := locks.Lock("a")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on category b blocked behind category a")
	}
}
