// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/adlift/internal/pattern"
)

func histPattern(hook, category string) pattern.Pattern {
	return pattern.Pattern{
		Hook:     hook,
		Emotion:  "urgency",
		Pacing:   "fast",
		CTA:      "shop_now",
		Pain:     "time",
		Category: category,
	}
}

func obsAt(id string, p pattern.Pattern, success bool, ts time.Time) pattern.Observation {
	return pattern.Observation{
		ID:        id,
		Pattern:   p,
		EventType: "click",
		Success:   success,
		Source:    pattern.SourceClient,
		Timestamp: ts,
	}
}

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("append and read back ordered", func(t *testing.T) {
		s := newStore(t)
		p := histPattern("question", "skincare")

		// Append out of order; reads must come back time-ordered.
		for _, min := range []int{30, 10, 20} {
			o := obsAt(fmt.Sprintf("obs-%d", min), p, true, base.Add(time.Duration(min)*time.Minute))
			if err := s.Append(ctx, o); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		got, err := s.ByFingerprint(ctx, p.Fingerprint(), base)
		if err != nil {
			t.Fatalf("ByFingerprint: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d observations, want 3", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.Before(got[i-1].Timestamp) {
				t.Errorf("observations out of order at %d: %v before %v", i, got[i].Timestamp, got[i-1].Timestamp)
			}
		}
		if got[0].Pattern != p {
			t.Errorf("round-tripped pattern = %+v, want %+v", got[0].Pattern, p)
		}
	})

	t.Run("duplicate id ignored", func(t *testing.T) {
		s := newStore(t)
		p := histPattern("question", "skincare")
		o := obsAt("dup-1", p, true, base)

		if err := s.Append(ctx, o); err != nil {
			t.Fatalf("first append: %v", err)
		}
		if err := s.Append(ctx, o); err != nil {
			t.Fatalf("redelivered append: %v", err)
		}

		got, err := s.ByFingerprint(ctx, p.Fingerprint(), base)
		if err != nil {
			t.Fatalf("ByFingerprint: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("got %d observations after redelivery, want 1", len(got))
		}
	})

	t.Run("since cutoff filters", func(t *testing.T) {
		s := newStore(t)
		p := histPattern("question", "skincare")
		for i := 0; i < 5; i++ {
			o := obsAt(fmt.Sprintf("cut-%d", i), p, true, base.Add(time.Duration(i)*time.Hour))
			if err := s.Append(ctx, o); err != nil {
				t.Fatalf("append: %v", err)
			}
		}

		got, err := s.ByFingerprint(ctx, p.Fingerprint(), base.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("ByFingerprint: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("got %d observations past cutoff, want 2", len(got))
		}
	})

	t.Run("category window with limit keeps newest", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 10; i++ {
			p := histPattern("question", "skincare")
			o := obsAt(fmt.Sprintf("cat-%d", i), p, i%2 == 0, base.Add(time.Duration(i)*time.Minute))
			if err := s.Append(ctx, o); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		// A different category must not leak in.
		other := obsAt("other-1", histPattern("problem", "haircare"), true, base)
		if err := s.Append(ctx, other); err != nil {
			t.Fatalf("append other: %v", err)
		}

		got, err := s.ByCategory(ctx, "skincare", base, 4)
		if err != nil {
			t.Fatalf("ByCategory: %v", err)
		}
		if len(got) != 4 {
			t.Fatalf("got %d observations, want limit of 4", len(got))
		}
		// Newest 4 of the window, still ascending.
		if got[0].ID != "cat-6" || got[3].ID != "cat-9" {
			t.Errorf("limit kept %s..%s, want cat-6..cat-9", got[0].ID, got[3].ID)
		}
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		s := newStore(t)
		got, err := s.ByCategory(ctx, "nonexistent", base, 0)
		if err != nil {
			t.Fatalf("ByCategory on empty log: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d observations from empty log", len(got))
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s := NewMemoryStore()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestDuckDBStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewDuckDBStore(":memory:")
		if err != nil {
			t.Fatalf("open in-memory duckdb: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
