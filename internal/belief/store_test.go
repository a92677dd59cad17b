// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package belief

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/adlift/internal/pattern"
)

// storeFactories builds each Store implementation for the shared tests.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			t.Helper()
			return NewMemoryStore()
		},
		"badger": func(t *testing.T) Store {
			t.Helper()
			opts := badger.DefaultOptions("").WithInMemory(true)
			opts.Logger = nil
			db, err := badger.Open(opts)
			if err != nil {
				t.Fatalf("open badger: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			return NewBadgerStore(db)
		},
	}
}

func seedState(p pattern.Pattern) State {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return State{
		Fingerprint: p.Fingerprint(),
		Pattern:     p,
		Alpha:       1,
		Beta:        1,
		Weight:      1,
		Source:      pattern.SourceClient,
		AvgCVR:      0.5,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStoreCreateGetUpdate(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			st := seedState(testPattern())

			if _, err := store.Get(ctx, st.Fingerprint); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get on empty store error = %v, want ErrNotFound", err)
			}

			created, err := store.Put(ctx, st, 0)
			if err != nil {
				t.Fatalf("create Put error: %v", err)
			}
			if created.Version != 1 {
				t.Errorf("created version = %d, want 1", created.Version)
			}

			// Create again must conflict.
			if _, err := store.Put(ctx, st, 0); !errors.Is(err, ErrConflict) {
				t.Errorf("duplicate create error = %v, want ErrConflict", err)
			}

			created.Alpha += 1.0
			updated, err := store.Put(ctx, created, created.Version)
			if err != nil {
				t.Fatalf("update Put error: %v", err)
			}
			if updated.Version != 2 {
				t.Errorf("updated version = %d, want 2", updated.Version)
			}

			// Stale version must conflict.
			created.Alpha += 1.0
			if _, err := store.Put(ctx, created, 1); !errors.Is(err, ErrConflict) {
				t.Errorf("stale Put error = %v, want ErrConflict", err)
			}

			got, err := store.Get(ctx, st.Fingerprint)
			if err != nil {
				t.Fatalf("Get error: %v", err)
			}
			if got.Alpha != 2.0 || got.Version != 2 {
				t.Errorf("stored state alpha=%v version=%d, want 2.0/2", got.Alpha, got.Version)
			}
		})
	}
}

func TestStoreRejectsShrinkingParameters(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			st, err := store.Put(ctx, seedState(testPattern()), 0)
			if err != nil {
				t.Fatalf("create error: %v", err)
			}

			st.Alpha = 0.5 // below the stored 1.0
			if _, err := store.Put(ctx, st, st.Version); err == nil {
				t.Error("Put accepted a decreasing alpha")
			}
		})
	}
}

func TestStoreListByCategory(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			p1 := testPattern()
			p2 := testPattern()
			p2.Hook = "bold_claim"
			p3 := testPattern()
			p3.Category = "fitness"

			for _, p := range []pattern.Pattern{p1, p2, p3} {
				if _, err := store.Put(ctx, seedState(p), 0); err != nil {
					t.Fatalf("seed %s: %v", p, err)
				}
			}

			skincare, err := store.ListByCategory(ctx, "skincare")
			if err != nil {
				t.Fatalf("ListByCategory error: %v", err)
			}
			if len(skincare) != 2 {
				t.Errorf("skincare states = %d, want 2", len(skincare))
			}

			all, err := store.Snapshot(ctx)
			if err != nil {
				t.Fatalf("Snapshot error: %v", err)
			}
			if len(all) != 3 {
				t.Errorf("snapshot size = %d, want 3", len(all))
			}
		})
	}
}

// TestStoreConcurrentVersioning hammers one key from many goroutines
// through the raw CAS loop and verifies no increment is lost.
func TestStoreConcurrentVersioning(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)

			base, err := store.Put(ctx, seedState(testPattern()), 0)
			if err != nil {
				t.Fatalf("create error: %v", err)
			}

			const workers = 32
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						st, err := store.Get(ctx, base.Fingerprint)
						if err != nil {
							t.Errorf("Get: %v", err)
							return
						}
						st.Alpha++
						st.SampleSize++
						if _, err := store.Put(ctx, st, st.Version); err == nil {
							return
						} else if !errors.Is(err, ErrConflict) {
							t.Errorf("Put: %v", err)
							return
						}
					}
				}()
			}
			wg.Wait()

			final, err := store.Get(ctx, base.Fingerprint)
			if err != nil {
				t.Fatalf("final Get: %v", err)
			}
			if final.Alpha != base.Alpha+workers {
				t.Errorf("alpha = %v, want %v", final.Alpha, base.Alpha+workers)
			}
			if final.Version != base.Version+workers {
				t.Errorf("version = %d, want %d", final.Version, base.Version+workers)
			}
		})
	}
}
