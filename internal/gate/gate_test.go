// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/adlift/internal/pattern"
)

func gatePattern(category string) pattern.Pattern {
	return pattern.Pattern{
		Hook:     "question",
		Emotion:  "urgency",
		Pacing:   "fast",
		CTA:      "shop_now",
		Pain:     "time",
		Category: category,
	}
}

func TestDecidePolicyOrder(t *testing.T) {
	g := New(Config{}, Baselines{"skincare": 0.05})

	tests := []struct {
		name        string
		m           Metrics
		wantTrigger bool
		wantReason  string
	}{
		{
			name:        "benchmark always triggers",
			m:           Metrics{Pattern: gatePattern("skincare"), IsBenchmark: true, Impressions: 1, Conversions: 0},
			wantTrigger: true,
			wantReason:  ReasonBenchmark,
		},
		{
			// 150 impressions, 12 conversions (8%), baseline 5%:
			// early winner (8% >= 1.5*5% and >= 100 imps).
			name:        "early winner",
			m:           Metrics{Pattern: gatePattern("skincare"), Impressions: 150, Conversions: 12},
			wantTrigger: true,
			wantReason:  ReasonEarlyWinner,
		},
		{
			name:        "below early impressions keeps collecting",
			m:           Metrics{Pattern: gatePattern("skincare"), Impressions: 99, Conversions: 12},
			wantTrigger: false,
			wantReason:  ReasonNone,
		},
		{
			name:        "above baseline but below early multiple keeps collecting",
			m:           Metrics{Pattern: gatePattern("skincare"), Impressions: 150, Conversions: 9}, // 6%
			wantTrigger: false,
			wantReason:  ReasonNone,
		},
		{
			// 6% over 2000 impressions: above baseline, high confidence,
			// below the 7.5% early multiple -> confirmed winner.
			name:        "confirmed winner",
			m:           Metrics{Pattern: gatePattern("skincare"), Impressions: 2000, Conversions: 120},
			wantTrigger: true,
			wantReason:  ReasonConfirmedWinner,
		},
		{
			name:        "confirmed volume but below baseline",
			m:           Metrics{Pattern: gatePattern("skincare"), Impressions: 2000, Conversions: 40}, // 2%
			wantTrigger: false,
			wantReason:  ReasonNone,
		},
		{
			name:        "zero conversions never triggers",
			m:           Metrics{Pattern: gatePattern("skincare"), Impressions: 5000, Conversions: 0},
			wantTrigger: false,
			wantReason:  ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(tt.m)
			if d.Trigger != tt.wantTrigger {
				t.Errorf("Trigger = %v, want %v (decision %+v)", d.Trigger, tt.wantTrigger, d)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestConfidenceFormula(t *testing.T) {
	g := New(Config{}, nil)

	if got := g.confidence(0, 0); got != 0 {
		t.Errorf("confidence(0,0) = %v, want 0", got)
	}
	if got := g.confidence(100, 0); got != 0 {
		t.Errorf("confidence(100,0) = %v, want 0", got)
	}

	// Confidence grows with volume at a fixed rate.
	low := g.confidence(200, 10)
	high := g.confidence(2000, 100)
	if high <= low {
		t.Errorf("confidence did not grow with volume: %v -> %v", low, high)
	}
	if high < 0.8 {
		t.Errorf("confidence(2000, 100) = %v, want >= 0.8", high)
	}
	if low < 0 || low > 1 || high < 0 || high > 1 {
		t.Errorf("confidence out of [0,1]: %v, %v", low, high)
	}
}

func TestBaselineFallback(t *testing.T) {
	g := New(Config{DefaultBaseline: 0.03}, Baselines{"skincare": 0.05})

	if got := g.Baseline("skincare"); got != 0.05 {
		t.Errorf("Baseline(skincare) = %v, want 0.05", got)
	}
	if got := g.Baseline("unknown"); got != 0.03 {
		t.Errorf("Baseline(unknown) = %v, want default 0.03", got)
	}
}

func TestDecideDeterministic(t *testing.T) {
	g := New(Config{}, Baselines{"skincare": 0.05})
	m := Metrics{Pattern: gatePattern("skincare"), Impressions: 150, Conversions: 12}

	first := g.Decide(m)
	for i := 0; i < 10; i++ {
		if got := g.Decide(m); got != first {
			t.Fatalf("Decide is not deterministic: %+v vs %+v", got, first)
		}
	}
}

// TestDispatchFireAndForget publishes a trigger through a gochannel
// Pub/Sub and verifies the payload arrives without Dispatch blocking.
func TestDispatchFireAndForget(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	msgs, err := pubsub.Subscribe(context.Background(), DefaultTriggerTopic)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	d := NewDispatcher(pubsub, DispatcherConfig{})
	trig := Trigger{
		Fingerprint: gatePattern("skincare").Fingerprint(),
		Pattern:     gatePattern("skincare"),
		Decision:    Decision{Trigger: true, Reason: ReasonEarlyWinner, CVR: 0.08, Baseline: 0.05},
		At:          time.Now(),
	}

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), trig)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked; must be fire-and-forget")
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		var got Trigger
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("unmarshal trigger: %v", err)
		}
		if got.Fingerprint != trig.Fingerprint || got.Decision.Reason != ReasonEarlyWinner {
			t.Errorf("received trigger %+v", got)
		}
		if msg.Metadata.Get("reason") != ReasonEarlyWinner {
			t.Errorf("metadata reason = %q", msg.Metadata.Get("reason"))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never arrived")
	}
}

// TestDispatchRateLimit verifies excess triggers are dropped, not queued.
func TestDispatchRateLimit(t *testing.T) {
	d := NewDispatcher(&countingPublisher{}, DispatcherConfig{MaxPerSecond: 1, Burst: 2})

	for i := 0; i < 10; i++ {
		d.Dispatch(context.Background(), Trigger{Fingerprint: "fp", Decision: Decision{Reason: ReasonEarlyWinner}})
	}

	// Allow background publishes to land.
	time.Sleep(100 * time.Millisecond)

	pub := d.publisher.(*countingPublisher)
	if n := pub.count(); n > 2 {
		t.Errorf("published %d triggers, want <= burst of 2", n)
	}
}

// countingPublisher records publishes for assertions.
type countingPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *countingPublisher) Publish(_ string, _ ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return nil
}

func (p *countingPublisher) Close() error { return nil }

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
