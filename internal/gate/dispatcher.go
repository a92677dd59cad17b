// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/pattern"
)

// DefaultTriggerTopic is the topic analysis triggers are published on.
const DefaultTriggerTopic = "analysis.trigger"

// Trigger is the payload handed to the downstream expensive-analysis
// dispatcher when the gate fires.
type Trigger struct {
	// ID is the unique trigger identifier.
	ID string `json:"id"`

	// Fingerprint identifies the pattern to analyze.
	Fingerprint string `json:"fingerprint"`

	// Pattern is the full pattern identity.
	Pattern pattern.Pattern `json:"pattern"`

	// Decision is the gate decision that fired.
	Decision Decision `json:"decision"`

	// At is when the trigger was raised.
	At time.Time `json:"at"`
}

// DispatcherConfig holds trigger-dispatch policy.
type DispatcherConfig struct {
	// Topic is the publish topic for triggers.
	Topic string `koanf:"topic"`

	// MaxPerSecond rate-limits downstream analysis dispatch; excess
	// triggers are dropped with a warning rather than queued, since a
	// re-triggering pattern will fire again on later events.
	MaxPerSecond float64 `koanf:"max_per_second" validate:"gt=0"`

	// Burst is the rate limiter burst size.
	Burst int `koanf:"burst" validate:"gte=1"`

	// PublishTimeout bounds each background publish attempt.
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

// DefaultDispatcherConfig returns production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Topic:          DefaultTriggerTopic,
		MaxPerSecond:   5,
		Burst:          10,
		PublishTimeout: 5 * time.Second,
	}
}

// Dispatcher publishes analysis triggers fire-and-forget. A circuit
// breaker shields the publisher when the broker degrades, and a rate
// limiter caps how much expensive analysis can be demanded per second.
// The engine never blocks on, or waits for, downstream completion.
type Dispatcher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	limiter   *rate.Limiter
	cfg       DispatcherConfig
}

// NewDispatcher creates a dispatcher over a Watermill publisher.
func NewDispatcher(publisher message.Publisher, cfg DispatcherConfig) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.MaxPerSecond == 0 {
		cfg.MaxPerSecond = def.MaxPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = def.Burst
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "analysis-trigger-publisher",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Dispatcher{
		publisher: publisher,
		breaker:   breaker,
		limiter:   rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), cfg.Burst),
		cfg:       cfg,
	}
}

// Dispatch publishes the trigger in the background and returns
// immediately. Publish failures are logged and counted, never raised to
// the caller: the update path must not fail because analysis dispatch is
// degraded.
func (d *Dispatcher) Dispatch(ctx context.Context, trig Trigger) {
	if trig.ID == "" {
		trig.ID = uuid.New().String()
	}
	if !d.limiter.Allow() {
		logger := logging.Ctx(ctx)
		logger.Warn().
			Str("fingerprint", trig.Fingerprint).
			Str("reason", trig.Decision.Reason).
			Msg("analysis trigger rate limited, dropping; pattern will re-trigger")
		metrics.TriggerDispatchFailures.Inc()
		return
	}

	correlationID := logging.CorrelationIDFromContext(ctx)

	go func() {
		_, err := d.breaker.Execute(func() (any, error) {
			payload, err := json.Marshal(trig)
			if err != nil {
				return nil, fmt.Errorf("marshal trigger %s: %w", trig.ID, err)
			}
			msg := message.NewMessage(trig.ID, payload)
			msg.Metadata.Set("reason", trig.Decision.Reason)
			if correlationID != "" {
				msg.Metadata.Set("correlation_id", correlationID)
			}
			return nil, d.publisher.Publish(d.cfg.Topic, msg)
		})
		if err != nil {
			metrics.TriggerDispatchFailures.Inc()
			logging.Error().Err(err).
				Str("fingerprint", trig.Fingerprint).
				Str("reason", trig.Decision.Reason).
				Msg("failed to dispatch analysis trigger")
			return
		}
		logging.Debug().
			Str("fingerprint", trig.Fingerprint).
			Str("reason", trig.Decision.Reason).
			Msg("analysis trigger dispatched")
	}()
}

// Close closes the underlying publisher.
func (d *Dispatcher) Close() error {
	return d.publisher.Close()
}
