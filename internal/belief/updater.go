// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package belief

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/tomtom215/adlift/internal/logging"
	"github.com/tomtom215/adlift/internal/metrics"
	"github.com/tomtom215/adlift/internal/pattern"
)

// UpdaterConfig holds the belief-update policy knobs.
type UpdaterConfig struct {
	// EarlySignalThreshold is the sample size below which early-predictor
	// events are boosted.
	EarlySignalThreshold int64 `koanf:"early_signal_threshold" validate:"gte=0"`

	// EarlyBoost multiplies the delta of early-predictor events during
	// the early-signal window.
	EarlyBoost float64 `koanf:"early_boost" validate:"gte=1"`

	// MaxDelta caps any single update's pseudo-count.
	MaxDelta float64 `koanf:"max_delta" validate:"gt=0"`

	// ClientPriorAlpha/ClientPriorBeta seed unseen client patterns.
	ClientPriorAlpha float64 `koanf:"client_prior_alpha" validate:"gt=0"`
	ClientPriorBeta  float64 `koanf:"client_prior_beta" validate:"gt=0"`

	// MaxRetries bounds the optimistic-concurrency retry loop.
	MaxRetries int `koanf:"max_retries" validate:"gte=1"`

	// RetryBaseDelay is the base of the jittered backoff between retries.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
}

// DefaultUpdaterConfig returns production defaults.
func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{
		EarlySignalThreshold: 100,
		EarlyBoost:           1.5,
		MaxDelta:             1.0,
		ClientPriorAlpha:     1.0,
		ClientPriorBeta:      1.0,
		MaxRetries:           8,
		RetryBaseDelay:       2 * time.Millisecond,
	}
}

// Updater is the single mutation path for belief states. It translates
// one observation into an alpha or beta pseudo-count increment and lands
// it atomically through the versioned store.
type Updater struct {
	store     Store
	weighting *pattern.Weighting
	priors    MarketPriors
	cfg       UpdaterConfig
}

// NewUpdater creates an updater. Zero config fields receive defaults.
func NewUpdater(store Store, weighting *pattern.Weighting, priors MarketPriors, cfg UpdaterConfig) *Updater {
	def := DefaultUpdaterConfig()
	if cfg.EarlySignalThreshold == 0 {
		cfg.EarlySignalThreshold = def.EarlySignalThreshold
	}
	if cfg.EarlyBoost == 0 {
		cfg.EarlyBoost = def.EarlyBoost
	}
	if cfg.MaxDelta == 0 {
		cfg.MaxDelta = def.MaxDelta
	}
	if cfg.ClientPriorAlpha == 0 {
		cfg.ClientPriorAlpha = def.ClientPriorAlpha
	}
	if cfg.ClientPriorBeta == 0 {
		cfg.ClientPriorBeta = def.ClientPriorBeta
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if weighting == nil {
		weighting = pattern.DefaultWeighting()
	}

	return &Updater{store: store, weighting: weighting, priors: priors, cfg: cfg}
}

// ApplyEvent applies one observation to the pattern's belief state and
// returns the updated state.
//
// Unknown event types and malformed observations return ErrInvalidEvent:
// the update is skipped and the caller continues. A lost concurrency race
// is retried up to MaxRetries times with jittered backoff; exhaustion
// surfaces ErrConflict so the caller can retry, never dropping the update
// silently.
func (u *Updater) ApplyEvent(ctx context.Context, obs pattern.Observation) (State, error) {
	start := time.Now()
	defer metrics.BeliefUpdateDuration.Observe(time.Since(start).Seconds())

	if err := obs.Validate(); err != nil {
		metrics.InvalidEventsTotal.WithLabelValues("malformed").Inc()
		return State{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	ew, err := u.weighting.Lookup(obs.EventType)
	if err != nil {
		metrics.InvalidEventsTotal.WithLabelValues("unknown_event_type").Inc()
		logger := logging.Ctx(ctx)
		logger.Warn().
			Str("event_type", obs.EventType).
			Str("pattern", obs.Pattern.String()).
			Msg("skipping observation with unknown event type")
		return State{}, fmt.Errorf("%w: event type %q", ErrInvalidEvent, obs.EventType)
	}

	key := obs.Pattern.Fingerprint()

	for attempt := 0; attempt < u.cfg.MaxRetries; attempt++ {
		st, expected, err := u.currentOrSeed(ctx, obs, key)
		if err != nil {
			return State{}, err
		}

		delta := ew.BaseWeight
		if ew.EarlyPredictor && st.SampleSize < u.cfg.EarlySignalThreshold {
			delta *= u.cfg.EarlyBoost
		}
		if delta > u.cfg.MaxDelta {
			delta = u.cfg.MaxDelta
		}

		if obs.Success {
			st.Alpha += delta
			st.TotalConversions++
		} else {
			st.Beta += delta
		}
		st.SampleSize++
		st.TotalClicks++
		st.AvgCVR = st.Alpha / (st.Alpha + st.Beta)
		st.UpdatedAt = obs.Timestamp

		updated, err := u.store.Put(ctx, st, expected)
		if errors.Is(err, ErrConflict) {
			metrics.BeliefUpdateConflicts.Inc()
			sleepJitter(u.cfg.RetryBaseDelay, attempt)
			continue
		}
		if err != nil {
			return State{}, fmt.Errorf("apply %s on %s: %w", obs.EventType, key, err)
		}

		outcome := "failure"
		if obs.Success {
			outcome = "success"
		}
		metrics.BeliefUpdatesTotal.WithLabelValues(obs.EventType, outcome).Inc()
		return updated, nil
	}

	metrics.BeliefUpdateRetriesExhausted.Inc()
	return State{}, fmt.Errorf("apply %s on %s: retries exhausted: %w", obs.EventType, key, ErrConflict)
}

// currentOrSeed reads the pattern's state, creating the prior state for
// an unseen pattern. Returns the state and the version to expect on Put.
func (u *Updater) currentOrSeed(ctx context.Context, obs pattern.Observation, key string) (State, uint64, error) {
	st, err := u.store.Get(ctx, key)
	switch {
	case err == nil:
		return st, st.Version, nil
	case errors.Is(err, ErrNotFound):
		return u.seedState(obs, key), 0, nil
	default:
		return State{}, 0, fmt.Errorf("read %s: %w", key, err)
	}
}

// seedState builds the prior state for a pattern's first observation.
func (u *Updater) seedState(obs pattern.Observation, key string) State {
	alpha, beta := u.cfg.ClientPriorAlpha, u.cfg.ClientPriorBeta
	if obs.Source == pattern.SourceBenchmark {
		alpha, beta = BenchmarkPrior(u.priors.For(obs.Pattern.Category))
	}

	metrics.PatternsSeeded.WithLabelValues(obs.Source.String()).Inc()
	logging.Debug().
		Str("pattern", obs.Pattern.String()).
		Str("source", obs.Source.String()).
		Float64("alpha", alpha).
		Float64("beta", beta).
		Msg("seeding belief state")

	return State{
		Fingerprint: key,
		Pattern:     obs.Pattern,
		Alpha:       alpha,
		Beta:        beta,
		Weight:      obs.Source.Weight(),
		Source:      obs.Source,
		AvgCVR:      alpha / (alpha + beta),
		CreatedAt:   obs.Timestamp,
		UpdatedAt:   obs.Timestamp,
	}
}

// Seed explicitly creates a benchmark-seeded state without an observation,
// used for bulk market-prior loading. Idempotent: an existing state is
// returned unchanged.
func (u *Updater) Seed(ctx context.Context, p pattern.Pattern, src pattern.Source, now time.Time) (State, error) {
	key := p.Fingerprint()
	if st, err := u.store.Get(ctx, key); err == nil {
		return st, nil
	} else if !errors.Is(err, ErrNotFound) {
		return State{}, err
	}

	obs := pattern.Observation{Pattern: p, Source: src, Timestamp: now}
	st := u.seedState(obs, key)
	created, err := u.store.Put(ctx, st, 0)
	if errors.Is(err, ErrConflict) {
		// Lost the create race; the other writer's state wins.
		return u.store.Get(ctx, key)
	}
	if err != nil {
		return State{}, fmt.Errorf("seed %s: %w", key, err)
	}
	return created, nil
}

// sleepJitter backs off before a conflict retry: base * 2^attempt plus
// up to 50% random jitter, so colliding writers desynchronize.
// The exponent is capped so long retry budgets cannot overflow the delay.
func sleepJitter(base time.Duration, attempt int) {
	if attempt > 6 {
		attempt = 6
	}
	d := base << uint(attempt)
	d += time.Duration(rand.Int63n(int64(d)/2 + 1)) //nolint:gosec // jitter, not crypto
	time.Sleep(d)
}
