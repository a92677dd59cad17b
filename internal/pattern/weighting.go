// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package pattern

import "errors"

// ErrUnknownEvent is returned when an event type has no weighting entry.
// Callers treat it as a skippable input error, never as fatal.
var ErrUnknownEvent = errors.New("unknown event type")

// Well-known funnel event names. The weighting table is configuration;
// these constants only name the defaults.
const (
	EventView       = "view"
	EventClick      = "click"
	EventAddToCart  = "add_to_cart"
	EventTrialStart = "trial_start"
	EventOnboarding = "onboarding_complete"
	EventSignup     = "signup"
	EventPurchase   = "purchase"
	EventSubscribe  = "subscribe"
)

// EventWeight describes how strongly one event type moves the belief.
type EventWeight struct {
	// BaseWeight is the Beta pseudo-count added per observation (0, 1].
	BaseWeight float64 `json:"base_weight" koanf:"base_weight" validate:"gt=0,lte=1"`

	// EarlyPredictor marks trial/onboarding-type events that are boosted
	// while a pattern still has little evidence.
	EarlyPredictor bool `json:"early_predictor" koanf:"early_predictor"`
}

// Weighting maps external event names to update magnitudes.
type Weighting struct {
	weights map[string]EventWeight
}

// NewWeighting builds a weighting table from a name->weight map.
func NewWeighting(weights map[string]EventWeight) *Weighting {
	w := &Weighting{weights: make(map[string]EventWeight, len(weights))}
	for name, ew := range weights {
		w.weights[name] = ew
	}
	return w
}

// DefaultWeighting returns the built-in event weighting table.
// Deeper funnel events carry more pseudo-count; trial and onboarding
// events are early predictors of eventual purchase behaviour.
func DefaultWeighting() *Weighting {
	return NewWeighting(map[string]EventWeight{
		EventView:       {BaseWeight: 0.1},
		EventClick:      {BaseWeight: 0.3},
		EventAddToCart:  {BaseWeight: 0.6},
		EventTrialStart: {BaseWeight: 0.7, EarlyPredictor: true},
		EventOnboarding: {BaseWeight: 0.8, EarlyPredictor: true},
		EventSignup:     {BaseWeight: 0.7, EarlyPredictor: true},
		EventPurchase:   {BaseWeight: 1.0},
		EventSubscribe:  {BaseWeight: 1.0},
	})
}

// Lookup returns the weight entry for an event type.
// Unknown event types return ErrUnknownEvent.
func (w *Weighting) Lookup(eventType string) (EventWeight, error) {
	ew, ok := w.weights[eventType]
	if !ok {
		return EventWeight{}, ErrUnknownEvent
	}
	return ew, nil
}

// Events returns the number of known event types.
func (w *Weighting) Events() int {
	return len(w.weights)
}
