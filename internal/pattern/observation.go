// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package pattern

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate is the shared validator instance for ingestion checks.
var validate = validator.New(validator.WithRequiredStructEnabled())

// NewObservation constructs a validated observation with a fresh ID.
func NewObservation(p Pattern, eventType string, success bool, src Source, ts time.Time) (Observation, error) {
	obs := Observation{
		ID:        uuid.New().String(),
		Pattern:   p,
		EventType: eventType,
		Success:   success,
		Source:    src,
		Timestamp: ts,
	}
	if err := obs.Validate(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

// Validate checks structural validity of the observation. A malformed
// observation is an input error (skipped by the updater), not a panic.
func (o Observation) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("malformed observation: %w", err)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("malformed observation: zero timestamp")
	}
	return nil
}
