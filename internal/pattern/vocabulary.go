// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package pattern

import (
	"sort"
	"sync"
)

// Vocabulary is the finite, externally maintained set of known values per
// pattern dimension. Unknown values arriving on the event stream are
// admitted as new vocabulary entries, never rejected: an unseen value
// simply means a new pattern.
//
// Safe for concurrent use.
type Vocabulary struct {
	mu     sync.RWMutex
	values map[Dimension]map[string]struct{}
}

// NewVocabulary creates a vocabulary from per-dimension value lists.
// Missing dimensions start empty.
func NewVocabulary(seed map[Dimension][]string) *Vocabulary {
	v := &Vocabulary{values: make(map[Dimension]map[string]struct{}, len(Dimensions))}
	for _, d := range Dimensions {
		v.values[d] = make(map[string]struct{})
	}
	for d, vals := range seed {
		for _, val := range vals {
			v.values[d][val] = struct{}{}
		}
	}
	return v
}

// DefaultVocabulary returns the built-in creative dimension vocabulary.
// Deployments normally replace this from configuration.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(map[Dimension][]string{
		DimHook:    {"question", "bold_claim", "problem", "curiosity", "social_proof", "before_after"},
		DimEmotion: {"excitement", "fear", "trust", "curiosity", "urgency", "belonging"},
		DimPacing:  {"fast", "medium", "slow"},
		DimCTA:     {"shop_now", "learn_more", "sign_up", "limited_offer", "try_free"},
		DimPain:    {"time", "money", "status", "health", "convenience", "confidence"},
	})
}

// Known reports whether the value is already part of the vocabulary.
func (v *Vocabulary) Known(d Dimension, value string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.values[d][value]
	return ok
}

// Admit adds the value to the dimension's vocabulary.
// Returns true if the value was new.
func (v *Vocabulary) Admit(d Dimension, value string) bool {
	if value == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.values[d][value]; ok {
		return false
	}
	v.values[d][value] = struct{}{}
	return true
}

// AdmitPattern admits every dimension value of the pattern.
// Returns the number of newly admitted values.
func (v *Vocabulary) AdmitPattern(p Pattern) int {
	added := 0
	for _, d := range Dimensions {
		if v.Admit(d, p.Value(d)) {
			added++
		}
	}
	return added
}

// Values returns the sorted vocabulary for a dimension.
func (v *Vocabulary) Values(d Dimension) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.values[d]))
	for val := range v.values[d] {
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of values known for a dimension.
func (v *Vocabulary) Size(d Dimension) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.values[d])
}
