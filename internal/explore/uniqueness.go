// Adlift - Bayesian Creative Pattern Performance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/adlift

package explore

import (
	"fmt"
	"strings"

	"github.com/tomtom215/adlift/internal/belief"
	"github.com/tomtom215/adlift/internal/pattern"
)

// Uniqueness verdicts.
const (
	VerdictLikelyCopy   = "likely_copy"
	VerdictBorderline   = "borderline"
	VerdictUniqueEnough = "unique_enough_to_test"
)

// Candidate is a creative proposal to be scored before testing.
type Candidate struct {
	// Pattern is the proposed attribute combination.
	Pattern pattern.Pattern `json:"pattern"`

	// Caption is the proposed caption copy, used for lexical overlap.
	Caption string `json:"caption"`
}

// Reference is the public saturation data the scorer compares against:
// how often each pattern fingerprint appears in reference creatives,
// and the reference caption corpus.
type Reference struct {
	// PatternUsage maps fingerprint to reference occurrence count.
	PatternUsage map[string]int `json:"pattern_usage"`

	// Captions is the reference caption corpus.
	Captions []string `json:"captions"`
}

// UniquenessReport is the scorer output.
type UniquenessReport struct {
	// Score is 0-100; higher means more original.
	Score float64 `json:"score"`

	// Verdict is the threshold label for the score.
	Verdict string `json:"verdict"`

	// Rarity is 0-1 originality against the tester's own history.
	Rarity float64 `json:"rarity"`

	// Saturation is 0-1 how played-out the pattern is publicly.
	Saturation float64 `json:"saturation"`

	// LexicalOverlap is the 0-1 worst-case caption trigram overlap.
	LexicalOverlap float64 `json:"lexical_overlap"`

	// Reasoning lists the factors behind the score.
	Reasoning []string `json:"reasoning"`
}

// UniquenessConfig holds scoring policy.
type UniquenessConfig struct {
	// SimilarDimensions is the shared-dimension count at which a tested
	// pattern counts as "nearly the same" for rarity.
	SimilarDimensions int `koanf:"similar_dimensions" validate:"gte=1,lte=5"`

	// SaturationCap is the reference usage count at which a pattern
	// counts as fully saturated.
	SaturationCap int `koanf:"saturation_cap" validate:"gte=1"`

	// LexicalPenalty scales how many points caption overlap can cost.
	LexicalPenalty float64 `koanf:"lexical_penalty" validate:"gte=0"`

	// CopyScore and UniqueScore are the verdict cut points.
	CopyScore   float64 `koanf:"copy_score" validate:"gt=0"`
	UniqueScore float64 `koanf:"unique_score" validate:"gt=0,lte=100"`
}

// DefaultUniquenessConfig returns production defaults.
func DefaultUniquenessConfig() UniquenessConfig {
	return UniquenessConfig{
		SimilarDimensions: 4,
		SaturationCap:     25,
		LexicalPenalty:    40,
		CopyScore:         30,
		UniqueScore:       60,
	}
}

// UniquenessScorer rates how original a candidate creative is: rarity
// within the tester's own tested patterns, saturation against public
// reference data, and a lexical penalty for overused caption phrasing.
type UniquenessScorer struct {
	cfg UniquenessConfig
}

// NewUniquenessScorer creates a scorer. Zero config fields receive
// defaults.
func NewUniquenessScorer(cfg UniquenessConfig) *UniquenessScorer {
	def := DefaultUniquenessConfig()
	if cfg.SimilarDimensions == 0 {
		cfg.SimilarDimensions = def.SimilarDimensions
	}
	if cfg.SaturationCap == 0 {
		cfg.SaturationCap = def.SaturationCap
	}
	if cfg.LexicalPenalty == 0 {
		cfg.LexicalPenalty = def.LexicalPenalty
	}
	if cfg.CopyScore == 0 {
		cfg.CopyScore = def.CopyScore
	}
	if cfg.UniqueScore == 0 {
		cfg.UniqueScore = def.UniqueScore
	}
	return &UniquenessScorer{cfg: cfg}
}

// Score rates a candidate against the tester's own tested patterns and
// the public reference corpus. Pure: same inputs, same report.
func (s *UniquenessScorer) Score(cand Candidate, own []belief.State, ref Reference) UniquenessReport {
	rarity := s.rarity(cand.Pattern, own)
	saturation := s.saturation(cand.Pattern, ref)
	overlap := maxTrigramOverlap(cand.Caption, ref.Captions)

	score := 100*(0.5*rarity+0.5*(1-saturation)) - s.cfg.LexicalPenalty*overlap
	score = clampScore(score)

	var reasons []string
	switch {
	case rarity == 0:
		reasons = append(reasons, "identical or near-identical pattern already tested")
	case rarity < 0.5:
		reasons = append(reasons, fmt.Sprintf("pattern closely overlaps tested history (rarity %.0f%%)", 100*rarity))
	default:
		reasons = append(reasons, fmt.Sprintf("pattern is novel against tested history (rarity %.0f%%)", 100*rarity))
	}
	if saturation > 0.5 {
		reasons = append(reasons, fmt.Sprintf("pattern heavily used in public reference data (saturation %.0f%%)", 100*saturation))
	}
	if overlap > 0.3 {
		reasons = append(reasons, fmt.Sprintf("caption phrasing overlaps reference copy by %.0f%%", 100*overlap))
	}

	verdict := VerdictBorderline
	switch {
	case score < s.cfg.CopyScore:
		verdict = VerdictLikelyCopy
	case score >= s.cfg.UniqueScore:
		verdict = VerdictUniqueEnough
	}

	return UniquenessReport{
		Score:          score,
		Verdict:        verdict,
		Rarity:         rarity,
		Saturation:     saturation,
		LexicalOverlap: overlap,
		Reasoning:      reasons,
	}
}

// rarity is 1 minus the share of tested patterns that are nearly the
// same combination; an exact match is always rarity zero.
func (s *UniquenessScorer) rarity(p pattern.Pattern, own []belief.State) float64 {
	if len(own) == 0 {
		return 1
	}
	fp := p.Fingerprint()
	similar := 0
	for _, st := range own {
		if st.Fingerprint == fp {
			return 0
		}
		if p.SharedDimensions(st.Pattern) >= s.cfg.SimilarDimensions {
			similar++
		}
	}
	return 1 - float64(similar)/float64(len(own))
}

// saturation is reference usage normalized to the cap.
func (s *UniquenessScorer) saturation(p pattern.Pattern, ref Reference) float64 {
	count := ref.PatternUsage[p.Fingerprint()]
	if count >= s.cfg.SaturationCap {
		return 1
	}
	return float64(count) / float64(s.cfg.SaturationCap)
}

// maxTrigramOverlap is the worst-case Jaccard overlap between the
// candidate caption's word trigrams and each reference caption's. Pure.
func maxTrigramOverlap(caption string, refs []string) float64 {
	mine := trigrams(caption)
	if len(mine) == 0 {
		return 0
	}
	best := 0.0
	for _, ref := range refs {
		theirs := trigrams(ref)
		if len(theirs) == 0 {
			continue
		}
		if j := jaccard(mine, theirs); j > best {
			best = j
		}
	}
	return best
}

// trigrams returns the set of lowercase word trigrams in the text.
// Texts shorter than three words yield their whole normalized form.
func trigrams(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{})
	if len(words) == 0 {
		return out
	}
	if len(words) < 3 {
		out[strings.Join(words, " ")] = struct{}{}
		return out
	}
	for i := 0; i+3 <= len(words); i++ {
		out[strings.Join(words[i:i+3], " ")] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
