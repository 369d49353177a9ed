// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// =============================================================================
// Magnitude Mapper
// =============================================================================

// Stage confidences for the magnitude mapper. Explicit percentages are
// treated as exact (1.0); other parsed numerics carry 0.95; containment
// matches scale within [0.7, 0.85] by descriptor length.
const (
	magConfExact          = 1.0
	magConfModifier       = 0.9
	magConfNumeric        = 0.95
	magConfContainmentLo  = 0.7
	magConfContainmentHi  = 0.85
	magModifierClampFloor = 0.05
)

// MagnitudeMatch is a resolved magnitude expression.
type MagnitudeMatch struct {
	// Value is the normalized magnitude in [0, 1].
	Value float64 `json:"value"`

	// Confidence is the extraction confidence, per stage.
	Confidence float64 `json:"confidence"`

	// Source tags the winning stage: "exact", "modifier", "numeric",
	// "contextual".
	Source string `json:"source"`

	// Phrase is the text fragment that matched.
	Phrase string `json:"phrase"`
}

var (
	// "35%", "35 percent"
	percentRe = regexp.MustCompile(`\b(\d{1,3}(?:\.\d+)?)\s*(?:%|percent)\b`)

	// "2x", "3 times", "2.5x"
	multipleRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(?:x|times)\b`)

	// bare decimals in [0,1]: "0.7", ".85". The leading-character
	// alternation keeps fragments of larger numbers ("10.85") from
	// matching; \b cannot anchor a bare leading dot.
	decimalRe = regexp.MustCompile(`(?:^|[^0-9.])(0?\.\d+)\b`)

	// simple fractions: "3/4"
	fractionRe = regexp.MustCompile(`\b([1-9])\s*/\s*([1-9]\d?)\b`)
)

// MapMagnitude resolves a qualitative or numeric size expression.
//
// Description:
//
//	Pure function. Stages, first success wins (stages are never
//	combined):
//	1. Exact descriptor match ("massive" -> 0.95) at confidence 1.0.
//	2. Modifier + descriptor composition ("very large" = 1.4 x 0.75,
//	   clamped to [0, 1]) at confidence 0.9.
//	3. Regex-parsed numeric forms: percentages (confidence 1.0),
//	   multiples, fractions, and bare decimals (confidence 0.95).
//	   Multiples map via 1 - 1/n so "2x" lands at 0.5 and larger
//	   multiples approach 1.
//	4. Containment match against the descriptor table as last resort,
//	   confidence scaled within [0.7, 0.85] by descriptor length.
//
// Outputs:
//
//   - *MagnitudeMatch: The resolved value, or nil when no magnitude
//     signal exists. Callers apply explicit defaults on nil.
func MapMagnitude(tables *lexicon.Tables, text string) *MagnitudeMatch {
	lower := strings.ToLower(text)
	words := tokenSet(lower)
	tokens := strings.Fields(lower)

	// Stage 2 must be checked before stage 1 would shadow it: "very
	// large" contains the exact descriptor "large", so look for a
	// modifier immediately preceding any descriptor first.
	for i := 1; i < len(tokens); i++ {
		base := trimToken(tokens[i])
		mod := trimToken(tokens[i-1])
		baseVal, baseOK := tables.MagnitudeTerms[base]
		multiplier, modOK := tables.MagnitudeModifiers[mod]
		if baseOK && modOK {
			v := clamp01(baseVal * multiplier)
			if v < magModifierClampFloor {
				v = magModifierClampFloor
			}
			return &MagnitudeMatch{
				Value:      v,
				Confidence: magConfModifier,
				Source:     "modifier",
				Phrase:     mod + " " + base,
			}
		}
	}

	// Stage 1: exact descriptor match. When several descriptors appear,
	// the longest phrase wins (then lexicographic) so results do not
	// depend on map iteration order.
	if term, val, ok := bestDescriptor(tables.MagnitudeTerms, func(t string) bool {
		return phraseInText(lower, words, t)
	}); ok {
		return &MagnitudeMatch{
			Value:      val,
			Confidence: magConfExact,
			Source:     "exact",
			Phrase:     term,
		}
	}

	// Stage 3: numeric forms.
	if m := percentRe.FindStringSubmatch(lower); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &MagnitudeMatch{
				Value:      clamp01(pct / 100),
				Confidence: magConfExact,
				Source:     "numeric",
				Phrase:     m[0],
			}
		}
	}
	if m := multipleRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.ParseFloat(m[1], 64); err == nil && n >= 1 {
			return &MagnitudeMatch{
				Value:      clamp01(1 - 1/n),
				Confidence: magConfNumeric,
				Source:     "numeric",
				Phrase:     m[0],
			}
		}
	}
	if m := fractionRe.FindStringSubmatch(lower); m != nil {
		num, err1 := strconv.ParseFloat(m[1], 64)
		den, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && den > 0 && num <= den {
			return &MagnitudeMatch{
				Value:      clamp01(num / den),
				Confidence: magConfNumeric,
				Source:     "numeric",
				Phrase:     m[0],
			}
		}
	}
	if m := decimalRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 1 {
			return &MagnitudeMatch{
				Value:      v,
				Confidence: magConfNumeric,
				Source:     "numeric",
				Phrase:     m[1],
			}
		}
	}

	// Stage 4: containment fallback ("large-scale", "significant-looking").
	if term, val, ok := bestDescriptor(tables.MagnitudeTerms, func(t string) bool {
		return len(t) > 4 && strings.Contains(lower, t)
	}); ok {
		span := float64(len(term)) / 10
		if span > 1 {
			span = 1
		}
		conf := magConfContainmentLo + (magConfContainmentHi-magConfContainmentLo)*span
		return &MagnitudeMatch{
			Value:      val,
			Confidence: conf,
			Source:     "contextual",
			Phrase:     term,
		}
	}

	return nil
}

// bestDescriptor scans a descriptor table with a match predicate and
// returns the longest matching term (ties broken lexicographically),
// keeping results independent of map iteration order.
func bestDescriptor(terms map[string]float64, match func(string) bool) (string, float64, bool) {
	best := ""
	for term := range terms {
		if !match(term) {
			continue
		}
		if len(term) > len(best) || (len(term) == len(best) && term < best) {
			best = term
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, terms[best], true
}

// trimToken strips leading/trailing punctuation off a whitespace token.
func trimToken(tok string) string {
	return strings.Trim(tok, ",.;:!?()\"'")
}
