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
	"sort"
	"strings"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// =============================================================================
// Domain Mapper
// =============================================================================

// Weight of a synonym (commodity/sector) hit relative to a direct
// domain keyword hit.
const synonymWeight = 0.5

// DomainScore is one domain's evidence in a piece of text.
type DomainScore struct {
	// Domain is the scored sector.
	Domain lexicon.Domain `json:"domain"`

	// Score is the normalized share of domain evidence, in (0, 1].
	// Scores across all returned entries sum to 1.
	Score float64 `json:"score"`

	// Hits lists the lexicon phrases that matched.
	Hits []string `json:"hits,omitempty"`
}

// MapDomains scores text against the domain lexicons and returns ranked
// domain probabilities.
//
// Description:
//
//	Pure function. Direct keywords count 1.0 each, commodity/sector
//	synonyms count synonymWeight each; raw scores are normalized so
//	the result is a probability distribution over matched domains.
//	Matching is case-insensitive whole-word containment; multi-word
//	phrases match as substrings.
//
// Outputs:
//
//   - []DomainScore: Ranked descending by score, ties broken by
//     canonical domain order. Empty when no domain evidence exists;
//     callers apply the all-domains default, never an empty filter.
func MapDomains(tables *lexicon.Tables, text string) []DomainScore {
	lower := strings.ToLower(text)
	words := tokenSet(lower)

	raw := make(map[lexicon.Domain]float64)
	hits := make(map[lexicon.Domain][]string)

	for _, d := range lexicon.AllDomains() {
		entry := tables.Domains[d]
		for _, kw := range entry.Keywords {
			if phraseInText(lower, words, kw) {
				raw[d] += 1.0
				hits[d] = append(hits[d], kw)
			}
		}
		for _, syn := range entry.Synonyms {
			if phraseInText(lower, words, syn) {
				raw[d] += synonymWeight
				hits[d] = append(hits[d], syn)
			}
		}
	}

	if len(raw) == 0 {
		return nil
	}

	var total float64
	for _, v := range raw {
		total += v
	}

	scores := make([]DomainScore, 0, len(raw))
	for _, d := range lexicon.AllDomains() { // canonical order for stable ties
		if v, ok := raw[d]; ok {
			scores = append(scores, DomainScore{
				Domain: d,
				Score:  v / total,
				Hits:   hits[d],
			})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

// phraseInText matches a lexicon phrase against text. Single words match
// on token boundaries; multi-word phrases match as substrings.
func phraseInText(lower string, words map[string]bool, phrase string) bool {
	if strings.ContainsRune(phrase, ' ') {
		return strings.Contains(lower, phrase)
	}
	return words[phrase]
}

// tokenSet splits lowered text into a word set, trimming punctuation.
func tokenSet(lower string) map[string]bool {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '.', ';', ':', '!', '?', '(', ')', '"', '\'':
			return true
		}
		return false
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = true
		}
	}
	return set
}
