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
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// mergeEnhancement folds the model's delta into the rule-based baseline.
//
// Description:
//
//	Field-by-field policy:
//	  - domains, regions, keywords, aoiNames: union, baseline order first.
//	  - severity, marketIntent: model fills only when the baseline is empty.
//	  - timeframe: model overrides only when it supplies parseable dates.
//	  - magnitude, confidence: model replaces fully when present and sane.
//	The baseline is never mutated; a new query is returned.
func mergeEnhancement(base *ParsedQuery, delta *enhancement) *ParsedQuery {
	merged := *base
	merged.AIEnhanced = true

	if ds := validDomains(delta.Domains); len(ds) > 0 {
		merged.Domains = unionDomains(base.Domains, ds)
	}
	if rs := validRegions(delta.Regions); len(rs) > 0 {
		merged.Regions = unionRegions(base.Regions, rs)
	}

	if merged.Severity == "" && validSeverity(delta.Severity) {
		merged.Severity = lexicon.Severity(delta.Severity)
	}
	if merged.MarketIntent == "" && validIntent(delta.MarketIntent) {
		merged.MarketIntent = lexicon.MarketIntent(delta.MarketIntent)
	}

	if delta.Timeframe != nil {
		start, errS := time.Parse("2006-01-02", delta.Timeframe.Start)
		end, errE := time.Parse("2006-01-02", delta.Timeframe.End)
		if errS == nil && errE == nil && !end.Before(start) {
			period := delta.Timeframe.Period
			if period == "" {
				period = base.Timeframe.Period
			}
			merged.Timeframe = Timeframe{Start: start, End: end, Period: period}
		}
	}

	if delta.Magnitude != nil && boundsSane(*delta.Magnitude) {
		merged.Magnitude = *delta.Magnitude
	}
	if delta.Confidence != nil && boundsSane(*delta.Confidence) {
		merged.Confidence = *delta.Confidence
	}

	if len(delta.Keywords) > 0 {
		merged.Keywords = unionStrings(base.Keywords, delta.Keywords, MaxKeywords)
	}
	if len(delta.AOINames) > 0 {
		merged.AOINames = unionStrings(base.AOINames, delta.AOINames, 0)
	}
	return &merged
}

func boundsSane(b Bounds) bool {
	return b.Min >= 0 && b.Max <= 1 && b.Min <= b.Max
}

func validSeverity(s string) bool {
	switch lexicon.Severity(s) {
	case lexicon.SeverityLow, lexicon.SeverityModerate, lexicon.SeverityHigh, lexicon.SeverityCritical:
		return true
	}
	return false
}

func validIntent(s string) bool {
	switch lexicon.MarketIntent(s) {
	case lexicon.IntentBullish, lexicon.IntentBearish, lexicon.IntentAnalysis:
		return true
	}
	return false
}

func unionDomains(a, b []lexicon.Domain) []lexicon.Domain {
	seen := make(map[lexicon.Domain]bool)
	var out []lexicon.Domain
	for _, d := range a {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range b {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func unionRegions(a, b []lexicon.Region) []lexicon.Region {
	seen := make(map[lexicon.Region]bool)
	var out []lexicon.Region
	for _, r := range a {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range b {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// unionStrings merges b into a, deduplicated, capped at limit (0 = no cap).
func unionStrings(a, b []string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		if limit > 0 && len(out) == limit {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range a {
		add(s)
	}
	for _, s := range b {
		add(s)
	}
	return out
}
