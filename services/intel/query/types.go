// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query turns free-form market-intelligence text into a fully
// resolved ParsedQuery. The rule-based parser always runs; an optional
// AI pass may augment (never replace) its draft. Every dimension absent
// from the text resolves to a documented default, so a ParsedQuery is
// never partially populated.
package query

import (
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// =============================================================================
// Query Model
// =============================================================================

// SortKey orders search results.
type SortKey string

const (
	SortByMagnitude  SortKey = "magnitude"
	SortByConfidence SortKey = "confidence"
	SortByTimestamp  SortKey = "timestamp"
	SortByRelevance  SortKey = "relevance"
)

// ValidSortKey reports whether s names a known sort key.
func ValidSortKey(s string) bool {
	switch SortKey(s) {
	case SortByMagnitude, SortByConfidence, SortByTimestamp, SortByRelevance:
		return true
	}
	return false
}

// Bounds is an inclusive {Min, Max} pair, both members in [0, 1].
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Timeframe is a concrete resolved time window. Start and End are always
// populated before a ParsedQuery leaves this package.
type Timeframe struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Period string    `json:"period"`
}

// Defaults applied when a dimension is absent from the text. These are
// the documented global defaults; absence of signal never produces a
// nil/zero field on ParsedQuery.
const (
	// DefaultWindowDays is the timeframe window when no time phrase is found.
	DefaultWindowDays = 14

	// DefaultMagnitudeMin / DefaultMagnitudeMax bound magnitude when no
	// magnitude or severity signal exists in the text.
	DefaultMagnitudeMin = 0.5
	DefaultMagnitudeMax = 1.0

	// DefaultConfidenceMin bounds confidence when no threshold is given.
	DefaultConfidenceMin = 0.5

	// DefaultLimit is the result cap when the text names none.
	DefaultLimit = 20

	// MaxLimit is the hard result cap.
	MaxLimit = 100

	// MaxKeywords caps free keyword extraction.
	MaxKeywords = 5
)

// ParsedQuery is the canonical interpreted-query record.
//
// Description:
//
//	Immutable once returned by a parser. Invariant: fully resolved.
//	Domains is never empty (defaults to all four), Timeframe always has
//	a concrete [Start, End], Magnitude/Confidence are always bounded,
//	Limit is in [1, MaxLimit]. Severity and MarketIntent are empty
//	strings when the text carries no such signal.
type ParsedQuery struct {
	// Domains is the monitored-sector filter; never empty.
	Domains []lexicon.Domain `json:"domains"`

	// Regions is the macro-region filter; empty means global.
	Regions []lexicon.Region `json:"regions"`

	// Timeframe is the resolved time window.
	Timeframe Timeframe `json:"timeframe"`

	// Severity is the requested severity floor, or "" if absent.
	Severity lexicon.Severity `json:"severity,omitempty"`

	// Magnitude bounds anomaly magnitude; always populated.
	Magnitude Bounds `json:"magnitude"`

	// Confidence bounds detection confidence; always populated.
	Confidence Bounds `json:"confidence"`

	// MarketIntent is the trading posture, or "" if absent.
	MarketIntent lexicon.MarketIntent `json:"marketIntent,omitempty"`

	// SortBy orders results; defaults to relevance.
	SortBy SortKey `json:"sortBy"`

	// Limit caps result count, in [1, MaxLimit].
	Limit int `json:"limit"`

	// Keywords are free tokens left after stop-word stripping; at most
	// MaxKeywords entries.
	Keywords []string `json:"keywords,omitempty"`

	// AOINames are candidate explicit site references detected via the
	// capitalized "Name + facility-noun" pattern ("Shanghai port").
	AOINames []string `json:"aoiNames,omitempty"`

	// Interpretation is a human-readable restatement of the resolved
	// query. Derived, never authoritative.
	Interpretation string `json:"interpretation"`

	// AIEnhanced is true when the AI pass contributed to this record.
	AIEnhanced bool `json:"aiEnhanced"`
}

// HasDomain reports whether d is in the query's domain filter.
func (q *ParsedQuery) HasDomain(d lexicon.Domain) bool {
	for _, got := range q.Domains {
		if got == d {
			return true
		}
	}
	return false
}

// AllDomainsSelected reports whether the filter equals the full set.
// The converter omits the domain filter entirely in that case.
func (q *ParsedQuery) AllDomainsSelected() bool {
	if len(q.Domains) != len(lexicon.AllDomains()) {
		return false
	}
	for _, d := range lexicon.AllDomains() {
		if !q.HasDomain(d) {
			return false
		}
	}
	return true
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
