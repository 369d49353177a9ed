// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lexicon holds the static phrase tables that drive rule-based
// query interpretation: domain keywords, region keywords and country
// expansions, time expressions, magnitude descriptors, severity bands,
// market-intent vocabulary, and the curated AOI alias table.
//
// The tables are embedded YAML loaded once at process start and never
// mutated afterwards, so no synchronization is needed by consumers.
package lexicon

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Table Data
// =============================================================================

//go:embed domains.yaml
var domainsYAML []byte

//go:embed regions.yaml
var regionsYAML []byte

//go:embed interpretation.yaml
var interpretationYAML []byte

// =============================================================================
// Enumerated Dimension Values
// =============================================================================

// Domain is one of the four monitored sector categories.
type Domain string

const (
	DomainPort   Domain = "port"
	DomainFarm   Domain = "farm"
	DomainMine   Domain = "mine"
	DomainEnergy Domain = "energy"
)

// AllDomains returns the full domain set in canonical order.
//
// Outputs:
//
//	[]Domain - A fresh slice; callers may mutate it freely.
func AllDomains() []Domain {
	return []Domain{DomainPort, DomainFarm, DomainMine, DomainEnergy}
}

// ValidDomain reports whether d names a known domain.
func ValidDomain(d Domain) bool {
	switch d {
	case DomainPort, DomainFarm, DomainMine, DomainEnergy:
		return true
	}
	return false
}

// Region is a named geographic macro-region.
type Region string

const (
	RegionAsia         Region = "asia"
	RegionEurope       Region = "europe"
	RegionNorthAmerica Region = "northAmerica"
	RegionSouthAmerica Region = "southAmerica"
	RegionAfrica       Region = "africa"
	RegionMiddleEast   Region = "middleEast"
	RegionOceania      Region = "oceania"
)

// AllRegions returns the known macro-regions in canonical order.
func AllRegions() []Region {
	return []Region{
		RegionAsia, RegionEurope, RegionNorthAmerica, RegionSouthAmerica,
		RegionAfrica, RegionMiddleEast, RegionOceania,
	}
}

// Severity is a qualitative anomaly severity level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// MarketIntent is the trading posture implied by a query.
type MarketIntent string

const (
	IntentBullish  MarketIntent = "bullish"
	IntentBearish  MarketIntent = "bearish"
	IntentAnalysis MarketIntent = "analysis"
)

// =============================================================================
// Table Types
// =============================================================================

// Band is an inclusive [Min, Max] magnitude range, both ends in [0, 1].
type Band struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// DomainEntry holds the keyword vocabulary for one domain.
type DomainEntry struct {
	// Keywords are direct evidence for the domain.
	Keywords []string `yaml:"keywords"`

	// Synonyms are commodity/sector vocabulary: weaker evidence, scored
	// at half the weight of a direct keyword.
	Synonyms []string `yaml:"synonyms"`
}

// RegionEntry holds keyword, country, and geographic-term vocabulary for
// one macro-region.
type RegionEntry struct {
	Keywords  []string `yaml:"keywords"`
	Countries []string `yaml:"countries"`
	GeoTerms  []string `yaml:"geo_terms"`
}

// SeverityEntry pairs a severity level's trigger keywords with the
// magnitude band the level implies.
type SeverityEntry struct {
	Keywords []string `yaml:"keywords"`
	Band     Band     `yaml:"band"`
}

// Tables is the complete, immutable lexicon. All maps are read-only
// after Load returns.
//
// Thread Safety:
//
//	Safe for concurrent use after initialization (immutable after load).
type Tables struct {
	// Domains maps each domain to its vocabulary.
	Domains map[Domain]DomainEntry

	// FacilityNouns are nouns that mark an explicit "Name + facility"
	// AOI reference ("Shanghai port").
	FacilityNouns []string

	// Instruments is the per-domain default ticker universe used by the
	// heuristic fallback signal generator.
	Instruments map[Domain][]string

	// Regions maps each macro-region to its vocabulary.
	Regions map[Region]RegionEntry

	// AOIAliases maps curated location nicknames to canonical AOI ids.
	AOIAliases map[string]string

	// TimePhrases maps relative time phrases to day counts.
	TimePhrases map[string]int

	// TimeUnits maps unit words to day counts for compound expressions.
	TimeUnits map[string]int

	// MagnitudeTerms maps qualitative descriptors to [0,1] magnitudes.
	MagnitudeTerms map[string]float64

	// MagnitudeModifiers maps modifier words to multipliers.
	MagnitudeModifiers map[string]float64

	// Severity maps each level to its keywords and implied band.
	Severity map[Severity]SeverityEntry

	// Intent maps each market intent to its keyword set.
	Intent map[MarketIntent][]string

	// StopWords is the set stripped before free keyword extraction.
	StopWords map[string]bool
}

// GeoTermRegion returns the region implied by a geographic term, or ""
// if the term is unknown. Lookup is against the geo_terms vocabulary.
func (t *Tables) GeoTermRegion(term string) (Region, bool) {
	for region, entry := range t.Regions {
		for _, g := range entry.GeoTerms {
			if g == term {
				return region, true
			}
		}
	}
	return "", false
}

// =============================================================================
// Loading
// =============================================================================

type domainsFile struct {
	Domains       map[Domain]DomainEntry `yaml:"domains"`
	FacilityNouns []string               `yaml:"facility_nouns"`
	Instruments   map[Domain][]string    `yaml:"instruments"`
}

type regionsFile struct {
	Regions    map[Region]RegionEntry `yaml:"regions"`
	AOIAliases map[string]string      `yaml:"aoi_aliases"`
}

type interpretationFile struct {
	TimePhrases        map[string]int             `yaml:"time_phrases"`
	TimeUnits          map[string]int             `yaml:"time_units"`
	MagnitudeTerms     map[string]float64         `yaml:"magnitude_terms"`
	MagnitudeModifiers map[string]float64         `yaml:"magnitude_modifiers"`
	Severity           map[Severity]SeverityEntry `yaml:"severity"`
	Intent             map[MarketIntent][]string  `yaml:"market_intent"`
	StopWords          []string                   `yaml:"stop_words"`
}

var (
	cachedTables *Tables
	tablesOnce   sync.Once
	tablesErr    error
)

// Load parses and caches the embedded lexicon tables. Returns the cached
// result on subsequent calls.
//
// Outputs:
//
//   - *Tables: The loaded lexicon. Never nil on success.
//   - error: Non-nil if any embedded YAML fails to parse or a table is
//     missing a required dimension.
//
// Thread Safety:
//
//	Safe for concurrent use (uses sync.Once internally).
func Load() (*Tables, error) {
	tablesOnce.Do(func() {
		cachedTables, tablesErr = parse()
		if tablesErr == nil {
			slog.Info("lexicon tables loaded",
				slog.Int("domains", len(cachedTables.Domains)),
				slog.Int("regions", len(cachedTables.Regions)),
				slog.Int("aliases", len(cachedTables.AOIAliases)),
				slog.Int("time_phrases", len(cachedTables.TimePhrases)),
				slog.Int("magnitude_terms", len(cachedTables.MagnitudeTerms)),
			)
		}
	})
	return cachedTables, tablesErr
}

// MustLoad loads the lexicon or panics. The tables are compiled into the
// binary, so a parse failure is a build defect, not a runtime condition.
func MustLoad() *Tables {
	t, err := Load()
	if err != nil {
		panic(fmt.Sprintf("lexicon: %v", err))
	}
	return t
}

func parse() (*Tables, error) {
	var df domainsFile
	if err := yaml.Unmarshal(domainsYAML, &df); err != nil {
		return nil, fmt.Errorf("parsing domains.yaml: %w", err)
	}
	var rf regionsFile
	if err := yaml.Unmarshal(regionsYAML, &rf); err != nil {
		return nil, fmt.Errorf("parsing regions.yaml: %w", err)
	}
	var itf interpretationFile
	if err := yaml.Unmarshal(interpretationYAML, &itf); err != nil {
		return nil, fmt.Errorf("parsing interpretation.yaml: %w", err)
	}

	t := &Tables{
		Domains:            df.Domains,
		FacilityNouns:      df.FacilityNouns,
		Instruments:        df.Instruments,
		Regions:            rf.Regions,
		AOIAliases:         rf.AOIAliases,
		TimePhrases:        itf.TimePhrases,
		TimeUnits:          itf.TimeUnits,
		MagnitudeTerms:     itf.MagnitudeTerms,
		MagnitudeModifiers: itf.MagnitudeModifiers,
		Severity:           itf.Severity,
		Intent:             itf.Intent,
		StopWords:          make(map[string]bool, len(itf.StopWords)),
	}
	for _, w := range itf.StopWords {
		t.StopWords[w] = true
	}

	// Every enumerated dimension must have a table entry. A hole here
	// would silently disable a parsing stage.
	for _, d := range AllDomains() {
		if _, ok := t.Domains[d]; !ok {
			return nil, fmt.Errorf("domains.yaml: missing domain %q", d)
		}
	}
	for _, r := range AllRegions() {
		if _, ok := t.Regions[r]; !ok {
			return nil, fmt.Errorf("regions.yaml: missing region %q", r)
		}
		if len(t.Regions[r].Countries) == 0 {
			return nil, fmt.Errorf("regions.yaml: region %q has no countries", r)
		}
	}
	for _, s := range []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical} {
		entry, ok := t.Severity[s]
		if !ok {
			return nil, fmt.Errorf("interpretation.yaml: missing severity %q", s)
		}
		if entry.Band.Min < 0 || entry.Band.Max > 1 || entry.Band.Min > entry.Band.Max {
			return nil, fmt.Errorf("interpretation.yaml: severity %q has invalid band [%v, %v]",
				s, entry.Band.Min, entry.Band.Max)
		}
	}

	return t, nil
}
