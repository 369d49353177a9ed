// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aoi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/llm"
)

// Strategy confidences and scaling bounds.
const (
	confDirect        = 0.95
	confAlias         = 0.85
	confPartialFloor  = 0.6
	confPartialCeil   = 0.9
	confDescFloor     = 0.3
	confDescCeil      = 0.7
	confDomainWithGeo = 0.75
	confDomainOnly    = 0.4
	confGeoFloor      = 0.4
	confGeoCeil       = 0.8

	// aiDiscount is applied to model-reported scores: a semantic guess
	// never outranks a direct keyword hit of the same strength.
	aiDiscount = 0.9

	// aiFallbackThreshold: the AI strategy runs only when the keyword
	// strategies produced fewer matches than this.
	aiFallbackThreshold = 3
)

// Matcher scores free text against the AOI catalog.
//
// Description:
//
//	Five keyword strategies run over a fresh catalog snapshot; their
//	candidate lists are concatenated, deduplicated by AOI id keeping
//	the maximum confidence, filtered, and ranked. An optional AI
//	strategy supplements weak keyword results. Matching is idempotent
//	and independent of catalog order.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Matcher struct {
	tables *lexicon.Tables
	source CatalogSource
	client llm.CompletionClient
	logger *slog.Logger
}

// NewMatcher creates a matcher. client may be nil; the AI strategy is
// then never attempted regardless of MatchOptions.UseAI.
func NewMatcher(tables *lexicon.Tables, source CatalogSource, client llm.CompletionClient, logger *slog.Logger) (*Matcher, error) {
	if tables == nil {
		return nil, fmt.Errorf("tables must not be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{tables: tables, source: source, client: client, logger: logger}, nil
}

// Match ranks catalog entries against text.
//
// Outputs:
//
//   - *MatchResult: Ranked matches plus advisory suggestions when the
//     result set is weak. Never nil on success.
//   - error: Only catalog fetch failures. Strategy-level issues
//     (including AI failures) degrade silently.
func (m *Matcher) Match(ctx context.Context, text string, opts MatchOptions) (*MatchResult, error) {
	ctx, span := tracer.Start(ctx, "aoi.Matcher.Match")
	defer span.End()

	opts = opts.withDefaults()
	start := time.Now()

	catalog, err := m.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	span.SetAttributes(attribute.Int("catalog_size", len(catalog)))

	lower := strings.ToLower(text)
	words := textTokens(lower)

	var candidates []AOIMatch
	candidates = append(candidates, m.matchDirect(catalog, lower, words)...)
	candidates = append(candidates, m.matchAliases(catalog, lower, words)...)
	candidates = append(candidates, m.matchDescriptions(catalog, words)...)
	candidates = append(candidates, m.matchDomainContext(catalog, lower, words)...)
	candidates = append(candidates, m.matchGeoTerms(catalog, lower, words)...)

	matches := rank(candidates, opts)

	if len(matches) < aiFallbackThreshold && opts.UseAI && m.client != nil {
		if aiCands := m.matchSemantic(ctx, text, catalog); len(aiCands) > 0 {
			matches = rank(append(candidates, aiCands...), opts)
		}
	}

	result := &MatchResult{Matches: matches}
	if len(matches) == 0 || matches[0].Confidence < suggestionThreshold {
		result.Suggestions = m.buildSuggestions(catalog, lower, words)
	}

	matchLatency.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("matches", len(matches)))
	return result, nil
}

// rank deduplicates by id (keeping the maximum confidence), filters,
// sorts, and truncates. Sorting is by confidence then id so the result
// never depends on strategy evaluation or catalog order.
func rank(candidates []AOIMatch, opts MatchOptions) []AOIMatch {
	best := make(map[string]AOIMatch, len(candidates))
	for _, c := range candidates {
		if prev, ok := best[c.AOIID]; !ok || c.Confidence > prev.Confidence {
			best[c.AOIID] = c
		}
	}

	out := make([]AOIMatch, 0, len(best))
	for _, c := range best {
		if c.Confidence >= opts.MinConfidence {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].AOIID < out[j].AOIID
	})
	if len(out) > opts.MaxMatches {
		out = out[:opts.MaxMatches]
	}
	return out
}

// =============================================================================
// Strategies
// =============================================================================

// matchDirect scores whole-name/id containment at full confidence and
// partial name-word overlap scaled by the fraction of words matched.
func (m *Matcher) matchDirect(catalog []AOI, lower string, words map[string]bool) []AOIMatch {
	var out []AOIMatch
	for _, a := range catalog {
		lname := strings.ToLower(a.Name)
		if strings.Contains(lower, lname) || strings.Contains(lower, strings.ToLower(a.ID)) {
			out = append(out, toMatch(a, confDirect, "direct name match"))
			continue
		}

		// Partial overlap over the distinctive name words (generic
		// facility nouns carry no signal on their own).
		nameWords := distinctiveWords(lname, m.tables.FacilityNouns)
		if len(nameWords) == 0 {
			continue
		}
		matched := 0
		for _, w := range nameWords {
			if words[w] {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		frac := float64(matched) / float64(len(nameWords))
		conf := confPartialFloor + (confPartialCeil-confPartialFloor)*frac
		out = append(out, toMatch(a, conf, fmt.Sprintf("partial name match (%d/%d words)", matched, len(nameWords))))
	}
	if len(out) > 0 {
		strategyCandidates.WithLabelValues("direct").Add(float64(len(out)))
	}
	return out
}

// matchAliases resolves curated location nicknames to catalog ids.
func (m *Matcher) matchAliases(catalog []AOI, lower string, words map[string]bool) []AOIMatch {
	byID := make(map[string]AOI, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}
	var out []AOIMatch
	for alias, id := range m.tables.AOIAliases {
		if !phraseIn(lower, words, alias) {
			continue
		}
		a, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, toMatch(a, confAlias, fmt.Sprintf("alias match (%s)", alias)))
	}
	if len(out) > 0 {
		strategyCandidates.WithLabelValues("alias").Add(float64(len(out)))
	}
	return out
}

// matchDescriptions scores shared distinctive vocabulary between the
// query and an entry's description. At least two shared words of
// length >3 are required.
func (m *Matcher) matchDescriptions(catalog []AOI, words map[string]bool) []AOIMatch {
	var out []AOIMatch
	for _, a := range catalog {
		if a.Description == "" {
			continue
		}
		shared := 0
		for w := range textTokens(strings.ToLower(a.Description)) {
			if len(w) > 3 && words[w] && !m.tables.StopWords[w] {
				shared++
			}
		}
		if shared < 2 {
			continue
		}
		conf := confDescFloor + 0.1*float64(shared-2)
		if conf > confDescCeil {
			conf = confDescCeil
		}
		out = append(out, toMatch(a, conf, fmt.Sprintf("description overlap (%d shared terms)", shared)))
	}
	if len(out) > 0 {
		strategyCandidates.WithLabelValues("description").Add(float64(len(out)))
	}
	return out
}

// matchDomainContext pairs a detected domain with geographic context:
// an entry of the detected type scores high when its name carries a
// geographic token from the query, low otherwise.
func (m *Matcher) matchDomainContext(catalog []AOI, lower string, words map[string]bool) []AOIMatch {
	detected := make(map[lexicon.Domain]bool)
	for d, entry := range m.tables.Domains {
		for _, kw := range entry.Keywords {
			if phraseIn(lower, words, kw) {
				detected[d] = true
				break
			}
		}
	}
	if len(detected) == 0 {
		return nil
	}

	geoTokens := m.geoContext(lower, words)

	var out []AOIMatch
	for _, a := range catalog {
		if !detected[a.Type] {
			continue
		}
		lname := strings.ToLower(a.Name)
		conf := confDomainOnly
		reason := fmt.Sprintf("domain context (%s)", a.Type)
		for _, g := range geoTokens {
			if strings.Contains(lname, g) {
				conf = confDomainWithGeo
				reason = fmt.Sprintf("domain context (%s) with geography (%s)", a.Type, g)
				break
			}
		}
		out = append(out, toMatch(a, conf, reason))
	}
	if len(out) > 0 {
		strategyCandidates.WithLabelValues("domain_context").Add(float64(len(out)))
	}
	return out
}

// matchGeoTerms counts geographic vocabulary shared between the query
// and an entry's name plus description.
func (m *Matcher) matchGeoTerms(catalog []AOI, lower string, words map[string]bool) []AOIMatch {
	geoTokens := m.geoContext(lower, words)
	if len(geoTokens) == 0 {
		return nil
	}

	var out []AOIMatch
	for _, a := range catalog {
		haystack := strings.ToLower(a.Name + " " + a.Description)
		count := 0
		for _, g := range geoTokens {
			if strings.Contains(haystack, g) {
				count++
			}
		}
		if count == 0 {
			continue
		}
		conf := confGeoFloor + 0.1*float64(count-1)
		if conf > confGeoCeil {
			conf = confGeoCeil
		}
		out = append(out, toMatch(a, conf, fmt.Sprintf("geographic overlap (%d terms)", count)))
	}
	if len(out) > 0 {
		strategyCandidates.WithLabelValues("geo_terms").Add(float64(len(out)))
	}
	return out
}

// geoContext returns the geographic tokens (countries and geo terms)
// present in the query, sorted for deterministic downstream use.
func (m *Matcher) geoContext(lower string, words map[string]bool) []string {
	seen := make(map[string]bool)
	for _, entry := range m.tables.Regions {
		for _, c := range entry.Countries {
			lc := strings.ToLower(c)
			if phraseIn(lower, words, lc) {
				seen[lc] = true
			}
		}
		for _, g := range entry.GeoTerms {
			if phraseIn(lower, words, g) {
				seen[g] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// AI fallback strategy
// =============================================================================

const semanticSystemPrompt = `You match a user's query against a catalog of monitored geographic sites.
Respond with a JSON array of matches: [{"aoiId": "<id from the catalog>", "score": <0.0-1.0>}].
Include only sites genuinely relevant to the query. Respond with the JSON array only.`

// aiMatch is the wire shape of one model-reported match.
type aiMatch struct {
	AOIID string  `json:"aoiId"`
	Score float64 `json:"score"`
}

// matchSemantic asks the completion model to match against the catalog.
// Failures degrade to no candidates; they never fail the overall match.
func (m *Matcher) matchSemantic(ctx context.Context, text string, catalog []AOI) []AOIMatch {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(text)
	b.WriteString("\n\nCatalog:\n")
	for _, a := range catalog {
		fmt.Fprintf(&b, "- %s | %s | %s\n", a.ID, a.Name, a.Type)
	}

	raw, err := m.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: semanticSystemPrompt,
		UserPrompt:   b.String(),
		Temperature:  0.0,
		MaxTokens:    400,
		JSONMode:     false, // the response is a bare array, not an object
	})
	if err != nil {
		m.logger.Warn("semantic AOI match failed", slog.String("error", err.Error()))
		return nil
	}

	parsed, err := parseAIMatches(raw)
	if err != nil {
		m.logger.Warn("semantic AOI response unparseable", slog.String("error", err.Error()))
		return nil
	}

	byID := make(map[string]AOI, len(catalog))
	for _, a := range catalog {
		byID[a.ID] = a
	}

	var out []AOIMatch
	for _, am := range parsed {
		a, ok := byID[am.AOIID]
		if !ok || am.Score <= 0 {
			continue
		}
		score := am.Score
		if score > 1 {
			score = 1
		}
		out = append(out, toMatch(a, score*aiDiscount, "semantic match"))
	}
	if len(out) > 0 {
		strategyCandidates.WithLabelValues("semantic").Add(float64(len(out)))
	}
	return out
}

// parseAIMatches recovers a JSON array from model output, tolerating
// fences and surrounding prose.
func parseAIMatches(raw string) ([]aiMatch, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	first := strings.Index(cleaned, "[")
	last := strings.LastIndex(cleaned, "]")
	if first == -1 || last == -1 || last <= first {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var parsed []aiMatch
	if err := json.Unmarshal([]byte(cleaned[first:last+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decoding semantic matches: %w", err)
	}
	return parsed, nil
}

// =============================================================================
// Suggestions
// =============================================================================

// buildSuggestions produces up to five advisory hints from whatever
// domain or geographic context the query did carry.
func (m *Matcher) buildSuggestions(catalog []AOI, lower string, words map[string]bool) []string {
	var out []string

	for _, d := range lexicon.AllDomains() {
		hit := false
		for _, kw := range m.tables.Domains[d].Keywords {
			if phraseIn(lower, words, kw) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		names := catalogNamesOfType(catalog, d, 2)
		if len(names) > 0 {
			out = append(out, fmt.Sprintf("Try a specific %s site, for example %s", d, strings.Join(names, " or ")))
		} else {
			out = append(out, fmt.Sprintf("Name a specific %s facility to narrow the match", d))
		}
		if len(out) == maxSuggestions {
			return out
		}
	}

	for _, r := range lexicon.AllRegions() {
		if len(out) == maxSuggestions {
			return out
		}
		for _, kw := range m.tables.Regions[r].Keywords {
			if phraseIn(lower, words, kw) {
				out = append(out, fmt.Sprintf("Name a specific site in %s to narrow the match", r))
				break
			}
		}
	}

	if len(out) == 0 {
		out = append(out,
			"Name a specific site (for example \"Shanghai port\" or \"Escondida mine\")",
			"Mention a facility type: port, farm, mine, or energy",
			"Add a country or region to narrow the search",
		)
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func catalogNamesOfType(catalog []AOI, d lexicon.Domain, n int) []string {
	var names []string
	for _, a := range catalog {
		if a.Type == d {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// =============================================================================
// Helpers
// =============================================================================

func toMatch(a AOI, conf float64, reason string) AOIMatch {
	return AOIMatch{
		AOIID:       a.ID,
		Name:        a.Name,
		Type:        a.Type,
		Confidence:  conf,
		MatchReason: reason,
		BBox:        a.BBox,
		Description: a.Description,
	}
}

// textTokens splits lowered text into a word set on non-letter,
// non-digit boundaries.
func textTokens(lower string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[w] = true
	}
	return set
}

// phraseIn reports whether phrase occurs in the text: substring for
// multi-word phrases, token membership for single words.
func phraseIn(lower string, words map[string]bool, phrase string) bool {
	if strings.Contains(phrase, " ") {
		return strings.Contains(lower, phrase)
	}
	return words[phrase]
}

// distinctiveWords returns the name words longer than three characters
// that are not generic facility nouns.
func distinctiveWords(lname string, facilityNouns []string) []string {
	generic := make(map[string]bool, len(facilityNouns))
	for _, n := range facilityNouns {
		generic[n] = true
	}
	var out []string
	for w := range textTokens(lname) {
		if len(w) > 3 && !generic[w] {
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}
