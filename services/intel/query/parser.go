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
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// =============================================================================
// Rule-Based Query Parser
// =============================================================================

// Parser is the deterministic, lexicon-driven query parser.
//
// Description:
//
//	Runs independent keyword/regex scans over the text (domains, regions,
//	severity, market intent, magnitude/confidence thresholds, time,
//	keywords, explicit AOI names) and assembles a fully resolved
//	ParsedQuery. Scans are order-insensitive among themselves; defaults
//	apply only when the corresponding scan found nothing.
//
// Thread Safety:
//
//	Safe for concurrent use (all state is read-only after construction).
type Parser struct {
	tables *lexicon.Tables
	logger *slog.Logger

	// now supplies the clock; overridable in tests.
	now func() time.Time
}

// NewParser creates a rule-based parser over the given lexicon.
//
// Inputs:
//   - tables: Loaded lexicon tables. Must not be nil.
//   - logger: Structured logger. May be nil (defaults to slog.Default).
func NewParser(tables *lexicon.Tables, logger *slog.Logger) (*Parser, error) {
	if tables == nil {
		return nil, fmt.Errorf("tables must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		tables: tables,
		logger: logger,
		now:    time.Now,
	}, nil
}

var (
	// Explicit threshold expressions like "magnitude > 0.7",
	// "magnitude above 0.5", "confidence >= 80".
	magnitudeThresholdRe  = regexp.MustCompile(`\bmagnitude\s*(>=|<=|>|<|above|below|over|under)?\s*(\d*\.?\d+)`)
	confidenceThresholdRe = regexp.MustCompile(`\bconfidence\s*(>=|<=|>|<|above|below|over|under)?\s*(\d*\.?\d+)`)

	// "top 10", "limit 25", "first 5"
	limitRe = regexp.MustCompile(`\b(?:top|limit|first)\s+(\d{1,3})\b`)
)

// Parse interprets text into a fully resolved ParsedQuery.
//
// Description:
//
//	Always succeeds: absence of signal in the text resolves to the
//	documented defaults, never to an error or a nil field.
//
// Outputs:
//
//   - *ParsedQuery: The resolved query. Immutable once returned.
//
// Thread Safety: Safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, text string) *ParsedQuery {
	_, span := tracer.Start(ctx, "query.Parser.Parse")
	defer span.End()
	span.SetAttributes(attribute.String("query_preview", truncateForLog(text, 100)))

	start := time.Now()
	lower := strings.ToLower(text)
	words := tokenSet(lower)
	now := p.now()

	q := &ParsedQuery{
		SortBy: SortByRelevance,
		Limit:  DefaultLimit,
	}

	// Domains: ranked evidence, default all four.
	if scores := MapDomains(p.tables, text); len(scores) > 0 {
		for _, s := range scores {
			q.Domains = append(q.Domains, s.Domain)
		}
		parseDimensionHits.WithLabelValues("domains", "text").Inc()
	} else {
		q.Domains = lexicon.AllDomains()
		parseDimensionHits.WithLabelValues("domains", "default").Inc()
	}

	// Regions: keyword containment, canonical order; empty means global.
	for _, r := range lexicon.AllRegions() {
		for _, kw := range p.tables.Regions[r].Keywords {
			if phraseInText(lower, words, kw) {
				q.Regions = append(q.Regions, r)
				break
			}
		}
	}

	// Severity: highest matching level wins.
	q.Severity = p.scanSeverity(lower, words)

	// Market intent: keyword vote, most evidence wins.
	q.MarketIntent = p.scanIntent(lower, words)

	// Magnitude bounds: explicit threshold first, then the magnitude
	// mapper, then the severity band, then the global default.
	q.Magnitude = p.resolveMagnitude(lower, text, q.Severity)

	// Confidence bounds: explicit threshold or global default.
	q.Confidence = p.resolveConfidence(lower)

	// Timeframe: time mapper with the default window fallback.
	if tm := MapTime(p.tables, text, now); tm != nil {
		q.Timeframe = Timeframe{Start: tm.Start, End: tm.End, Period: tm.Period}
		parseDimensionHits.WithLabelValues("timeframe", "text").Inc()
	} else {
		q.Timeframe = Timeframe{
			Start:  now.AddDate(0, 0, -DefaultWindowDays),
			End:    now,
			Period: fmt.Sprintf("past %d days", DefaultWindowDays),
		}
		parseDimensionHits.WithLabelValues("timeframe", "default").Inc()
	}

	// Sort key and limit.
	q.SortBy = p.scanSortKey(lower, words)
	if m := limitRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			q.Limit = clampLimit(n)
		}
	}

	// Free keywords and explicit AOI name candidates.
	q.Keywords = p.extractKeywords(lower)
	q.AOINames = p.extractAOINames(text)

	q.Interpretation = p.buildInterpretation(q)

	parseLatency.Observe(time.Since(start).Seconds())
	p.logger.Debug("rule-based parse complete",
		slog.String("query_preview", truncateForLog(text, 80)),
		slog.Int("domains", len(q.Domains)),
		slog.Int("regions", len(q.Regions)),
		slog.String("severity", string(q.Severity)),
		slog.String("period", q.Timeframe.Period),
	)
	return q
}

// scanSeverity returns the highest severity level whose keywords appear.
func (p *Parser) scanSeverity(lower string, words map[string]bool) lexicon.Severity {
	// Highest first so "critical" beats the "low"-level word "minor"
	// when both appear.
	order := []lexicon.Severity{
		lexicon.SeverityCritical, lexicon.SeverityHigh,
		lexicon.SeverityModerate, lexicon.SeverityLow,
	}
	for _, lvl := range order {
		for _, kw := range p.tables.Severity[lvl].Keywords {
			if phraseInText(lower, words, kw) {
				return lvl
			}
		}
	}
	return ""
}

// scanIntent votes intent keywords and returns the winner, or "".
func (p *Parser) scanIntent(lower string, words map[string]bool) lexicon.MarketIntent {
	votes := make(map[lexicon.MarketIntent]int)
	for intent, kws := range p.tables.Intent {
		for _, kw := range kws {
			if phraseInText(lower, words, kw) {
				votes[intent]++
			}
		}
	}
	best := lexicon.MarketIntent("")
	bestVotes := 0
	// Fixed order keeps ties deterministic.
	for _, intent := range []lexicon.MarketIntent{lexicon.IntentBearish, lexicon.IntentBullish, lexicon.IntentAnalysis} {
		if votes[intent] > bestVotes {
			best = intent
			bestVotes = votes[intent]
		}
	}
	return best
}

// resolveMagnitude applies the magnitude precedence chain.
func (p *Parser) resolveMagnitude(lower, text string, severity lexicon.Severity) Bounds {
	if m := magnitudeThresholdRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			if v > 1 { // treat "magnitude > 70" as a percentage
				v = v / 100
			}
			v = clamp01(v)
			parseDimensionHits.WithLabelValues("magnitude", "text").Inc()
			switch m[1] {
			case "<", "<=", "below", "under":
				return Bounds{Min: 0, Max: v}
			default:
				return Bounds{Min: v, Max: 1}
			}
		}
	}

	if mm := MapMagnitude(p.tables, text); mm != nil {
		parseDimensionHits.WithLabelValues("magnitude", "text").Inc()
		// A qualitative descriptor sets the floor; anything at least
		// that large is in scope.
		return Bounds{Min: mm.Value, Max: 1}
	}

	if severity != "" {
		band := p.tables.Severity[severity].Band
		parseDimensionHits.WithLabelValues("magnitude", "severity").Inc()
		return Bounds{Min: band.Min, Max: band.Max}
	}

	parseDimensionHits.WithLabelValues("magnitude", "default").Inc()
	return Bounds{Min: DefaultMagnitudeMin, Max: DefaultMagnitudeMax}
}

// resolveConfidence applies the confidence threshold or the default.
func (p *Parser) resolveConfidence(lower string) Bounds {
	if m := confidenceThresholdRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			if v > 1 {
				v = v / 100
			}
			v = clamp01(v)
			parseDimensionHits.WithLabelValues("confidence", "text").Inc()
			switch m[1] {
			case "<", "<=", "below", "under":
				return Bounds{Min: 0, Max: v}
			default:
				return Bounds{Min: v, Max: 1}
			}
		}
	}
	parseDimensionHits.WithLabelValues("confidence", "default").Inc()
	return Bounds{Min: DefaultConfidenceMin, Max: 1}
}

// scanSortKey maps ordering vocabulary to a sort key.
func (p *Parser) scanSortKey(lower string, words map[string]bool) SortKey {
	switch {
	case strings.Contains(lower, "sort by magnitude") || words["largest"] || words["biggest"]:
		return SortByMagnitude
	case strings.Contains(lower, "sort by confidence") || strings.Contains(lower, "most confident"):
		return SortByConfidence
	case strings.Contains(lower, "sort by time") || words["latest"] || words["newest"] || strings.Contains(lower, "most recent"):
		return SortByTimestamp
	default:
		return SortByRelevance
	}
}

// extractKeywords returns up to MaxKeywords free tokens after stripping
// stop-words, numerics, and short tokens.
func (p *Parser) extractKeywords(lower string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(lower) {
		w := trimToken(tok)
		if len(w) <= 3 || p.tables.StopWords[w] || seen[w] {
			continue
		}
		if _, err := strconv.ParseFloat(w, 64); err == nil {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

// extractAOINames detects capitalized "Name + facility-noun" patterns
// ("Shanghai port", "Jebel Ali terminal") as explicit site references.
func (p *Parser) extractAOINames(text string) []string {
	tokens := strings.Fields(text)
	var names []string
	seen := make(map[string]bool)

	for i, tok := range tokens {
		noun := strings.ToLower(trimToken(tok))
		if !p.isFacilityNoun(noun) {
			continue
		}
		// Walk backwards over the run of capitalized words.
		start := i
		for start > 0 && isCapitalizedWord(trimToken(tokens[start-1])) {
			start--
		}
		if start == i {
			continue
		}
		parts := make([]string, 0, i-start+1)
		for _, t := range tokens[start : i+1] {
			parts = append(parts, trimToken(t))
		}
		name := strings.Join(parts, " ")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (p *Parser) isFacilityNoun(w string) bool {
	for _, n := range p.tables.FacilityNouns {
		if w == n {
			return true
		}
	}
	return false
}

// isCapitalizedWord reports whether w starts with an upper-case letter
// followed by letters only.
func isCapitalizedWord(w string) bool {
	if w == "" {
		return false
	}
	runes := []rune(w)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
