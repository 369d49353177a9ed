// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signals

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Resilient Signal-Response Parser
// =============================================================================

// rawSignal is the lenient decode target for one candidate record.
type rawSignal struct {
	Instrument string   `json:"instrument"`
	Direction  string   `json:"direction"`
	Rationale  string   `json:"rationale"`
	Confidence *float64 `json:"confidence"`
}

// signalsEnvelope is the object form some responses use.
type signalsEnvelope struct {
	Signals []rawSignal `json:"signals"`
}

// salvageConfidence bounds the best-effort salvage state; a record
// synthesized from loose prose is never trusted above this.
const salvageConfidence = 0.4

// ParseResponse extracts trading signals from raw completion output.
//
// Description:
//
//	Runs six extraction states of decreasing strictness, stopping at
//	the first that yields at least one validated record:
//	1. whole-string decode (array, {"signals": [...]}, or single record)
//	2. first [...] block with common malformations normalized
//	3. field-anchored regex over {...} fragments
//	4. recursion into a fenced code block
//	5. line-oriented "field: value" accumulation
//	6. ticker-plus-direction salvage from bare prose
//
//	Every candidate passes the validation gate (short instrument,
//	known direction, non-trivial rationale, confidence in [0,1])
//	before acceptance.
//
// Outputs:
//
//   - []TradingSignal: At least one validated record.
//   - error: *ParseFailureError when every state is exhausted. No other
//     error is returned.
func ParseResponse(raw string) ([]TradingSignal, error) {
	states := []struct {
		name string
		fn   func(string) []rawSignal
	}{
		{"direct", parseDirect},
		{"bracket", parseBracket},
		{"record_regex", parseRecordRegex},
		{"fenced_block", parseFencedBlock},
		{"line_oriented", parseLineOriented},
		{"salvage", parseSalvage},
	}
	for _, s := range states {
		if validated := validate(s.fn(raw)); len(validated) > 0 {
			parserStateTotal.WithLabelValues(s.name).Inc()
			return validated, nil
		}
	}
	parserStateTotal.WithLabelValues("failed").Inc()
	return nil, newParseFailure(raw)
}

// validate applies the gate to every candidate, normalizing directions
// first. Invalid candidates are dropped, not reported.
func validate(candidates []rawSignal) []TradingSignal {
	var out []TradingSignal
	for _, c := range candidates {
		instrument := strings.ToUpper(strings.TrimSpace(c.Instrument))
		if instrument == "" || len(instrument) >= maxInstrumentLen {
			continue
		}
		dir := normalizeDirection(c.Direction)
		if !ValidDirection(dir) {
			continue
		}
		rationale := strings.TrimSpace(c.Rationale)
		if len(rationale) <= minRationaleLen {
			continue
		}
		if c.Confidence == nil || *c.Confidence < 0 || *c.Confidence > 1 {
			continue
		}
		out = append(out, TradingSignal{
			Instrument: instrument,
			Direction:  dir,
			Rationale:  rationale,
			Confidence: *c.Confidence,
		})
	}
	return out
}

// normalizeDirection maps loose directional vocabulary onto the enum.
func normalizeDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "bullish":
		return DirectionLong
	case "short", "sell", "bearish":
		return DirectionShort
	case "neutral", "hold", "flat":
		return DirectionNeutral
	default:
		return Direction(s)
	}
}

// =============================================================================
// State 1: direct parse
// =============================================================================

func parseDirect(raw string) []rawSignal {
	trimmed := strings.TrimSpace(raw)

	var arr []rawSignal
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return arr
	}

	var env signalsEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err == nil && len(env.Signals) > 0 {
		return env.Signals
	}

	var single rawSignal
	if err := json.Unmarshal([]byte(trimmed), &single); err == nil && single.Instrument != "" {
		return []rawSignal{single}
	}
	return nil
}

// =============================================================================
// State 2: bracket extraction + malformation repair
// =============================================================================

var (
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

func parseBracket(raw string) []rawSignal {
	first := strings.Index(raw, "[")
	last := strings.LastIndex(raw, "]")
	if first == -1 || last <= first {
		return nil
	}
	block := normalizeJSONish(raw[first : last+1])

	var arr []rawSignal
	if err := json.Unmarshal([]byte(block), &arr); err != nil {
		return nil
	}
	return arr
}

// normalizeJSONish repairs the malformations models most often emit:
// single-quoted strings, unquoted keys, trailing commas, and raw
// newlines inside the block.
func normalizeJSONish(block string) string {
	block = strings.ReplaceAll(block, "\n", " ")
	block = strings.ReplaceAll(block, "\r", " ")
	block = unquotedKeyRe.ReplaceAllString(block, `$1"$2":`)
	block = strings.ReplaceAll(block, "'", `"`)
	block = trailingCommaRe.ReplaceAllString(block, `$1`)
	return block
}

// =============================================================================
// State 3: field-anchored per-record regex
// =============================================================================

var (
	recordFragmentRe = regexp.MustCompile(`\{[^{}]*\}`)
	instrumentRe     = regexp.MustCompile(`(?i)["']?instrument["']?\s*[:=]\s*["']?([A-Za-z0-9.\-]{1,12})`)
	directionRe      = regexp.MustCompile(`(?i)["']?direction["']?\s*[:=]\s*["']?([A-Za-z]+)`)
	rationaleRe      = regexp.MustCompile(`(?i)["']?rationale["']?\s*[:=]\s*["']?([^"'}\n]+)`)
	confidenceRe     = regexp.MustCompile(`(?i)["']?confidence["']?\s*[:=]\s*["']?(\d*\.?\d+)`)

	// An unquoted rationale capture runs to the end of the fragment;
	// strip any trailing field it swallowed.
	rationaleTailRe = regexp.MustCompile(`(?i)\s*,?\s*["']?(confidence|instrument|direction)["']?\s*[:=].*$`)
)

func parseRecordRegex(raw string) []rawSignal {
	var out []rawSignal
	for _, frag := range recordFragmentRe.FindAllString(raw, -1) {
		sig, ok := extractFields(frag)
		if ok {
			out = append(out, sig)
		}
	}
	return out
}

func extractFields(frag string) (rawSignal, bool) {
	var sig rawSignal
	im := instrumentRe.FindStringSubmatch(frag)
	dm := directionRe.FindStringSubmatch(frag)
	rm := rationaleRe.FindStringSubmatch(frag)
	cm := confidenceRe.FindStringSubmatch(frag)
	if im == nil || dm == nil || rm == nil || cm == nil {
		return sig, false
	}
	conf, err := strconv.ParseFloat(cm[1], 64)
	if err != nil {
		return sig, false
	}
	sig.Instrument = im[1]
	sig.Direction = dm[1]
	rationale := rationaleTailRe.ReplaceAllString(rm[1], "")
	sig.Rationale = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rationale), ","))
	sig.Confidence = &conf
	return sig, true
}

// =============================================================================
// State 4: fenced code block
// =============================================================================

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func parseFencedBlock(raw string) []rawSignal {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	inner := strings.TrimSpace(m[1])
	if sigs := parseDirect(inner); len(sigs) > 0 {
		return sigs
	}
	return parseBracket(inner)
}

// =============================================================================
// State 5: line-oriented accumulation
// =============================================================================

var lineFieldRe = regexp.MustCompile(`(?i)^\s*[-*]?\s*["']?(instrument|direction|rationale|confidence)["']?\s*[:=]\s*(.+?)\s*,?\s*$`)

func parseLineOriented(raw string) []rawSignal {
	var out []rawSignal
	var acc rawSignal
	seen := make(map[string]bool)

	flushIfComplete := func() {
		if seen["instrument"] && seen["direction"] && seen["rationale"] && seen["confidence"] {
			out = append(out, acc)
			acc = rawSignal{}
			seen = make(map[string]bool)
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		m := lineFieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		field := strings.ToLower(m[1])
		value := strings.Trim(m[2], `"' `)
		switch field {
		case "instrument":
			// A second instrument before completion starts a new record.
			if seen["instrument"] {
				acc = rawSignal{}
				seen = make(map[string]bool)
			}
			acc.Instrument = value
		case "direction":
			acc.Direction = value
		case "rationale":
			acc.Rationale = value
		case "confidence":
			if conf, err := strconv.ParseFloat(value, 64); err == nil {
				acc.Confidence = &conf
			} else {
				continue
			}
		}
		seen[field] = true
		flushIfComplete()
	}
	return out
}

// =============================================================================
// State 6: best-effort salvage
// =============================================================================

var tickerRe = regexp.MustCompile(`\b[A-Z]{2,6}\b`)

// tickerStoplist filters uppercase tokens that are never instruments.
var tickerStoplist = map[string]bool{
	"JSON": true, "HTTP": true, "API": true, "LLM": true, "AI": true,
	"USD": true, "EUR": true, "OK": true, "NOTE": true, "ETF": true,
	"US": true, "UK": true, "EU": true, "CEO": true, "GDP": true,
}

func parseSalvage(raw string) []rawSignal {
	ticker := ""
	for _, tok := range tickerRe.FindAllString(raw, -1) {
		if !tickerStoplist[tok] {
			ticker = tok
			break
		}
	}
	if ticker == "" {
		return nil
	}

	lower := strings.ToLower(raw)
	direction := "neutral"
	switch {
	case strings.Contains(lower, "bearish") || strings.Contains(lower, "short") || strings.Contains(lower, "sell"):
		direction = "short"
	case strings.Contains(lower, "bullish") || strings.Contains(lower, "long") || strings.Contains(lower, "buy"):
		direction = "long"
	}

	excerpt := strings.Join(strings.Fields(raw), " ")
	if len(excerpt) > 120 {
		excerpt = excerpt[:120]
	}
	conf := salvageConfidence
	return []rawSignal{{
		Instrument: ticker,
		Direction:  direction,
		Rationale:  "Salvaged from unstructured model output referencing " + ticker + ": " + excerpt,
		Confidence: &conf,
	}}
}
