// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package signals turns anomaly batches into structured trading
// signals via the completion service, with a resilient parser for the
// model's response and a heuristic fallback when the model is
// unavailable.
package signals

import (
	"fmt"
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// Direction is the recommended position side.
type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// ValidDirection reports whether d is a known direction.
func ValidDirection(d Direction) bool {
	switch d {
	case DirectionLong, DirectionShort, DirectionNeutral:
		return true
	}
	return false
}

// TradingSignal is one structured recommendation derived from an
// anomaly. Provenance fields are filled once the signal is matched
// back to its source anomaly.
type TradingSignal struct {
	ID         string    `json:"id,omitempty"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Rationale  string    `json:"rationale"`
	Confidence float64   `json:"confidence"`

	// Provenance.
	AOIID     string         `json:"aoi_id,omitempty"`
	Domain    lexicon.Domain `json:"domain,omitempty"`
	Magnitude float64        `json:"magnitude,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`

	// Fallback marks signals synthesized by the heuristic generator
	// rather than the completion model.
	Fallback bool `json:"fallback,omitempty"`
}

// Anomaly is one detected site-level event, as delivered by the
// scoring pipeline.
type Anomaly struct {
	ID          string         `json:"id"`
	AOIID       string         `json:"aoi_id"`
	AOIName     string         `json:"aoi_name"`
	Domain      lexicon.Domain `json:"domain"`
	Magnitude   float64        `json:"magnitude"`
	Confidence  float64        `json:"confidence"`
	Timestamp   time.Time      `json:"timestamp"`
	Description string         `json:"description,omitempty"`
}

// MarketContext is optional ambient market framing passed through to
// the prompt.
type MarketContext struct {
	Sentiment       string   `json:"sentiment,omitempty"`
	VolatilityIndex float64  `json:"volatility_index,omitempty"`
	Headlines       []string `json:"headlines,omitempty"`
}

// Validation gate bounds.
const (
	maxInstrumentLen = 10
	minRationaleLen  = 50
)

// ParseFailureError is the terminal failure of the response parser:
// every extraction state was exhausted without a validated record.
type ParseFailureError struct {
	// Excerpt is a truncated copy of the offending response.
	Excerpt string
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("no trading signals could be extracted from response: %q", e.Excerpt)
}

const excerptLen = 200

func newParseFailure(raw string) *ParseFailureError {
	if len(raw) > excerptLen {
		raw = raw[:excerptLen] + "..."
	}
	return &ParseFailureError{Excerpt: raw}
}
