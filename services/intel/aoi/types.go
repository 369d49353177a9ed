// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aoi matches free text against a catalog of named areas of
// interest (monitored ports, farms, mines, and energy facilities) using
// several independent scoring strategies, and ranks the deduplicated
// union of their candidates.
package aoi

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

// AOI is one catalog entry: a named, bounded geographic site.
type AOI struct {
	ID          string         `json:"id" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	Type        lexicon.Domain `json:"type" validate:"required,oneof=port farm mine energy"`
	BBox        []float64      `json:"bbox" validate:"required,len=4"`
	Description string         `json:"description,omitempty"`
}

// AOIMatch is one ranked match against the catalog.
type AOIMatch struct {
	AOIID       string         `json:"aoiId"`
	Name        string         `json:"name"`
	Type        lexicon.Domain `json:"type"`
	Confidence  float64        `json:"confidence"`
	MatchReason string         `json:"matchReason"`
	BBox        []float64      `json:"bbox"`
	Description string         `json:"description,omitempty"`
}

// MatchOptions tunes one matching call.
type MatchOptions struct {
	// MaxMatches caps the ranked result list. Zero means the default (5).
	MaxMatches int

	// MinConfidence drops candidates below this score. Zero means the
	// default (0.3).
	MinConfidence float64

	// UseAI enables the semantic fallback strategy when the keyword
	// strategies produce fewer than three matches.
	UseAI bool
}

const (
	defaultMaxMatches    = 5
	defaultMinConfidence = 0.3

	// suggestionThreshold: below this top-match confidence a result set
	// is considered weak and recovery suggestions are attached.
	suggestionThreshold = 0.7
	maxSuggestions      = 5
)

func (o MatchOptions) withDefaults() MatchOptions {
	if o.MaxMatches <= 0 {
		o.MaxMatches = defaultMaxMatches
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = defaultMinConfidence
	}
	return o
}

// MatchResult bundles the ranked matches with optional recovery
// suggestions. Suggestions are advisory and never an error.
type MatchResult struct {
	Matches     []AOIMatch `json:"matches"`
	Suggestions []string   `json:"suggestions,omitempty"`
}

// newCatalogValidator builds the validator used to screen catalog
// entries, with the bbox sanity check registered.
func newCatalogValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		a := sl.Current().Interface().(AOI)
		if len(a.BBox) != 4 {
			return // the len=4 tag reports this one
		}
		minLon, minLat, maxLon, maxLat := a.BBox[0], a.BBox[1], a.BBox[2], a.BBox[3]
		if minLon < -180 || maxLon > 180 || minLon > maxLon {
			sl.ReportError(a.BBox, "BBox", "bbox", "lon_range", "")
		}
		if minLat < -90 || maxLat > 90 || minLat > maxLat {
			sl.ReportError(a.BBox, "BBox", "bbox", "lat_range", "")
		}
	}, AOI{})
	return v
}

// validateAOI screens one catalog entry.
func validateAOI(v *validator.Validate, a AOI) error {
	if err := v.Struct(a); err != nil {
		return fmt.Errorf("aoi %q: %w", a.ID, err)
	}
	return nil
}
