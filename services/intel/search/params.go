// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search converts a resolved query into the external search
// API's parameter contract and validates parameter objects before
// dispatch.
package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/intel/query"
)

// FetchEmbeddingsParams is the external search API's flat parameter
// contract. Only the converter builds these; zero values mean "omit".
type FetchEmbeddingsParams struct {
	Domains       []lexicon.Domain `json:"domains,omitempty"`
	Countries     []string         `json:"countries,omitempty"`
	StartDate     string           `json:"start_date,omitempty"`
	EndDate       string           `json:"end_date,omitempty"`
	Severity      string           `json:"severity,omitempty"`
	MagnitudeMin  float64          `json:"magnitude_min"`
	MagnitudeMax  float64          `json:"magnitude_max"`
	ConfidenceMin float64          `json:"confidence_min"`
	ConfidenceMax float64          `json:"confidence_max"`
	SortBy        string           `json:"sort_by,omitempty"`
	SortOrder     string           `json:"sort_order,omitempty"`
	Limit         int              `json:"limit"`
	Keywords      []string         `json:"keywords,omitempty"`
	Bullish       bool             `json:"bullish,omitempty"`
	Bearish       bool             `json:"bearish,omitempty"`
}

const apiDateLayout = "2006-01-02"

// softLimitCap is the advisory ceiling on result counts; the API
// accepts more but warns.
const softLimitCap = 1000

// ConvertToAPIParams maps a resolved query onto the search contract.
//
// Description:
//
//	Pure and total. Regions expand to the fixed country allow-list.
//	The domain list is dropped entirely when it equals the full set,
//	since "all domains" and "no domain filter" are the same query.
func ConvertToAPIParams(tables *lexicon.Tables, q *query.ParsedQuery) FetchEmbeddingsParams {
	p := FetchEmbeddingsParams{
		StartDate:     q.Timeframe.Start.Format(apiDateLayout),
		EndDate:       q.Timeframe.End.Format(apiDateLayout),
		Severity:      string(q.Severity),
		MagnitudeMin:  q.Magnitude.Min,
		MagnitudeMax:  q.Magnitude.Max,
		ConfidenceMin: q.Confidence.Min,
		ConfidenceMax: q.Confidence.Max,
		SortBy:        string(q.SortBy),
		SortOrder:     "desc",
		Limit:         q.Limit,
		Keywords:      q.Keywords,
		Bullish:       q.MarketIntent == lexicon.IntentBullish,
		Bearish:       q.MarketIntent == lexicon.IntentBearish,
	}

	if !q.AllDomainsSelected() {
		p.Domains = q.Domains
	}

	for _, r := range q.Regions {
		p.Countries = append(p.Countries, tables.Regions[r].Countries...)
	}
	return p
}

// QueryString serializes params for a GET dispatch. Field order is
// fixed so serialized forms are comparable.
func QueryString(p FetchEmbeddingsParams) string {
	v := url.Values{}
	if len(p.Domains) > 0 {
		parts := make([]string, len(p.Domains))
		for i, d := range p.Domains {
			parts[i] = string(d)
		}
		v.Set("domains", strings.Join(parts, ","))
	}
	if len(p.Countries) > 0 {
		v.Set("countries", strings.Join(p.Countries, ","))
	}
	if p.StartDate != "" {
		v.Set("start_date", p.StartDate)
	}
	if p.EndDate != "" {
		v.Set("end_date", p.EndDate)
	}
	if p.Severity != "" {
		v.Set("severity", p.Severity)
	}
	v.Set("magnitude_min", formatFloat(p.MagnitudeMin))
	v.Set("magnitude_max", formatFloat(p.MagnitudeMax))
	v.Set("confidence_min", formatFloat(p.ConfidenceMin))
	v.Set("confidence_max", formatFloat(p.ConfidenceMax))
	if p.SortBy != "" {
		v.Set("sort_by", p.SortBy)
	}
	if p.SortOrder != "" {
		v.Set("sort_order", p.SortOrder)
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if len(p.Keywords) > 0 {
		v.Set("keywords", strings.Join(p.Keywords, ","))
	}
	if p.Bullish {
		v.Set("bullish", "true")
	}
	if p.Bearish {
		v.Set("bearish", "true")
	}
	return v.Encode()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ValidationResult reports blocking errors separately from advisory
// warnings. Params with warnings only are still dispatchable.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateAPIParams screens params before dispatch.
//
// Description:
//
//	Errors block dispatch: out-of-range or inverted numeric bounds,
//	unknown domains, unknown sort fields or orders, a non-positive
//	limit. Warnings are advisory: swapped dates (auto-corrected by
//	the caller re-running Convert, reported here), very large time
//	windows, limits above the soft cap.
func ValidateAPIParams(p *FetchEmbeddingsParams) ValidationResult {
	var res ValidationResult

	if p.StartDate != "" && p.EndDate != "" {
		start, errS := parseAPIDate(p.StartDate)
		end, errE := parseAPIDate(p.EndDate)
		switch {
		case errS != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("start_date %q is not an ISO date", p.StartDate))
		case errE != nil:
			res.Errors = append(res.Errors, fmt.Sprintf("end_date %q is not an ISO date", p.EndDate))
		default:
			if end.Before(start) {
				p.StartDate, p.EndDate = p.EndDate, p.StartDate
				start, end = end, start
				res.Warnings = append(res.Warnings, "start_date was after end_date; dates swapped")
			}
			if end.Sub(start).Hours() > 365*24 {
				res.Warnings = append(res.Warnings, "time window exceeds 365 days; the search may be slow")
			}
		}
	}

	if p.MagnitudeMin < 0 || p.MagnitudeMax > 1 {
		res.Errors = append(res.Errors, "magnitude bounds must be within [0, 1]")
	}
	if p.MagnitudeMin > p.MagnitudeMax {
		res.Errors = append(res.Errors, "magnitude_min exceeds magnitude_max")
	}
	if p.ConfidenceMin < 0 || p.ConfidenceMax > 1 {
		res.Errors = append(res.Errors, "confidence bounds must be within [0, 1]")
	}
	if p.ConfidenceMin > p.ConfidenceMax {
		res.Errors = append(res.Errors, "confidence_min exceeds confidence_max")
	}

	for _, d := range p.Domains {
		if !lexicon.ValidDomain(d) {
			res.Errors = append(res.Errors, fmt.Sprintf("unknown domain %q", d))
		}
	}

	if p.SortBy != "" && !query.ValidSortKey(p.SortBy) {
		res.Errors = append(res.Errors, fmt.Sprintf("unknown sort_by %q", p.SortBy))
	}
	if p.SortOrder != "" && p.SortOrder != "asc" && p.SortOrder != "desc" {
		res.Errors = append(res.Errors, fmt.Sprintf("sort_order %q must be asc or desc", p.SortOrder))
	}

	if p.Limit <= 0 {
		res.Errors = append(res.Errors, "limit must be positive")
	} else if p.Limit > softLimitCap {
		res.Warnings = append(res.Warnings, fmt.Sprintf("limit %d exceeds the soft cap of %d", p.Limit, softLimitCap))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func parseAPIDate(s string) (time.Time, error) {
	return time.Parse(apiDateLayout, s)
}
