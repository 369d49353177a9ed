// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lexicon

import "testing"

func TestLoad_AllDimensionsPresent(t *testing.T) {
	tables, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	for _, d := range AllDomains() {
		entry, ok := tables.Domains[d]
		if !ok {
			t.Errorf("missing domain %q", d)
			continue
		}
		if len(entry.Keywords) == 0 {
			t.Errorf("domain %q has no keywords", d)
		}
		if len(tables.Instruments[d]) == 0 {
			t.Errorf("domain %q has no fallback instruments", d)
		}
	}

	for _, r := range AllRegions() {
		entry, ok := tables.Regions[r]
		if !ok {
			t.Errorf("missing region %q", r)
			continue
		}
		if len(entry.Countries) == 0 {
			t.Errorf("region %q expands to no countries", r)
		}
		if len(entry.GeoTerms) == 0 {
			t.Errorf("region %q has no geo terms", r)
		}
	}
}

func TestLoad_SeverityBandsOrdered(t *testing.T) {
	tables := MustLoad()

	levels := []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical}
	prev := -1.0
	for _, lvl := range levels {
		entry := tables.Severity[lvl]
		if entry.Band.Min < 0 || entry.Band.Max > 1 || entry.Band.Min > entry.Band.Max {
			t.Errorf("severity %q band out of range: [%v, %v]", lvl, entry.Band.Min, entry.Band.Max)
		}
		if entry.Band.Min <= prev {
			t.Errorf("severity %q band min %v not above previous level's min %v", lvl, entry.Band.Min, prev)
		}
		prev = entry.Band.Min
	}

	critical := tables.Severity[SeverityCritical]
	if critical.Band.Min != 0.85 {
		t.Errorf("critical band min = %v, want 0.85", critical.Band.Min)
	}
}

func TestLoad_TimeUnits(t *testing.T) {
	tables := MustLoad()

	want := map[string]int{
		"day": 1, "week": 7, "fortnight": 14, "month": 30, "quarter": 90, "year": 365,
	}
	for unit, days := range want {
		if got := tables.TimeUnits[unit]; got != days {
			t.Errorf("TimeUnits[%q] = %d, want %d", unit, got, days)
		}
	}
}

func TestLoad_MagnitudeTermsInRange(t *testing.T) {
	tables := MustLoad()

	for term, v := range tables.MagnitudeTerms {
		if v < 0 || v > 1 {
			t.Errorf("magnitude term %q = %v, outside [0,1]", term, v)
		}
	}
	if len(tables.MagnitudeModifiers) == 0 {
		t.Error("no magnitude modifiers loaded")
	}
}

func TestGeoTermRegion(t *testing.T) {
	tables := MustLoad()

	tests := []struct {
		term string
		want Region
		ok   bool
	}{
		{"shanghai", RegionAsia, true},
		{"rotterdam", RegionEurope, true},
		{"dubai", RegionMiddleEast, true},
		{"pilbara", RegionOceania, true},
		{"atlantis", "", false},
	}
	for _, tt := range tests {
		got, ok := tables.GeoTermRegion(tt.term)
		if ok != tt.ok || got != tt.want {
			t.Errorf("GeoTermRegion(%q) = (%q, %v), want (%q, %v)", tt.term, got, ok, tt.want, tt.ok)
		}
	}
}
