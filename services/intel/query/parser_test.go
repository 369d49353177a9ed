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
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
)

func newTestParser(t *testing.T, now time.Time) *Parser {
	t.Helper()
	p, err := NewParser(lexicon.MustLoad(), nil)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	p.now = func() time.Time { return now }
	return p
}

func TestParse_CriticalPortDisruptionsInAsiaToday(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	p := newTestParser(t, now)

	q := p.Parse(context.Background(), "Critical port disruptions in Asia today")

	if len(q.Domains) == 0 || q.Domains[0] != lexicon.DomainPort {
		t.Fatalf("domains = %v, want port first", q.Domains)
	}
	if len(q.Regions) != 1 || q.Regions[0] != lexicon.RegionAsia {
		t.Errorf("regions = %v, want [asia]", q.Regions)
	}
	if q.Severity != lexicon.SeverityCritical {
		t.Errorf("severity = %q, want critical", q.Severity)
	}
	if q.Magnitude.Min != 0.85 || q.Magnitude.Max != 1.0 {
		t.Errorf("magnitude = %+v, want [0.85, 1.0] from the critical band", q.Magnitude)
	}
	wantStart := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if !q.Timeframe.Start.Equal(wantStart) {
		t.Errorf("timeframe start = %v, want midnight today %v", q.Timeframe.Start, wantStart)
	}
	if !q.Timeframe.End.Equal(now) {
		t.Errorf("timeframe end = %v, want now %v", q.Timeframe.End, now)
	}
}

func TestParse_EnergyAnomaliesMiddleEastPastWeek(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	p := newTestParser(t, now)

	q := p.Parse(context.Background(), "Show energy sector anomalies in the Middle East from the past week")

	if len(q.Domains) == 0 || q.Domains[0] != lexicon.DomainEnergy {
		t.Fatalf("domains = %v, want energy first", q.Domains)
	}
	if len(q.Regions) != 1 || q.Regions[0] != lexicon.RegionMiddleEast {
		t.Errorf("regions = %v, want [middleEast]", q.Regions)
	}
	gotDays := q.Timeframe.End.Sub(q.Timeframe.Start).Hours() / 24
	if gotDays < 6.9 || gotDays > 7.1 {
		t.Errorf("window = %.1f days, want 7", gotDays)
	}
}

func TestParse_DefaultsOnVagueQuery(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	p := newTestParser(t, now)

	q := p.Parse(context.Background(), "what is happening")

	if len(q.Domains) != len(lexicon.AllDomains()) {
		t.Errorf("domains = %v, want all %d", q.Domains, len(lexicon.AllDomains()))
	}
	if len(q.Regions) != 0 {
		t.Errorf("regions = %v, want empty (global)", q.Regions)
	}
	if q.Severity != "" {
		t.Errorf("severity = %q, want unset", q.Severity)
	}
	if q.Magnitude != (Bounds{Min: DefaultMagnitudeMin, Max: DefaultMagnitudeMax}) {
		t.Errorf("magnitude = %+v, want defaults", q.Magnitude)
	}
	if q.Confidence.Min != DefaultConfidenceMin {
		t.Errorf("confidence min = %v, want %v", q.Confidence.Min, DefaultConfidenceMin)
	}
	gotDays := q.Timeframe.End.Sub(q.Timeframe.Start).Hours() / 24
	if int(gotDays+0.5) != DefaultWindowDays {
		t.Errorf("window = %.1f days, want %d", gotDays, DefaultWindowDays)
	}
	if q.SortBy != SortByRelevance {
		t.Errorf("sortBy = %q, want relevance", q.SortBy)
	}
	if q.Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", q.Limit, DefaultLimit)
	}
}

func TestParse_ExplicitThresholds(t *testing.T) {
	p := newTestParser(t, time.Now())

	q := p.Parse(context.Background(), "mine events with magnitude above 0.7 and confidence > 80")
	if q.Magnitude.Min != 0.7 || q.Magnitude.Max != 1.0 {
		t.Errorf("magnitude = %+v, want [0.7, 1.0]", q.Magnitude)
	}
	if q.Confidence.Min != 0.8 {
		t.Errorf("confidence min = %v, want 0.80 (percentage normalized)", q.Confidence.Min)
	}

	q = p.Parse(context.Background(), "port events magnitude below 0.4")
	if q.Magnitude.Min != 0 || q.Magnitude.Max != 0.4 {
		t.Errorf("magnitude = %+v, want [0, 0.4]", q.Magnitude)
	}
}

func TestParse_LimitAndSortKey(t *testing.T) {
	p := newTestParser(t, time.Now())

	q := p.Parse(context.Background(), "top 10 largest farm anomalies")
	if q.Limit != 10 {
		t.Errorf("limit = %d, want 10", q.Limit)
	}
	if q.SortBy != SortByMagnitude {
		t.Errorf("sortBy = %q, want magnitude", q.SortBy)
	}

	q = p.Parse(context.Background(), "top 500 events")
	if q.Limit != MaxLimit {
		t.Errorf("limit = %d, want clamped to %d", q.Limit, MaxLimit)
	}

	q = p.Parse(context.Background(), "latest energy events")
	if q.SortBy != SortByTimestamp {
		t.Errorf("sortBy = %q, want timestamp", q.SortBy)
	}
}

func TestParse_KeywordsCappedAndFiltered(t *testing.T) {
	p := newTestParser(t, time.Now())

	q := p.Parse(context.Background(), "congestion backlog dredging pilotage berthing demurrage stevedoring")
	if len(q.Keywords) != MaxKeywords {
		t.Errorf("keywords = %v, want exactly %d", q.Keywords, MaxKeywords)
	}

	q = p.Parse(context.Background(), "show me the events in the area")
	for _, kw := range q.Keywords {
		if kw == "show" || kw == "the" {
			t.Errorf("stop word %q leaked into keywords %v", kw, q.Keywords)
		}
	}
}

func TestParse_ExplicitAOINames(t *testing.T) {
	p := newTestParser(t, time.Now())

	q := p.Parse(context.Background(), "Congestion at Shanghai port and the Jebel Ali terminal")
	want := map[string]bool{"Shanghai port": true, "Jebel Ali terminal": true}
	if len(q.AOINames) != 2 {
		t.Fatalf("aoiNames = %v, want 2 entries", q.AOINames)
	}
	for _, n := range q.AOINames {
		if !want[n] {
			t.Errorf("unexpected AOI name %q", n)
		}
	}
}

func TestParse_SeverityHighestWins(t *testing.T) {
	p := newTestParser(t, time.Now())

	q := p.Parse(context.Background(), "minor and critical incidents at ports")
	if q.Severity != lexicon.SeverityCritical {
		t.Errorf("severity = %q, want critical when both levels appear", q.Severity)
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := newTestParser(t, time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	text := "very large critical port and mine disruptions in Asia over the past 2 weeks"

	first := p.Parse(context.Background(), text)
	for i := 0; i < 20; i++ {
		got := p.Parse(context.Background(), text)
		if got.Interpretation != first.Interpretation {
			t.Fatalf("run %d interpretation diverged:\n%s\nvs\n%s", i, got.Interpretation, first.Interpretation)
		}
	}
}

func TestMapDomains_RankingAndNormalization(t *testing.T) {
	tables := lexicon.MustLoad()

	scores := MapDomains(tables, "port congestion affecting shipping and some mining output")
	if len(scores) < 2 {
		t.Fatalf("scores = %v, want at least port and mine", scores)
	}
	if scores[0].Domain != lexicon.DomainPort {
		t.Errorf("top domain = %q, want port", scores[0].Domain)
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("scores sum to %v, want 1.0", sum)
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].Score > scores[i-1].Score {
			t.Errorf("scores not descending: %v", scores)
		}
	}
}

func TestMapTime_Stages(t *testing.T) {
	tables := lexicon.MustLoad()
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		text     string
		wantDays int
		wantConf float64
	}{
		{"events from the past week", 7, 1.0},
		{"show the last 3 days", 3, 0.95},
		{"over the past 2 quarters", 180, 0.95},
		{"review the past-week window", 7, 0.7},
	}
	for _, tt := range tests {
		tm := MapTime(tables, tt.text, now)
		if tm == nil {
			t.Errorf("MapTime(%q) = nil", tt.text)
			continue
		}
		if tm.Days != tt.wantDays {
			t.Errorf("MapTime(%q).Days = %d, want %d", tt.text, tm.Days, tt.wantDays)
		}
		if tm.Confidence != tt.wantConf {
			t.Errorf("MapTime(%q).Confidence = %v, want %v", tt.text, tm.Confidence, tt.wantConf)
		}
	}

	if tm := MapTime(tables, "no temporal content here", now); tm != nil {
		t.Errorf("MapTime on atemporal text = %+v, want nil", tm)
	}
}

func TestMapTime_ISODates(t *testing.T) {
	tables := lexicon.MustLoad()
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

	tm := MapTime(tables, "events from 2025-05-01 to 2025-05-20", now)
	if tm == nil {
		t.Fatal("MapTime = nil for explicit date range")
	}
	if tm.Start.Format("2006-01-02") != "2025-05-01" || tm.End.Format("2006-01-02") != "2025-05-20" {
		t.Errorf("range = %v..%v, want 2025-05-01..2025-05-20", tm.Start, tm.End)
	}
	if tm.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", tm.Confidence)
	}
}

func TestMapMagnitude_Stages(t *testing.T) {
	tables := lexicon.MustLoad()

	tests := []struct {
		text     string
		wantVal  float64
		wantConf float64
	}{
		{"a massive disruption", tables.MagnitudeTerms["massive"], 1.0},
		{"a 70% drop in throughput", 0.7, 1.0},
		{"output fell 0.45 on the index", 0.45, 0.95},
	}
	for _, tt := range tests {
		mm := MapMagnitude(tables, tt.text)
		if mm == nil {
			t.Errorf("MapMagnitude(%q) = nil", tt.text)
			continue
		}
		if diff := mm.Value - tt.wantVal; diff > 0.001 || diff < -0.001 {
			t.Errorf("MapMagnitude(%q).Value = %v, want %v", tt.text, mm.Value, tt.wantVal)
		}
		if mm.Confidence != tt.wantConf {
			t.Errorf("MapMagnitude(%q).Confidence = %v, want %v", tt.text, mm.Confidence, tt.wantConf)
		}
	}
}

func TestTimeframeClause(t *testing.T) {
	tests := []struct {
		period string
		want   string
	}{
		{"today", " for today"},
		{"yesterday", " for yesterday"},
		{"right now", " right now"},
		{"past week", " over the past week"},
		{"this month", " this month"},
		{"recently", " over recent days"},
		{"ytd", " year to date"},
		{"3 weeks", " over the past 3 weeks"},
		{"since 2025-05-01", " since 2025-05-01"},
		{"2025-05-01 to 2025-05-20", " from 2025-05-01 to 2025-05-20"},
	}
	for _, tt := range tests {
		if got := timeframeClause(tt.period); got != tt.want {
			t.Errorf("timeframeClause(%q) = %q, want %q", tt.period, got, tt.want)
		}
	}
}

func TestParse_InterpretationReadsNaturally(t *testing.T) {
	p := newTestParser(t, time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC))

	q := p.Parse(context.Background(), "critical port disruptions in asia today")
	if strings.Contains(q.Interpretation, "over the today") {
		t.Errorf("interpretation still misphrases clock-relative periods: %q", q.Interpretation)
	}
	if !strings.Contains(q.Interpretation, " for today") {
		t.Errorf("interpretation = %q, want a \" for today\" clause", q.Interpretation)
	}
}

func TestMapMagnitude_BareLeadingDotDecimal(t *testing.T) {
	tables := lexicon.MustLoad()

	mm := MapMagnitude(tables, "throughput fell .85 overnight")
	if mm == nil {
		t.Fatal("MapMagnitude = nil for a leading-dot decimal")
	}
	if diff := mm.Value - 0.85; diff > 0.001 || diff < -0.001 {
		t.Errorf("Value = %v, want 0.85", mm.Value)
	}
	if mm.Source != "numeric" {
		t.Errorf("Source = %q, want numeric", mm.Source)
	}

	// The fractional part of a larger number is not a magnitude.
	if mm := MapMagnitude(tables, "the index closed at 12.85"); mm != nil {
		t.Errorf("MapMagnitude matched inside 12.85: %+v", mm)
	}
}

func TestMapMagnitude_ModifierBeatsBareDescriptor(t *testing.T) {
	tables := lexicon.MustLoad()

	bare := MapMagnitude(tables, "a large outage")
	modified := MapMagnitude(tables, "a very large outage")
	if bare == nil || modified == nil {
		t.Fatal("expected matches for both phrasings")
	}
	if modified.Value <= bare.Value {
		t.Errorf("very large = %v, want above bare large = %v", modified.Value, bare.Value)
	}
	if modified.Confidence != 0.9 {
		t.Errorf("modifier confidence = %v, want 0.9", modified.Confidence)
	}
}
