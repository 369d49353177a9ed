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
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/llm"
)

// fakeClient returns a canned response or error and records the request.
type fakeClient struct {
	response string
	err      error
	called   bool
	lastReq  llm.CompletionRequest
}

func (f *fakeClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.called = true
	f.lastReq = req
	return f.response, f.err
}

func baseQuery() *ParsedQuery {
	return &ParsedQuery{
		Domains:    []lexicon.Domain{lexicon.DomainPort},
		Regions:    []lexicon.Region{lexicon.RegionAsia},
		Timeframe:  Timeframe{Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), Period: "past 14 days"},
		Magnitude:  Bounds{Min: 0.5, Max: 1.0},
		Confidence: Bounds{Min: 0.5, Max: 1.0},
		SortBy:     SortByRelevance,
		Limit:      DefaultLimit,
		Keywords:   []string{"congestion"},
	}
}

const complexQuery = "Compare port congestion in Asia with mining output trends and explain the correlation over the past month"

func TestEnhance_ComplexityGate(t *testing.T) {
	fc := &fakeClient{response: "{}"}
	e := NewEnhancer(fc, DefaultEnhancerConfig(), nil)

	e.Enhance(context.Background(), "ports in asia", baseQuery())
	if fc.called {
		t.Error("AI pass ran for a short simple query")
	}

	e.Enhance(context.Background(), "compare ports", baseQuery())
	if !fc.called {
		t.Error("AI pass skipped a comparative query")
	}
	if !fc.lastReq.JSONMode {
		t.Error("completion request did not ask for JSON mode")
	}
}

func TestEnhance_NilClientIsIdentity(t *testing.T) {
	e := NewEnhancer(nil, DefaultEnhancerConfig(), nil)
	base := baseQuery()
	got := e.Enhance(context.Background(), complexQuery, base)
	if got != base {
		t.Error("nil client should return the baseline unchanged")
	}
}

func TestEnhance_TransportFailureFallsBack(t *testing.T) {
	fc := &fakeClient{err: errors.New("connection refused")}
	e := NewEnhancer(fc, DefaultEnhancerConfig(), nil)
	base := baseQuery()

	got := e.Enhance(context.Background(), complexQuery, base)
	if got != base {
		t.Error("transport failure should fall back to the baseline")
	}
	if got.AIEnhanced {
		t.Error("fallback result must not be marked AI-enhanced")
	}
}

func TestEnhance_UnparseableResponseFallsBack(t *testing.T) {
	fc := &fakeClient{response: "I cannot help with that."}
	e := NewEnhancer(fc, DefaultEnhancerConfig(), nil)
	base := baseQuery()

	got := e.Enhance(context.Background(), complexQuery, base)
	if got != base {
		t.Error("unparseable response should fall back to the baseline")
	}
}

func TestEnhance_MergesFencedResponse(t *testing.T) {
	fc := &fakeClient{response: "```json\n{\"domains\": [\"mine\"], \"severity\": \"high\"}\n```"}
	e := NewEnhancer(fc, DefaultEnhancerConfig(), nil)

	got := e.Enhance(context.Background(), complexQuery, baseQuery())
	if !got.AIEnhanced {
		t.Fatal("merged result not marked AI-enhanced")
	}
	if len(got.Domains) != 2 || got.Domains[0] != lexicon.DomainPort || got.Domains[1] != lexicon.DomainMine {
		t.Errorf("domains = %v, want [port mine] (baseline first, union)", got.Domains)
	}
	if got.Severity != lexicon.SeverityHigh {
		t.Errorf("severity = %q, want high (filled from empty baseline)", got.Severity)
	}
}

func TestMergeEnhancement_Policies(t *testing.T) {
	base := baseQuery()
	base.Severity = lexicon.SeverityCritical

	delta := &enhancement{
		Domains:  []string{"port", "bogus", "energy"},
		Regions:  []string{"europe"},
		Severity: "low",
		Timeframe: &struct {
			Start  string `json:"start"`
			End    string `json:"end"`
			Period string `json:"period"`
		}{Start: "2025-05-01", End: "2025-05-10", Period: "early May"},
		Magnitude:  &Bounds{Min: 0.7, Max: 0.9},
		Confidence: &Bounds{Min: 0.8, Max: 0.2}, // inverted, must be rejected
		Keywords:   []string{"congestion", "backlog"},
	}

	got := mergeEnhancement(base, delta)

	if got.Severity != lexicon.SeverityCritical {
		t.Errorf("severity = %q, model must not override a baseline severity", got.Severity)
	}
	if len(got.Domains) != 2 {
		t.Errorf("domains = %v, want [port energy] with the unknown value dropped", got.Domains)
	}
	if len(got.Regions) != 2 || got.Regions[1] != lexicon.RegionEurope {
		t.Errorf("regions = %v, want [asia europe]", got.Regions)
	}
	if got.Timeframe.Period != "early May" {
		t.Errorf("timeframe = %+v, want the model's dated window", got.Timeframe)
	}
	if got.Magnitude != (Bounds{Min: 0.7, Max: 0.9}) {
		t.Errorf("magnitude = %+v, want full replacement", got.Magnitude)
	}
	if got.Confidence != base.Confidence {
		t.Errorf("confidence = %+v, inverted bounds must keep the baseline", got.Confidence)
	}
	if len(got.Keywords) != 2 {
		t.Errorf("keywords = %v, want deduplicated union", got.Keywords)
	}
	if base.AIEnhanced {
		t.Error("merge mutated the baseline")
	}
}

func TestMergeEnhancement_BadDatesKeepBaselineWindow(t *testing.T) {
	base := baseQuery()
	delta := &enhancement{
		Timeframe: &struct {
			Start  string `json:"start"`
			End    string `json:"end"`
			Period string `json:"period"`
		}{Start: "not-a-date", End: "2025-05-10"},
	}
	got := mergeEnhancement(base, delta)
	if !got.Timeframe.Start.Equal(base.Timeframe.Start) {
		t.Errorf("timeframe = %+v, unparseable dates must keep the baseline", got.Timeframe)
	}
}
