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
	"errors"
	"testing"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/llm"
)

func testCatalog() []AOI {
	return []AOI{
		{
			ID: "aoi-port-shanghai", Name: "Port of Shanghai", Type: lexicon.DomainPort,
			BBox:        []float64{121.3, 30.6, 122.1, 31.4},
			Description: "Largest container port in the world, including the Yangshan deepwater terminal in China",
		},
		{
			ID: "aoi-port-rotterdam", Name: "Port of Rotterdam", Type: lexicon.DomainPort,
			BBox:        []float64{3.9, 51.8, 4.6, 52.0},
			Description: "Largest seaport in Europe, petrochemical cluster in the Netherlands",
		},
		{
			ID: "aoi-mine-escondida", Name: "Escondida Mine", Type: lexicon.DomainMine,
			BBox:        []float64{-69.3, -24.4, -68.9, -24.1},
			Description: "Copper mine in the Atacama desert of Chile, largest copper producer",
		},
		{
			ID: "aoi-energy-ghawar", Name: "Ghawar Field", Type: lexicon.DomainEnergy,
			BBox:        []float64{49.0, 25.0, 49.9, 26.0},
			Description: "Conventional oil field in Saudi Arabia, the largest in the world",
		},
	}
}

func newTestMatcher(t *testing.T, catalog []AOI, client llm.CompletionClient) *Matcher {
	t.Helper()
	src, err := NewStaticCatalogSource(catalog)
	if err != nil {
		t.Fatalf("NewStaticCatalogSource: %v", err)
	}
	m, err := NewMatcher(lexicon.MustLoad(), src, client, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	return m
}

func TestMatch_DirectName(t *testing.T) {
	m := newTestMatcher(t, testCatalog(), nil)

	res, err := m.Match(context.Background(), "Congestion at the Port of Shanghai this week", MatchOptions{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Matches) == 0 {
		t.Fatal("no matches for a direct name reference")
	}
	top := res.Matches[0]
	if top.AOIID != "aoi-port-shanghai" {
		t.Errorf("top match = %s, want aoi-port-shanghai", top.AOIID)
	}
	if top.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95 for a direct name match", top.Confidence)
	}
	if len(res.Suggestions) != 0 {
		t.Errorf("suggestions = %v, want none for a strong match", res.Suggestions)
	}
}

func TestMatch_Alias(t *testing.T) {
	m := newTestMatcher(t, testCatalog(), nil)

	res, err := m.Match(context.Background(), "berthing delays around yangshan", MatchOptions{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Matches) == 0 {
		t.Fatal("no matches for a known alias")
	}
	top := res.Matches[0]
	if top.AOIID != "aoi-port-shanghai" {
		t.Errorf("top match = %s, want aoi-port-shanghai via alias", top.AOIID)
	}
	if top.Confidence < 0.85 {
		t.Errorf("confidence = %v, want at least the alias score 0.85", top.Confidence)
	}
}

func TestMatch_DedupeKeepsMaxConfidence(t *testing.T) {
	m := newTestMatcher(t, testCatalog(), nil)

	// Direct (0.95), alias (0.85), and domain-context strategies all
	// nominate Shanghai here; exactly one entry must survive, at 0.95.
	res, err := m.Match(context.Background(), "port of shanghai and yangshan congestion", MatchOptions{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	count := 0
	for _, match := range res.Matches {
		if match.AOIID == "aoi-port-shanghai" {
			count++
			if match.Confidence != 0.95 {
				t.Errorf("confidence = %v, want the strategy maximum 0.95", match.Confidence)
			}
		}
	}
	if count != 1 {
		t.Errorf("aoi-port-shanghai appeared %d times, want exactly once", count)
	}
}

func TestMatch_IdempotentAndCatalogOrderIndependent(t *testing.T) {
	catalog := testCatalog()
	reversed := make([]AOI, len(catalog))
	for i, a := range catalog {
		reversed[len(catalog)-1-i] = a
	}

	text := "copper mine disruption in Chile near escondida"
	first, err := newTestMatcher(t, catalog, nil).Match(context.Background(), text, MatchOptions{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	second, err := newTestMatcher(t, reversed, nil).Match(context.Background(), text, MatchOptions{})
	if err != nil {
		t.Fatalf("Match (reversed catalog): %v", err)
	}

	if len(first.Matches) != len(second.Matches) {
		t.Fatalf("match counts differ: %d vs %d", len(first.Matches), len(second.Matches))
	}
	for i := range first.Matches {
		a, b := first.Matches[i], second.Matches[i]
		if a.AOIID != b.AOIID || a.Confidence != b.Confidence {
			t.Errorf("rank %d differs: %s@%v vs %s@%v", i, a.AOIID, a.Confidence, b.AOIID, b.Confidence)
		}
	}

	again, err := newTestMatcher(t, catalog, nil).Match(context.Background(), text, MatchOptions{})
	if err != nil {
		t.Fatalf("Match (repeat): %v", err)
	}
	if len(again.Matches) != len(first.Matches) {
		t.Errorf("repeat run diverged: %d vs %d matches", len(again.Matches), len(first.Matches))
	}
}

func TestMatch_MinConfidenceAndTruncation(t *testing.T) {
	m := newTestMatcher(t, testCatalog(), nil)

	// "port" alone triggers the domain-context strategy at 0.4 for both
	// port entries; a 0.5 floor must drop them.
	res, err := m.Match(context.Background(), "any port problems", MatchOptions{MinConfidence: 0.5})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	for _, match := range res.Matches {
		if match.Confidence < 0.5 {
			t.Errorf("match %s at %v leaked under the confidence floor", match.AOIID, match.Confidence)
		}
	}

	res, err = m.Match(context.Background(), "any port problems", MatchOptions{MaxMatches: 1})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Matches) > 1 {
		t.Errorf("got %d matches with maxMatches=1", len(res.Matches))
	}
}

func TestMatch_WeakResultsCarrySuggestions(t *testing.T) {
	m := newTestMatcher(t, testCatalog(), nil)

	res, err := m.Match(context.Background(), "port issues somewhere", MatchOptions{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(res.Matches) > 0 && res.Matches[0].Confidence >= suggestionThreshold {
		t.Fatalf("unexpected strong match %v for a vague query", res.Matches[0])
	}
	if len(res.Suggestions) == 0 {
		t.Error("weak result set carried no suggestions")
	}
	if len(res.Suggestions) > maxSuggestions {
		t.Errorf("got %d suggestions, cap is %d", len(res.Suggestions), maxSuggestions)
	}
}

type fakeCompletion struct {
	response string
	err      error
	called   bool
}

func (f *fakeCompletion) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	f.called = true
	return f.response, f.err
}

func TestMatch_AIFallbackGating(t *testing.T) {
	fc := &fakeCompletion{response: `[{"aoiId": "aoi-energy-ghawar", "score": 1.0}]`}
	m := newTestMatcher(t, testCatalog(), fc)

	// A strong direct match set should not invoke the model.
	_, err := m.Match(context.Background(), "port of shanghai, port of rotterdam, escondida mine status", MatchOptions{UseAI: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if fc.called {
		t.Error("AI strategy ran despite three keyword matches")
	}

	// A query with no keyword signal should.
	res, err := m.Match(context.Background(), "crude output swing watch", MatchOptions{UseAI: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !fc.called {
		t.Fatal("AI strategy did not run for a weak keyword result")
	}
	found := false
	for _, match := range res.Matches {
		if match.AOIID == "aoi-energy-ghawar" {
			found = true
			if match.Confidence != 0.9 {
				t.Errorf("confidence = %v, want model score 1.0 discounted to 0.9", match.Confidence)
			}
		}
	}
	if !found {
		t.Error("model-nominated match missing from results")
	}
}

func TestMatch_AIFailureDegradesSilently(t *testing.T) {
	fc := &fakeCompletion{err: errors.New("rate limited")}
	m := newTestMatcher(t, testCatalog(), fc)

	res, err := m.Match(context.Background(), "crude output swing watch", MatchOptions{UseAI: true})
	if err != nil {
		t.Fatalf("Match must not fail on an AI error: %v", err)
	}
	if res == nil {
		t.Fatal("nil result")
	}
}

type failingSource struct{}

func (failingSource) List(_ context.Context) ([]AOI, error) {
	return nil, errors.New("catalog unavailable")
}

func TestMatch_CatalogFailurePropagates(t *testing.T) {
	m, err := NewMatcher(lexicon.MustLoad(), failingSource{}, nil, nil)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	if _, err := m.Match(context.Background(), "port of shanghai", MatchOptions{}); err == nil {
		t.Error("catalog failure did not propagate")
	}
}

func TestStaticCatalogSource_RejectsInvalidEntries(t *testing.T) {
	_, err := NewStaticCatalogSource([]AOI{
		{ID: "bad", Name: "Bad Box", Type: lexicon.DomainPort, BBox: []float64{10, 20, 5, 25}},
	})
	if err == nil {
		t.Error("inverted bbox accepted")
	}

	_, err = NewStaticCatalogSource([]AOI{
		{ID: "bad2", Name: "No Type", BBox: []float64{0, 0, 1, 1}},
	})
	if err == nil {
		t.Error("missing type accepted")
	}
}
