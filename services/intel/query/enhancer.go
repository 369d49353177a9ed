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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/llm"
)

// =============================================================================
// AI-Augmented Enhancer
// =============================================================================

// EnhancerConfig tunes when and how the AI pass runs.
type EnhancerConfig struct {
	// MinTokens is the token count above which a query is considered
	// complex enough to warrant an AI pass.
	MinTokens int

	// Timeout bounds the completion call.
	Timeout time.Duration

	// Temperature for the completion request.
	Temperature float64

	// MaxTokens caps the completion response length.
	MaxTokens int
}

// DefaultEnhancerConfig returns the standard enhancer tuning.
func DefaultEnhancerConfig() EnhancerConfig {
	return EnhancerConfig{
		MinTokens:   10,
		Timeout:     15 * time.Second,
		Temperature: 0.1,
		MaxTokens:   600,
	}
}

// Enhancer optionally refines a rule-parsed query with a completion model.
//
// Description:
//
//	The rule-based result is always the baseline. The AI pass runs only
//	for queries judged complex (long, comparative, correlational, or
//	analytic phrasing); when it runs and succeeds, its output is merged
//	field by field into the baseline. Any failure (transport, timeout,
//	unparseable response) falls back to the baseline untouched.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Enhancer struct {
	client llm.CompletionClient
	cfg    EnhancerConfig
	logger *slog.Logger
}

// NewEnhancer creates an enhancer. A nil client disables the AI pass
// entirely (Enhance becomes the identity on the rule-based result).
func NewEnhancer(client llm.CompletionClient, cfg EnhancerConfig, logger *slog.Logger) *Enhancer {
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultEnhancerConfig().MinTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEnhancerConfig().Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultEnhancerConfig().MaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{client: client, cfg: cfg, logger: logger}
}

// complexity vocabulary: any hit marks the query as worth an AI pass.
var complexityMarkers = []string{
	"compare", "compared", "comparison", "versus", " vs ",
	"correlate", "correlation", "relationship", "impact of", "effect of",
	"trend", "pattern", "explain", "why", "analyze", "analysis",
	" and also ", " as well as ", " along with ",
}

// needsEnhancement applies the complexity gate.
func (e *Enhancer) needsEnhancement(text string) bool {
	if len(strings.Fields(text)) > e.cfg.MinTokens {
		return true
	}
	lower := strings.ToLower(text)
	for _, m := range complexityMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Enhance returns the rule-based query, refined by the completion model
// when the text warrants it.
//
// Outputs:
//
//   - *ParsedQuery: Never nil. AIEnhanced is true only when the AI pass
//     ran and its output was merged.
func (e *Enhancer) Enhance(ctx context.Context, text string, base *ParsedQuery) *ParsedQuery {
	if e.client == nil || !e.needsEnhancement(text) {
		enhancerTotal.WithLabelValues("skipped").Inc()
		return base
	}

	ctx, span := tracer.Start(ctx, "query.Enhancer.Enhance")
	defer span.End()
	span.SetAttributes(attribute.String("query_preview", truncateForLog(text, 100)))

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: enhancerSystemPrompt,
		UserPrompt:   e.buildPrompt(text, base),
		Temperature:  e.cfg.Temperature,
		MaxTokens:    e.cfg.MaxTokens,
		JSONMode:     true,
	})
	enhancerLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		enhancerTotal.WithLabelValues("error").Inc()
		e.logger.Warn("AI enhancement failed, using rule-based result",
			slog.String("error", err.Error()))
		return base
	}

	delta, err := parseEnhancement(raw)
	if err != nil {
		enhancerTotal.WithLabelValues("parse_error").Inc()
		e.logger.Warn("AI enhancement unparseable, using rule-based result",
			slog.String("error", err.Error()),
			slog.String("response_preview", truncateForLog(raw, 200)))
		return base
	}

	enhancerTotal.WithLabelValues("merged").Inc()
	return mergeEnhancement(base, delta)
}

const enhancerSystemPrompt = `You refine structured interpretations of market-intelligence queries.
You receive the user's query and a baseline interpretation produced by keyword rules.
Correct or enrich the baseline. Respond with a single JSON object using only these keys
(omit any key you have no opinion on):
{
  "domains": ["port"|"farm"|"mine"|"energy"],
  "regions": ["asia"|"europe"|"northAmerica"|"southAmerica"|"africa"|"middleEast"|"oceania"],
  "severity": "low"|"moderate"|"high"|"critical",
  "timeframe": {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD", "period": "human description"},
  "magnitude": {"min": 0.0, "max": 1.0},
  "confidence": {"min": 0.0, "max": 1.0},
  "marketIntent": "bullish"|"bearish"|"analysis",
  "keywords": ["..."],
  "aoiNames": ["..."]
}`

func (e *Enhancer) buildPrompt(text string, base *ParsedQuery) string {
	baseline, _ := json.Marshal(map[string]any{
		"domains":      base.Domains,
		"regions":      base.Regions,
		"severity":     base.Severity,
		"period":       base.Timeframe.Period,
		"magnitude":    base.Magnitude,
		"confidence":   base.Confidence,
		"marketIntent": base.MarketIntent,
		"keywords":     base.Keywords,
		"aoiNames":     base.AOINames,
	})
	return fmt.Sprintf("Query: %s\n\nBaseline interpretation: %s", text, baseline)
}

// enhancement is the wire shape of the model's delta. Pointer and slice
// fields distinguish "no opinion" from an explicit value.
type enhancement struct {
	Domains      []string `json:"domains"`
	Regions      []string `json:"regions"`
	Severity     string   `json:"severity"`
	Timeframe    *struct {
		Start  string `json:"start"`
		End    string `json:"end"`
		Period string `json:"period"`
	} `json:"timeframe"`
	Magnitude    *Bounds  `json:"magnitude"`
	Confidence   *Bounds  `json:"confidence"`
	MarketIntent string   `json:"marketIntent"`
	Keywords     []string `json:"keywords"`
	AOINames     []string `json:"aoiNames"`
}

// parseEnhancement recovers a JSON object from model output, tolerating
// markdown fences and surrounding prose.
func parseEnhancement(raw string) (*enhancement, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first == -1 || last == -1 || last <= first {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var delta enhancement
	if err := json.Unmarshal([]byte(cleaned[first:last+1]), &delta); err != nil {
		return nil, fmt.Errorf("decoding enhancement: %w", err)
	}
	return &delta, nil
}

// validDomains filters model-supplied domain strings to known values.
func validDomains(in []string) []lexicon.Domain {
	var out []lexicon.Domain
	for _, s := range in {
		d := lexicon.Domain(strings.TrimSpace(s))
		if lexicon.ValidDomain(d) {
			out = append(out, d)
		}
	}
	return out
}

// validRegions filters model-supplied region strings to known values.
func validRegions(in []string) []lexicon.Region {
	known := make(map[lexicon.Region]bool)
	for _, r := range lexicon.AllRegions() {
		known[r] = true
	}
	var out []lexicon.Region
	for _, s := range in {
		r := lexicon.Region(strings.TrimSpace(s))
		if known[r] {
			out = append(out, r)
		}
	}
	return out
}
