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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/llm"
)

// GeneratorConfig tunes batching and pacing.
type GeneratorConfig struct {
	// BatchSize is the number of anomalies per completion call.
	BatchSize int

	// BatchInterval is the minimum spacing between completion calls,
	// respecting the completion service's rate limits.
	BatchInterval time.Duration

	// Temperature and MaxTokens for the completion request.
	Temperature float64
	MaxTokens   int

	// FallbackConfidenceCap bounds the confidence of heuristic signals.
	FallbackConfidenceCap float64
}

// DefaultGeneratorConfig returns the standard generator tuning.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BatchSize:             3,
		BatchInterval:         2 * time.Second,
		Temperature:           0.3,
		MaxTokens:             1200,
		FallbackConfidenceCap: 0.5,
	}
}

// GenerationResult bundles the signals with a run summary.
type GenerationResult struct {
	Signals []TradingSignal `json:"signals"`
	Summary string          `json:"summary"`
}

// Generator produces trading signals for anomaly batches.
//
// Description:
//
//	Anomalies are chunked and sent to the completion service batch by
//	batch, paced by a rate limiter. A batch whose completion call or
//	response parse fails falls back to the heuristic generator for
//	that batch only; one failing batch never aborts the rest. Every
//	input anomaly yields exactly one signal before deduplication.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Generator struct {
	client  llm.CompletionClient
	tables  *lexicon.Tables
	cfg     GeneratorConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGenerator creates a generator. client may be nil; every batch then
// uses the heuristic fallback.
func NewGenerator(client llm.CompletionClient, tables *lexicon.Tables, cfg GeneratorConfig, logger *slog.Logger) (*Generator, error) {
	if tables == nil {
		return nil, fmt.Errorf("tables must not be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultGeneratorConfig().BatchSize
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = DefaultGeneratorConfig().BatchInterval
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultGeneratorConfig().MaxTokens
	}
	if cfg.FallbackConfidenceCap <= 0 || cfg.FallbackConfidenceCap > 1 {
		cfg.FallbackConfidenceCap = DefaultGeneratorConfig().FallbackConfidenceCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:  client,
		tables:  tables,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		logger:  logger,
	}, nil
}

// Generate produces one signal per anomaly. Model signals are
// deduplicated by instrument-domain pairing; fallback signals are
// kept one-to-one with their anomalies.
//
// Outputs:
//
//   - *GenerationResult: Signals plus a run summary. Never nil on
//     success; an empty anomaly list yields an empty result.
//   - error: Only context cancellation. Completion failures degrade to
//     fallback signals.
func (g *Generator) Generate(ctx context.Context, anomalies []Anomaly, mc *MarketContext) (*GenerationResult, error) {
	ctx, span := tracer.Start(ctx, "signals.Generator.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("anomalies", len(anomalies)))

	start := time.Now()
	defer func() { generateLatency.Observe(time.Since(start).Seconds()) }()

	if len(anomalies) == 0 {
		return &GenerationResult{Summary: "no anomalies supplied"}, nil
	}

	var all []TradingSignal
	aiCount, fallbackCount := 0, 0

	for batchStart := 0; batchStart < len(anomalies); batchStart += g.cfg.BatchSize {
		end := batchStart + g.cfg.BatchSize
		if end > len(anomalies) {
			end = len(anomalies)
		}
		batch := anomalies[batchStart:end]

		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for batch slot: %w", err)
		}

		sigs, fromModel := g.generateBatch(ctx, batch, mc, batchStart)
		if fromModel {
			aiCount += len(sigs)
			batchOutcomes.WithLabelValues("model").Inc()
		} else {
			fallbackCount += len(sigs)
			batchOutcomes.WithLabelValues("fallback").Inc()
		}
		all = append(all, sigs...)
	}

	deduped := dedupeSignals(all)
	result := &GenerationResult{
		Signals: deduped,
		Summary: summarize(deduped, len(anomalies), aiCount, fallbackCount),
	}
	span.SetAttributes(attribute.Int("signals", len(deduped)))
	return result, nil
}

// generateBatch returns one signal per anomaly in the batch and
// whether they came from the model. offset is the batch's position in
// the full anomaly list; fallback instruments rotate over it so
// same-domain anomalies in different batches draw different tickers.
func (g *Generator) generateBatch(ctx context.Context, batch []Anomaly, mc *MarketContext, offset int) ([]TradingSignal, bool) {
	if g.client == nil {
		return g.fallbackBatch(batch, offset), false
	}

	raw, err := g.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: signalSystemPrompt,
		UserPrompt:   buildSignalPrompt(batch, mc),
		Temperature:  g.cfg.Temperature,
		MaxTokens:    g.cfg.MaxTokens,
		JSONMode:     false, // the contract is a bare JSON array
	})
	if err != nil {
		g.logger.Warn("signal batch completion failed, using fallback",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()))
		return g.fallbackBatch(batch, offset), false
	}

	sigs, err := ParseResponse(raw)
	if err != nil {
		g.logger.Warn("signal batch response unparseable, using fallback",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()))
		return g.fallbackBatch(batch, offset), false
	}

	return g.attachProvenance(sigs, batch, offset), true
}

// attachProvenance matches parsed signals back to their anomalies by
// position and tops up with fallback signals when the model returned
// fewer records than anomalies.
func (g *Generator) attachProvenance(sigs []TradingSignal, batch []Anomaly, offset int) []TradingSignal {
	out := make([]TradingSignal, 0, len(batch))
	for i, a := range batch {
		if i < len(sigs) {
			s := sigs[i]
			s.ID = uuid.NewString()
			s.AOIID = a.AOIID
			s.Domain = a.Domain
			s.Magnitude = a.Magnitude
			s.Timestamp = a.Timestamp
			out = append(out, s)
			continue
		}
		out = append(out, g.fallbackSignal(a, offset+i))
	}
	return out
}

// fallbackBatch synthesizes one heuristic signal per anomaly.
func (g *Generator) fallbackBatch(batch []Anomaly, offset int) []TradingSignal {
	out := make([]TradingSignal, 0, len(batch))
	for i, a := range batch {
		out = append(out, g.fallbackSignal(a, offset+i))
	}
	return out
}

// fallbackSignal derives a conservative signal from the anomaly alone:
// the instrument comes from the per-domain default universe, the
// direction from the anomaly's magnitude, and the confidence is
// discounted and capped.
func (g *Generator) fallbackSignal(a Anomaly, ordinal int) TradingSignal {
	instruments := g.tables.Instruments[a.Domain]
	instrument := "SPY"
	if len(instruments) > 0 {
		instrument = instruments[ordinal%len(instruments)]
	}

	direction := DirectionNeutral
	if a.Magnitude >= 0.6 {
		// A large operational disruption pressures the site's
		// domain-linked operators.
		direction = DirectionShort
	} else if a.Magnitude >= 0.35 {
		direction = DirectionLong
	}

	confidence := 0.25 + 0.25*a.Magnitude
	if confidence > g.cfg.FallbackConfidenceCap {
		confidence = g.cfg.FallbackConfidenceCap
	}

	fallbackSignalsTotal.Inc()
	return TradingSignal{
		ID:         uuid.NewString(),
		Instrument: instrument,
		Direction:  direction,
		Rationale: fmt.Sprintf(
			"Heuristic fallback: %s anomaly at %s (magnitude %.2f) implies near-term operational impact on %s-linked instruments; generated without model input.",
			a.Domain, a.AOIName, a.Magnitude, a.Domain),
		Confidence: confidence,
		AOIID:      a.AOIID,
		Domain:     a.Domain,
		Magnitude:  a.Magnitude,
		Timestamp:  a.Timestamp,
		Fallback:   true,
	}
}

// dedupeSignals collapses duplicate instrument-domain pairs among
// model signals, keeping the highest-confidence one. Fallback signals
// are exempt: each stands for exactly one anomaly, and collapsing them
// would drop anomalies whenever same-domain inputs outnumber the
// domain's instrument universe. Input order is preserved otherwise.
func dedupeSignals(sigs []TradingSignal) []TradingSignal {
	type key struct {
		instrument string
		domain     lexicon.Domain
	}
	bestIdx := make(map[key]int)
	var out []TradingSignal
	for _, s := range sigs {
		if s.Fallback {
			out = append(out, s)
			continue
		}
		k := key{s.Instrument, s.Domain}
		if i, ok := bestIdx[k]; ok {
			if s.Confidence > out[i].Confidence {
				out[i] = s
			}
			continue
		}
		bestIdx[k] = len(out)
		out = append(out, s)
	}
	return out
}

func summarize(sigs []TradingSignal, anomalies, aiCount, fallbackCount int) string {
	long, short, neutral := 0, 0, 0
	confidenceSum := 0.0
	for _, s := range sigs {
		switch s.Direction {
		case DirectionLong:
			long++
		case DirectionShort:
			short++
		case DirectionNeutral:
			neutral++
		}
		confidenceSum += s.Confidence
	}
	mean := 0.0
	if len(sigs) > 0 {
		mean = confidenceSum / float64(len(sigs))
	}
	return fmt.Sprintf("%d signals from %d anomalies (%d model, %d fallback before dedupe): %d long, %d short, %d neutral, avg confidence %.2f",
		len(sigs), anomalies, aiCount, fallbackCount, long, short, neutral, mean)
}
