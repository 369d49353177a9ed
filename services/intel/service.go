// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intel is the market-intelligence interpretation service: it
// parses free-text queries, matches areas of interest, converts queries
// to search-API parameters, and generates trading signals from anomaly
// batches.
package intel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/Sightline/services/intel/aoi"
	"github.com/AleutianAI/Sightline/services/intel/lexicon"
	"github.com/AleutianAI/Sightline/services/intel/query"
	"github.com/AleutianAI/Sightline/services/intel/search"
	"github.com/AleutianAI/Sightline/services/intel/signals"
	"github.com/AleutianAI/Sightline/services/llm"
)

// ServiceConfig configures an intel Service.
type ServiceConfig struct {
	// Enhancer tunes the AI query-enhancement pass.
	Enhancer query.EnhancerConfig

	// Generator tunes signal batching and pacing.
	Generator signals.GeneratorConfig
}

// DefaultServiceConfig returns the standard service tuning.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Enhancer:  query.DefaultEnhancerConfig(),
		Generator: signals.DefaultGeneratorConfig(),
	}
}

// Service wires the interpretation pipeline together.
//
// Thread Safety:
//
//	Safe for concurrent use; all components are stateless per call.
type Service struct {
	tables    *lexicon.Tables
	parser    *query.Parser
	enhancer  *query.Enhancer
	matcher   *aoi.Matcher
	generator *signals.Generator
	logger    *slog.Logger
}

// NewService builds the service. client may be nil: every AI-assisted
// stage then degrades to its rule-based or heuristic path.
func NewService(cfg ServiceConfig, client llm.CompletionClient, source aoi.CatalogSource, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tables, err := lexicon.Load()
	if err != nil {
		return nil, fmt.Errorf("loading lexicon: %w", err)
	}

	parser, err := query.NewParser(tables, logger)
	if err != nil {
		return nil, fmt.Errorf("building parser: %w", err)
	}

	matcher, err := aoi.NewMatcher(tables, source, client, logger)
	if err != nil {
		return nil, fmt.Errorf("building matcher: %w", err)
	}

	generator, err := signals.NewGenerator(client, tables, cfg.Generator, logger)
	if err != nil {
		return nil, fmt.Errorf("building generator: %w", err)
	}

	return &Service{
		tables:    tables,
		parser:    parser,
		enhancer:  query.NewEnhancer(client, cfg.Enhancer, logger),
		matcher:   matcher,
		generator: generator,
		logger:    logger,
	}, nil
}

// ParseQuery interprets text into a fully resolved query. With useAI
// set, complex queries get a best-effort model refinement.
func (s *Service) ParseQuery(ctx context.Context, text string, useAI bool) *query.ParsedQuery {
	base := s.parser.Parse(ctx, text)
	if !useAI {
		return base
	}
	return s.enhancer.Enhance(ctx, text, base)
}

// MatchAOIs ranks catalog sites against text.
func (s *Service) MatchAOIs(ctx context.Context, text string, opts aoi.MatchOptions) (*aoi.MatchResult, error) {
	return s.matcher.Match(ctx, text, opts)
}

// ConvertParams maps a resolved query onto the search-API contract.
func (s *Service) ConvertParams(q *query.ParsedQuery) search.FetchEmbeddingsParams {
	return search.ConvertToAPIParams(s.tables, q)
}

// ValidateParams screens a parameter object before dispatch.
func (s *Service) ValidateParams(p *search.FetchEmbeddingsParams) search.ValidationResult {
	return search.ValidateAPIParams(p)
}

// GenerateSignals produces one trading signal per anomaly.
func (s *Service) GenerateSignals(ctx context.Context, anomalies []signals.Anomaly, mc *signals.MarketContext) (*signals.GenerationResult, error) {
	return s.generator.Generate(ctx, anomalies, mc)
}
