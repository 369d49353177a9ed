// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sightline starts the Sightline market-intelligence API server.
//
// Sightline interprets free-text market-intelligence queries against a
// catalog of monitored sites (ports, farms, mines, energy facilities):
//   - Rule-based query parsing with optional AI refinement
//   - Multi-strategy AOI matching against the site catalog
//   - Query-to-search-parameter conversion and validation
//   - Trading-signal generation from anomaly batches
//
// Usage:
//
//	go run ./cmd/sightline
//	go run ./cmd/sightline -port 9090 -catalog-url http://geo-catalog:8081
//
// With a completion provider (for AI-assisted stages):
//
//	OPENAI_API_KEY=... go run ./cmd/sightline
//	COMPLETION_PROVIDER=anthropic ANTHROPIC_API_KEY=... go run ./cmd/sightline
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/intel/health
//
//	# Parse a query
//	curl -X POST http://localhost:8080/v1/intel/query/parse \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "Critical port disruptions in Asia today"}'
//
//	# Match sites
//	curl -X POST http://localhost:8080/v1/intel/aoi/match \
//	  -H "Content-Type: application/json" \
//	  -d '{"text": "congestion at yangshan"}'
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/Sightline/services/intel"
	"github.com/AleutianAI/Sightline/services/intel/aoi"
	"github.com/AleutianAI/Sightline/services/llm"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	catalogURL := flag.String("catalog-url", "", "Base URL of the AOI catalog service (or CATALOG_BASE_URL)")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation: trace context flows from incoming
	// HTTP headers through all handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Completion client is optional: without one every AI-assisted
	// stage degrades to its rule-based or heuristic path.
	client, err := llm.NewFromEnv()
	if err != nil {
		logger.Warn("completion provider unavailable, AI-assisted stages disabled",
			slog.String("error", err.Error()))
		client = nil
	}

	source, err := buildCatalogSource(*catalogURL, logger)
	if err != nil {
		logger.Error("failed to build catalog source", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc, err := intel.NewService(intel.DefaultServiceConfig(), client, source, logger)
	if err != nil {
		logger.Error("failed to build intel service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handlers := intel.NewHandlers(svc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("sightline"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	intel.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutting down Sightline server")
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("starting Sightline server",
		slog.String("address", addr),
		slog.Bool("ai_enabled", client != nil))
	if err := router.Run(addr); err != nil {
		logger.Error("failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildCatalogSource wires the HTTP catalog when a base URL is
// configured and falls back to an empty static catalog otherwise, so
// the parsing and signal endpoints still work without the collaborator.
func buildCatalogSource(flagURL string, logger *slog.Logger) (aoi.CatalogSource, error) {
	baseURL := flagURL
	if baseURL == "" {
		baseURL = os.Getenv("CATALOG_BASE_URL")
	}
	if baseURL != "" {
		return aoi.NewHTTPCatalogSource(baseURL, nil, logger), nil
	}
	logger.Warn("no catalog URL configured, AOI matching will return no sites")
	return aoi.NewStaticCatalogSource(nil)
}
