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
	"go.opentelemetry.io/otel"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tracer = otel.Tracer("sightline.intel.query")

var (
	parseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sightline",
		Subsystem: "query",
		Name:      "parse_latency_seconds",
		Help:      "Rule-based parse latency.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	parseDimensionHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "query",
		Name:      "dimension_hits_total",
		Help:      "Query dimensions resolved from text vs. from defaults.",
	}, []string{"dimension", "source"})

	enhancerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "query",
		Name:      "enhancer_total",
		Help:      "AI enhancement outcomes.",
	}, []string{"outcome"})

	enhancerLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sightline",
		Subsystem: "query",
		Name:      "enhancer_latency_seconds",
		Help:      "AI enhancement pass latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// truncateForLog shortens a query string for structured log fields.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
