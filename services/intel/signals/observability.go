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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("sightline.intel.signals")

var (
	parserStateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "signals",
		Name:      "parser_state_total",
		Help:      "Responses resolved per parser extraction state, including terminal failures.",
	}, []string{"state"})

	generateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sightline",
		Subsystem: "signals",
		Name:      "generate_duration_seconds",
		Help:      "Latency of one full signal-generation run.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
	})

	batchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "signals",
		Name:      "batch_outcomes_total",
		Help:      "Anomaly batches by outcome.",
	}, []string{"outcome"})

	fallbackSignalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "signals",
		Name:      "fallback_signals_total",
		Help:      "Signals synthesized by the heuristic fallback.",
	})
)
