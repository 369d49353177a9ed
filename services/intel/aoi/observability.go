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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("sightline.intel.aoi")

var (
	matchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sightline",
		Subsystem: "aoi",
		Name:      "match_duration_seconds",
		Help:      "Latency of one full catalog matching pass.",
		Buckets:   prometheus.DefBuckets,
	})

	strategyCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "aoi",
		Name:      "strategy_candidates_total",
		Help:      "Candidates produced per matching strategy.",
	}, []string{"strategy"})

	catalogFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sightline",
		Subsystem: "aoi",
		Name:      "catalog_fetch_errors_total",
		Help:      "Failed catalog fetches.",
	})
)
