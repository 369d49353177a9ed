// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// completionTracerName is the shared OTel tracer name for completion clients.
const completionTracerName = "sightline.llm"

// Package-level Prometheus metrics for completion calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// completionDuration measures the duration of completion API calls.
	//
	// Labels:
	//   - provider: "openai", "anthropic"
	//   - status: "success" or "error"
	completionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sightline",
			Subsystem: "completion",
			Name:      "call_duration_seconds",
			Help:      "Duration of completion-service API calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// completionErrorsTotal counts completion errors by type.
	//
	// Labels:
	//   - provider: "openai", "anthropic"
	//   - error_type: "timeout", "auth", "rate_limit", "server", "unknown"
	completionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sightline",
			Subsystem: "completion",
			Name:      "errors_total",
			Help:      "Total completion-service errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)

// classifyCompletionError maps an error to a label-safe error type string.
//
// Description:
//
//	Inspects the error message to categorize it into one of the predefined
//	error types. Used for Prometheus labels to avoid high cardinality.
//
// Outputs:
//
//	string - One of "timeout", "auth", "rate_limit", "server", "unknown".
//	Empty string for nil errors.
func classifyCompletionError(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthorized"):
		return "auth"
	case strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "overloaded"):
		return "rate_limit"
	case strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503"):
		return "server"
	default:
		return "unknown"
	}
}
