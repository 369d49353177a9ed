// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intel

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Sightline/services/intel/aoi"
	"github.com/AleutianAI/Sightline/services/intel/search"
	"github.com/AleutianAI/Sightline/services/intel/signals"
)

// Handlers exposes the Service over HTTP.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// =============================================================================
// Query parsing
// =============================================================================

type parseQueryRequest struct {
	Query string `json:"query" binding:"required"`
	UseAI bool   `json:"useAI"`
}

// HandleParseQuery interprets a free-text query.
//
// POST /v1/intel/query/parse
func (h *Handlers) HandleParseQuery(c *gin.Context) {
	var req parseQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	parsed := h.service.ParseQuery(c.Request.Context(), req.Query, req.UseAI)
	c.JSON(http.StatusOK, parsed)
}

// =============================================================================
// AOI matching
// =============================================================================

type matchAOIsRequest struct {
	Text          string  `json:"text" binding:"required"`
	MaxMatches    int     `json:"maxMatches"`
	MinConfidence float64 `json:"minConfidence"`
	UseAI         bool    `json:"useAI"`
}

// HandleMatchAOIs ranks catalog sites against a text fragment.
//
// POST /v1/intel/aoi/match
func (h *Handlers) HandleMatchAOIs(c *gin.Context) {
	var req matchAOIsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	result, err := h.service.MatchAOIs(c.Request.Context(), req.Text, aoi.MatchOptions{
		MaxMatches:    req.MaxMatches,
		MinConfidence: req.MinConfidence,
		UseAI:         req.UseAI,
	})
	if err != nil {
		h.logger.Error("AOI match failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// =============================================================================
// Search parameter conversion and validation
// =============================================================================

// HandleSearchParams converts a query to search-API parameters,
// parsing the text first.
//
// POST /v1/intel/search/params
func (h *Handlers) HandleSearchParams(c *gin.Context) {
	var req parseQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	parsed := h.service.ParseQuery(c.Request.Context(), req.Query, req.UseAI)
	params := h.service.ConvertParams(parsed)
	validation := h.service.ValidateParams(&params)
	c.JSON(http.StatusOK, gin.H{
		"query":       parsed,
		"params":      params,
		"queryString": search.QueryString(params),
		"validation":  validation,
	})
}

// HandleValidateParams validates a caller-supplied parameter object.
//
// POST /v1/intel/search/validate
func (h *Handlers) HandleValidateParams(c *gin.Context) {
	var params search.FetchEmbeddingsParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed parameter object"})
		return
	}
	result := h.service.ValidateParams(&params)
	c.JSON(http.StatusOK, gin.H{"validation": result, "params": params})
}

// =============================================================================
// Signal generation
// =============================================================================

type generateSignalsRequest struct {
	Anomalies     []signals.Anomaly      `json:"anomalies" binding:"required,min=1"`
	MarketContext *signals.MarketContext `json:"marketContext"`
}

// HandleGenerateSignals turns an anomaly batch into trading signals.
//
// POST /v1/intel/signals/generate
func (h *Handlers) HandleGenerateSignals(c *gin.Context) {
	var req generateSignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one anomaly is required"})
		return
	}
	result, err := h.service.GenerateSignals(c.Request.Context(), req.Anomalies, req.MarketContext)
	if err != nil {
		var pf *signals.ParseFailureError
		if errors.As(err, &pf) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "signal response unparseable", "excerpt": pf.Excerpt})
			return
		}
		h.logger.Error("signal generation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signal generation failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// =============================================================================
// Health
// =============================================================================

// HandleHealth reports liveness.
//
// GET /v1/intel/health
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleReady reports readiness: the lexicon must be loaded.
//
// GET /v1/intel/ready
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.service == nil || h.service.tables == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
