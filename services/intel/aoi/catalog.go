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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// CatalogSource supplies the AOI catalog. The matcher fetches a fresh
// snapshot per call; caching is a caller concern.
type CatalogSource interface {
	// List returns the full catalog. Implementations must support an
	// unfiltered fetch and must not return partial results on error.
	List(ctx context.Context) ([]AOI, error)
}

// =============================================================================
// HTTP catalog source
// =============================================================================

// HTTPCatalogSource fetches the catalog from the geo-catalog service.
//
// Description:
//
//	Performs GET {baseURL}/aois and accepts either a bare JSON array or
//	an object with an "aois" field. Entries failing validation are
//	skipped with a warning rather than failing the whole fetch.
//
// Thread Safety:
//
//	Safe for concurrent use.
type HTTPCatalogSource struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHTTPCatalogSource creates a catalog source against baseURL.
func NewHTTPCatalogSource(baseURL string, client *http.Client, logger *slog.Logger) *HTTPCatalogSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPCatalogSource{
		baseURL:  baseURL,
		client:   client,
		validate: newCatalogValidator(),
		logger:   logger,
	}
}

// catalogEnvelope is the object form of the catalog response.
type catalogEnvelope struct {
	AOIs []AOI `json:"aois"`
}

// List fetches and validates the full catalog.
func (s *HTTPCatalogSource) List(ctx context.Context) ([]AOI, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/aois", nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		catalogFetchErrors.Inc()
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		catalogFetchErrors.Inc()
		return nil, fmt.Errorf("reading catalog response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		catalogFetchErrors.Inc()
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var entries []AOI
	if err := json.Unmarshal(body, &entries); err != nil {
		var env catalogEnvelope
		if err2 := json.Unmarshal(body, &env); err2 != nil {
			catalogFetchErrors.Inc()
			return nil, fmt.Errorf("decoding catalog response: %w", err)
		}
		entries = env.AOIs
	}

	valid := make([]AOI, 0, len(entries))
	for _, a := range entries {
		if err := validateAOI(s.validate, a); err != nil {
			s.logger.Warn("skipping invalid catalog entry", slog.String("error", err.Error()))
			continue
		}
		valid = append(valid, a)
	}
	return valid, nil
}

// =============================================================================
// Static catalog source
// =============================================================================

// StaticCatalogSource serves a fixed catalog. Used for tests and for
// deployments with a baked-in site list.
type StaticCatalogSource struct {
	entries []AOI
}

// NewStaticCatalogSource validates and holds the given entries. Invalid
// entries are rejected up front.
func NewStaticCatalogSource(entries []AOI) (*StaticCatalogSource, error) {
	v := newCatalogValidator()
	for _, a := range entries {
		if err := validateAOI(v, a); err != nil {
			return nil, err
		}
	}
	cp := make([]AOI, len(entries))
	copy(cp, entries)
	return &StaticCatalogSource{entries: cp}, nil
}

// List returns a copy of the fixed catalog.
func (s *StaticCatalogSource) List(_ context.Context) ([]AOI, error) {
	out := make([]AOI, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
