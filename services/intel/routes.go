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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all intel routes with the router.
//
// Description:
//
//	Registers all /v1/intel/* endpoints with the given Gin router
//	group. The group should already have any required middleware
//	applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/intel/query/parse - Interpret a free-text query
//	POST /v1/intel/aoi/match - Match text against the AOI catalog
//	POST /v1/intel/search/params - Convert a query to search parameters
//	POST /v1/intel/search/validate - Validate a parameter object
//	POST /v1/intel/signals/generate - Generate signals from anomalies
//	GET  /v1/intel/health - Health check
//	GET  /v1/intel/ready - Readiness check
//
// Example:
//
//	service, _ := intel.NewService(intel.DefaultServiceConfig(), client, source, logger)
//	handlers := intel.NewHandlers(service, logger)
//
//	v1 := router.Group("/v1")
//	intel.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	intel := rg.Group("/intel")
	{
		intel.POST("/query/parse", handlers.HandleParseQuery)

		intel.POST("/aoi/match", handlers.HandleMatchAOIs)

		intel.POST("/search/params", handlers.HandleSearchParams)
		intel.POST("/search/validate", handlers.HandleValidateParams)

		intel.POST("/signals/generate", handlers.HandleGenerateSignals)

		intel.GET("/health", handlers.HandleHealth)
		intel.GET("/ready", handlers.HandleReady)
	}
}
