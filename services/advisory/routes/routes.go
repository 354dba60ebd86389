// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finhaven/finhaven/pkg/identity"
	"github.com/finhaven/finhaven/services/advisory/engagement"
	"github.com/finhaven/finhaven/services/advisory/handlers"
	"github.com/finhaven/finhaven/services/advisory/middleware"
	"github.com/finhaven/finhaven/services/advisory/realtime"
)

// SetupRoutes wires the advisory API onto the router. /health and /metrics
// stay unauthenticated; everything under /v1 requires a resolved principal.
func SetupRoutes(router *gin.Engine, provider identity.Provider,
	coord *engagement.Coordinator, registry *realtime.Registry) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1", middleware.Auth(provider))
	{
		advisory := v1.Group("/advisory")
		{
			advisory.POST("/requests", handlers.RequestAdvisor(coord))
			advisory.GET("/requests/pending", handlers.PendingRequests(coord))
			advisory.POST("/requests/:requestId/respond", handlers.RespondToRequest(coord))
			advisory.DELETE("/requests/:requestId", handlers.CancelRequest(coord))
			advisory.GET("/status", handlers.EngagementStatus(coord))
			advisory.GET("/stats", handlers.AdvisorStats(coord))
			advisory.GET("/ws", handlers.HandleRealtime(registry))
		}
	}
}
