// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nightcord/nako-gateway/handlers"
	"github.com/nightcord/nako-gateway/middleware"
)

// SetupRoutes registers the gateway's route table.
//
// # Description
//
// All API routes sit behind permissive CORS. When authProvider is
// non-nil the /api group additionally requires a bearer token; /health
// and /metrics stay open for probes and scrapers.
func SetupRoutes(router *gin.Engine, chatHandler *handlers.ChatHandler,
	recommendHandler *handlers.RecommendHandler, authProvider middleware.AuthProvider) {

	router.Use(corsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	if authProvider != nil {
		api.Use(middleware.AuthMiddleware(authProvider))
	}
	{
		api.POST("/chat", chatHandler.Handle)
		api.GET("/recommend", recommendHandler.Handle)
		api.POST("/recommend", recommendHandler.Handle)
	}
}

// corsMiddleware answers preflight requests and opens the API to
// browser clients on any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
