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
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightcord/nako-gateway/handlers"
	"github.com/nightcord/nako-gateway/llm"
	"github.com/nightcord/nako-gateway/middleware"
	"github.com/nightcord/nako-gateway/observability"
	"github.com/nightcord/nako-gateway/usage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// denyAllProvider rejects every token.
type denyAllProvider struct{}

func (denyAllProvider) Validate(_ context.Context, _ string) (*middleware.UserInfo, error) {
	return nil, fmt.Errorf("denied: %w", middleware.ErrUnauthorized)
}

func newTestRouter(authProvider middleware.AuthProvider) *gin.Engine {
	metrics := observability.InitMetricsForTesting()
	chatHandler := handlers.NewChatHandler(map[string]llm.ModelProvider{}, nil, usage.NopReporter{}, metrics)
	recommendHandler := handlers.NewRecommendHandler(nil, metrics)

	router := gin.New()
	SetupRoutes(router, chatHandler, recommendHandler, authProvider)
	return router
}

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := newTestRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_CORSPreflight(t *testing.T) {
	router := newTestRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestSetupRoutes_CORSHeadersOnNormalResponses(t *testing.T) {
	router := newTestRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupRoutes_AuthGuardsAPIRoutes(t *testing.T) {
	router := newTestRouter(denyAllProvider{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"userId": "A", "message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer expired")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestSetupRoutes_HealthAndMetricsStayOpen(t *testing.T) {
	router := newTestRouter(denyAllProvider{})

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "path %s", path)
	}
}

func TestSetupRoutes_UnknownRoute404(t *testing.T) {
	router := newTestRouter(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}
