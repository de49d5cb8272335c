// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/nightcord/nako-gateway/datatypes"
	"github.com/nightcord/nako-gateway/observability"
	"github.com/nightcord/nako-gateway/sticker"
)

// recentExclusionWindow is how many trailing excludeRecent entries are
// scanned for used stickers.
const recentExclusionWindow = 10

// RecommendHandler serves GET and POST /api/recommend.
//
// # Description
//
// Returns the stickers most similar to a free-text prompt. POST carries a
// JSON body; GET carries the same fields as query parameters, with
// excludeRecent comma-separated. When the recommender is unconfigured the
// endpoint answers 503.
type RecommendHandler struct {
	stickers StickerService
	metrics  *observability.ChatMetrics
}

// NewRecommendHandler wires the recommend handler.
func NewRecommendHandler(stickers StickerService, metrics *observability.ChatMetrics) *RecommendHandler {
	return &RecommendHandler{
		stickers: stickers,
		metrics:  metrics,
	}
}

// Handle processes one recommend request in either method.
func (h *RecommendHandler) Handle(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "RecommendHandler.Handle")
	defer span.End()

	if h.stickers == nil {
		writeError(c, http.StatusServiceUnavailable, datatypes.ErrCodeVectorizeUnavailable,
			"Sticker recommendation service is not available")
		return
	}

	var req datatypes.RecommendRequest
	switch c.Request.Method {
	case http.MethodGet:
		if !h.bindQuery(c, &req) {
			return
		}
	case http.MethodPost:
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Failed to parse recommend request", "error", err)
			writeError(c, http.StatusBadRequest, datatypes.ErrCodeInvalidJSON, "Invalid JSON in request body")
			return
		}
	default:
		writeError(c, http.StatusMethodNotAllowed, datatypes.ErrCodeMethodNotAllowed,
			"Only GET and POST methods are supported")
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, datatypes.ErrCodeInvalidRequest,
			"prompt is required and must be a non-empty string")
		return
	}

	exclude := sticker.ExtractRecentStickers(req.ExcludeRecent, recentExclusionWindow)

	results, err := h.stickers.SearchWithScores(ctx, req.Prompt, req.ClampTopK(), exclude)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Sticker search failed", "error", err)
		h.metrics.RequestsTotal.WithLabelValues("recommend", "error").Inc()
		h.metrics.ErrorsTotal.WithLabelValues("recommend", "search_error").Inc()
		writeError(c, http.StatusInternalServerError, datatypes.ErrCodeInternalError, "An internal error occurred")
		return
	}

	if results == nil {
		results = []datatypes.StickerResult{}
	}
	h.metrics.RequestsTotal.WithLabelValues("recommend", "success").Inc()

	c.JSON(http.StatusOK, datatypes.RecommendResponse{
		Success:  true,
		Stickers: results,
		Query:    req.Prompt,
	})
}

// bindQuery populates req from GET query parameters. Returns false after
// writing an error response.
func (h *RecommendHandler) bindQuery(c *gin.Context, req *datatypes.RecommendRequest) bool {
	req.Prompt = c.Query("prompt")
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(c, http.StatusBadRequest, datatypes.ErrCodeInvalidRequest,
			"prompt query parameter is required")
		return false
	}

	if topKParam := c.Query("topK"); topKParam != "" {
		topK, err := strconv.Atoi(topKParam)
		if err != nil {
			topK = 0
		}
		req.TopK = topK
	}

	if excludeParam := c.Query("excludeRecent"); excludeParam != "" {
		for _, entry := range strings.Split(excludeParam, ",") {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				req.ExcludeRecent = append(req.ExcludeRecent, trimmed)
			}
		}
	}
	return true
}
