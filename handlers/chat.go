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
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/nightcord/nako-gateway/datatypes"
	"github.com/nightcord/nako-gateway/llm"
	"github.com/nightcord/nako-gateway/observability"
	"github.com/nightcord/nako-gateway/personas"
	"github.com/nightcord/nako-gateway/sticker"
	"github.com/nightcord/nako-gateway/usage"
)

// StickerService is the recommendation surface the chat handlers depend on.
// Nil means the vector index is unconfigured and augmentation is skipped.
type StickerService interface {
	Recommend(ctx context.Context, userMessage, reply string, recentMessages []string, r *rand.Rand) (string, error)
	SearchWithScores(ctx context.Context, query string, topK int, exclude map[string]struct{}) ([]datatypes.StickerResult, error)
}

// ChatHandler serves POST /api/chat for both blocking and streaming mode.
//
// # Description
//
// One provider per persona is constructed at startup; the handler picks
// the provider matching the persona selector on each request. Sticker
// augmentation and usage reporting are best effort: their failures are
// logged and counted, never surfaced to the caller.
type ChatHandler struct {
	providers map[string]llm.ModelProvider
	stickers  StickerService
	reporter  usage.Reporter
	metrics   *observability.ChatMetrics

	// promptCtx and newRand are injection points for tests.
	promptCtx func() personas.PromptContext
	newRand   func() *rand.Rand
}

// NewChatHandler wires the chat handler with its collaborators.
//
// # Inputs
//
//   - providers: Model provider per persona selector.
//   - stickers: Recommendation service. May be nil.
//   - reporter: Usage reporter. Must not be nil (use usage.NopReporter).
//   - metrics: Metrics instance. Must not be nil.
func NewChatHandler(providers map[string]llm.ModelProvider, stickers StickerService,
	reporter usage.Reporter, metrics *observability.ChatMetrics) *ChatHandler {

	return &ChatHandler{
		providers: providers,
		stickers:  stickers,
		reporter:  reporter,
		metrics:   metrics,
		promptCtx: personas.NewPromptContext,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// writeError responds with the standard error envelope.
func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, datatypes.NewErrorResponse(code, message))
}

// Handle validates the request and dispatches to the blocking or streaming
// path.
//
// # Description
//
// Validation happens before any backend call: malformed JSON, a missing
// userId, an over-length message, or an unknown persona all reject the
// request without touching the model.
func (h *ChatHandler) Handle(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ChatHandler.Handle")
	defer span.End()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse the chat request", "error", err)
		writeError(c, http.StatusBadRequest, datatypes.ErrCodeInvalidJSON, "Invalid JSON in request body")
		return
	}

	if err := req.Validate(); err != nil {
		slog.Warn("Chat request failed validation", "error", err)
		writeError(c, http.StatusBadRequest, datatypes.ErrCodeInvalidRequest, err.Error())
		return
	}

	selector := c.Query("persona")
	if selector == "" {
		selector = personas.DefaultPersona
	}
	persona, err := personas.Get(selector)
	if err != nil {
		writeError(c, http.StatusBadRequest, datatypes.ErrCodeInvalidPersona, err.Error())
		return
	}

	provider, ok := h.providers[selector]
	if !ok {
		slog.Error("No provider configured for persona", "persona", selector)
		h.metrics.ErrorsTotal.WithLabelValues("chat", "no_provider").Inc()
		writeError(c, http.StatusInternalServerError, datatypes.ErrCodeInternalError, "An internal error occurred")
		return
	}

	systemPrompt := persona.SystemPrompt(h.promptCtx())

	if req.Stream {
		h.handleStreaming(c, ctx, &req, selector, provider, systemPrompt)
		return
	}
	h.handleBlocking(c, ctx, &req, selector, provider, systemPrompt)
}

// handleBlocking serves the non-streaming path: one completion call, then
// markup cleanup and sticker augmentation on the full reply.
func (h *ChatHandler) handleBlocking(c *gin.Context, ctx context.Context, req *datatypes.ChatRequest,
	selector string, provider llm.ModelProvider, systemPrompt string) {

	ctx, span := tracer.Start(ctx, "ChatHandler.handleBlocking")
	defer span.End()

	// Activity is reported whatever the outcome; the writer never blocks.
	defer h.reporter.ReportChat(req.UserID, selector, "chat")

	result, err := provider.Chat(ctx, systemPrompt, req.Message, req.UserID, req.History)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Backend chat call failed", "persona", selector, "error", err)
		h.metrics.RequestsTotal.WithLabelValues("chat", "error").Inc()
		h.metrics.ErrorsTotal.WithLabelValues("chat", "backend_error").Inc()
		writeError(c, http.StatusInternalServerError, datatypes.ErrCodeInternalError, "An internal error occurred")
		return
	}

	h.metrics.TokensTotal.WithLabelValues("input", provider.Model()).Add(float64(result.Usage.PromptTokens))
	h.metrics.TokensTotal.WithLabelValues("output", provider.Model()).Add(float64(result.Usage.CompletionTokens))

	// The model sometimes imitates sticker markup from history; strip it
	// before choosing a real sticker.
	reply := sticker.StripTags(result.Text)
	reply = h.augment(ctx, req, reply)

	h.metrics.RequestsTotal.WithLabelValues("chat", "success").Inc()

	c.JSON(http.StatusOK, datatypes.ChatSuccessResponse{
		Success:          true,
		Response:         reply,
		ReasoningContent: result.ReasoningContent,
		Usage:            result.Usage,
	})
}

// augment inserts at most one recommended sticker into reply. Failures
// leave the reply unchanged.
func (h *ChatHandler) augment(ctx context.Context, req *datatypes.ChatRequest, reply string) string {
	if h.stickers == nil || reply == "" {
		return reply
	}

	r := h.newRand()
	stickerID, err := h.stickers.Recommend(ctx, req.Message, reply, historyTexts(req.History), r)
	if err != nil {
		slog.Error("Failed to get sticker recommendation", "error", err)
		h.metrics.StickerAugmentationsTotal.WithLabelValues("failed").Inc()
		return reply
	}
	if stickerID == "" {
		h.metrics.StickerAugmentationsTotal.WithLabelValues("skipped").Inc()
		return reply
	}

	h.metrics.StickerAugmentationsTotal.WithLabelValues("inserted").Inc()
	return sticker.InsertIntoMessage(reply, stickerID, r)
}

// historyTexts extracts the raw message texts for sticker exclusion.
func historyTexts(history []datatypes.HistoryMessage) []string {
	texts := make([]string, 0, len(history))
	for _, msg := range history {
		texts = append(texts, msg.Message)
	}
	return texts
}
