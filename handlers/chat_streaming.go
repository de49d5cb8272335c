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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/nightcord/nako-gateway/datatypes"
	"github.com/nightcord/nako-gateway/llm"
	"github.com/nightcord/nako-gateway/sticker"
)

// handleStreaming serves the streaming path.
//
// # Description
//
// The upstream stream is relayed to the client byte-for-byte while the
// reply text accumulates on the side. When upstream ends, at most one
// synthetic sticker chunk is appended, then the terminating sentinel is
// written exactly once. The upstream sentinel itself is swallowed by the
// relay so the client never sees two.
//
// Everything after the relay is best effort: a failed recommendation or
// accumulator still produces a well-terminated stream.
func (h *ChatHandler) handleStreaming(c *gin.Context, ctx context.Context, req *datatypes.ChatRequest,
	selector string, provider llm.ModelProvider, systemPrompt string) {

	ctx, span := tracer.Start(ctx, "ChatHandler.handleStreaming")
	defer span.End()

	start := time.Now()
	status := "success"
	// Activity is reported whatever the outcome; the writer never blocks.
	defer h.reporter.ReportChat(req.UserID, selector, "chat_stream")
	h.metrics.ActiveStreams.Inc()
	defer func() {
		h.metrics.ActiveStreams.Dec()
		h.metrics.StreamDurationSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
		h.metrics.RequestsTotal.WithLabelValues("chat_stream", status).Inc()
	}()

	acc, err := NewReplyAccumulator()
	if err != nil {
		// Streaming still works without accumulation; only the sticker
		// augmentation is lost.
		slog.Warn("Reply accumulator unavailable, streaming without augmentation", "error", err)
		acc = nil
	} else {
		defer acc.Destroy()
	}

	upstream, err := provider.ChatStream(ctx, systemPrompt, req.Message, req.UserID, req.History)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Backend stream call failed", "persona", selector, "error", err)
		status = "error"
		h.metrics.ErrorsTotal.WithLabelValues("chat_stream", "backend_error").Inc()
		writeError(c, http.StatusInternalServerError, datatypes.ErrCodeInternalError, "An internal error occurred")
		return
	}
	defer func() {
		if cerr := upstream.Close(); cerr != nil {
			slog.Warn("Failed to close upstream stream", "error", cerr)
		}
	}()

	SetStreamHeaders(c.Writer)
	writer, err := NewChunkWriter(c.Writer)
	if err != nil {
		slog.Error("Streaming not supported by response writer", "error", err)
		status = "error"
		writeError(c, http.StatusInternalServerError, datatypes.ErrCodeInternalError, "Streaming not supported")
		return
	}

	relay := NewStreamRelay(writer, acc)
	relayErr := relay.Relay(ctx, upstream)
	if relayErr != nil {
		span.RecordError(relayErr)
		slog.Error("Stream relay failed", "persona", selector, "error", relayErr)
		status = "error"
		h.metrics.ErrorsTotal.WithLabelValues("chat_stream", "relay_error").Inc()
	} else {
		h.augmentStream(ctx, req, provider.Model(), acc, writer)
	}

	// Exactly one sentinel terminates the stream, on success and failure
	// alike. If the client is already gone this write fails harmlessly.
	if err := writer.WriteDone(); err != nil {
		slog.Warn("Failed to write stream sentinel", "error", err)
	}
}

// augmentStream finalizes the accumulated reply and appends at most one
// synthetic sticker chunk. Never fails the stream.
func (h *ChatHandler) augmentStream(ctx context.Context, req *datatypes.ChatRequest,
	model string, acc ReplyAccumulator, writer RecordWriter) {

	if h.stickers == nil || acc == nil {
		return
	}

	reply, err := acc.Finalize()
	if err != nil {
		slog.Warn("Failed to finalize accumulated reply", "error", err)
		h.metrics.StickerAugmentationsTotal.WithLabelValues("failed").Inc()
		return
	}

	clean := sticker.StripTags(reply)
	if clean == "" {
		return
	}

	r := h.newRand()
	stickerID, err := h.stickers.Recommend(ctx, req.Message, clean, historyTexts(req.History), r)
	if err != nil {
		slog.Error("Failed to get sticker recommendation", "error", err)
		h.metrics.StickerAugmentationsTotal.WithLabelValues("failed").Inc()
		return
	}
	if stickerID == "" {
		h.metrics.StickerAugmentationsTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := writer.WriteChunk(datatypes.NewStickerChunk(stickerID, model)); err != nil {
		slog.Warn("Failed to write sticker chunk", "error", err)
		h.metrics.StickerAugmentationsTotal.WithLabelValues("failed").Inc()
		return
	}
	h.metrics.StickerAugmentationsTotal.WithLabelValues("inserted").Inc()
}
