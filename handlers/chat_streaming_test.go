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
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightcord/nako-gateway/datatypes"
)

const doneRecord = datatypes.StreamDataPrefix + datatypes.StreamDoneSentinel

func streamRequestBody() string {
	return `{"userId": "A", "message": "今晚一起吃饭吗", "stream": true}`
}

func TestChatHandler_StreamingForwardsChunks(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	provider := &mockProvider{
		streamBody: chunkLine("你") + "\n" + chunkLine("好") + "\n" + "data: [DONE]\n\n",
	}
	h := newTestChatHandler(provider, nil)

	w := performChat(h, streamRequestBody(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, chunkLine("你"))
	assert.Contains(t, body, chunkLine("好"))
	// Chunks arrive in upstream order.
	assert.Less(t, strings.Index(body, chunkLine("你")), strings.Index(body, chunkLine("好")))
}

func TestChatHandler_StreamingExactlyOneSentinel(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	// Upstream sends its own sentinel; the client must still see exactly one.
	provider := &mockProvider{
		streamBody: chunkLine("hey") + "data: [DONE]\n\n",
	}
	h := newTestChatHandler(provider, nil)

	w := performChat(h, streamRequestBody(), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, doneRecord))
	assert.True(t, strings.HasSuffix(body, doneRecord+"\n\n"))
}

func TestChatHandler_StreamingStickerChunkBeforeSentinel(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	provider := &mockProvider{
		streamBody: chunkLine("回复了很多") + "data: [DONE]\n\n",
	}
	stickers := &mockStickers{recommendID: "stamp0009"}
	h := newTestChatHandler(provider, stickers)

	w := performChat(h, streamRequestBody(), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	stickerIdx := strings.Index(body, "[stamp0009]")
	doneIdx := strings.LastIndex(body, doneRecord)
	require.GreaterOrEqual(t, stickerIdx, 0, "synthetic sticker chunk missing")
	assert.Less(t, stickerIdx, doneIdx, "sticker chunk must precede the sentinel")
	assert.Equal(t, 1, strings.Count(body, doneRecord))
	assert.Equal(t, 1, stickers.recommendCalls)
}

func TestChatHandler_StreamingRecommenderFailureStillTerminates(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	provider := &mockProvider{
		streamBody: chunkLine("回复了很多") + "data: [DONE]\n\n",
	}
	stickers := &mockStickers{recommendErr: fmt.Errorf("index down")}
	h := newTestChatHandler(provider, stickers)

	w := performChat(h, streamRequestBody(), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, chunkLine("回复了很多"))
	assert.Equal(t, 1, strings.Count(body, doneRecord))
	assert.True(t, strings.HasSuffix(body, doneRecord+"\n\n"))
}

func TestChatHandler_StreamingGateDeclinesNoStickerChunk(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	provider := &mockProvider{
		streamBody: chunkLine("回复") + "data: [DONE]\n\n",
	}
	// Empty recommendation means the gate declined or nothing matched.
	stickers := &mockStickers{recommendID: ""}
	h := newTestChatHandler(provider, stickers)

	w := performChat(h, streamRequestBody(), "")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.NotContains(t, body, "sticker-")
	assert.Equal(t, 1, strings.Count(body, doneRecord))
}

func TestChatHandler_StreamingBackendErrorBeforeHeaders(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	provider := &mockProvider{streamErr: fmt.Errorf("connect refused")}
	h := newTestChatHandler(provider, nil)

	w := performChat(h, streamRequestBody(), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, datatypes.ErrCodeInternalError, errorCode(t, w))
}

func TestChatHandler_StreamingReportsUsageOnBackendError(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	reporter := &recordingReporter{}
	h := newTestChatHandler(&mockProvider{streamErr: fmt.Errorf("connect refused")}, nil)
	h.reporter = reporter

	w := performChat(h, streamRequestBody(), "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []string{"chat_stream"}, reporter.events)
}
