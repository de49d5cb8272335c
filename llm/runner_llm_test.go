// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightcord/nako-gateway/datatypes"
)

func TestNewRunnerProvider_RequiresBaseURLAndModel(t *testing.T) {
	_, err := NewRunnerProvider("", "some-model", "Nako", SamplingParams{})
	assert.Error(t, err)

	_, err = NewRunnerProvider("http://runner:8080", "", "Nako", SamplingParams{})
	assert.Error(t, err)
}

func TestRunnerProvider_Chat_ParsesResponse(t *testing.T) {
	var captured runnerChatPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "你好", "reasoning_content": "thinking"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer server.Close()

	provider, err := NewRunnerProvider(server.URL, "qwen3-30b-a3b", "Nako", DefaultSamplingParams())
	require.NoError(t, err)

	result, err := provider.Chat(context.Background(), "sys", "hi", "A", nil)
	require.NoError(t, err)

	assert.Equal(t, "你好", result.Text)
	assert.Equal(t, "thinking", result.ReasoningContent)
	assert.Equal(t, 12, result.Usage.PromptTokens)
	assert.Equal(t, 4, result.Usage.CompletionTokens)
	assert.Equal(t, 16, result.Usage.TotalTokens)

	assert.Equal(t, "qwen3-30b-a3b", captured.Model)
	assert.False(t, captured.Stream)
	require.NotEmpty(t, captured.Messages)
	assert.Equal(t, datatypes.RoleSystem, captured.Messages[0].Role)
}

func TestRunnerProvider_Chat_BackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider, err := NewRunnerProvider(server.URL, "qwen3-30b-a3b", "Nako", SamplingParams{})
	require.NoError(t, err)

	_, err = provider.Chat(context.Background(), "sys", "hi", "A", nil)
	require.Error(t, err)

	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusServiceUnavailable, backendErr.Status)
	assert.Contains(t, backendErr.Body, "model not loaded")
}

func TestRunnerProvider_ChatStream_ReturnsRawBody(t *testing.T) {
	const streamBody = "data: {\"choices\":[{\"delta\":{\"content\":\"hey\"}}]}\n\ndata: [DONE]\n\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload runnerChatPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.True(t, payload.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(streamBody))
	}))
	defer server.Close()

	provider, err := NewRunnerProvider(server.URL, "qwen3-30b-a3b", "Nako", SamplingParams{})
	require.NoError(t, err)

	stream, err := provider.ChatStream(context.Background(), "sys", "hi", "A", nil)
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	raw, err := io.ReadAll(stream)
	require.NoError(t, err)

	// The body must come back untouched; the relay owns the wire format.
	assert.Equal(t, streamBody, string(raw))
}

func TestRunnerProvider_BuildPayload_DefaultsZeroParams(t *testing.T) {
	provider, err := NewRunnerProvider("http://runner:8080", "qwen3-30b-a3b", "Nako", SamplingParams{})
	require.NoError(t, err)

	payload := provider.buildPayload("sys", "hi", "A", nil, false)
	assert.InDelta(t, 0.7, payload.Temperature, 0.001)
	assert.Equal(t, 1024, payload.MaxTokens)
}
