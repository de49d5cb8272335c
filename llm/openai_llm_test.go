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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIProvider_RequiresEndpointAndKey(t *testing.T) {
	_, err := NewOpenAIProvider("", "key", "model", "Nako", SamplingParams{})
	assert.Error(t, err)

	_, err = NewOpenAIProvider("http://api.example.com/v1/chat/completions", "", "model", "Nako", SamplingParams{})
	assert.Error(t, err)
}

func TestNewOpenAIProvider_DefaultsModel(t *testing.T) {
	provider, err := NewOpenAIProvider("http://api.example.com/v1/chat/completions", "key", "", "Nako", SamplingParams{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", provider.Model())
}

func TestOpenAIProvider_Chat_SendsBearerAndParses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 3, "total_tokens": 23}
		}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(server.URL, "test-key", "grok-4.1-fast", "朝雾", SamplingParams{})
	require.NoError(t, err)

	result, err := provider.Chat(context.Background(), "sys", "hi", "A", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, 23, result.Usage.TotalTokens)
}

func TestOpenAIProvider_Chat_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(server.URL, "key", "model", "Nako", SamplingParams{})
	require.NoError(t, err)

	_, err = provider.Chat(context.Background(), "sys", "hi", "A", nil)
	assert.Error(t, err)
}

func TestOpenAIProvider_Chat_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(server.URL, "key", "model", "Nako", SamplingParams{})
	require.NoError(t, err)

	_, err = provider.Chat(context.Background(), "sys", "hi", "A", nil)
	require.Error(t, err)

	var backendErr *BackendError
	require.True(t, errors.As(err, &backendErr))
	assert.Equal(t, http.StatusTooManyRequests, backendErr.Status)
}
