// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides model backend providers for the gateway.
//
// Two providers implement the ModelProvider contract: RunnerProvider talks
// to a local model-runner service, OpenAIProvider talks to any remote
// OpenAI-compatible endpoint with a bearer credential. Persona configuration
// selects the provider and its model/sampling parameters at construction
// time; callers are agnostic to which is in use.
package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/nightcord/nako-gateway/datatypes"
)

// SamplingParams are the generation parameters forwarded to the backend.
// Zero values are replaced by per-provider defaults.
type SamplingParams struct {
	Temperature      float32 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float32 `json:"top_p"`
	FrequencyPenalty float32 `json:"frequency_penalty"`
	PresencePenalty  float32 `json:"presence_penalty"`
}

// DefaultSamplingParams returns the baseline parameter set used when a
// persona does not override them.
func DefaultSamplingParams() SamplingParams {
	return SamplingParams{
		Temperature: 0.7,
		MaxTokens:   1024,
		TopP:        0.9,
	}
}

// ModelProvider defines the contract for any chat completion backend.
//
// # Description
//
// A provider turns the system prompt, conversation history, and the new
// user message into either one complete result (Chat) or a raw byte stream
// (ChatStream). The streaming body is returned unparsed; the streaming
// relay owns interpretation of the wire format.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; providers hold only
// read-only configuration after construction.
type ModelProvider interface {
	// Chat issues one blocking completion call and parses the response.
	Chat(ctx context.Context, systemPrompt, userMessage, userID string,
		history []datatypes.HistoryMessage) (*datatypes.CompletionResult, error)

	// ChatStream issues a streaming completion call and returns the raw,
	// unparsed response body. The caller must close it.
	ChatStream(ctx context.Context, systemPrompt, userMessage, userID string,
		history []datatypes.HistoryMessage) (io.ReadCloser, error)

	// Model returns the model identifier this provider was built with.
	Model() string
}

// BackendError reports a non-success response from a model backend,
// carrying the upstream status and body for logging.
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Body)
}
