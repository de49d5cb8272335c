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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/nightcord/nako-gateway/datatypes"
)

// openAIHistoryTurns is how many trailing history turns the OpenAI-format
// provider keeps for context.
const openAIHistoryTurns = 20

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint
// with a bearer credential.
//
// # Description
//
// The request and response bodies use the go-openai wire types, but the
// HTTP call is made directly so that the streaming response body can be
// handed back raw and unparsed to the streaming relay. go-openai's own
// stream reader re-frames records, which would break byte-for-byte
// passthrough.
//
// # Thread Safety
//
// Safe for concurrent use; all fields are read-only after construction.
type OpenAIProvider struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	personaName string
	params      SamplingParams
}

// NewOpenAIProvider creates a provider for the given endpoint and model.
//
// # Inputs
//
//   - endpoint: Full URL of the chat completions endpoint.
//   - apiKey: Bearer credential. Must not be empty.
//   - model: Model identifier to request.
//   - personaName: Persona selector matched against history userIds for
//     role mapping.
//   - params: Sampling parameters; zero fields get defaults.
func NewOpenAIProvider(endpoint, apiKey, model, personaName string, params SamplingParams) (*OpenAIProvider, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("openai provider requires endpoint and api key")
	}
	if model == "" {
		model = "gpt-3.5-turbo"
		slog.Warn("OpenAI model not set, defaulting", "model", model)
	}
	return &OpenAIProvider{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		apiKey:      apiKey,
		model:       model,
		personaName: personaName,
		params:      params,
	}, nil
}

// Model returns the configured model identifier.
func (p *OpenAIProvider) Model() string { return p.model }

// buildRequest assembles the chat completion request body.
func (p *OpenAIProvider) buildRequest(systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage, stream bool) openai.ChatCompletionRequest {

	messages := BuildMessages(systemPrompt, userMessage, userID, history, p.personaName, openAIHistoryTurns)

	oaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaiMessages = append(oaiMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	params := p.params
	if params.Temperature == 0 {
		params.Temperature = 0.7
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 1024
	}
	if params.TopP == 0 {
		params.TopP = 0.9
	}

	return openai.ChatCompletionRequest{
		Model:            p.model,
		Messages:         oaiMessages,
		Temperature:      params.Temperature,
		MaxTokens:        params.MaxTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stream:           stream,
	}
}

// do executes the HTTP call and returns the response. Non-2xx responses
// are drained and surfaced as a BackendError.
func (p *OpenAIProvider) do(ctx context.Context, reqBody openai.ChatCompletionRequest) (*http.Response, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute completion request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &BackendError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// Chat implements ModelProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage) (*datatypes.CompletionResult, error) {

	resp, err := p.do(ctx, p.buildRequest(systemPrompt, userMessage, userID, history, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var result openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("backend returned no choices")
	}

	choice := result.Choices[0]
	slog.Debug("Received completion", "model", p.model, "finish_reason", choice.FinishReason)

	return &datatypes.CompletionResult{
		Text:             choice.Message.Content,
		ReasoningContent: choice.Message.ReasoningContent,
		Usage: datatypes.TokenUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream implements ModelProvider. The returned body is the upstream
// stream, raw and unparsed; the caller owns closing it.
func (p *OpenAIProvider) ChatStream(ctx context.Context, systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage) (io.ReadCloser, error) {

	resp, err := p.do(ctx, p.buildRequest(systemPrompt, userMessage, userID, history, true))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var _ ModelProvider = (*OpenAIProvider)(nil)
