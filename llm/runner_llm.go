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

	"github.com/nightcord/nako-gateway/datatypes"
)

// runnerHistoryTurns is how many trailing history turns the local runner
// keeps. Local models tolerate longer context at no per-token cost, so
// this is more generous than the hosted provider.
const runnerHistoryTurns = 30

// RunnerProvider talks to a local model-runner service speaking the
// chat-completion wire format.
type RunnerProvider struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	personaName string
	params      SamplingParams
}

// runnerChatPayload is the request body for the runner's chat endpoint.
type runnerChatPayload struct {
	Model            string               `json:"model"`
	Messages         []datatypes.Message  `json:"messages"`
	Temperature      float32              `json:"temperature"`
	MaxTokens        int                  `json:"max_tokens"`
	TopP             float32              `json:"top_p,omitempty"`
	FrequencyPenalty float32              `json:"frequency_penalty,omitempty"`
	PresencePenalty  float32              `json:"presence_penalty,omitempty"`
	Stream           bool                 `json:"stream"`
}

// runnerChatResponse is the non-streaming response body.
type runnerChatResponse struct {
	Choices []struct {
		Message struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewRunnerProvider creates a provider for the local runner at baseURL.
func NewRunnerProvider(baseURL, model, personaName string, params SamplingParams) (*RunnerProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("runner provider requires a base URL")
	}
	if model == "" {
		return nil, fmt.Errorf("runner provider requires a model name")
	}
	return &RunnerProvider{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		personaName: personaName,
		params:      params,
	}, nil
}

// Model returns the configured model identifier.
func (p *RunnerProvider) Model() string { return p.model }

func (p *RunnerProvider) buildPayload(systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage, stream bool) runnerChatPayload {

	params := p.params
	if params.Temperature == 0 {
		params.Temperature = 0.7
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 1024
	}

	return runnerChatPayload{
		Model:            p.model,
		Messages:         BuildMessages(systemPrompt, userMessage, userID, history, p.personaName, runnerHistoryTurns),
		Temperature:      params.Temperature,
		MaxTokens:        params.MaxTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
		Stream:           stream,
	}
}

func (p *RunnerProvider) post(ctx context.Context, payload runnerChatPayload) (*http.Response, error) {
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the payload: %w", err)
	}

	url := p.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create runner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make a request to the runner: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &BackendError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// Chat implements ModelProvider.
func (p *RunnerProvider) Chat(ctx context.Context, systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage) (*datatypes.CompletionResult, error) {

	slog.Debug("Calling local runner", "model", p.model)
	resp, err := p.post(ctx, p.buildPayload(systemPrompt, userMessage, userID, history, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read the runner's response: %w", err)
	}
	var parsed runnerChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse the runner response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("runner returned no choices")
	}

	choice := parsed.Choices[0]
	return &datatypes.CompletionResult{
		Text:             choice.Message.Content,
		ReasoningContent: choice.Message.ReasoningContent,
		Usage: datatypes.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream implements ModelProvider. The returned body is the runner's
// stream, raw and unparsed; the caller owns closing it.
func (p *RunnerProvider) ChatStream(ctx context.Context, systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage) (io.ReadCloser, error) {

	resp, err := p.post(ctx, p.buildPayload(systemPrompt, userMessage, userID, history, true))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

var _ ModelProvider = (*RunnerProvider)(nil)
