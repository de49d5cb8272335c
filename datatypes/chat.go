// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request, response, and wire types for the
// gateway.
//
// This file contains the chat endpoint types. For streaming chunk types,
// see stream.go; for the recommend endpoint, see recommend.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageChars is the maximum length of a user message in characters.
	// Requests exceeding this are rejected before any backend call.
	MaxMessageChars = 2000

	// MaxHistoryMessages is the maximum number of history entries accepted
	// in a single request. Older context should be truncated client-side;
	// the formatter truncates further per backend.
	MaxHistoryMessages = 200
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
}

// =============================================================================
// Chat Request Types
// =============================================================================

// HistoryMessage is a single prior turn of the conversation as supplied by
// the caller.
//
// # Fields
//
//   - UserID: Identifier of the speaker (a human user id or a persona name).
//   - Message: The turn's text.
//   - IsBot: True when the turn was produced by a bot. Role mapping uses
//     IsBot together with the active persona name, never UserID alone.
//
// # Assumptions
//
//   - History is ordered chronologically, oldest first.
type HistoryMessage struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	IsBot   bool   `json:"isBot"`
}

// ChatRequest represents the POST /api/chat request body.
//
// # Description
//
// Contains the new user message plus optional conversation history and the
// streaming flag. The persona is selected separately via the "persona"
// query parameter.
//
// # Validation
//
// Uses go-playground/validator:
//   - UserID: required
//   - Message: required, at most 2000 characters
//   - History: optional, at most 200 entries
//
// # Limitations
//
//   - History entries are not individually validated beyond the count cap;
//     malformed entries simply contribute nothing useful to context.
type ChatRequest struct {
	UserID  string           `json:"userId" validate:"required"`
	Message string           `json:"message" validate:"required,max=2000"`
	History []HistoryMessage `json:"history" validate:"omitempty,max=200"`
	Stream  bool             `json:"stream"`
}

// Validate validates the ChatRequest fields.
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Backend Message Types
// =============================================================================

// Message is a single role-tagged message in the format the model backends
// expect. Produced transiently per request by the conversation formatter;
// never persisted.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Roles used in formatted messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// Completion Result Types
// =============================================================================

// TokenUsage contains token consumption statistics for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// CompletionResult is the outcome of one non-streaming backend call.
//
// # Fields
//
//   - Text: The generated reply text.
//   - ReasoningContent: Optional reasoning/thinking trace, when the backend
//     returns one.
//   - Usage: Token usage counters as reported by the backend.
//
// Immutable after creation.
type CompletionResult struct {
	Text             string
	ReasoningContent string
	Usage            TokenUsage
}

// =============================================================================
// HTTP Response Types
// =============================================================================

// ChatSuccessResponse is the JSON body for a successful non-streaming chat.
type ChatSuccessResponse struct {
	Success          bool       `json:"success"`
	Response         string     `json:"response"`
	ReasoningContent string     `json:"reasoningContent,omitempty"`
	Usage            TokenUsage `json:"usage"`
}

// ErrorDetail carries a machine-readable code plus a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON body for any failed request.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// Error codes returned by the gateway.
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidPersona       = "INVALID_PERSONA"
	ErrCodeVectorizeUnavailable = "VECTORIZE_UNAVAILABLE"
	ErrCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// NewErrorResponse builds an ErrorResponse for the given code and message.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}
