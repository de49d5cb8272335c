// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Streaming wire types for the outbound chat-completion chunk protocol.
//
// The gateway relays the upstream stream byte-for-byte, so these types are
// used only for two things: extracting delta text from upstream records for
// accumulation, and synthesizing the one sticker chunk appended after the
// upstream stream ends.
package datatypes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Streaming protocol framing constants.
const (
	// StreamDataPrefix marks a data record in the line-oriented protocol.
	StreamDataPrefix = "data: "

	// StreamDoneSentinel is the literal payload signaling end of stream.
	StreamDoneSentinel = "[DONE]"
)

// ChunkDelta is the incremental content portion of a streaming choice.
type ChunkDelta struct {
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice entry in a streaming chunk.
type ChunkChoice struct {
	Index        int         `json:"index"`
	Delta        ChunkDelta  `json:"delta"`
	Logprobs     interface{} `json:"logprobs"`
	FinishReason *string     `json:"finish_reason"`
}

// CompletionChunk mirrors the chat-completion streaming chunk object.
//
// # Description
//
// One incremental unit of model output as carried by a "data: " record.
// Upstream chunks are parsed with this type only to pull out delta content;
// the synthetic sticker chunk is built with it so the caller sees the same
// shape for real and synthesized records.
type CompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// DeltaContent returns the delta text of the first choice, or "" when the
// chunk carries none.
func (c *CompletionChunk) DeltaContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// ExtractDeltaContent parses a raw record payload and returns any delta
// text it carries.
//
// # Inputs
//
//   - payload: The JSON portion of a "data: " record (sentinel excluded).
//
// # Outputs
//
//   - string: Delta text, possibly empty.
//   - bool: False when the payload is not valid JSON for a chunk. Malformed
//     payloads are passthrough noise and contribute nothing.
func ExtractDeltaContent(payload []byte) (string, bool) {
	var chunk CompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", false
	}
	return chunk.DeltaContent(), true
}

// NewStickerChunk synthesizes a streaming chunk carrying the chosen sticker
// as inline bracketed text.
//
// # Inputs
//
//   - stickerID: The recommended sticker identifier (without brackets).
//   - model: Model name to stamp on the chunk, matching upstream chunks.
//
// # Outputs
//
//   - CompletionChunk: Chunk with a fresh id and current unix timestamp,
//     content "[stickerID]", and a nil finish reason.
func NewStickerChunk(stickerID, model string) CompletionChunk {
	return CompletionChunk{
		ID:      "sticker-" + uuid.New().String(),
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChunkChoice{
			{
				Index: 0,
				Delta: ChunkDelta{Content: "[" + stickerID + "]"},
			},
		},
	}
}
