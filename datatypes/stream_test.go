// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeltaContent(t *testing.T) {
	content, ok := ExtractDeltaContent([]byte(`{"choices":[{"delta":{"content":"你好"}}]}`))
	require.True(t, ok)
	assert.Equal(t, "你好", content)

	// Chunks without delta content (role announcements, finish chunks).
	content, ok = ExtractDeltaContent([]byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`))
	require.True(t, ok)
	assert.Equal(t, "", content)

	content, ok = ExtractDeltaContent([]byte(`{"choices":[]}`))
	require.True(t, ok)
	assert.Equal(t, "", content)

	_, ok = ExtractDeltaContent([]byte(`not json`))
	assert.False(t, ok)
}

func TestNewStickerChunk(t *testing.T) {
	chunk := NewStickerChunk("stamp0123", "qwen3-30b-a3b")

	assert.True(t, len(chunk.ID) > len("sticker-"))
	assert.Contains(t, chunk.ID, "sticker-")
	assert.Equal(t, "chat.completion.chunk", chunk.Object)
	assert.NotZero(t, chunk.Created)
	assert.Equal(t, "qwen3-30b-a3b", chunk.Model)
	require.Len(t, chunk.Choices, 1)
	assert.Equal(t, "[stamp0123]", chunk.Choices[0].Delta.Content)
	assert.Nil(t, chunk.Choices[0].FinishReason)
}

func TestNewStickerChunk_UniqueIDs(t *testing.T) {
	first := NewStickerChunk("stamp1", "m")
	second := NewStickerChunk("stamp1", "m")
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRecommendRequest_ClampTopK(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultRecommendTopK},
		{-3, DefaultRecommendTopK},
		{1, 1},
		{20, 20},
		{21, DefaultRecommendTopK},
		{7, 7},
	}
	for _, tc := range cases {
		req := RecommendRequest{TopK: tc.in}
		assert.Equal(t, tc.want, req.ClampTopK(), "topK=%d", tc.in)
	}
}
