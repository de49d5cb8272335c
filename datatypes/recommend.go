// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Recommend endpoint types.
package datatypes

// Recommend endpoint bounds.
const (
	// DefaultRecommendTopK is used when the caller omits topK or sends a
	// value outside [MinRecommendTopK, MaxRecommendTopK].
	DefaultRecommendTopK = 5
	MinRecommendTopK     = 1
	MaxRecommendTopK     = 20
)

// RecommendRequest represents the POST /api/recommend request body.
//
// For GET requests the same fields arrive as query parameters, with
// excludeRecent passed comma-separated.
type RecommendRequest struct {
	Prompt        string   `json:"prompt" validate:"required"`
	ExcludeRecent []string `json:"excludeRecent,omitempty"`
	TopK          int      `json:"topK,omitempty"`
}

// Validate validates the RecommendRequest fields.
func (r *RecommendRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ClampTopK normalizes TopK into the allowed range, substituting the
// default for missing or out-of-range values.
func (r *RecommendRequest) ClampTopK() int {
	if r.TopK < MinRecommendTopK || r.TopK > MaxRecommendTopK {
		return DefaultRecommendTopK
	}
	return r.TopK
}

// StickerResult is one scored sticker candidate returned to the caller.
type StickerResult struct {
	AssetbundleName string  `json:"assetbundleName"`
	Name            string  `json:"name"`
	Score           float64 `json:"score"`
}

// RecommendResponse is the JSON body for a successful recommend call.
type RecommendResponse struct {
	Success  bool            `json:"success"`
	Stickers []StickerResult `json:"stickers"`
	Query    string          `json:"query"`
}
