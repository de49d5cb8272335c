// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sticker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"unicode/utf8"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"

	"github.com/nightcord/nako-gateway/datatypes"
)

var tracer = otel.Tracer("nako.gateway.sticker")

// recentStickerWindow is how many trailing history messages are scanned
// for previously used stickers before a chat recommendation.
const recentStickerWindow = 10

// stickerClassName is the Weaviate class holding the indexed stickers.
const stickerClassName = "Sticker"

// Recommender finds stickers matching conversational context.
//
// # Description
//
// Recommender embeds a query through the embeddings service and runs a
// NearVector search against the Sticker class. Recently used stickers are
// excluded so the persona does not repeat itself.
//
// # Thread Safety
//
// Recommender is safe for concurrent use. The randomness source for the
// recommendation gate is passed per call, not stored.
type Recommender struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
}

// NewRecommender creates a recommender over the given index and embedder.
func NewRecommender(client *weaviate.Client, embedder EmbeddingProvider) *Recommender {
	return &Recommender{
		client:   client,
		embedder: embedder,
	}
}

// NeedsSticker decides probabilistically whether a reply warrants a sticker.
//
// # Description
//
// Very short replies (at most 5 runes) always get one; they read as curt
// without. Long replies (over 20 runes) rarely do. Everything else is a
// coin flip, with short user messages slightly dampened.
func NeedsSticker(userMessage, reply string, r *rand.Rand) bool {
	if utf8.RuneCountInString(userMessage) <= 3 {
		return r.Float64() > 0.5
	}
	if utf8.RuneCountInString(reply) <= 5 {
		return true
	}
	if utf8.RuneCountInString(reply) > 20 {
		return r.Float64() > 0.7
	}
	return r.Float64() > 0.5
}

// SearchWithScores returns the topK stickers most similar to query.
//
// # Description
//
// Embeds the query, then runs a NearVector search over the Sticker class.
// The search limit is padded by the exclusion set size so filtering does
// not starve the result.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - query: Free text describing the wanted sticker mood.
//   - topK: Maximum results to return.
//   - exclude: Sticker identifiers to filter out. May be nil.
//
// # Outputs
//
//   - []datatypes.StickerResult: Scored candidates, highest first, at most
//     topK entries. Certainty is used as the score (always in [0, 1]).
//   - error: Non-nil if embedding or the index query fails.
func (rec *Recommender) SearchWithScores(ctx context.Context, query string, topK int,
	exclude map[string]struct{}) ([]datatypes.StickerResult, error) {

	ctx, span := tracer.Start(ctx, "SearchWithScores")
	defer span.End()

	vector, err := rec.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Failed to embed sticker query", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Fetch extra candidates when some will be filtered out.
	fetchCount := topK + len(exclude)

	nearVector := rec.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Certainty is requested instead of distance; it is always [0,1]
	// regardless of the index distance metric.
	fields := []graphql.Field{
		{Name: "assetbundleName"},
		{Name: "name"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := rec.client.GraphQL().Get().
		WithClassName(stickerClassName).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(fetchCount).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search Sticker class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.StickerQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse sticker search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	stickers := make([]datatypes.StickerResult, 0, topK)
	for _, candidate := range parsed.Get.Sticker {
		if _, used := exclude[candidate.AssetbundleName]; used {
			continue
		}
		var score float64
		if candidate.Additional.Certainty != nil {
			score = float64(*candidate.Additional.Certainty)
		}
		stickers = append(stickers, datatypes.StickerResult{
			AssetbundleName: candidate.AssetbundleName,
			Name:            candidate.Name,
			Score:           score,
		})
		if len(stickers) == topK {
			break
		}
	}

	slog.Debug("Sticker search complete", "query_len", len(query), "found", len(stickers))
	return stickers, nil
}

// Recommend picks at most one sticker for a finished persona reply.
//
// # Description
//
// Applies the NeedsSticker gate, collects recently used stickers from the
// trailing history window, and searches with the combined user message and
// reply as context.
//
// # Outputs
//
//   - string: The chosen sticker identifier, or "" when the gate declined
//     or nothing matched.
//   - error: Non-nil if the search itself failed.
func (rec *Recommender) Recommend(ctx context.Context, userMessage, reply string,
	recentMessages []string, r *rand.Rand) (string, error) {

	ctx, span := tracer.Start(ctx, "Recommend")
	defer span.End()

	if !NeedsSticker(userMessage, reply, r) {
		return "", nil
	}

	recent := ExtractRecentStickers(recentMessages, recentStickerWindow)
	query := userMessage + "\n回复：" + reply

	results, err := rec.SearchWithScores(ctx, query, 1, recent)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].AssetbundleName, nil
}
