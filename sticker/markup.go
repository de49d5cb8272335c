// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sticker implements sticker markup handling, recommendation, and
// message augmentation.
//
// Stickers appear inline in messages as bracketed identifiers like
// [stamp0123]. The recommender pairs an embedding service with a Weaviate
// vector index to find stickers matching conversational context.
package sticker

import (
	"regexp"
)

// tagPattern matches inline sticker markup. Identifiers are "stamp" plus
// digits, wrapped in square brackets.
var tagPattern = regexp.MustCompile(`\[stamp\d+\]`)

// StripTags removes all sticker markup from text.
//
// Stripping is idempotent: the removal leaves no text that could form a new
// tag, so applying it twice yields the same result as applying it once.
func StripTags(text string) string {
	return tagPattern.ReplaceAllString(text, "")
}

// ExtractRecentStickers collects sticker identifiers used in the last limit
// entries of history.
//
// # Inputs
//
//   - history: Message texts, oldest first.
//   - limit: Number of trailing entries to inspect.
//
// # Outputs
//
//   - map[string]struct{}: Set of bare sticker identifiers (brackets
//     removed), for exclusion from new recommendations.
func ExtractRecentStickers(history []string, limit int) map[string]struct{} {
	recent := make(map[string]struct{})

	window := history
	if limit > 0 && len(window) > limit {
		window = window[len(window)-limit:]
	}

	for _, msg := range window {
		for _, match := range tagPattern.FindAllString(msg, -1) {
			recent[match[1:len(match)-1]] = struct{}{}
		}
	}
	return recent
}
