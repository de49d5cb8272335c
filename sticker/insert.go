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
	"math/rand"
	"strings"
	"unicode/utf8"
)

// sentencePunctuation are the characters a mid-message insertion may
// follow. CJK terminators plus their ASCII counterparts.
const sentencePunctuation = "。！？，、~…" + ".!?"

// InsertIntoMessage places sticker markup inside message at a randomized
// position.
//
// # Description
//
// Very short messages (at most 5 runes) always get the sticker appended.
// Longer messages draw one value from r: 30% chance to prepend, 40% to
// insert mid-message (after the first sentence punctuation, falling back
// to the rune midpoint), 30% to append. Rune positions are used throughout
// so multi-byte characters are never split.
//
// # Inputs
//
//   - message: The text to augment. May be empty.
//   - stickerID: Bare sticker identifier; brackets are added here.
//   - r: Randomness source for position selection.
func InsertIntoMessage(message, stickerID string, r *rand.Rand) string {
	tag := "[" + stickerID + "]"

	runes := []rune(message)
	if len(runes) <= 5 {
		return message + tag
	}

	roll := r.Float64()
	switch {
	case roll < 0.3:
		return tag + message
	case roll < 0.7:
		if idx := strings.IndexAny(message, sentencePunctuation); idx >= 0 {
			// Insert after the punctuation character, byte-aligned to
			// its full width.
			_, width := utf8.DecodeRuneInString(message[idx:])
			end := idx + width
			return message[:end] + tag + message[end:]
		}
		mid := len(runes) / 2
		return string(runes[:mid]) + tag + string(runes[mid:])
	default:
		return message + tag
	}
}
