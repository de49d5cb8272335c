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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightcord/nako-gateway/datatypes"
)

// =============================================================================
// FormatHistory Tests
// =============================================================================

func TestFormatHistory_RoleMappingAndPrefixes(t *testing.T) {
	history := []datatypes.HistoryMessage{
		{UserID: "A", Message: "hi", IsBot: false},
		{UserID: "Nako", Message: "yo", IsBot: true},
		{UserID: "A", Message: "u there", IsBot: false},
	}

	messages := FormatHistory(history, "Nako", 30)
	require.Len(t, messages, 3)

	assert.Equal(t, datatypes.RoleUser, messages[0].Role)
	assert.Equal(t, "[A]: hi", messages[0].Content)
	assert.Equal(t, datatypes.RoleAssistant, messages[1].Role)
	assert.Equal(t, "yo", messages[1].Content)
	assert.Equal(t, datatypes.RoleUser, messages[2].Role)
	assert.Equal(t, "[A]: u there", messages[2].Content)
}

func TestFormatHistory_BotFromOtherPersonaIsUser(t *testing.T) {
	// A bot turn from a different persona must not map to assistant.
	history := []datatypes.HistoryMessage{
		{UserID: "Miku", Message: "hello", IsBot: true},
	}

	messages := FormatHistory(history, "Nako", 30)
	require.Len(t, messages, 1)
	assert.Equal(t, datatypes.RoleUser, messages[0].Role)
	assert.Equal(t, "[Miku]: hello", messages[0].Content)
}

func TestFormatHistory_MergesAdjacentSameRole(t *testing.T) {
	history := []datatypes.HistoryMessage{
		{UserID: "A", Message: "first", IsBot: false},
		{UserID: "B", Message: "second", IsBot: false},
		{UserID: "Nako", Message: "reply", IsBot: true},
	}

	messages := FormatHistory(history, "Nako", 30)
	require.Len(t, messages, 2)
	assert.Equal(t, "[A]: first\n[B]: second", messages[0].Content)
	assert.Equal(t, "reply", messages[1].Content)
}

func TestFormatHistory_TruncatesToMaxTurns(t *testing.T) {
	history := []datatypes.HistoryMessage{
		{UserID: "A", Message: "old", IsBot: false},
		{UserID: "Nako", Message: "mid", IsBot: true},
		{UserID: "A", Message: "new", IsBot: false},
	}

	messages := FormatHistory(history, "Nako", 2)
	require.Len(t, messages, 2)
	assert.Equal(t, "mid", messages[0].Content)
	assert.Equal(t, "[A]: new", messages[1].Content)
}

func TestFormatHistory_EmptyHistory(t *testing.T) {
	assert.Nil(t, FormatHistory(nil, "Nako", 30))
	assert.Nil(t, FormatHistory([]datatypes.HistoryMessage{}, "Nako", 30))
}

func TestFormatHistory_EmptyPersonaNameNeverAssistant(t *testing.T) {
	history := []datatypes.HistoryMessage{
		{UserID: "", Message: "anon bot", IsBot: true},
	}

	messages := FormatHistory(history, "", 30)
	require.Len(t, messages, 1)
	assert.Equal(t, datatypes.RoleUser, messages[0].Role)
}

// =============================================================================
// AppendUserMessage Tests
// =============================================================================

func TestAppendUserMessage_MergesIntoTrailingUserTurn(t *testing.T) {
	messages := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "[A]: hi"},
	}

	merged := AppendUserMessage(messages, "B", "me too")
	require.Len(t, merged, 1)
	assert.Equal(t, "[A]: hi\n[B]: me too", merged[0].Content)
}

func TestAppendUserMessage_AppendsAfterAssistant(t *testing.T) {
	messages := []datatypes.Message{
		{Role: datatypes.RoleAssistant, Content: "yo"},
	}

	merged := AppendUserMessage(messages, "A", "hi")
	require.Len(t, merged, 2)
	assert.Equal(t, datatypes.RoleUser, merged[1].Role)
	assert.Equal(t, "[A]: hi", merged[1].Content)
}

func TestAppendUserMessage_EmptyHistory(t *testing.T) {
	merged := AppendUserMessage(nil, "A", "hi")
	require.Len(t, merged, 1)
	assert.Equal(t, "[A]: hi", merged[0].Content)
}

// =============================================================================
// BuildMessages Tests
// =============================================================================

func TestBuildMessages_SystemMessageFirst(t *testing.T) {
	history := []datatypes.HistoryMessage{
		{UserID: "Nako", Message: "earlier reply", IsBot: true},
	}

	messages := BuildMessages("be nako", "hi", "A", history, "Nako", 30)
	require.Len(t, messages, 3)
	assert.Equal(t, datatypes.RoleSystem, messages[0].Role)
	assert.Equal(t, "be nako", messages[0].Content)
	assert.Equal(t, datatypes.RoleAssistant, messages[1].Role)
	assert.Equal(t, datatypes.RoleUser, messages[2].Role)
	assert.Equal(t, "[A]: hi", messages[2].Content)
}

func TestBuildMessages_NoHistory(t *testing.T) {
	messages := BuildMessages("sys", "hello", "A", nil, "Nako", 30)
	require.Len(t, messages, 2)
	assert.Equal(t, datatypes.RoleSystem, messages[0].Role)
	assert.Equal(t, "[A]: hello", messages[1].Content)
}
