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
	"github.com/nightcord/nako-gateway/datatypes"
)

// FormatHistory converts caller-supplied history into the role-tagged
// message sequence the backends expect.
//
// # Description
//
// The mapping rules are:
//   - Only the last maxTurns entries are kept; older context is silently
//     dropped, never an error.
//   - A turn maps to role "assistant" iff it is a bot turn AND its UserID
//     equals the active persona name. Every other turn maps to "user".
//   - Assistant content is the bare text (the persona's own prior
//     utterance). User content is prefixed "[userId]: " so multiple human
//     speakers stay distinguishable to the model.
//   - Adjacent messages sharing a role are merged, content joined with a
//     newline. This keeps strict alternating-role backends satisfiable
//     while preserving multi-speaker context.
//
// # Inputs
//
//   - history: Prior turns, oldest first. May be nil or empty.
//   - personaName: The active persona's identifier. When empty, no turn
//     maps to assistant.
//   - maxTurns: Number of trailing turns to keep.
//
// # Outputs
//
//   - []datatypes.Message: Formatted sequence, possibly empty. Never errors.
func FormatHistory(history []datatypes.HistoryMessage, personaName string, maxTurns int) []datatypes.Message {
	if len(history) == 0 {
		return nil
	}

	recent := history
	if maxTurns > 0 && len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}

	merged := make([]datatypes.Message, 0, len(recent))
	for _, msg := range recent {
		isPersona := msg.IsBot && personaName != "" && msg.UserID == personaName

		role := datatypes.RoleUser
		content := "[" + msg.UserID + "]: " + msg.Message
		if isPersona {
			role = datatypes.RoleAssistant
			content = msg.Message
		}

		if n := len(merged); n > 0 && merged[n-1].Role == role {
			merged[n-1].Content += "\n" + content
			continue
		}
		merged = append(merged, datatypes.Message{Role: role, Content: content})
	}

	return merged
}

// AppendUserMessage appends the new incoming message as a user turn,
// merging it into a trailing user message when one exists.
func AppendUserMessage(messages []datatypes.Message, userID, message string) []datatypes.Message {
	content := "[" + userID + "]: " + message

	if n := len(messages); n > 0 && messages[n-1].Role == datatypes.RoleUser {
		messages[n-1].Content += "\n" + content
		return messages
	}
	return append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: content})
}

// BuildMessages assembles the full message sequence for one backend call:
// exactly one system message first, then formatted history, then the new
// user message merged per AppendUserMessage.
func BuildMessages(systemPrompt, userMessage, userID string,
	history []datatypes.HistoryMessage, personaName string, maxTurns int) []datatypes.Message {

	formatted := FormatHistory(history, personaName, maxTurns)
	formatted = AppendUserMessage(formatted, userID, userMessage)

	messages := make([]datatypes.Message, 0, len(formatted)+1)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleSystem, Content: systemPrompt})
	return append(messages, formatted...)
}
