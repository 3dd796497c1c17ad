// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/nimchat/internal/model"
	"github.com/jeranaias/nimchat/internal/nim"
)

// AssembleRequest builds the wire message list for a send: the prior
// conversation history in order, followed by the new user content as the
// final message.
//
// Pure function: the history slice is never modified. Error turns already in
// the history are carried along verbatim, "Error: " prefix included.
func AssembleRequest(history []model.Message, content string) []nim.ChatMessage {
	messages := make([]nim.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, nim.ChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	messages = append(messages, nim.ChatMessage{
		Role:    string(model.RoleUser),
		Content: content,
	})
	return messages
}
