// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Frame is the JSON payload of one "data: " frame of a streamed reply.
// Response is a pointer so that a missing field can be told apart from an
// empty fragment.
type Frame struct {
	Response *string `json:"response"`
	Status   *int    `json:"status,omitempty"`
}

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	Message             string    `json:"message"`
	ConversationHistory []Message `json:"conversation_history"`
}
