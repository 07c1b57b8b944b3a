// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "fmt"

// Conversation is a server-side container for messages.
// ID is immutable once assigned; Name may change and need not be unique.
type Conversation struct {
	ID   string `json:"conversation_id"`
	Name string `json:"conversation_name"`
}

// IsZero reports whether c is the "no conversation" value.
func (c Conversation) IsZero() bool {
	return c.ID == ""
}

// DefaultConversationName returns the name given to a new conversation
// when the registry already holds n entries.
func DefaultConversationName(n int) string {
	return fmt.Sprintf("Conversation %d", n)
}
