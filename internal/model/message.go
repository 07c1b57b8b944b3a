// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is a role the service accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

// TimestampLayout is millisecond-precision UTC ISO-8601.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout as well as RFC 3339 and the
// zone-less form some servers emit.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of a conversation log.
type Message struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Role      Role   `json:"role"`
	Timestamp string `json:"timestamp"`

	// Feedback is nil until the user rates the message.
	Feedback *bool `json:"feedback"`

	// Pending marks optimistic entries not yet confirmed by a refetch.
	Pending bool `json:"-"`
}

// NewMessage creates an unrated, pending message.
func NewMessage(id string, role Role, text, timestamp string) Message {
	return Message{
		ID:        id,
		Message:   text,
		Role:      role,
		Timestamp: timestamp,
		Pending:   true,
	}
}

// Clone returns a copy that shares no pointers with m.
func (m Message) Clone() Message {
	if m.Feedback != nil {
		m.Feedback = Bool(*m.Feedback)
	}
	return m
}

// FeedbackLabel returns "good", "bad", or "" when unrated.
func (m Message) FeedbackLabel() string {
	switch {
	case m.Feedback == nil:
		return ""
	case *m.Feedback:
		return "good"
	default:
		return "bad"
	}
}

// CloneMessages deep-copies a slice of messages.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
