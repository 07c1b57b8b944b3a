// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/aila/internal/model"
)

// MessageLog is the message list of the active conversation.
//
// Every Reset bumps the generation. Writers capture the generation when
// they start and pass it back; a write carrying an old generation belongs
// to a conversation that is no longer shown and is dropped.
type MessageLog struct {
	mu             sync.RWMutex
	conversationID string
	gen            uint64
	msgs           []model.Message
}

// NewMessageLog creates an empty log for no conversation.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Reset empties the log for conversationID and returns the new generation.
func (l *MessageLog) Reset(conversationID string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.conversationID = conversationID
	l.msgs = nil
	return l.gen
}

// Generation returns the current generation.
func (l *MessageLog) Generation() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gen
}

// ConversationID returns the conversation the log belongs to.
func (l *MessageLog) ConversationID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conversationID
}

// Replace swaps in an authoritative list if gen is current.
func (l *MessageLog) Replace(gen uint64, msgs []model.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	l.msgs = model.CloneMessages(msgs)
	for i := range l.msgs {
		l.msgs[i].Pending = false
	}
	return true
}

// Append adds messages if gen is current.
func (l *MessageLog) Append(gen uint64, msgs ...model.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	for _, m := range msgs {
		l.msgs = append(l.msgs, m.Clone())
	}
	return true
}

// Update applies fn to the message with id if gen is current.
func (l *MessageLog) Update(gen uint64, id string, fn func(*model.Message)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].ID == id {
			fn(&l.msgs[i])
			return true
		}
	}
	return false
}

// SetFeedback overwrites the feedback of the message with id.
func (l *MessageLog) SetFeedback(id string, value bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.msgs {
		if l.msgs[i].ID == id {
			l.msgs[i].Feedback = model.Bool(value)
			return true
		}
	}
	return false
}

// Messages returns a copy of the log.
func (l *MessageLog) Messages() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return model.CloneMessages(l.msgs)
}

// Get returns the message with id.
func (l *MessageLog) Get(id string) (model.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, m := range l.msgs {
		if m.ID == id {
			return m.Clone(), true
		}
	}
	return model.Message{}, false
}

// Last returns up to n of the most recent messages, oldest first.
func (l *MessageLog) Last(n int) []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return []model.Message{}
	}
	start := len(l.msgs) - n
	if start < 0 {
		start = 0
	}
	out := model.CloneMessages(l.msgs[start:])
	if out == nil {
		out = []model.Message{}
	}
	return out
}

// LastOfRole returns the most recent message with role.
func (l *MessageLog) LastOfRole(role model.Role) (model.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].Role == role {
			return l.msgs[i].Clone(), true
		}
	}
	return model.Message{}, false
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// PendingCount returns how many entries await confirmation.
func (l *MessageLog) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, m := range l.msgs {
		if m.Pending {
			n++
		}
	}
	return n
}
