// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"sync"

	"github.com/jeranaias/aila/internal/model"
)

// Registry is the ordered list of the user's conversations.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	convs []model.Conversation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs)
}

// All returns a copy of the conversations in display order.
func (r *Registry) All() []model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Conversation(nil), r.convs...)
}

// Replace swaps in a freshly fetched list.
func (r *Registry) Replace(convs []model.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs = append([]model.Conversation(nil), convs...)
}

// Prepend puts a new conversation at the top.
func (r *Registry) Prepend(c model.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs = append([]model.Conversation{c}, r.convs...)
}

// Rename changes the name of the entry with id in place. It reports
// whether the entry exists.
func (r *Registry) Rename(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.convs {
		if r.convs[i].ID == id {
			r.convs[i].Name = name
			return true
		}
	}
	return false
}

// Get returns the entry with id.
func (r *Registry) Get(id string) (model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.convs {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// At returns the i-th entry (0-based).
func (r *Registry) At(i int) (model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.convs) {
		return model.Conversation{}, false
	}
	return r.convs[i], true
}

// Lookup resolves ref as an exact id, a unique id prefix, or an exact
// (case-insensitive) name, in that order.
func (r *Registry) Lookup(ref string) (model.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Conversation{}, false
	}
	for _, c := range r.convs {
		if c.ID == ref {
			return c, true
		}
	}

	var match model.Conversation
	n := 0
	for _, c := range r.convs {
		if strings.HasPrefix(c.ID, ref) {
			match = c
			n++
		}
	}
	if n == 1 {
		return match, true
	}

	for _, c := range r.convs {
		if strings.EqualFold(c.Name, ref) {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// Clear removes all entries.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs = nil
}
