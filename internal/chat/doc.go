// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat holds the client-side conversation state and runs chat turns.
//
// # Key Types
//
//   - Registry: The user's conversations, newest first
//   - MessageLog: The active conversation's messages, with a generation
//     counter that turns late writes from a previous selection into no-ops
//   - Controller: Select/create/rename conversations, rate replies, and
//     submit turns
//
// # Turns
//
// Submit appends the user's message and an empty assistant placeholder
// right away (both marked Pending), streams the reply into the
// placeholder, then persists both messages and refetches the log. The
// refetch replaces the log wholesale, dropping the pending copies.
//
//	ctrl, _ := chat.NewController(client, store, chat.Options{})
//	ctrl.LoadConversations(ctx)
//	res, err := ctrl.Submit(ctx, "Hi")
//	if err != nil {
//	    fmt.Println(ctrl.ErrorText()) // "Error from bot", ...
//	}
package chat
