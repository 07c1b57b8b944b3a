// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the AILA client.
//
// The JSON shapes match the service's wire format, so the same values are
// decoded from API responses, kept in the local message log, and written
// to transcripts.
//
// # Key Types
//
//   - Identity: The signed-in user (username, email, verification state)
//   - Conversation: Server-assigned id plus a mutable, non-unique name
//   - Message: One entry of a conversation log with optional feedback
//   - Frame: A single decoded frame of a streamed chat reply
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
//	now := model.FormatTimestamp(time.Now())
//	user := model.NewMessage(uuid.NewString(), model.RoleUser, "Hi", now)
//	reply := model.NewMessage(uuid.NewString(), model.RoleAssistant, "", now)
package model
