// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local transcript persistence for aila.
//
// A transcript is a snapshot of one server-side conversation and its
// messages, written when the user exports it. The server remains the
// source of truth; transcripts are for keeping and sharing.
//
// # Key Types
//
//   - TranscriptStore: directory of JSON transcripts
//   - Transcript: conversation, messages and export metadata
//   - TranscriptMeta: lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.NewTranscriptStore(cfg.Storage.TranscriptsDir, cfg.Storage.MaxTranscripts)
//	path, err := store.Save(storage.NewTranscript(conv, msgs, username))
//
//	metas, err := store.List()
//	t, err := store.Load(metas[0].ID)
//
// # Storage Location
//
// Transcripts are stored in ~/.aila/transcripts/ as one JSON file per
// conversation id. Re-exporting a conversation overwrites its file.
package storage
