// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversation transcripts as documents.
//
// # Supported Formats
//
//   - JSON: the transcript as the transcript store saves it
//   - Markdown: YAML frontmatter plus one section per message
//   - HTML: a standalone page with embedded CSS and a theme toggle
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	err = export.WriteFile(transcript, exporter, "notes.md")
//
// Pending messages never reach an export: storage.NewTranscript drops them.
package export
