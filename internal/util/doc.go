// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the aila packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - AtomicWriteFileWithDir: Same, with explicit parent directory mode
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth: Display-width aware truncation for terminal columns
//   - PadWidth: Right-pad a string to a display width
//
// # Usage
//
//	// Persist the cookie jar without risking a half-written file
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Fit a conversation name into a 24-column list cell
//	name := util.TruncateWidth(conv.Name, 24)
package util
