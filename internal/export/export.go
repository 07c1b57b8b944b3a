// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/storage"
	"github.com/jeranaias/aila/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a transcript in one file format.
type Exporter interface {
	// Export converts a transcript to the target format and returns the content.
	Export(t *storage.Transcript) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md", ".html").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

var (
	// ErrNilTranscript is returned when there is nothing to export.
	ErrNilTranscript = errors.New("transcript is nil")

	// ErrEmptyTranscript is returned by the document formats for a
	// conversation without confirmed messages.
	ErrEmptyTranscript = errors.New("transcript has no messages")
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata includes the metadata header (user, export time, counts).
	IncludeMetadata bool

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark").
	// Default: "dark"
	Theme string

	// Now is the clock used for footers when the transcript has no export time.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		Theme:             "dark",
		Now:               time.Now,
	}
}

func (o *Options) exportedAt(t *storage.Transcript) time.Time {
	if !t.ExportedAt.IsZero() {
		return t.ExportedAt
	}
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// =============================================================================
// FORMAT SELECTION
// =============================================================================

// Formats lists the names accepted by ForFormat.
var Formats = []string{"json", "markdown", "html"}

// ForFormat returns the exporter for a format name ("json", "markdown"/"md",
// "html"/"htm").
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return NewJSONExporter(opts), nil
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("unknown export format %q (want %s)", format, strings.Join(Formats, ", "))
}

// FormatFromPath infers the format name from a file extension, or "".
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	case ".json":
		return "json"
	}
	return ""
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// WriteFile renders t with exporter and writes it atomically to path with
// owner-only permissions.
func WriteFile(t *storage.Transcript, exporter Exporter, path string) error {
	content, err := exporter.Export(t)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Filename returns a file name for t such as
// "conversation_Grammar_notes_20250301_120000.md".
func Filename(t *storage.Transcript, exporter Exporter, now time.Time) string {
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(t.Title()),
		now.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(t *storage.Transcript) error {
	if t == nil {
		return ErrNilTranscript
	}
	if len(t.Messages) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	maxLen := 50
	runes := []rune(s)
	if len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	// Replace problematic characters (Windows and Unix)
	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := []rune{}
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// messageTime parses a message timestamp. ok is false for timestamps the
// service sent in a form we do not recognize.
func messageTime(m model.Message) (time.Time, bool) {
	ts, err := model.ParseTimestamp(m.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a message timestamp for inline display,
// falling back to the raw text.
func formatShortTimestamp(m model.Message) string {
	if ts, ok := messageTime(m); ok {
		return ts.Format("2006-01-02 15:04")
	}
	return m.Timestamp
}

// feedbackMarker renders a rating as "[+]" / "[-]", or "" when unrated.
func feedbackMarker(m model.Message) string {
	switch m.FeedbackLabel() {
	case "good":
		return "[+]"
	case "bad":
		return "[-]"
	}
	return ""
}
