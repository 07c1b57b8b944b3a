// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/storage"
)

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func transcript(name string, msgs ...model.Message) *storage.Transcript {
	t := storage.NewTranscript(model.Conversation{ID: "c-1", Name: name}, msgs, "ana")
	t.ExportedAt = fixedTime
	return t
}

func msg(role model.Role, text string) model.Message {
	return model.Message{ID: "m-" + text, Role: role, Message: text, Timestamp: "2025-03-01T10:00:00.000Z"}
}

// TestXSSVulnerabilityFix tests that language names in code blocks are properly escaped.
func TestXSSVulnerabilityFix(t *testing.T) {
	tr := transcript("XSS Test", msg(model.RoleAssistant, "```<script>alert('xss')</script>\ncode here\n```"))

	output, err := NewHTMLExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	result := string(output)
	if strings.Contains(result, "<script>alert") {
		t.Error("XSS vulnerability: script tag not escaped in language label")
	}
	if !strings.Contains(result, "&lt;script&gt;") {
		t.Error("Expected escaped script tag in output")
	}
}

func TestHTMLEscapesTitleAndBody(t *testing.T) {
	tr := transcript("<b>bold</b>", msg(model.RoleUser, "a < b && c > d"))

	output, err := NewHTMLExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)
	if strings.Contains(result, "<b>bold</b>") {
		t.Error("title not escaped")
	}
	if !strings.Contains(result, "a &lt; b &amp;&amp; c &gt; d") {
		t.Error("message body not escaped")
	}
}

func TestHTMLCodeBlocks(t *testing.T) {
	tr := transcript("Code",
		msg(model.RoleAssistant, "Try this:\n\n```go\nfmt.Println(1)\n\nfmt.Println(2)\n```\n\nor use `go run`."))

	output, err := NewHTMLExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)
	if !strings.Contains(result, "<div class=\"code-lang\">go</div>") {
		t.Error("expected language label")
	}
	if !strings.Contains(result, "<pre><code>fmt.Println(1)\n\nfmt.Println(2)</code></pre>") {
		t.Error("code block line breaks should be preserved")
	}
	if !strings.Contains(result, "<code class=\"inline-code\">go run</code>") {
		t.Error("expected inline code")
	}
	if !strings.Contains(result, "<p>Try this:</p>") {
		t.Error("expected paragraph before the code block")
	}
}

func TestHTMLTheme(t *testing.T) {
	tr := transcript("Theme", msg(model.RoleUser, "hi"))

	opts := DefaultOptions()
	opts.Theme = "light"
	output, _ := NewHTMLExporter(opts).Export(tr)
	if !strings.Contains(string(output), "<body class=\"light-theme\">") {
		t.Error("expected light theme")
	}

	opts.Theme = "\"><script>"
	output, _ = NewHTMLExporter(opts).Export(tr)
	if !strings.Contains(string(output), "<body class=\"dark-theme\">") {
		t.Error("unknown themes should fall back to dark")
	}
}

// TestYAMLNewlineInjectionFix tests that newlines are properly escaped in YAML frontmatter.
func TestYAMLNewlineInjectionFix(t *testing.T) {
	tr := transcript("Test\nInjection: malicious", msg(model.RoleUser, "test"))

	output, err := NewMarkdownExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	lines := strings.Split(string(output), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "Injection:") {
			t.Error("YAML injection vulnerability: newline not escaped in title")
		}
	}
	if !strings.Contains(string(output), `title: "Test\nInjection: malicious"`) {
		t.Error("Expected quoted title with escaped newline")
	}
}

func TestEscapeYAMLBackslash(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"plain", "plain"},
		{`C:\path`, `"C:\\path"`},
		{`say "hi"`, `"say \"hi\""`},
		{" padded", `" padded"`},
	}
	for _, tt := range tests {
		if got := escapeYAML(tt.input); got != tt.want {
			t.Errorf("escapeYAML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("#1 *bold* [link]\nnext")
	want := `\#1 \*bold\* \[link\] next`
	if got != want {
		t.Errorf("escapeMarkdown = %q, want %q", got, want)
	}
}

func TestMarkdownExport(t *testing.T) {
	good := msg(model.RoleAssistant, "Can, could, may.")
	good.Feedback = model.Bool(true)
	tr := transcript("Grammar", msg(model.RoleUser, "What is a modal verb?"), good)

	output, err := NewMarkdownExporter(nil).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)
	for _, want := range []string{
		"title: Grammar\n",
		"conversation_id: c-1\n",
		"user: ana\n",
		"messages: 2\n",
		"exported: 2025-03-01T12:00:00Z\n",
		"# Grammar\n",
		"### You <sub>2025-03-01 10:00</sub>",
		"### Assistant [+] <sub>",
		"Can, could, may.",
		"*Exported from aila on March 1, 2025 at 12:00 PM*",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestMarkdownSingleBlankLineBeforeFooter(t *testing.T) {
	tr := transcript("Footer", msg(model.RoleUser, "hi"), msg(model.RoleAssistant, "hello"))
	output, err := NewMarkdownExporter(&Options{}).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)
	if strings.Contains(result, "\n\n\n") {
		t.Errorf("markdown contains consecutive blank lines:\n%s", result)
	}
	if !strings.HasSuffix(result, "hello\n\n---\n\n*Exported from aila on March 1, 2025 at 12:00 PM*\n") {
		t.Errorf("unexpected footer:\n%s", result)
	}
}

func TestMarkdownWithoutMetadata(t *testing.T) {
	tr := transcript("Plain", msg(model.RoleUser, "hi"))
	opts := &Options{}
	output, err := NewMarkdownExporter(opts).Export(tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(output)
	if strings.HasPrefix(result, "---") {
		t.Error("frontmatter should be omitted")
	}
	if !strings.Contains(result, "### You\n") {
		t.Error("timestamps should be omitted")
	}
}

func TestUnparsableTimestampShownRaw(t *testing.T) {
	m := msg(model.RoleUser, "hi")
	m.Timestamp = "yesterday"
	output, _ := NewMarkdownExporter(nil).Export(transcript("T", m))
	if !strings.Contains(string(output), "<sub>yesterday</sub>") {
		t.Error("expected raw timestamp")
	}
}

func TestEmptyTranscriptValidation(t *testing.T) {
	empty := transcript("Empty")
	for _, e := range []Exporter{NewMarkdownExporter(nil), NewHTMLExporter(nil)} {
		if _, err := e.Export(empty); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("%T: expected ErrEmptyTranscript, got %v", e, err)
		}
		if _, err := e.Export(nil); !errors.Is(err, ErrNilTranscript) {
			t.Errorf("%T: expected ErrNilTranscript, got %v", e, err)
		}
	}

	// JSON keeps empty transcripts so they round-trip.
	if _, err := NewJSONExporter(nil).Export(empty); err != nil {
		t.Errorf("JSON export of empty transcript failed: %v", err)
	}
}

func TestPendingMessagesNotExported(t *testing.T) {
	pending := model.NewMessage("tmp", model.RoleAssistant, "half a rep", "")
	tr := transcript("P", msg(model.RoleUser, "hi"), pending)
	output, _ := NewMarkdownExporter(nil).Export(tr)
	if strings.Contains(string(output), "half a rep") {
		t.Error("pending message should not be exported")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Grammar notes", "Grammar_notes"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "conversation"},
		{"bell\x07", "bell-"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFilename(t *testing.T) {
	tr := transcript("Grammar notes", msg(model.RoleUser, "hi"))
	got := Filename(tr, NewHTMLExporter(nil), fixedTime)
	if got != "conversation_Grammar_notes_20250301_120000.html" {
		t.Errorf("Filename = %q", got)
	}
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".json"},
		{"json", ".json"},
		{"md", ".md"},
		{"Markdown", ".md"},
		{"htm", ".html"},
		{"html", ".html"},
	}
	for _, tt := range tests {
		e, err := ForFormat(tt.format, nil)
		if err != nil {
			t.Fatalf("ForFormat(%q): %v", tt.format, err)
		}
		if e.FileExtension() != tt.ext {
			t.Errorf("ForFormat(%q) ext = %s, want %s", tt.format, e.FileExtension(), tt.ext)
		}
	}
	if _, err := ForFormat("pdf", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"out.md":       "markdown",
		"out.HTML":     "html",
		"a/b.json":     "json",
		"notes.txt":    "",
		"no-extension": "",
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	tr := transcript("Notes", msg(model.RoleUser, "hello"))

	if err := WriteFile(tr, NewMarkdownExporter(nil), path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Notes") {
		t.Error("expected title in written file")
	}

	if err := WriteFile(transcript("Empty"), NewMarkdownExporter(nil), path); err == nil {
		t.Error("expected error for empty transcript")
	}
}
