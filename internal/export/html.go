// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/storage"
)

var (
	codeBlockRegex  = regexp.MustCompile("```([^\n`]*)\n([\\s\\S]*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a standalone HTML page with
// embedded CSS.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *storage.Transcript) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}
	exported := e.options.exportedAt(t)
	title := html.EscapeString(t.Title())

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", title))
	sb.WriteString("    <meta name=\"generator\" content=\"aila\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", e.theme()))
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", title))
	if e.options.IncludeMetadata {
		sb.WriteString("            <div class=\"metadata\">\n")
		if t.Username != "" {
			sb.WriteString(fmt.Sprintf("                <span><strong>User:</strong> %s</span>\n", html.EscapeString(t.Username)))
		}
		sb.WriteString(fmt.Sprintf("                <span><strong>Messages:</strong> %d</span>\n", len(t.Messages)))
		sb.WriteString(fmt.Sprintf("                <span><strong>Exported:</strong> %s</span>\n", formatTimestamp(exported)))
		sb.WriteString("                <button class=\"theme-toggle\" onclick=\"toggleTheme()\" title=\"Toggle theme\">[Theme]</button>\n")
		sb.WriteString("            </div>\n")
	}
	sb.WriteString("        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range t.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>aila</strong> on %s</p>\n",
		exported.Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString(script)
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) theme() string {
	if e.options.Theme == "light" {
		return "light"
	}
	return "dark"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderMessage(msg model.Message) string {
	var sb strings.Builder

	roleClass := "unknown"
	if msg.Role.Valid() {
		roleClass = string(msg.Role)
	}
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", roleClass))
	sb.WriteString("                <div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(msg.Role))))
	if marker := feedbackMarker(msg); marker != "" {
		sb.WriteString(fmt.Sprintf("                    <span class=\"feedback %s\">%s</span>\n", msg.FeedbackLabel(), marker))
	}
	if e.options.IncludeTimestamps && msg.Timestamp != "" {
		sb.WriteString(fmt.Sprintf("                    <span class=\"timestamp\">%s</span>\n", html.EscapeString(formatShortTimestamp(msg))))
	}
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(formatContent(msg.Message))
	sb.WriteString("\n                </div>\n")
	sb.WriteString("            </div>\n")
	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent escapes content and turns fenced and inline code into
// markup. Everything else becomes paragraphs split on blank lines.
func formatContent(content string) string {
	content = html.EscapeString(strings.TrimSpace(content))

	// Code blocks are swapped out for placeholders so paragraph splitting
	// leaves their line breaks alone.
	blocks := make(map[string]string)
	content = codeBlockRegex.ReplaceAllStringFunc(content, func(match string) string {
		parts := codeBlockRegex.FindStringSubmatch(match)
		lang := strings.TrimSpace(parts[1])
		langLabel := ""
		if lang != "" {
			// Already escaped with the rest of the content.
			langLabel = fmt.Sprintf("<div class=\"code-lang\">%s</div>", lang)
		}
		key := fmt.Sprintf("\x00%d\x00", len(blocks))
		blocks[key] = fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>",
			langLabel, strings.TrimRight(parts[2], "\n"))
		return "\n\n" + key + "\n\n"
	})

	var out []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if block, ok := blocks[para]; ok {
			out = append(out, block)
			continue
		}
		para = inlineCodeRegex.ReplaceAllString(para, "<code class=\"inline-code\">$1</code>")
		out = append(out, "<p>"+strings.ReplaceAll(para, "\n", "<br>\n")+"</p>")
	}
	return strings.Join(out, "\n")
}

// =============================================================================
// EMBEDDED CSS AND SCRIPT
// =============================================================================

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        .dark-theme {
            --bg: #1a1b26; --panel: #24283b; --edge: #414868;
            --text: #c0caf5; --muted: #565f89; --user: #1f2335;
            --accent: #7aa2f7; --good: #9ece6a; --bad: #f7768e;
        }
        .light-theme {
            --bg: #ffffff; --panel: #f7f8fa; --edge: #e1e4e8;
            --text: #24292e; --muted: #6a737d; --user: #f6f8fa;
            --accent: #0366d6; --good: #22863a; --bad: #d73a49;
        }

        body {
            font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif;
            line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--edge); }
        .header h1 { font-size: 28px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; align-items: center; }
        .theme-toggle { margin-left: auto; padding: 4px 12px; border: 1px solid var(--muted); border-radius: 6px; background: transparent; color: var(--text); cursor: pointer; }

        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 20px; padding: 16px 20px; border-radius: 8px; border-left: 4px solid var(--edge); }
        .user-message { background: var(--user); border-left-color: var(--accent); }
        .message-header { display: flex; gap: 12px; align-items: baseline; margin-bottom: 8px; }
        .role-label { font-weight: 600; }
        .timestamp { margin-left: auto; font-size: 12px; color: var(--muted); }
        .feedback.good { color: var(--good); }
        .feedback.bad { color: var(--bad); }
        .message-content p { margin-bottom: 10px; }

        code { font-family: "SF Mono", Menlo, Consolas, monospace; font-size: 0.9em; }
        .inline-code { padding: 1px 5px; border-radius: 4px; background: var(--bg); }
        .code-block { margin: 12px 0; border-radius: 6px; background: var(--bg); overflow: hidden; }
        .code-lang { padding: 4px 12px; font-size: 12px; color: var(--muted); border-bottom: 1px solid var(--edge); }
        .code-block pre { padding: 12px; overflow-x: auto; }

        .footer { padding: 16px 32px; font-size: 13px; color: var(--muted); text-align: center; }
    </style>
`

const script = `    <script>
        function toggleTheme() {
            const next = document.body.classList.contains('dark-theme') ? 'light' : 'dark';
            document.body.classList.remove('dark-theme', 'light-theme');
            document.body.classList.add(next + '-theme');
            localStorage.setItem('theme', next);
        }

        document.addEventListener('DOMContentLoaded', function() {
            const saved = localStorage.getItem('theme');
            if (saved === 'dark' || saved === 'light') {
                document.body.classList.remove('dark-theme', 'light-theme');
                document.body.classList.add(saved + '-theme');
            }
        });
    </script>
`
