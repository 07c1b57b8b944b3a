// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection and handling for aila.
//
// USABILITY: TTY detection for proper terminal handling
//
// Interactive terminals get colors, prompts and markdown; piped output
// gets plain text. NO_COLOR and FORCE_COLOR are respected.

package cli

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// fder is implemented by *os.File.
type fder interface {
	Fd() uintptr
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(fder)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return isTerminal(os.Stdin)
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return isTerminal(os.Stdout)
}

// =============================================================================
// TERMINAL WIDTH DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for wrapping
	MinTerminalWidth = 40
)

// terminalWidth returns the width of w, or DefaultTerminalWidth when w is
// not a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(fder)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// GetTerminalWidth returns the current stdout width.
func GetTerminalWidth() int {
	return terminalWidth(os.Stdout)
}

// =============================================================================
// COLOR OUTPUT CONTROL
// =============================================================================

var (
	colorMode   = "auto"
	colorModeMu sync.RWMutex
)

// SetColorMode selects "auto", "always" or "never" and reconfigures the
// shared styles.
func SetColorMode(mode string) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "always" && mode != "never" {
		mode = "auto"
	}
	colorModeMu.Lock()
	colorMode = mode
	colorModeMu.Unlock()
	applyColorProfile()
}

// ColorsEnabled returns true if colored output should be used.
// NO_COLOR beats everything; see https://no-color.org/.
func ColorsEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	colorModeMu.RLock()
	mode := colorMode
	colorModeMu.RUnlock()

	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return IsStdoutTTY()
}

// GetColorProfile returns the appropriate termenv color profile.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	if p := termenv.ColorProfile(); p != termenv.Ascii {
		return p
	}
	// Forced colors on a non-terminal still get basic ANSI.
	return termenv.ANSI
}

// =============================================================================
// INTERACTIVE INPUT
// =============================================================================

// readPasswordFromTerminal reads a line from a terminal without echo.
func readPasswordFromTerminal(f fder) (string, error) {
	b, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
