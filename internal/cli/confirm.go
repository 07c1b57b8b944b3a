// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompts for destructive operations.

package cli

import (
	"fmt"
	"strings"
)

// confirm asks question and returns true only for an explicit yes.
// confirmFlag (--confirm) skips the prompt. Without a terminal, or in
// JSON mode, nothing is asked and the answer is no.
func (a *App) confirm(confirmFlag bool, question string) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if a.args.JSON {
		return false, &ValidationError{Field: "confirm", Reason: "JSON mode cannot prompt; pass --confirm"}
	}
	if !a.interactive() {
		fmt.Fprintf(a.Err, "%s %s (pass --confirm to proceed)\n", WarningStyle.Render("[Skipped]"), question)
		return false, nil
	}

	answer, err := a.promptLine(question + " [y/N]: ")
	if err != nil {
		return false, nil
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// showCancelled reports an operation the user declined.
func (a *App) showCancelled() {
	a.info("%s", DimStyle.Render("Cancelled."))
}
