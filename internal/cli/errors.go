// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for aila commands.
//
// STANDARDIZED PATTERN:
//   - Commands return errors; they never print and return nil
//   - main displays the error and picks the exit code
//   - Structured error types carry what the exit code needs

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/aila/internal/api"
	"github.com/jeranaias/aila/internal/chat"
	"github.com/jeranaias/aila/internal/config"
	"github.com/jeranaias/aila/internal/session"
	"github.com/jeranaias/aila/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the user is not signed in or was refused
	ExitAuthError = 4
	// ExitNetworkError indicates the service could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the user cancelled with Ctrl+C
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "conversations")
	Action  string // Action being performed (e.g., "rename")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %s", e.Command, e.Action, e.Reason, api.ErrorMessage(e.Err))
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "conversation")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrInvalidFormat creates an error for invalid format.
func ErrInvalidFormat(field, value, expected string) error {
	return &ValidationError{Field: field, Value: value, Reason: "invalid format", Example: expected}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// errNotSignedIn is returned by commands that need a session.
func errNotSignedIn(command string, err error) error {
	return NewCommandError(command, "", "not signed in (run 'aila login')", err)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), userMessage(err))
}

// userMessage prefers the text a turn failure shows the user.
func userMessage(err error) string {
	var turnErr *chat.TurnError
	if errors.As(err, &turnErr) {
		return turnErr.Text
	}
	return err.Error()
}

// DisplayErrorJSON outputs an error as JSON.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]any{
		"error":     userMessage(err),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var (
		cmdErr      *CommandError
		validation  *ValidationError
		notFound    *NotFoundError
		apiErr      *api.APIError
		turnErr     *chat.TurnError
		configError config.ValidateErrors
	)
	switch {
	case errors.As(err, &validation):
		output["error_type"] = "validation_error"
		output["field"] = validation.Field
	case errors.As(err, &notFound):
		output["error_type"] = "not_found_error"
		output["resource"] = notFound.Resource
		output["id"] = notFound.ID
	case errors.As(err, &turnErr):
		output["error_type"] = "turn_error"
	case errors.As(err, &configError):
		output["error_type"] = "config_error"
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}
	if errors.As(err, &apiErr) {
		output["status"] = apiErr.Status
		output["detail"] = apiErr.Detail
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output)
}

// =============================================================================
// EXIT CODES FROM ERRORS
// =============================================================================

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validation  *ValidationError
		notFound    *NotFoundError
		configError config.ValidateErrors
	)
	switch {
	case errors.As(err, &validation):
		return ExitUsageError
	case errors.As(err, &notFound),
		errors.Is(err, chat.ErrUnknownConversation),
		errors.Is(err, chat.ErrUnknownMessage),
		errors.Is(err, storage.ErrTranscriptNotFound):
		return ExitNotFoundError
	case errors.As(err, &configError):
		return ExitConfigError
	case errors.Is(err, session.ErrNotAuthenticated),
		errors.Is(err, session.ErrNotVerified),
		errors.Is(err, session.ErrInvalidCode),
		api.IsUnauthorized(err):
		return ExitAuthError
	case errors.Is(err, errInterrupted):
		return ExitInterrupted
	case api.IsTimeout(err):
		return ExitTimeoutError
	case api.IsConnection(err):
		return ExitNetworkError
	}

	if strings.Contains(strings.ToLower(err.Error()), "config") {
		return ExitConfigError
	}
	return ExitGeneralError
}

// errInterrupted marks a command stopped by Ctrl+C.
var errInterrupted = errors.New("interrupted")

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
