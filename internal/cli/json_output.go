// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Every command that supports --json prints one JSONResponse on stdout;
// human-readable chatter goes to stderr in JSON mode.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/aila/internal/model"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := userMessage(err)
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// RESPONSE DATA TYPES
// =============================================================================

// WhoamiData is the data of "aila whoami --json".
type WhoamiData struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Verified *bool  `json:"verified"`
	BaseURL  string `json:"base_url"`
}

// ConversationData is one entry of "aila conversations --json".
type ConversationData struct {
	Position int    `json:"position"`
	ID       string `json:"id"`
	Name     string `json:"name"`
}

// MessagesData is the data of "aila messages --json".
type MessagesData struct {
	Conversation model.Conversation `json:"conversation"`
	Messages     []model.Message    `json:"messages"`
}

// ExportData is the data of "aila export --json".
type ExportData struct {
	ConversationID string `json:"conversation_id"`
	Path           string `json:"path"`
	Messages       int    `json:"messages"`
}

// VersionData is the data of "aila version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
