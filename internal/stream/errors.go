// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Feed after the final chunk was processed.
var ErrClosed = errors.New("stream: assembler already finished")

// Error is a failure that interrupted a stream, preserving the reply
// accumulated before it happened.
type Error struct {
	Partial string // Reply received before the error
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
