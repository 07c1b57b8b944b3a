// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
)

// readBufferSize is the size of a single body read.
const readBufferSize = 4096

// Read drives a from r until end of stream. A read error or cancelled
// context ends the stream with an *Error carrying the partial reply.
func Read(ctx context.Context, r io.Reader, a *Assembler) error {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return &Error{Partial: a.Text(), Err: err}
		}

		n, err := r.Read(buf)
		eof := errors.Is(err, io.EOF)
		if n > 0 || eof {
			if ferr := a.Feed(buf[:n], eof); ferr != nil {
				return &Error{Partial: a.Text(), Err: ferr}
			}
		}
		if eof {
			return nil
		}
		if err != nil {
			// Cancellation surfaces as a transport error; report the cause.
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
			}
			return &Error{Partial: a.Text(), Err: err}
		}
	}
}

// Assemble reads a whole reply from r and returns its text.
func Assemble(ctx context.Context, r io.Reader, fold FoldFunc, opts ...Option) (string, error) {
	a := NewAssembler(fold, opts...)
	err := Read(ctx, r, a)
	return a.Text(), err
}
