// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// UNICODE: Multi-byte sequences split across chunks are carried, not mangled.

// Decoder turns a sequence of byte chunks into text. Incomplete trailing
// sequences wait for the next chunk; invalid bytes become U+FFFD.
type Decoder struct {
	t     transform.Transformer
	carry []byte
}

// NewDecoder creates a UTF-8 decoder with empty state.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode decodes chunk. When final is true any carried bytes are flushed
// (as U+FFFD if still incomplete) and the decoder is reset.
func (d *Decoder) Decode(chunk []byte, final bool) (string, error) {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}

	// A replaced byte grows to three, so this rarely needs a second pass.
	dst := make([]byte, 3*len(src)+4)
	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, final)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			if final {
				d.t.Reset()
			}
			return string(out), nil
		case errors.Is(err, transform.ErrShortDst):
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
			}
		case errors.Is(err, transform.ErrShortSrc):
			d.carry = append([]byte(nil), src...)
			return string(out), nil
		default:
			return string(out), err
		}
	}
}

// Pending returns the number of bytes held back for the next chunk.
func (d *Decoder) Pending() int {
	return len(d.carry)
}
