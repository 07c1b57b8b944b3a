// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream assembles a streamed chat reply from raw body chunks.
//
// The service answers a chat turn with a chunked body of frames:
//
//	data: {"response": "Hel"}\n\n
//	data: {"response": "lo", "status": 200}\n\n
//
// Chunks arrive with no alignment: a chunk may end in the middle of a
// UTF-8 sequence, a frame, or even the "data: " prefix. The Assembler
// decodes incrementally, buffers incomplete frames, and hands the caller
// the accumulated reply after every accepted fragment.
//
// # Key Types
//
//   - Decoder: Incremental UTF-8 decoder carrying partial sequences
//   - Assembler: Frame splitter and accumulator for one chat turn
//   - Error: Mid-stream failure carrying the partial reply
//
// # Usage
//
//	asm := stream.NewAssembler(func(text string) {
//	    log.SetLast(text)
//	})
//	if err := stream.Read(ctx, resp.Body, asm); err != nil {
//	    var serr *stream.Error
//	    if errors.As(err, &serr) {
//	        // serr.Partial holds what arrived before the failure
//	    }
//	}
package stream
