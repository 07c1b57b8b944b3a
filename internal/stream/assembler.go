// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/aila/internal/logging"
	"github.com/jeranaias/aila/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DataPrefix starts every accepted frame.
	DataPrefix = "data: "

	// FrameDelimiter separates frames.
	FrameDelimiter = "\n\n"

	// MaxFrameBytes is the default cap for a single buffered frame (64KB).
	MaxFrameBytes = 64 * 1024
)

// =============================================================================
// ASSEMBLER
// =============================================================================

// FoldFunc receives the full reply accumulated so far.
type FoldFunc func(text string)

// Stats holds counters collected while assembling one reply.
type Stats struct {
	FramesAccepted int
	FramesSkipped  int
	FramesDropped  int // Oversized frames discarded unparsed
	BytesRead      int64
	LastStatus     int

	StartTime         time.Time
	FirstFragmentTime time.Time
	TTFF              time.Duration // Time to first fragment
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxFrameBytes caps the size of a buffered frame. Values <= 0 keep
// the default.
func WithMaxFrameBytes(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxFrame = n
		}
	}
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Assembler) {
		a.log = l
	}
}

// WithClock overrides time.Now for statistics.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// Assembler folds the frames of one streamed reply into a single text.
// It is not safe for concurrent use; one instance serves one turn.
type Assembler struct {
	dec      *Decoder
	fold     FoldFunc
	maxFrame int
	log      logrus.FieldLogger
	now      func() time.Time

	// PERFORMANCE: strings.Builder avoids quadratic allocations
	acc        strings.Builder
	pending    string
	discarding bool // inside an oversized frame, skip to next delimiter
	done       bool

	stats Stats
}

// NewAssembler creates an assembler that calls fold after each accepted
// fragment. fold may be nil.
func NewAssembler(fold FoldFunc, opts ...Option) *Assembler {
	a := &Assembler{
		dec:      NewDecoder(),
		fold:     fold,
		maxFrame: MaxFrameBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.Or(a.log)
	a.stats.StartTime = a.now()
	return a
}

// Feed processes one chunk. done marks the final read; data carried by it
// is processed before the stream ends and any unterminated remainder is
// treated as a last frame.
func (a *Assembler) Feed(chunk []byte, done bool) error {
	if a.done {
		return ErrClosed
	}
	a.stats.BytesRead += int64(len(chunk))

	text, err := a.dec.Decode(chunk, done)
	if err != nil {
		return err
	}
	a.pending = normalizeNewlines(a.pending + text)

	for {
		i := strings.Index(a.pending, FrameDelimiter)
		if i < 0 {
			break
		}
		frame := a.pending[:i]
		a.pending = a.pending[i+len(FrameDelimiter):]

		if a.discarding {
			// Tail of a frame already counted as dropped.
			a.discarding = false
			continue
		}
		if len(frame) > a.maxFrame {
			a.dropFrame(len(frame))
			continue
		}
		a.handleFrame(frame)
	}

	// Trailing line breaks may belong to the next delimiter, not the frame.
	if n := len(a.pending) - len(newlineTail(a.pending)); n > a.maxFrame {
		if !a.discarding {
			a.dropFrame(n)
			a.discarding = true
		}
		a.pending = newlineTail(a.pending)
	}

	if done {
		if !a.discarding && strings.TrimSpace(a.pending) != "" {
			a.handleFrame(a.pending)
		}
		a.pending = ""
		a.done = true
	}
	return nil
}

// dropFrame counts a frame over the size cap. Each frame is counted once,
// however many chunks it spans.
func (a *Assembler) dropFrame(n int) {
	a.stats.FramesDropped++
	a.log.WithField("bytes", n).Warn("stream: dropping oversized frame")
}

// handleFrame parses one candidate frame and folds its fragment.
func (a *Assembler) handleFrame(frame string) {
	if strings.TrimSpace(frame) == "" {
		return
	}
	if !strings.HasPrefix(frame, DataPrefix) {
		a.stats.FramesSkipped++
		a.log.WithField("frame", frame).Debug("stream: ignoring non-data frame")
		return
	}

	var f model.Frame
	if err := json.Unmarshal([]byte(frame[len(DataPrefix):]), &f); err != nil {
		a.stats.FramesSkipped++
		a.log.WithError(err).WithField("frame", frame).Warn("stream: skipping malformed frame")
		return
	}
	if f.Response == nil {
		a.stats.FramesSkipped++
		a.log.WithField("frame", frame).Warn("stream: frame has no response field")
		return
	}
	if f.Status != nil {
		a.stats.LastStatus = *f.Status
	}

	a.acc.WriteString(*f.Response)
	a.stats.FramesAccepted++
	if a.stats.FirstFragmentTime.IsZero() {
		a.stats.FirstFragmentTime = a.now()
		a.stats.TTFF = a.stats.FirstFragmentTime.Sub(a.stats.StartTime)
	}
	if a.fold != nil {
		a.fold(a.acc.String())
	}
}

// Text returns the reply accumulated so far.
func (a *Assembler) Text() string {
	return a.acc.String()
}

// Done reports whether the final chunk was fed.
func (a *Assembler) Done() bool {
	return a.done
}

// Stats returns a snapshot of the assembler's counters.
func (a *Assembler) Stats() Stats {
	return a.stats
}

// normalizeNewlines converts CRLF to LF. A lone trailing CR is kept so it
// can pair with an LF at the start of the next chunk.
// newlineTail returns the trailing line breaks of s that may open the next
// delimiter.
func newlineTail(s string) string {
	i := len(s)
	for i > 0 && len(s)-i < len(FrameDelimiter) && (s[i-1] == '\n' || s[i-1] == '\r') {
		i--
	}
	return s[i:]
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r\n") {
		return s
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}
