// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"sync"
	"time"
)

// CodeValidity is how long an emailed verification code stays usable.
const CodeValidity = 120 * time.Second

// CodeTimer counts down the validity of a verification code.
type CodeTimer struct {
	mu       sync.Mutex
	validity time.Duration
	deadline time.Time
	now      func() time.Time
}

// NewCodeTimer creates a stopped timer. validity <= 0 uses CodeValidity.
func NewCodeTimer(validity time.Duration) *CodeTimer {
	if validity <= 0 {
		validity = CodeValidity
	}
	return &CodeTimer{validity: validity, now: time.Now}
}

// Start begins (or, after a resend, restarts) the countdown.
func (t *CodeTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = t.now().Add(t.validity)
}

// Remaining returns time until the code expires, never negative.
func (t *CodeTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline.IsZero() {
		return 0
	}
	if r := t.deadline.Sub(t.now()); r > 0 {
		return r
	}
	return 0
}

// Expired reports whether a started countdown has run out.
func (t *CodeTimer) Expired() bool {
	t.mu.Lock()
	started := !t.deadline.IsZero()
	t.mu.Unlock()
	return started && t.Remaining() == 0
}

// String renders the remaining time as m:ss.
func (t *CodeTimer) String() string {
	return FormatCountdown(t.Remaining())
}

// FormatCountdown renders d as m:ss, rounding up to whole seconds.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
