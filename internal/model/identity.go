// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Identity is the authenticated user as reported by the service.
//
// Verified is tri-state: nil when the service did not say, false when the
// account still needs its emailed code confirmed.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified *bool  `json:"verified,omitempty"`
}

// IsZero reports whether no user is present.
func (id Identity) IsZero() bool {
	return id.Username == "" && id.Email == "" && id.Verified == nil
}

// NeedsVerification reports whether the account is explicitly unverified.
// An unknown state does not block chatting.
func (id Identity) NeedsVerification() bool {
	return id.Verified != nil && !*id.Verified
}

// VerificationLabel returns a short human-readable verification state.
func (id Identity) VerificationLabel() string {
	switch {
	case id.Verified == nil:
		return "unknown"
	case *id.Verified:
		return "verified"
	default:
		return "pending verification"
	}
}
