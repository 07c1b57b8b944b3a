// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks who is signed in.
//
// Store holds the current identity and a loading flag while a probe is in
// flight. It logs out on doubt: any authentication failure, including a
// failed logout call, clears the identity.
//
// # Key Types
//
//   - Store: Identity state machine over an AuthService
//   - CodeTimer: Countdown for the emailed verification code
//
// # States
//
//	anonymous --Login--> signed in (verified or unverified)
//	anonymous --Register--> unverified --Verify--> verified
//	any --Logout / auth failure--> anonymous
package session
