// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the AILA service.
//
// Every call is credentialed: the session cookie set by /login travels
// on all later requests through the client's cookie jar. FileJar persists
// that jar between runs so one-shot CLI commands share a login.
//
// # Errors
//
//   - *APIError: the service answered with a non-2xx status; Detail holds
//     its "detail" text verbatim
//   - *ClientError: the request never produced a usable answer (connection
//     refused, timeout, undecodable body)
//
// ErrorMessage turns either into the string shown to the user.
//
// # Usage
//
//	jar, _ := api.NewFileJar(cfg.Storage.CookieFile)
//	client := api.NewClient(&api.Config{BaseURL: cfg.Server.BaseURL, Jar: jar})
//	id, err := client.Login(ctx, "ana", "secret")
package api
