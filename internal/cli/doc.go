// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for aila.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed global flags plus the command's own arguments
//   - App: Config, session cookie jar, service client, session store and
//     chat controller wired together for one invocation
//
// # Usage
//
//	cmd, args := cli.Parse()
//	app, err := cli.NewApp(cfg, args)
//	if err == nil {
//	    err = app.Run(ctx, cmd)
//	}
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Commands Overview
//
//   - chat (default): Interactive REPL with streamed replies
//   - login, register, verify, resend, logout, whoami: Account
//   - conversations, messages, export: Conversation access
//   - config, version, help
//
// Commands that print data support --json.
package cli
