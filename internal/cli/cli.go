// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and usage text for aila.

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdChat Command = iota
	CmdLogin
	CmdRegister
	CmdVerify
	CmdResend
	CmdLogout
	CmdWhoami
	CmdConversations
	CmdMessages
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdChat:          "chat",
	CmdLogin:         "login",
	CmdRegister:      "register",
	CmdVerify:        "verify",
	CmdResend:        "resend",
	CmdLogout:        "logout",
	CmdWhoami:        "whoami",
	CmdConversations: "conversations",
	CmdMessages:      "messages",
	CmdExport:        "export",
	CmdConfig:        "config",
	CmdVersion:       "version",
	CmdHelp:          "help",
}

// String returns the command's name as typed.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool   // Output in JSON format
	BaseURL string // Overrides server.base_url

	// Name is the command as typed (for error messages on CmdUnknown).
	Name string

	// Raw holds the arguments after the command name.
	Raw []string
}

const usageText = `aila - terminal client for the AILA assistant

Usage:
  aila [chat]                          Interactive chat (default)
  aila login [-u NAME]                 Sign in
  aila register [-u NAME] [-e EMAIL]   Create an account
  aila verify [CODE] [-u NAME]         Confirm the emailed code
  aila resend [-u NAME] [-e EMAIL]     Send a new code
  aila logout                          Sign out
  aila whoami                          Show the signed-in user
  aila conversations [list|new|rename REF NAME]
  aila messages [REF]                  Print a conversation
  aila export [REF] [--format json|markdown|html] [-o FILE]
  aila export --list | --search Q | --delete ID | --clear
  aila config [show|path|init|get KEY|set KEY VALUE|keys]
  aila version

REF is a list position (1 = newest), a conversation id or id prefix, or a name.

Global flags:
  -q, --quiet       Less output
  -v, --verbose     Debug logging
  --json            JSON output where supported
  --url URL         Service root (overrides config)

Chat commands:
  /new /list /switch REF /rename NAME /history /good /bad /export
  /whoami /logout /help /quit

Version: %s
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "aila version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments and returns the command and args.
// Global flags may appear anywhere.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdChat, parsed
	}

	name := strings.ToLower(remaining[0])
	parsed.Name = name
	parsed.Raw = remaining[1:]

	switch name {
	case "chat", "c":
		return CmdChat, parsed
	case "login", "signin":
		return CmdLogin, parsed
	case "register", "signup":
		return CmdRegister, parsed
	case "verify":
		return CmdVerify, parsed
	case "resend", "resend-code":
		return CmdResend, parsed
	case "logout", "signout":
		return CmdLogout, parsed
	case "whoami", "me":
		return CmdWhoami, parsed
	case "conversations", "conversation", "convs", "ls":
		return CmdConversations, parsed
	case "messages", "show", "history":
		return CmdMessages, parsed
	case "export":
		return CmdExport, parsed
	case "config":
		return CmdConfig, parsed
	case "version", "--version":
		return CmdVersion, parsed
	case "help", "-h", "--help":
		return CmdHelp, parsed
	default:
		return CmdUnknown, parsed
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-q" || arg == "--quiet":
			parsed.Quiet = true
		case arg == "-v" || arg == "--verbose":
			parsed.Verbose = true
		case arg == "--json":
			parsed.JSON = true
		case arg == "--url" && i+1 < len(args):
			i++
			parsed.BaseURL = args[i]
		case strings.HasPrefix(arg, "--url="):
			parsed.BaseURL = strings.TrimPrefix(arg, "--url=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, parsed
}
