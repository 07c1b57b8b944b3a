// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Tests for argument parsing and command selection.
package cli

import (
	"os"
	"strings"
	"testing"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"show", "--lines", "50"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("lines") != "50" {
					t.Errorf("Flag(lines) = %q, want %q", p.Flag("lines"), "50")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"show", "--since=2024-01-01"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("since") != "2024-01-01" {
					t.Errorf("Flag(since) = %q, want %q", p.Flag("since"), "2024-01-01")
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"show", "--json"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be true")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"search", "error", "in", "production"},
			wantSub: "search",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 4 {
					t.Errorf("PositionalCount() = %d, want 4", p.PositionalCount())
				}
				joined := strings.Join(p.PositionalFrom(1), " ")
				if joined != "error in production" {
					t.Errorf("PositionalFrom(1) joined = %q, want %q", joined, "error in production")
				}
			},
		},
		{
			name:    "mixed flags and positional",
			args:    []string{"rename", "-u", "ana", "2", "Trip", "notes"},
			wantSub: "rename",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("u", "username") != "ana" {
					t.Errorf("Flag(u) = %q, want %q", p.Flag("u", "username"), "ana")
				}
				// Positional should be: rename, 2, Trip, notes
				if p.Positional(1) != "2" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "2")
				}
				if got := JoinPositionalArgs(p, 2); got != "Trip notes" {
					t.Errorf("JoinPositionalArgs(2) = %q, want %q", got, "Trip notes")
				}
			},
		},
		{
			name:    "declared bool flag does not eat positional",
			args:    []string{"--markdown", "c-1"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				// Undeclared, c-1 is taken as the flag's value.
				if p.Flag("markdown") != "c-1" {
					t.Errorf("Flag(markdown) = %q, want %q", p.Flag("markdown"), "c-1")
				}
				declared := NewArgParser([]string{"--markdown", "c-1"}, "markdown")
				if !declared.BoolFlag("markdown") || declared.Positional(0) != "c-1" {
					t.Errorf("declared parse: markdown=%v pos0=%q", declared.BoolFlag("markdown"), declared.Positional(0))
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"rename", "1", "--", "--weird", "name"},
			wantSub: "rename",
			validate: func(t *testing.T, p *ArgParser) {
				if got := JoinPositionalArgs(p, 2); got != "--weird name" {
					t.Errorf("JoinPositionalArgs(2) = %q, want %q", got, "--weird name")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_FlagIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		flagName   string
		defaultVal int
		want       int
	}{
		{
			name:       "flag present",
			args:       []string{"cmd", "--max-iter", "10"},
			flagName:   "max-iter",
			defaultVal: 5,
			want:       10,
		},
		{
			name:       "flag missing uses default",
			args:       []string{"cmd"},
			flagName:   "max-iter",
			defaultVal: 5,
			want:       5,
		},
		{
			name:       "invalid int uses default",
			args:       []string{"cmd", "--max-iter", "abc"},
			flagName:   "max-iter",
			defaultVal: 5,
			want:       5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args)
			got := parser.FlagIntOrDefault(tt.flagName, tt.defaultVal)
			if got != tt.want {
				t.Errorf("FlagIntOrDefault(%q, %d) = %d, want %d", tt.flagName, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestArgParser_HasFlag(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--verbose", "--lines", "50"})

	if !parser.HasFlag("verbose") {
		t.Error("HasFlag(verbose) should be true")
	}
	if !parser.HasFlag("lines") {
		t.Error("HasFlag(lines) should be true")
	}
	if parser.HasFlag("nonexistent") {
		t.Error("HasFlag(nonexistent) should be false")
	}
}

// =============================================================================
// PARSE BOOL STRING TESTS
// =============================================================================

func TestParseBoolString(t *testing.T) {
	trueValues := []string{"true", "TRUE", "True", "yes", "YES", "y", "Y", "1", "on", "ON"}
	falseValues := []string{"false", "FALSE", "False", "no", "NO", "n", "N", "0", "off", "OFF"}

	for _, v := range trueValues {
		t.Run("true_"+v, func(t *testing.T) {
			got, err := ParseBoolString(v)
			if err != nil {
				t.Errorf("ParseBoolString(%q) error = %v", v, err)
			}
			if !got {
				t.Errorf("ParseBoolString(%q) = false, want true", v)
			}
		})
	}

	for _, v := range falseValues {
		t.Run("false_"+v, func(t *testing.T) {
			got, err := ParseBoolString(v)
			if err != nil {
				t.Errorf("ParseBoolString(%q) error = %v", v, err)
			}
			if got {
				t.Errorf("ParseBoolString(%q) = true, want false", v)
			}
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseBoolString("maybe")
		if err == nil {
			t.Error("ParseBoolString(maybe) should error")
		}
	})
}

// =============================================================================
// PARSE INT WITH VALIDATION TESTS
// =============================================================================

func TestParseIntWithValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		field   string
		want    int
		wantErr bool
	}{
		{"valid positive", "42", "count", 42, false},
		{"valid one", "1", "count", 1, false},
		{"zero is invalid", "0", "count", 0, true},
		{"negative is invalid", "-5", "count", 0, true},
		{"empty is invalid", "", "count", 0, true},
		{"non-numeric is invalid", "abc", "count", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntWithValidation(tt.input, tt.field)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseIntWithValidation(%q, %q) error = %v, wantErr %v", tt.input, tt.field, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseIntWithValidation(%q, %q) = %d, want %d", tt.input, tt.field, got, tt.want)
			}
		})
	}
}

// =============================================================================
// COMMAND SELECTION TESTS
// =============================================================================

// TestParse_Integration tests Parse() by temporarily modifying os.Args.
func TestParse_Integration(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()

	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no command starts chat",
			args:        []string{"aila"},
			wantCommand: CmdChat,
		},
		{
			name:        "login with flags",
			args:        []string{"aila", "login", "-u", "ana"},
			wantCommand: CmdLogin,
			validate: func(t *testing.T, a Args) {
				if len(a.Raw) != 2 || a.Raw[1] != "ana" {
					t.Errorf("Raw = %v, want [-u ana]", a.Raw)
				}
			},
		},
		{
			name:        "global flags anywhere",
			args:        []string{"aila", "conversations", "--json", "-q", "list", "--url", "http://x:1"},
			wantCommand: CmdConversations,
			validate: func(t *testing.T, a Args) {
				if !a.JSON || !a.Quiet {
					t.Errorf("JSON=%v Quiet=%v, want both true", a.JSON, a.Quiet)
				}
				if a.BaseURL != "http://x:1" {
					t.Errorf("BaseURL = %q, want %q", a.BaseURL, "http://x:1")
				}
				if len(a.Raw) != 1 || a.Raw[0] != "list" {
					t.Errorf("Raw = %v, want [list]", a.Raw)
				}
			},
		},
		{
			name:        "url with equals",
			args:        []string{"aila", "--url=http://y", "whoami"},
			wantCommand: CmdWhoami,
			validate: func(t *testing.T, a Args) {
				if a.BaseURL != "http://y" {
					t.Errorf("BaseURL = %q, want %q", a.BaseURL, "http://y")
				}
			},
		},
		{
			name:        "alias signup",
			args:        []string{"aila", "signup"},
			wantCommand: CmdRegister,
		},
		{
			name:        "alias history",
			args:        []string{"aila", "history", "2"},
			wantCommand: CmdMessages,
		},
		{
			name:        "case insensitive",
			args:        []string{"aila", "EXPORT"},
			wantCommand: CmdExport,
		},
		{
			name:        "config subcommand",
			args:        []string{"aila", "config", "show"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if NewArgParser(a.Raw).Subcommand() != "show" {
					t.Errorf("Raw = %v, want subcommand show", a.Raw)
				}
			},
		},
		{
			name:        "help command",
			args:        []string{"aila", "help"},
			wantCommand: CmdHelp,
		},
		{
			name:        "version flag",
			args:        []string{"aila", "--version"},
			wantCommand: CmdVersion,
		},
		{
			name:        "unknown keeps name",
			args:        []string{"aila", "logn"},
			wantCommand: CmdUnknown,
			validate: func(t *testing.T, a Args) {
				if a.Name != "logn" {
					t.Errorf("Name = %q, want %q", a.Name, "logn")
				}
			},
		},
		{
			name:        "verbose flag",
			args:        []string{"aila", "-v"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				if !a.Verbose {
					t.Error("Verbose should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			cmd, args := Parse()

			if cmd != tt.wantCommand {
				t.Errorf("Command = %v, want %v", cmd, tt.wantCommand)
			}

			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestCommand_String(t *testing.T) {
	if CmdConversations.String() != "conversations" {
		t.Errorf("String() = %q", CmdConversations.String())
	}
	if CmdUnknown.String() != "unknown" {
		t.Errorf("String() = %q", CmdUnknown.String())
	}
}

// =============================================================================
// SUGGESTION TESTS
// =============================================================================

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"logn", "login"},
		{"regster", "register"},
		{"hepl", "help"},
		{"exprot", "export"},
		{"login", ""},
		{"x", ""},
		{"zzzzzzzz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SuggestCommand(tt.input); got != tt.want {
				t.Errorf("SuggestCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSuggestSlashCommand(t *testing.T) {
	if got := suggestFrom("/swtich", slashCommands); got != "/switch" {
		t.Errorf("suggestFrom(/swtich) = %q, want /switch", got)
	}
	if got := suggestFrom("/histroy", slashCommands); got != "/history" {
		t.Errorf("suggestFrom(/histroy) = %q, want /history", got)
	}
}

// =============================================================================
// EDGE CASES
// =============================================================================

func TestArgParser_EmptyArgs(t *testing.T) {
	parser := NewArgParser([]string{})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if parser.PositionalCount() != 0 {
		t.Errorf("PositionalCount() = %d, want 0", parser.PositionalCount())
	}
}

func TestArgParser_OnlyFlags(t *testing.T) {
	parser := NewArgParser([]string{"--verbose", "--json"})
	if parser.Subcommand() != "" {
		t.Errorf("Subcommand() = %q, want empty", parser.Subcommand())
	}
	if !parser.BoolFlag("verbose") {
		t.Error("BoolFlag(verbose) should be true")
	}
	if !parser.BoolFlag("json") {
		t.Error("BoolFlag(json) should be true")
	}
}

func TestArgParser_FlagOrDefault(t *testing.T) {
	parser := NewArgParser([]string{"cmd", "--present", "value"})

	if parser.FlagOrDefault("present", "default") != "value" {
		t.Error("FlagOrDefault should return actual value when present")
	}
	if parser.FlagOrDefault("missing", "default") != "default" {
		t.Error("FlagOrDefault should return default when missing")
	}
}

// =============================================================================
// BENCHMARKS
// =============================================================================

func BenchmarkArgParser_Simple(b *testing.B) {
	args := []string{"messages", "2"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}

func BenchmarkArgParser_Complex(b *testing.B) {
	args := []string{"export", "--markdown", "-o", "/tmp/out.md", "--search", "go", "-q", "Trip planning notes"}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}

func BenchmarkArgParser_ManyFlags(b *testing.B) {
	args := []string{
		"cmd",
		"--flag1", "value1",
		"--flag2", "value2",
		"--flag3", "value3",
		"--flag4", "value4",
		"--flag5", "value5",
		"--bool1",
		"--bool2",
		"--bool3",
		"positional1",
		"positional2",
	}
	for i := 0; i < b.N; i++ {
		NewArgParser(args)
	}
}
