// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display current configuration
//   path                Show configuration file path
//   init [--confirm]    Write a default config.toml
//   get KEY             Print one value
//   set KEY VALUE       Change one value and save
//   keys                List settable keys
//
// Examples:
//   aila config                              Show current config
//   aila config show --json                  Config in JSON format
//   aila config set server.base_url https://aila.example.org
//   aila config set chat.history_window 20
//   aila config set log.level debug
//   aila config get ui.markdown

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/aila/internal/config"
)

func (a *App) runConfig() error {
	p := NewArgParser(a.args.Raw, "confirm")
	switch sub := p.Subcommand(); sub {
	case "", "show":
		return a.showConfig()
	case "path":
		return a.showConfigPath()
	case "init":
		return a.initConfig(p.BoolFlag("confirm"))
	case "get":
		return a.getConfig(p.Positional(1))
	case "set":
		return a.setConfig(p.Positional(1), JoinPositionalArgs(p, 2))
	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(a.Out, k)
		}
		return nil
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   sub,
			Reason:  "expected show, path, init, get, set or keys",
			Example: "aila config set chat.history_window 20",
		}
	}
}

func (a *App) showConfig() error {
	if a.args.JSON {
		return NewJSONResponse("config", a.cfg).Print(a.Out)
	}

	c := a.cfg
	section := func(name string) {
		fmt.Fprintln(a.Out)
		fmt.Fprintln(a.Out, TitleStyle.Render(name))
	}
	row := func(label string, value any) {
		fmt.Fprintf(a.Out, "  %s%s\n", RenderLabel(label), ValueStyle.Render(fmt.Sprint(value)))
	}

	section("Server")
	row("base_url", c.Server.BaseURL)
	row("timeout", c.Server.RequestTimeout())
	row("rps", c.Server.RequestsPerSecond)
	row("burst", c.Server.Burst)

	section("Chat")
	row("history", c.Chat.HistoryWindow)
	row("max_frame", c.Chat.StreamMaxFrameBytes)

	section("Log")
	row("level", c.Log.Level)
	row("format", c.Log.Format)
	row("file", orDash(c.Log.File))

	section("Storage")
	row("transcripts", c.Storage.TranscriptsDir)
	row("max_saved", c.Storage.MaxTranscripts)
	row("cookies", c.Storage.CookieFile)

	section("UI")
	row("markdown", c.UI.Markdown)
	row("word_wrap", c.UI.WordWrap)
	row("color", c.UI.Color)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *App) showConfigPath() error {
	path, err := config.ActivePath()
	if err != nil {
		return NewCommandError("config", "path", "config directory unavailable", err)
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if a.args.JSON {
		return NewJSONResponse("config", map[string]any{"path": path, "exists": exists}).Print(a.Out)
	}
	fmt.Fprintln(a.Out, path)
	if !exists {
		a.info("%s", DimStyle.Render("(not created yet; defaults in use)"))
	}
	return nil
}

func (a *App) initConfig(confirmFlag bool) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return NewCommandError("config", "init", "config directory unavailable", err)
	}
	if _, err := os.Stat(path); err == nil {
		ok, err := a.confirm(confirmFlag, fmt.Sprintf("Overwrite %s with defaults?", path))
		if err != nil {
			return err
		}
		if !ok {
			a.showCancelled()
			return nil
		}
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return NewCommandError("config", "init", "could not write file", err)
	}
	a.success("Wrote %s", path)
	return nil
}

func (a *App) getConfig(key string) error {
	if key == "" {
		return ErrMissingArgument("KEY", "aila config get chat.history_window")
	}
	v, err := a.cfg.Get(key)
	if err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "aila config keys"}
	}
	if a.args.JSON {
		return NewJSONResponse("config", map[string]any{"key": key, "value": v}).Print(a.Out)
	}
	fmt.Fprintln(a.Out, v)
	return nil
}

// setConfig changes one key, validates the result and saves it to the
// active config file (TOML unless only a JSON file exists).
func (a *App) setConfig(key, value string) error {
	if key == "" || value == "" {
		return ErrMissingArgument("KEY VALUE", "aila config set chat.history_window 20")
	}

	updated := a.cfg.Clone()
	if err := updated.Set(key, value); err != nil {
		return &ValidationError{Field: key, Value: value, Reason: err.Error()}
	}
	if err := updated.Validate(); err != nil {
		var verrs config.ValidateErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field, Value: value, Reason: verrs[0].Message}
		}
		return err
	}

	path, err := config.ActivePath()
	if err != nil {
		return NewCommandError("config", "set", "config directory unavailable", err)
	}
	save := config.SaveTOML
	if strings.HasSuffix(path, ".json") {
		save = config.SaveJSON
	}
	if err := save(updated, path); err != nil {
		return NewCommandError("config", "set", "could not save", err)
	}
	*a.cfg = *updated
	config.SetGlobal(updated)
	a.success("%s = %s (%s)", key, value, path)
	return nil
}
