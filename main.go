// aila - terminal client for the AILA assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/aila/internal/cli"
	"github.com/jeranaias/aila/internal/config"
	"github.com/jeranaias/aila/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd, args := cli.Parse()

	cfg, err := config.Load()
	if err != nil {
		// Load returns usable defaults alongside the error; a broken file
		// must not lock the user out of "aila config".
		fmt.Fprintf(os.Stderr, "Warning: config: %v (using defaults)\n", err)
	}
	config.SetGlobal(cfg)

	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	if err := logging.Init(level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := logging.SetFile(cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	defer logging.Close()

	cli.SetColorMode(cfg.UI.Color)

	// The chat REPL handles Ctrl+C itself (cancel the reply, or leave at
	// the prompt); every other command simply stops.
	signals := []os.Signal{syscall.SIGTERM}
	if cmd != cli.CmdChat {
		signals = append(signals, os.Interrupt)
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	app, err := cli.NewApp(cfg, args)
	if err == nil {
		err = app.Run(ctx, cmd)
	}
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
