// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/script.go
// Summary: The script subcommand: run a Lua scenario against a program.

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/framegrace/texelprobe/harness"
	"github.com/framegrace/texelprobe/script"
)

func scriptCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("script", "[flags] scenario.lua -- program [args]")
	cols := fs.Int("cols", 0, "Terminal width (default from config)")
	rows := fs.Int("rows", 0, "Terminal height (default from config)")
	timeout := fs.Duration("timeout", 0, "Default wait timeout for the scenario (default from config)")
	record := fs.String("record", "", "Save the session to this file (.cast for asciicast)")
	session := fs.String("session", "", "Save the session to the event store under this name")
	db := fs.String("db", "", "Event store path (default from config)")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return errors.New("a scenario file is required")
	}
	program, progArgs, err := splitCommand(fs.Args()[1:])
	if err != nil {
		fs.Usage()
		return err
	}

	cfg := a.harnessConfig(*cols, *rows)
	cfg.Program, cfg.Args = program, progArgs
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *record != "" || *session != "" {
		cfg.Record = true
	}
	term, err := harness.Start(ctx, cfg)
	if err != nil {
		return err
	}
	defer term.Close()

	runErr := script.New(term, script.WithOutput(a.stdout), script.WithTimeout(cfg.Timeout)).RunFile(ctx, fs.Arg(0))
	if runErr != nil {
		f := term.Frame()
		fmt.Fprintln(a.stderr, "screen at failure:")
		printFrame(a.stderr, f.Snapshot, f.Title, f.Graphics(), false)
	}
	if rec := term.Recorder(); rec != nil {
		if err := a.saveLog(ctx, rec.Log(), *record, *session, *db); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return runErr
}
