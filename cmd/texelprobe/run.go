// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/run.go
// Summary: The run subcommand: start a program, drive it briefly, print its screen.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/graphics"
	"github.com/framegrace/texelprobe/harness"
	"github.com/framegrace/texelprobe/oracle"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

// harnessConfig builds a harness config from the harness section, with
// non-zero flag values taking precedence.
func (a *app) harnessConfig(cols, rows int) harness.Config {
	if cols == 0 {
		cols = a.cfg.GetInt(config.SectionHarness, "cols", 80)
	}
	if rows == 0 {
		rows = a.cfg.GetInt(config.SectionHarness, "rows", 24)
	}
	return harness.Config{
		Cols:          cols,
		Rows:          rows,
		Timeout:       a.cfg.GetDuration(config.SectionHarness, "timeout", waitfor.DefaultTimeout),
		PollInterval:  a.cfg.GetDuration(config.SectionHarness, "poll_interval", waitfor.DefaultPollInterval),
		Record:        a.cfg.GetBool(config.SectionHarness, "record", false),
		ScreenOptions: a.screenOptions(),
	}
}

func runCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("run", "[flags] -- program [args]")
	cols := fs.Int("cols", 0, "Terminal width (default from config)")
	rows := fs.Int("rows", 0, "Terminal height (default from config)")
	timeout := fs.Duration("timeout", 0, "Wait timeout (default from config)")
	typeText := fs.String("type", "", "Text to type once the program starts")
	waitText := fs.String("wait", "", "Wait for this text instead of waiting for exit")
	record := fs.String("record", "", "Save the session to this file (.cast for asciicast)")
	session := fs.String("session", "", "Save the session to the event store under this name")
	db := fs.String("db", "", "Event store path (default from config)")
	plain := fs.Bool("plain", false, "Print plain text instead of the annotated grid")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	program, progArgs, err := splitCommand(fs.Args())
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

	if *typeText != "" {
		if err := term.Type(*typeText); err != nil {
			return err
		}
	}

	var waitErr error
	if *waitText != "" {
		_, waitErr = term.WaitFor(ctx, harness.Text(*waitText))
	} else {
		waitErr = term.WaitExit(ctx)
	}
	if waitErr != nil && !errors.Is(waitErr, waitfor.ErrTimeout) && !errors.Is(waitErr, waitfor.ErrSourceExited) {
		return waitErr
	}
	if waitErr != nil {
		log.Printf("texelprobe: %v", waitErr)
	}

	f := term.Frame()
	printFrame(a.stdout, f.Snapshot, f.Title, graphics.New(f), *plain)

	if rec := term.Recorder(); rec != nil {
		if err := a.saveLog(ctx, rec.Log(), *record, *session, *db); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	if *waitText != "" && waitErr != nil {
		return waitErr
	}
	return nil
}

func printFrame(w io.Writer, snap screen.Snapshot, title string, images *graphics.Capture, plain bool) {
	if plain {
		fmt.Fprintln(w, snap.Contents())
	} else {
		fmt.Fprint(w, oracle.GridWithCursor(snap))
	}
	if title != "" {
		fmt.Fprintf(w, "title: %s\n", title)
	}
	if images != nil && images.Len() > 0 {
		fmt.Fprint(w, images.Summary())
	}
}
