// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/replay.go
// Summary: The replay subcommand: rebuild the screen a recording produces.

package main

import (
	"context"
	"fmt"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/eventlog"
	"github.com/framegrace/texelprobe/graphics"
	"github.com/framegrace/texelprobe/oracle"
)

func replayCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("replay", "[flags] [recording]")
	session := fs.String("session", "", "Replay a session from the event store")
	db := fs.String("db", "", "Event store path (default from config)")
	at := fs.Duration("at", -1, "Print the screen as of this offset instead of the end")
	live := fs.Bool("live", false, "Pace events by their recorded timing before printing")
	speed := fs.Float64("speed", 0, "Playback speed for -live (default from config)")
	export := fs.String("export", "", "Also write the log to this file (.cast for asciicast)")
	escapes := fs.Bool("escapes", false, "Print a readable log of the escape sequences instead")
	plain := fs.Bool("plain", false, "Print plain text instead of the annotated grid")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	l, err := a.loadLog(ctx, fs.Arg(0), *session, *db)
	if err != nil {
		return err
	}
	if *export != "" {
		if err := a.saveLog(ctx, l, *export, "", ""); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if *escapes {
		fmt.Fprint(a.stdout, oracle.EscapeSequenceLog(l.Output()))
		return nil
	}

	rp, err := eventlog.NewReplayer(l, a.screenOptions()...)
	if err != nil {
		return err
	}
	switch {
	case *at >= 0:
		if _, err := rp.SnapshotAt(*at); err != nil {
			return err
		}
	case *live:
		if *speed <= 0 {
			*speed = a.cfg.GetFloat(config.SectionEventlog, "replay_speed", 1)
		}
		if err := rp.Run(ctx, *speed, nil); err != nil {
			return err
		}
	default:
		if err := rp.StepAll(); err != nil {
			return err
		}
	}

	scr := rp.Screen()
	printFrame(a.stdout, scr.Snapshot(), scr.Title(), graphics.New(scr), *plain)
	fmt.Fprintf(a.stdout, "events: %d/%d, duration: %v\n", rp.Index(), len(l.Events), l.Duration())
	return nil
}
