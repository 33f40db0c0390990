// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/sessions.go
// Summary: The sessions subcommand: list or delete stored sessions.

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

func sessionsCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("sessions", "[flags]")
	db := fs.String("db", "", "Event store path (default from config)")
	del := fs.String("delete", "", "Delete the named session")
	if ok, err := parse(fs, args); !ok {
		return err
	}
	store, err := a.openStore(*db)
	if err != nil {
		return err
	}
	defer store.Close()

	if *del != "" {
		if err := store.Delete(ctx, *del); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "deleted %s\n", *del)
		return nil
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(a.stdout, "no sessions")
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tEVENTS\tDURATION\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%dx%d\t%d\t%v\t%s\n", s.Name, s.Width, s.Height, s.Events,
			s.Duration.Round(time.Millisecond), s.Created.Format(time.DateTime))
	}
	return tw.Flush()
}
