// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/snapshot.go
// Summary: The snapshot subcommand: read, drive and wait on a daemon's screen.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/daemon"
	"github.com/framegrace/texelprobe/input"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

func snapshotCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("snapshot", "[flags]")
	shm := fs.String("shm", "", "Shared snapshot file (default from config)")
	socket := fs.String("socket", "", "Control socket for -send, -keys and -resize (default from config)")
	send := fs.String("send", "", "Text to send before reading")
	keys := fs.String("keys", "", "Comma-separated key names to send, e.g. Up,Enter,Ctrl+C")
	resize := fs.String("resize", "", "Resize to COLSxROWS before reading")
	waitText := fs.String("wait", "", "Wait until this text is on screen")
	timeout := fs.Duration("timeout", 0, "Wait timeout (default from config)")
	plain := fs.Bool("plain", false, "Print plain text instead of the annotated grid")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	shmPath, err := a.dataFile(*shm, "shm", "screen.shm")
	if err != nil {
		return err
	}
	reader, err := daemon.OpenReader(shmPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	if *send != "" || *keys != "" || *resize != "" {
		sockPath, err := a.dataFile(*socket, "socket", "daemon.sock")
		if err != nil {
			return err
		}
		if err := control(ctx, sockPath, *send, *keys, *resize); err != nil {
			return err
		}
	}

	frame, err := reader.Read()
	if err != nil {
		return err
	}
	if *waitText != "" {
		opts := waitfor.Options[screen.Snapshot]{
			Timeout:      a.cfg.GetDuration(config.SectionHarness, "timeout", waitfor.DefaultTimeout),
			PollInterval: a.cfg.GetDuration(config.SectionHarness, "poll_interval", waitfor.DefaultPollInterval),
		}
		if *timeout > 0 {
			opts.Timeout = *timeout
		}
		want := *waitText
		out, err := waitfor.WaitFor(ctx, reader.Source(), waitfor.Cond("text "+fmt.Sprintf("%q", want), func(s screen.Snapshot) bool {
			return strings.Contains(s.Contents(), want)
		}), opts)
		printFrame(a.stdout, out.Value, "", nil, *plain)
		return err
	}

	printFrame(a.stdout, frame.Snapshot, "", nil, *plain)
	status := "running"
	if frame.Exited {
		status = "exited"
	}
	fmt.Fprintf(a.stdout, "sequence: %d (%s)\n", frame.Sequence, status)
	return nil
}

// control applies the requested input to the daemon and waits for each
// change to be acknowledged.
func control(ctx context.Context, sockPath, text, keys, size string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := daemon.Dial(ctx, sockPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if size != "" {
		var cols, rows int
		if _, err := fmt.Sscanf(size, "%dx%d", &cols, &rows); err != nil {
			return fmt.Errorf("invalid size %q: want COLSxROWS", size)
		}
		if _, err := client.Resize(ctx, cols, rows); err != nil {
			return err
		}
	}
	if text != "" {
		if _, err := client.Input(ctx, []byte(text)); err != nil {
			return err
		}
	}
	if keys != "" {
		var enc input.Encoder
		data, err := enc.Keys(strings.Split(keys, ",")...)
		if err != nil {
			return err
		}
		if _, err := client.Input(ctx, data); err != nil {
			return err
		}
	}
	return nil
}
