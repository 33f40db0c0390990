// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/main.go
// Summary: Command-line entry point dispatching texelprobe subcommands.
// Usage: texelprobe [-v] [-config file] <command> [flags] [-- program args]

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/daemon"
	"github.com/framegrace/texelprobe/harness"
	"github.com/framegrace/texelprobe/oracle"
	"github.com/framegrace/texelprobe/ptyproc"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/script"
	"github.com/framegrace/texelprobe/waitfor"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"run", "run a program in a virtual terminal and print its final screen", runCommand},
	{"replay", "replay a recording and print the screen it produces", replayCommand},
	{"compare", "check a recording for determinism or against a reference", compareCommand},
	{"daemon", "serve a program's screen over a socket and shared memory", daemonCommand},
	{"snapshot", "print the screen a daemon is publishing", snapshotCommand},
	{"script", "drive a program with a Lua scenario script", scriptCommand},
	{"sessions", "list or delete sessions in the event store", sessionsCommand},
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("texelprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Enable verbose logging in every package")
	configPath := fs.String("config", "", "Config file (default: <user config dir>/texelprobe/texelprobe.json)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: texelprobe [flags] <command> [command flags]\n\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-9s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	log.SetOutput(stderr)
	setVerboseLogging(*verbose)

	if *configPath != "" {
		if err := config.UseFile(*configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else if err := config.Err(); err != nil {
		log.Printf("texelprobe: config: %v (using defaults)", err)
	}
	a := &app{cfg: config.Get(), stdout: stdout, stderr: stderr}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	for _, c := range commands {
		if c.name == rest[0] {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.run(ctx, a, rest[1:])
		}
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", rest[0])
}

func setVerboseLogging(enabled bool) {
	config.SetVerboseLogging(enabled)
	daemon.SetVerboseLogging(enabled)
	harness.SetVerboseLogging(enabled)
	oracle.SetVerboseLogging(enabled)
	ptyproc.SetVerboseLogging(enabled)
	screen.SetVerboseLogging(enabled)
	script.SetVerboseLogging(enabled)
	waitfor.SetVerboseLogging(enabled)
}
