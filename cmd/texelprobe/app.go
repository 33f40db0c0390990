// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/app.go
// Summary: Shared state and helpers for subcommands.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/eventlog"
	"github.com/framegrace/texelprobe/screen"
)

type app struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
}

// flagSet returns a subcommand flag set that reports errors instead of exiting.
func (a *app) flagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: texelprobe %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and treats -h as success.
func parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *app) screenOptions() []screen.Option {
	return []screen.Option{
		screen.WithCellSize(
			a.cfg.GetInt(config.SectionScreen, "cell_width", 10),
			a.cfg.GetInt(config.SectionScreen, "cell_height", 20)),
		screen.WithMaxStringBytes(a.cfg.GetInt(config.SectionScreen, "max_string_bytes", screen.DefaultMaxStringBytes)),
	}
}

// storePath resolves the session database: flag, then config, then the
// user cache directory.
func (a *app) storePath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if p := a.cfg.GetString(config.SectionEventlog, "store", ""); p != "" {
		return p, nil
	}
	return config.DataPath("sessions.db")
}

func (a *app) openStore(flagValue string) (*eventlog.Store, error) {
	p, err := a.storePath(flagValue)
	if err != nil {
		return nil, err
	}
	return eventlog.OpenStore(p)
}

// loadLog reads a log from the store when session is set, otherwise from
// path: asciicast for .cast files, TXREC01 for anything else.
func (a *app) loadLog(ctx context.Context, path, session, db string) (*eventlog.Log, error) {
	if session != "" {
		store, err := a.openStore(db)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadLog(ctx, session)
	}
	if path == "" {
		return nil, errors.New("a recording file or -session is required")
	}
	if strings.EqualFold(filepath.Ext(path), ".cast") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return eventlog.ReadAsciicast(f)
	}
	rec, err := eventlog.LoadRecording(path)
	if err != nil {
		return nil, err
	}
	return rec.Log(), nil
}

// saveLog writes l to path (format by extension) and/or the store.
func (a *app) saveLog(ctx context.Context, l *eventlog.Log, path, session, db string) error {
	if path != "" {
		if strings.EqualFold(filepath.Ext(path), ".cast") {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := eventlog.WriteAsciicast(f, l); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		} else if err := l.Recording().Save(path); err != nil {
			return err
		}
	}
	if session != "" {
		store, err := a.openStore(db)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.SaveLog(ctx, session, l)
	}
	return nil
}

// splitCommand separates a program and its arguments from args.
func splitCommand(args []string) (string, []string, error) {
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if len(args) == 0 {
		return "", nil, errors.New("a program to run is required")
	}
	return args[0], args[1:], nil
}
