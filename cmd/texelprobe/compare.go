// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/compare.go
// Summary: The compare subcommand: determinism and reference checks for a recording.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/framegrace/texelprobe/config"
	"github.com/framegrace/texelprobe/oracle"
	"github.com/framegrace/texelprobe/screen"
)

var errCompareFailed = errors.New("comparison failed")

func compareCommand(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("compare", "[flags] [recording]")
	session := fs.String("session", "", "Compare a session from the event store")
	db := fs.String("db", "", "Event store path (default from config)")
	chunks := fs.String("chunks", "", "Comma-separated chunk sizes for the determinism check (default from config)")
	expected := fs.String("expected", "", "Text file holding the expected screen, one row per line")
	tmux := fs.Bool("tmux", a.cfg.GetBool(config.SectionOracle, "tmux", false), "Also compare against tmux")
	jsonOut := fs.Bool("json", false, "Print JSON reports")
	style := fs.String("style", a.cfg.GetString(config.SectionOracle, "style", ""), "Chroma style for colored diffs")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	l, err := a.loadLog(ctx, fs.Arg(0), *session, *db)
	if err != nil {
		return err
	}
	data := l.Output()
	cols, rows := l.Metadata.Width, l.Metadata.Height
	opts := a.screenOptions()

	sizes := a.cfg.GetInts(config.SectionOracle, "chunk_sizes", []int{1, 3, 7})
	if *chunks != "" {
		if sizes, err = parseChunks(*chunks); err != nil {
			return err
		}
	}

	failed := false
	report := func(name string, res *oracle.Result, exp, act *screen.Snapshot) error {
		if !res.Passed {
			failed = true
		}
		if *jsonOut {
			doc, err := oracle.Report(res)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s\n", doc)
			return nil
		}
		fmt.Fprintf(a.stdout, "== %s: %s\n", name, res.Summary())
		if res.Passed {
			return nil
		}
		if exp == nil || act == nil {
			_, err := fmt.Fprint(a.stdout, oracle.FormatLineByLine(res))
			return err
		}
		return oracle.WriteComparison(a.stdout, *exp, *act, res, *style)
	}

	err = oracle.CheckDeterminism(data, cols, rows, sizes, opts...)
	var detErr *oracle.DeterminismError
	switch {
	case errors.As(err, &detErr):
		if err := report(fmt.Sprintf("determinism (chunk %d)", detErr.Chunk), detErr.Result, nil, nil); err != nil {
			return err
		}
	case err != nil:
		return err
	case !*jsonOut:
		fmt.Fprintf(a.stdout, "== determinism: chunk sizes %v agree\n", sizes)
	}

	scr, err := screen.New(cols, rows, opts...)
	if err != nil {
		return err
	}
	scr.Feed(data)
	actual := scr.Snapshot()

	if *expected != "" {
		lines, err := readLines(*expected)
		if err != nil {
			return err
		}
		exp, err := linesSnapshot(lines, cols, rows)
		if err != nil {
			return err
		}
		if err := report("expected "+*expected, oracle.CompareLines(lines, actual), &exp, &actual); err != nil {
			return err
		}
	}

	if *tmux {
		ref, err := oracle.NewTmuxReference(cols, rows)
		if err != nil {
			return err
		}
		defer ref.Close()
		lines, err := ref.Lines(ctx, data)
		if err != nil {
			return err
		}
		exp, err := linesSnapshot(lines, cols, rows)
		if err != nil {
			return err
		}
		if err := report("tmux", oracle.CompareLines(lines, actual), &exp, &actual); err != nil {
			return err
		}
	}

	if failed {
		return errCompareFailed
	}
	return nil
}

// linesSnapshot renders plain reference rows so they can be diffed against
// the engine's snapshot.
func linesSnapshot(lines []string, cols, rows int) (screen.Snapshot, error) {
	scr, err := screen.New(cols, rows)
	if err != nil {
		return screen.Snapshot{}, err
	}
	for i, line := range lines {
		if i >= rows {
			break
		}
		if i > 0 {
			scr.Feed([]byte("\r\n"))
		}
		scr.Feed([]byte(line))
	}
	return scr.Snapshot(), nil
}

func parseChunks(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid chunk size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
