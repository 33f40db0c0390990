// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/tmux.go
// Summary: Reference rendering through a detached tmux pane.
//
// Usage:
//   ref, err := oracle.NewTmuxReference(80, 24)
//   if errors.Is(err, oracle.ErrTmuxUnavailable) { t.Skip(...) }
//   defer ref.Close()
//   lines, err := ref.Lines(ctx, data)

package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/framegrace/texelprobe/screen"
)

var ErrTmuxUnavailable = errors.New("oracle: tmux not found in PATH")

// settleDelay gives tmux time to parse pane output after the writer exits.
const settleDelay = 30 * time.Millisecond

// TmuxReference renders output in a real terminal emulator (tmux) and
// captures the resulting text.
type TmuxReference struct {
	cols, rows int
	session    string
}

// NewTmuxReference checks that tmux is installed. No session is started
// until Lines is called.
func NewTmuxReference(cols, rows int) (*TmuxReference, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", screen.ErrInvalidDimensions, cols, rows)
	}
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTmuxUnavailable, err)
	}
	return &TmuxReference{cols: cols, rows: rows}, nil
}

func (t *TmuxReference) tmux(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "tmux", args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("tmux %s: %w: %s", args[0], err, bytes.TrimSpace(out))
	}
	return out, nil
}

func (t *TmuxReference) start(ctx context.Context) error {
	if t.session != "" {
		return nil
	}
	name := fmt.Sprintf("texelprobe-%d-%d", os.Getpid(), time.Now().UnixNano())
	if _, err := t.tmux(ctx, "new-session", "-d",
		"-s", name,
		"-x", strconv.Itoa(t.cols),
		"-y", strconv.Itoa(t.rows),
		"sleep", "infinity",
	); err != nil {
		return err
	}
	t.session = name
	debugLog.Printf("oracle: started tmux session %s (%dx%d)", name, t.cols, t.rows)
	return nil
}

// Lines renders data on a fresh pane and returns each row's text with
// styling stripped.
func (t *TmuxReference) Lines(ctx context.Context, data []byte) ([]string, error) {
	if err := t.start(ctx); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "texelprobe-tmux-*.bin")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	// The pane signals a wait-for channel once cat has written everything.
	channel := t.session + "-done"
	shellCmd := fmt.Sprintf("cat %q; tmux wait-for -S %q; exec sleep infinity", path, channel)
	if _, err := t.tmux(ctx, "respawn-pane", "-k", "-t", t.session, "sh", "-c", shellCmd); err != nil {
		return nil, err
	}
	if _, err := t.tmux(ctx, "wait-for", channel); err != nil {
		return nil, err
	}
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out, err := exec.CommandContext(ctx, "tmux", "capture-pane",
		"-t", t.session,
		"-p",
		"-e",
		"-S", "0",
		"-E", strconv.Itoa(t.rows-1),
	).Output()
	if err != nil {
		return nil, fmt.Errorf("capture-pane: %w", err)
	}
	return parseCapture(string(out), t.rows), nil
}

func parseCapture(out string, rows int) []string {
	raw := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	lines := make([]string, rows)
	for y := 0; y < rows && y < len(raw); y++ {
		lines[y] = strings.TrimRight(stripansi.Strip(raw[y]), " ")
	}
	return lines
}

// Compare renders data in tmux and in a fresh screen and reports character
// differences.
func (t *TmuxReference) Compare(ctx context.Context, data []byte, opts ...screen.Option) (*Result, error) {
	lines, err := t.Lines(ctx, data)
	if err != nil {
		return nil, err
	}
	scr, err := screen.New(t.cols, t.rows, opts...)
	if err != nil {
		return nil, err
	}
	scr.Feed(data)
	return CompareLines(lines, scr.Snapshot()), nil
}

// Close kills the tmux session.
func (t *TmuxReference) Close() error {
	if t.session == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := t.tmux(ctx, "kill-session", "-t", t.session)
	t.session = ""
	return err
}
