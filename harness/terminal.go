// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: harness/terminal.go
// Summary: Terminal drives a program through a screen, an input encoder and
// condition waits.
//
// Usage:
//   term, err := harness.Start(ctx, harness.Config{Program: "/bin/sh"})
//   defer term.Close()
//   term.Type("echo hi\r")
//   frame, err := term.WaitFor(ctx, harness.Text("hi"))

package harness

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelprobe/eventlog"
	"github.com/framegrace/texelprobe/input"
	"github.com/framegrace/texelprobe/ptyproc"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

var (
	ErrClosed  = errors.New("harness: terminal closed")
	ErrExited  = errors.New("harness: process exited")
	ErrNoInput = errors.New("harness: nothing to send")
)

// Process is the program under test. *ptyproc.Process satisfies it.
type Process interface {
	io.ReadWriter
	Resize(cols, rows int) error
	Running() bool
	Close() error
}

// Config describes the program to start and how waits behave.
type Config struct {
	Program string
	Args    []string
	Env     []string
	Dir     string
	Cols    int
	Rows    int

	// Timeout and PollInterval are the defaults for WaitFor and friends.
	Timeout      time.Duration
	PollInterval time.Duration
	Clock        quartz.Clock

	// Record captures output, input and resizes into an event log.
	Record        bool
	ScreenOptions []screen.Option
}

func (c Config) withDefaults() Config {
	if c.Cols == 0 {
		c.Cols = eventlog.DefaultWidth
	}
	if c.Rows == 0 {
		c.Rows = eventlog.DefaultHeight
	}
	if c.Timeout <= 0 {
		c.Timeout = waitfor.DefaultTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = waitfor.DefaultPollInterval
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	return c
}

// Terminal is a running program attached to a screen. All methods are safe
// for concurrent use.
type Terminal struct {
	cfg  Config
	proc Process
	rec  *eventlog.Recorder

	mu     sync.Mutex
	scr    *screen.Screen
	exited bool
	closed bool

	encMu sync.Mutex
	enc   input.Encoder

	done      chan struct{}
	closeOnce sync.Once
}

// Start launches cfg.Program in a pseudo-terminal and attaches it.
func Start(ctx context.Context, cfg Config) (*Terminal, error) {
	cfg = cfg.withDefaults()
	proc, err := ptyproc.Start(ctx, ptyproc.Config{
		Program: cfg.Program,
		Args:    cfg.Args,
		Env:     cfg.Env,
		Dir:     cfg.Dir,
		Cols:    cfg.Cols,
		Rows:    cfg.Rows,
	})
	if err != nil {
		return nil, err
	}
	t, err := New(proc, cfg)
	if err != nil {
		proc.Close()
		return nil, err
	}
	return t, nil
}

// New attaches an already running process. cfg.Program and its launch
// fields are ignored.
func New(proc Process, cfg Config) (*Terminal, error) {
	cfg = cfg.withDefaults()
	scr, err := screen.New(cfg.Cols, cfg.Rows, cfg.ScreenOptions...)
	if err != nil {
		return nil, err
	}
	t := &Terminal{
		cfg:  cfg,
		proc: proc,
		scr:  scr,
		enc:  input.Encoder{Modes: scr.Modes()},
		done: make(chan struct{}),
	}
	if cfg.Record {
		t.rec = eventlog.NewRecorder(cfg.Cols, cfg.Rows, cfg.Clock)
		t.rec.SetMetadata(cfg.Program, "harness session")
	}
	go t.pump()
	return t, nil
}

func (t *Terminal) pump() {
	defer close(t.done)
	buf := make([]byte, 32*1024)
	for {
		n, err := t.proc.Read(buf)
		if n > 0 {
			if t.rec != nil {
				t.rec.Output(buf[:n])
			}
			t.mu.Lock()
			t.scr.Feed(buf[:n])
			modes := t.scr.Modes()
			t.mu.Unlock()

			t.encMu.Lock()
			t.enc.Modes = modes
			t.encMu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				debugLog.Printf("harness: process read: %v", err)
			}
			t.mu.Lock()
			t.exited = true
			t.mu.Unlock()
			return
		}
	}
}

func (t *Terminal) send(data []byte) error {
	if len(data) == 0 {
		return ErrNoInput
	}
	t.mu.Lock()
	closed, exited := t.closed, t.exited
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if exited || !t.proc.Running() {
		return ErrExited
	}
	if t.rec != nil {
		t.rec.Input(data)
	}
	_, err := t.proc.Write(data)
	return err
}

// Type sends text verbatim.
func (t *Terminal) Type(text string) error {
	return t.send([]byte(text))
}

// Press sends named keys such as "Enter", "Ctrl+C" or "Up", encoded for
// the current cursor-key mode.
func (t *Terminal) Press(keys ...string) error {
	t.encMu.Lock()
	data, err := t.enc.Keys(keys...)
	t.encMu.Unlock()
	if err != nil {
		return err
	}
	return t.send(data)
}

// Key sends a single tcell key event.
func (t *Terminal) Key(ev *tcell.EventKey) error {
	t.encMu.Lock()
	data := t.enc.Key(ev)
	t.encMu.Unlock()
	return t.send(data)
}

// Paste sends text as a paste, bracketed if the program asked for it.
func (t *Terminal) Paste(text string) error {
	t.encMu.Lock()
	data := t.enc.Paste(text)
	t.encMu.Unlock()
	return t.send(data)
}

// Click sends a left-button press and release at (col, row), 0-based.
func (t *Terminal) Click(col, row int) error {
	t.encMu.Lock()
	data := t.enc.Click(col, row, tcell.Button1)
	t.encMu.Unlock()
	return t.send(data)
}

// Mouse sends a single tcell mouse event.
func (t *Terminal) Mouse(ev *tcell.EventMouse) error {
	t.encMu.Lock()
	data := t.enc.Mouse(ev)
	t.encMu.Unlock()
	return t.send(data)
}

// Resize changes both the screen and the program's terminal size.
func (t *Terminal) Resize(cols, rows int) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	err := t.scr.Resize(cols, rows)
	exited := t.exited
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if t.rec != nil {
		t.rec.Resize(cols, rows)
	}
	if exited {
		return nil
	}
	return t.proc.Resize(cols, rows)
}

// Snapshot copies the current screen.
func (t *Terminal) Snapshot() screen.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scr.Snapshot()
}

// Contents returns the screen text.
func (t *Terminal) Contents() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scr.Contents()
}

// Frame captures everything a matcher can look at.
func (t *Terminal) Frame() Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frameLocked()
}

func (t *Terminal) frameLocked() Frame {
	return Frame{
		Snapshot: t.scr.Snapshot(),
		Images:   t.scr.Regions(),
		Title:    t.scr.Title(),
		Modes:    t.scr.Modes(),
		Exited:   t.exited,
	}
}

// Source exposes frames to the wait engine. It reports exited once the
// program's output has ended.
func (t *Terminal) Source() waitfor.Source[Frame] {
	return waitfor.SourceFunc[Frame](func() (Frame, bool) {
		t.mu.Lock()
		defer t.mu.Unlock()
		f := t.frameLocked()
		return f, f.Exited
	})
}

// WaitOption adjusts a single wait.
type WaitOption func(*waitfor.Options[Frame])

// WithTimeout overrides the wait timeout.
func WithTimeout(d time.Duration) WaitOption {
	return func(o *waitfor.Options[Frame]) { o.Timeout = d }
}

// WithPollInterval overrides the poll interval.
func WithPollInterval(d time.Duration) WaitOption {
	return func(o *waitfor.Options[Frame]) { o.PollInterval = d }
}

// WithProgress registers a per-tick callback.
func WithProgress(fn func(waitfor.Progress[Frame])) WaitOption {
	return func(o *waitfor.Options[Frame]) { o.OnProgress = fn }
}

func (t *Terminal) waitOptions(opts []WaitOption) waitfor.Options[Frame] {
	o := waitfor.Options[Frame]{
		Timeout:      t.cfg.Timeout,
		PollInterval: t.cfg.PollInterval,
		Clock:        t.cfg.Clock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WaitFor blocks until m matches the screen. The returned frame is the one
// that matched, or the last one observed on failure.
func (t *Terminal) WaitFor(ctx context.Context, m Matcher, opts ...WaitOption) (Frame, error) {
	out, err := waitfor.WaitFor(ctx, t.Source(), m, t.waitOptions(opts))
	if err != nil {
		debugLog.Printf("harness: wait for %s: %v", m.Description, err)
	}
	return out.Value, err
}

// WaitForAny blocks until one of ms matches and returns its index. When
// several match on the same tick the lowest index wins.
func (t *Terminal) WaitForAny(ctx context.Context, ms []Matcher, opts ...WaitOption) (int, Frame, error) {
	out, err := waitfor.WaitForAny(ctx, t.Source(), ms, t.waitOptions(opts))
	if err != nil {
		return -1, out.Value, err
	}
	return out.Index, out.Value, nil
}

// WaitExit blocks until the program's output ends or the wait times out.
func (t *Terminal) WaitExit(ctx context.Context, opts ...WaitOption) error {
	o := t.waitOptions(opts)
	budget := waitfor.Remaining(ctx, o.Timeout, o.Clock)
	if budget <= 0 {
		return &waitfor.TimeoutError{Waiting: []string{"process exit"}}
	}
	timer := o.Clock.NewTimer(budget, "harness", "exit")
	defer timer.Stop()
	select {
	case <-t.done:
		return nil
	case <-timer.C:
		return &waitfor.TimeoutError{Elapsed: budget, Waiting: []string{"process exit"}}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exited reports whether the program's output has ended.
func (t *Terminal) Exited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exited
}

// Done is closed when the output pump stops.
func (t *Terminal) Done() <-chan struct{} { return t.done }

// Recorder returns the event recorder, or nil if recording is off.
func (t *Terminal) Recorder() *eventlog.Recorder { return t.rec }

// Close stops the program and waits for the pump to drain.
func (t *Terminal) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.proc.Close()
		select {
		case <-t.done:
		case <-time.After(2 * time.Second):
			debugLog.Printf("harness: pump did not stop")
		}
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
	})
	return err
}
