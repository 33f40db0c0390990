// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package harness

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framegrace/texelprobe/eventlog"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

// fakeProcess is a pipe-backed Process. With echo set, input is written
// back as output the way a cooked tty would.
type fakeProcess struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	echo bool

	mu     sync.Mutex
	input  bytes.Buffer
	cols   int
	rows   int
	exited atomic.Bool
}

func newFakeProcess(echo bool) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{r: r, w: w, echo: echo}
}

func (f *fakeProcess) Read(p []byte) (int, error) { return f.r.Read(p) }

func (f *fakeProcess) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.input.Write(p)
	f.mu.Unlock()
	if f.echo {
		return f.w.Write(p)
	}
	return len(p), nil
}

func (f *fakeProcess) emit(s string) { _, _ = f.w.Write([]byte(s)) }

func (f *fakeProcess) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cols, f.rows = cols, rows
	return nil
}

func (f *fakeProcess) received() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

func (f *fakeProcess) Running() bool { return !f.exited.Load() }

func (f *fakeProcess) Close() error {
	f.exited.Store(true)
	return f.w.Close()
}

func newTestTerminal(t *testing.T, echo bool, cfg Config) (*Terminal, *fakeProcess) {
	t.Helper()
	if cfg.Cols == 0 {
		cfg.Cols, cfg.Rows = 20, 4
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	cfg.PollInterval = 2 * time.Millisecond
	proc := newFakeProcess(echo)
	term, err := New(proc, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { term.Close() })
	return term, proc
}

func TestTypeAndWaitFor(t *testing.T) {
	ctx := context.Background()
	term, proc := newTestTerminal(t, true, Config{})

	require.NoError(t, term.Type("hello"))
	frame, err := term.WaitFor(ctx, Text("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", frame.Line(0))
	assert.Equal(t, "hello", proc.received())
	assert.Equal(t, screen.Position{Row: 0, Col: 5}, term.Snapshot().Cursor)
}

func TestWaitForStyledOutput(t *testing.T) {
	ctx := context.Background()
	term, proc := newTestTerminal(t, false, Config{})

	go proc.emit("\x1b[1;31mred\x1b[0m plain")
	_, err := term.WaitFor(ctx, All(
		CellStyle(0, 0, Style{FG: screen.Indexed(screen.Red), Bold: true}),
		CellStyle(0, 4, Style{}),
		LineContains(0, "plain"),
	))
	require.NoError(t, err)
	assert.Equal(t, "red plain", term.Contents()[:9])
}

func TestPressFollowsCursorKeyMode(t *testing.T) {
	ctx := context.Background()
	term, proc := newTestTerminal(t, false, Config{})

	require.NoError(t, term.Press("Up", "Enter"))
	assert.Equal(t, "\x1b[A\r", proc.received())

	go proc.emit("\x1b[?1h\x1b[?2004h")
	_, err := term.WaitFor(ctx, waitfor.Cond("app cursor keys", func(f Frame) bool {
		return f.Modes.AppCursorKeys && f.Modes.BracketedPaste
	}))
	require.NoError(t, err)

	require.NoError(t, term.Press("Up"))
	require.NoError(t, term.Paste("a\nb"))
	assert.Equal(t, "\x1b[A\r\x1bOA\x1b[200~a\rb\x1b[201~", proc.received())

	assert.Error(t, term.Press("NoSuchKey"))
}

func TestClickAndResize(t *testing.T) {
	term, proc := newTestTerminal(t, false, Config{})

	require.NoError(t, term.Click(2, 1))
	assert.Equal(t, "\x1b[<0;3;2M\x1b[<0;3;2m", proc.received())

	require.NoError(t, term.Resize(30, 6))
	proc.mu.Lock()
	cols, rows := proc.cols, proc.rows
	proc.mu.Unlock()
	assert.Equal(t, 30, cols)
	assert.Equal(t, 6, rows)
	snap := term.Snapshot()
	assert.Equal(t, uint16(30), snap.Width)
	assert.Equal(t, uint16(6), snap.Height)

	assert.ErrorIs(t, term.Resize(0, 6), screen.ErrInvalidDimensions)
}

func TestWaitForAnyLowestIndex(t *testing.T) {
	ctx := context.Background()
	term, proc := newTestTerminal(t, false, Config{})

	go proc.emit("alpha beta")
	idx, frame, err := term.WaitForAny(ctx, []Matcher{Text("gamma"), Text("beta"), Text("alpha")})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Contains(t, frame.Contents(), "alpha beta")
}

func TestWaitForTimeout(t *testing.T) {
	ctx := context.Background()
	term, _ := newTestTerminal(t, false, Config{})

	start := time.Now()
	_, err := term.WaitFor(ctx, Text("never"), WithTimeout(40*time.Millisecond))
	assert.ErrorIs(t, err, waitfor.ErrTimeout)
	assert.Contains(t, err.Error(), `text "never"`)
	assert.Less(t, time.Since(start), time.Second)

	var ticks int
	_, err = term.WaitFor(ctx, Text("never"),
		WithTimeout(20*time.Millisecond),
		WithPollInterval(5*time.Millisecond),
		WithProgress(func(waitfor.Progress[Frame]) { ticks++ }))
	assert.ErrorIs(t, err, waitfor.ErrTimeout)
	assert.GreaterOrEqual(t, ticks, 2)
}

func TestProcessExit(t *testing.T) {
	ctx := context.Background()
	term, proc := newTestTerminal(t, false, Config{})

	go func() {
		proc.emit("bye")
		proc.Close()
	}()
	_, err := term.WaitFor(ctx, Text("never"))
	assert.ErrorIs(t, err, waitfor.ErrSourceExited)
	assert.NotErrorIs(t, err, waitfor.ErrTimeout)

	require.NoError(t, term.WaitExit(ctx))
	assert.True(t, term.Exited())
	assert.Equal(t, "bye", term.Frame().Line(0))
	assert.ErrorIs(t, term.Type("x"), ErrExited)

	_, err = term.WaitFor(ctx, Exited())
	assert.NoError(t, err)
}

func TestWaitExitTimesOut(t *testing.T) {
	term, _ := newTestTerminal(t, false, Config{})
	err := term.WaitExit(context.Background(), WithTimeout(20*time.Millisecond))
	assert.ErrorIs(t, err, waitfor.ErrTimeout)
	assert.Contains(t, err.Error(), "process exit")
}

func TestClosedTerminal(t *testing.T) {
	term, _ := newTestTerminal(t, false, Config{})
	require.NoError(t, term.Close())
	assert.ErrorIs(t, term.Type("x"), ErrClosed)
	assert.ErrorIs(t, term.Resize(10, 2), ErrClosed)
	assert.ErrorIs(t, term.Type(""), ErrNoInput)
	assert.NoError(t, term.Close())
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	term, _ := newTestTerminal(t, true, Config{Record: true})
	require.NotNil(t, term.Recorder())

	require.NoError(t, term.Type("ls"))
	_, err := term.WaitFor(ctx, Text("ls"))
	require.NoError(t, err)
	require.NoError(t, term.Resize(25, 5))

	l := term.Recorder().Log()
	assert.Equal(t, 1, l.Count(eventlog.KindInput))
	assert.Equal(t, 1, l.Count(eventlog.KindResize))
	assert.Equal(t, "ls", string(l.Output()))

	plain, _ := newTestTerminal(t, false, Config{})
	assert.Nil(t, plain.Recorder())
}

func TestStartShell(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	term, err := Start(ctx, Config{
		Program: "/bin/sh",
		Args:    []string{"-c", "printf 'ready\\n'; read line; echo got:$line"},
		Cols:    40,
		Rows:    5,
	})
	require.NoError(t, err)
	defer term.Close()

	_, err = term.WaitFor(ctx, Text("ready"))
	require.NoError(t, err)
	require.NoError(t, term.Type("abc\r"))
	_, err = term.WaitFor(ctx, Text("got:abc"))
	require.NoError(t, err)
	require.NoError(t, term.WaitExit(ctx))
}

func TestStartRejectsMissingProgram(t *testing.T) {
	_, err := Start(context.Background(), Config{})
	assert.Error(t, err)
}
