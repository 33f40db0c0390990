// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: ptyproc/process.go
// Summary: Spawns programs under a pseudo-terminal and tracks their exit.
// Usage: Start a process, pump Read into a screen, write encoded input.

package ptyproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// DefaultTerm is exported to children unless Env sets TERM.
const DefaultTerm = "xterm-256color"

var (
	ErrNoProgram    = errors.New("ptyproc: no program given")
	ErrInvalidSize  = errors.New("ptyproc: invalid terminal size")
	ErrNotRunning   = errors.New("ptyproc: process is not running")
	errCloseTimeout = errors.New("ptyproc: process did not exit after close")
)

// Config describes the program to spawn.
type Config struct {
	Program string
	Args    []string
	// Env is appended to the current environment.
	Env  []string
	Dir  string
	Cols int
	Rows int
}

// Process is a child running under a pty.
type Process struct {
	cmd  *exec.Cmd
	ptmx *os.File

	writeMu sync.Mutex
	done    chan struct{}
	waitErr error

	closeOnce sync.Once
}

// Start spawns cfg.Program. The process is killed when ctx is cancelled.
func Start(ctx context.Context, cfg Config) (*Process, error) {
	if cfg.Program == "" {
		return nil, ErrNoProgram
	}
	if cfg.Cols <= 0 || cfg.Rows <= 0 || cfg.Cols > 0xFFFF || cfg.Rows > 0xFFFF {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, cfg.Cols, cfg.Rows)
	}

	cmd := exec.CommandContext(ctx, cfg.Program, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = buildEnv(os.Environ(), cfg)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(cfg.Rows),
		Cols: uint16(cfg.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("ptyproc: start %s: %w", cfg.Program, err)
	}
	debugLog.Printf("ptyproc: started %s pid=%d size=%dx%d", cfg.Program, cmd.Process.Pid, cfg.Cols, cfg.Rows)

	p := &Process{cmd: cmd, ptmx: ptmx, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

func buildEnv(base []string, cfg Config) []string {
	env := append([]string(nil), base...)
	hasTerm := false
	for _, kv := range cfg.Env {
		if len(kv) >= 5 && kv[:5] == "TERM=" {
			hasTerm = true
		}
	}
	if !hasTerm {
		env = append(env, "TERM="+DefaultTerm)
	}
	env = append(env,
		"COLUMNS="+strconv.Itoa(cfg.Cols),
		"LINES="+strconv.Itoa(cfg.Rows),
	)
	return append(env, cfg.Env...)
}

func (p *Process) reap() {
	err := p.cmd.Wait()
	p.waitErr = err
	debugLog.Printf("ptyproc: pid=%d exited: %v", p.cmd.Process.Pid, err)
	close(p.done)
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Read returns output from the child. Once the child has exited and its
// output is drained Read returns io.EOF.
func (p *Process) Read(buf []byte) (int, error) {
	n, err := p.ptmx.Read(buf)
	if err != nil && isClosedPty(err) {
		err = io.EOF
	}
	return n, err
}

// Linux reports EIO on the master once the slave side is gone.
func isClosedPty(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

// Write sends input to the child.
func (p *Process) Write(data []byte) (int, error) {
	if !p.Running() {
		return 0, ErrNotRunning
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.ptmx.Write(data)
}

// Resize updates the pty window size, delivering SIGWINCH to the child.
func (p *Process) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > 0xFFFF || rows > 0xFFFF {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Running reports whether the child has not yet been reaped.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed when the child exits.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExitCode returns the exit status, or -1 while running or when killed by
// a signal.
func (p *Process) ExitCode() int {
	if p.Running() {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Wait blocks until the child exits or ctx ends.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal delivers sig to the child.
func (p *Process) Signal(sig os.Signal) error {
	if !p.Running() {
		return ErrNotRunning
	}
	return p.cmd.Process.Signal(sig)
}

// Kill terminates the child immediately.
func (p *Process) Kill() error {
	if !p.Running() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Close terminates the child if needed and releases the pty.
func (p *Process) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.Running() {
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-p.done:
			case <-time.After(500 * time.Millisecond):
				_ = p.Kill()
			}
		}
		err = p.ptmx.Close()
		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
			err = errCloseTimeout
		}
	})
	return err
}
