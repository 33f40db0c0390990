// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelprobe/pidfile.go
// Summary: PID file guarding a daemon socket against a second instance.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var errDaemonRunning = errors.New("daemon already running")

type pidFile struct {
	path string
}

// read returns the recorded PID.
func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID format: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID value: %d", pid)
	}
	return pid, nil
}

// running reports whether the recorded PID names a live process.
func (p pidFile) running() bool {
	pid, err := p.read()
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence on Linux and macOS.
	return proc.Signal(syscall.Signal(0)) == nil
}

// acquire records pid unless another live process already holds the file.
// A stale file is replaced.
func (p pidFile) acquire(pid int) error {
	if p.running() {
		other, _ := p.read()
		return fmt.Errorf("%w: pid %d (%s)", errDaemonRunning, other, p.path)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(fmt.Sprintf("%d\n", pid)), 0o600); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// release removes the file if it still records pid.
func (p pidFile) release(pid int) error {
	if got, err := p.read(); err != nil || got != pid {
		return nil
	}
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
