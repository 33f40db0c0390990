// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: script/runner.go
// Summary: Runs Lua scenario scripts against a terminal in a restricted state.
// Usage: script.New(term).RunFile(ctx, "login.lua")

package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/framegrace/texelprobe/harness"
)

var (
	ErrScript      = errors.New("script: failed")
	ErrSyntax      = errors.New("script: syntax error")
	ErrExpectation = errors.New("script: expectation not met")
)

// Terminal is what a script drives. *harness.Terminal satisfies it.
type Terminal interface {
	Type(text string) error
	Press(keys ...string) error
	Paste(text string) error
	Resize(cols, rows int) error
	Frame() harness.Frame
	WaitFor(ctx context.Context, m harness.Matcher, opts ...harness.WaitOption) (harness.Frame, error)
}

// Error is a script failure at a source position. Line is 0 when the
// position is unknown. Err holds the Go error behind a failed call.
type Error struct {
	Script string
	Line   int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Script, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Script, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrScript }

// Runner executes scripts. A Runner is not safe for concurrent use.
type Runner struct {
	term    Terminal
	out     io.Writer
	timeout time.Duration

	ctx     context.Context
	name    string
	failure *Error
	raised  string
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput sends print output to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithTimeout sets the default timeout of wait_text and wait_regex.
// Zero keeps the terminal's own default.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func New(term Terminal, opts ...Option) *Runner {
	r := &Runner{term: term, out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunFile runs the script at path. Errors name the file's base name.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("script: open: %w", err)
	}
	defer f.Close()
	return r.Run(ctx, filepath.Base(path), f)
}

// RunString runs src under the given chunk name.
func (r *Runner) RunString(ctx context.Context, name, src string) error {
	return r.Run(ctx, name, strings.NewReader(src))
}

// Run executes one script to completion in a fresh state.
func (r *Runner) Run(ctx context.Context, name string, src io.Reader) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("script: %s: %w", name, err)
	}
	L := newState(ctx)
	defer L.Close()

	r.ctx, r.name, r.failure, r.raised = ctx, name, nil, ""
	r.install(L)

	fn, err := L.Load(src, name)
	if err != nil {
		return r.syntaxError(err)
	}
	L.Push(fn)
	start := time.Now()
	err = L.PCall(0, lua.MultRet, nil)
	debugLog.Printf("script: %s finished in %v (err=%v)", name, time.Since(start), err)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("script: %s: %w", name, ctx.Err())
	}
	return r.runtimeError(err)
}

// newState opens only the base, table, string and math libraries and
// removes every way to load code from outside the script.
func newState(ctx context.Context) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "_printregs"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetContext(ctx)
	return L
}

// fail records err at the calling script line and raises it in Lua.
func (r *Runner) fail(L *lua.LState, err error) int {
	line, _ := parseWhere(L.Where(1))
	r.failure = &Error{Script: r.name, Line: line, Msg: err.Error(), Err: err}
	r.raised = L.Where(1) + " " + err.Error()
	L.RaiseError("%s", err.Error())
	return 0
}

var wherePattern = regexp.MustCompile(`^.*:(\d+):$`)

func parseWhere(where string) (int, bool) {
	m := wherePattern.FindStringSubmatch(where)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func (r *Runner) syntaxError(err error) error {
	var apiErr *lua.ApiError
	var perr *parse.Error
	if errors.As(err, &apiErr) && errors.As(apiErr.Cause, &perr) {
		line := perr.Pos.Line
		if line < 0 {
			line = 0
		}
		return &Error{Script: r.name, Line: line, Msg: perr.Message, Err: ErrSyntax}
	}
	return &Error{Script: r.name, Msg: err.Error(), Err: ErrSyntax}
}

var messagePattern = regexp.MustCompile(`(?s)^(.*?):(\d+): (.*)$`)

func (r *Runner) runtimeError(err error) error {
	msg := err.Error()
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		msg = apiErr.Object.String()
	}
	if r.failure != nil && msg == r.raised {
		return r.failure
	}
	if m := messagePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[2])
		return &Error{Script: r.name, Line: line, Msg: m[3]}
	}
	return &Error{Script: r.name, Msg: msg}
}
