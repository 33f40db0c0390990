// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: script/api.go
// Summary: The term table exposed to scenario scripts.
// Notes: Rows and columns are 0-based, matching screen coordinates.

package script

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/framegrace/texelprobe/harness"
	"github.com/framegrace/texelprobe/screen"
)

func (r *Runner) install(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"type":       r.luaType,
		"press":      r.luaPress,
		"paste":      r.luaPaste,
		"resize":     r.luaResize,
		"wait_text":  r.luaWaitText,
		"wait_regex": r.luaWaitRegex,
		"contents":   r.luaContents,
		"line":       r.luaLine,
		"cursor":     r.luaCursor,
		"cell":       r.luaCell,
		"sixels":     r.luaSixels,
		"expect":     r.luaExpect,
	})
	L.SetGlobal("term", mod)
	L.SetGlobal("print", L.NewFunction(r.luaPrint))
}

func (r *Runner) luaType(L *lua.LState) int {
	text := L.CheckString(1)
	debugLog.Printf("script: type %q", text)
	if err := r.term.Type(text); err != nil {
		return r.fail(L, err)
	}
	return 0
}

func (r *Runner) luaPress(L *lua.LState) int {
	keys := make([]string, L.GetTop())
	for i := range keys {
		keys[i] = L.CheckString(i + 1)
	}
	if len(keys) == 0 {
		L.ArgError(1, "key name expected")
	}
	debugLog.Printf("script: press %v", keys)
	if err := r.term.Press(keys...); err != nil {
		return r.fail(L, err)
	}
	return 0
}

func (r *Runner) luaPaste(L *lua.LState) int {
	if err := r.term.Paste(L.CheckString(1)); err != nil {
		return r.fail(L, err)
	}
	return 0
}

func (r *Runner) luaResize(L *lua.LState) int {
	cols, rows := L.CheckInt(1), L.CheckInt(2)
	if err := r.term.Resize(cols, rows); err != nil {
		return r.fail(L, err)
	}
	return 0
}

// waitOptions reads an optional timeout in milliseconds at argument n.
func (r *Runner) waitOptions(L *lua.LState, n int) []harness.WaitOption {
	if ms := L.OptInt(n, 0); ms > 0 {
		return []harness.WaitOption{harness.WithTimeout(time.Duration(ms) * time.Millisecond)}
	}
	if r.timeout > 0 {
		return []harness.WaitOption{harness.WithTimeout(r.timeout)}
	}
	return nil
}

func (r *Runner) luaWaitText(L *lua.LState) int {
	text := L.CheckString(1)
	if _, err := r.term.WaitFor(r.ctx, harness.Text(text), r.waitOptions(L, 2)...); err != nil {
		return r.fail(L, err)
	}
	return 0
}

// luaWaitRegex returns the whole match followed by any submatches.
func (r *Runner) luaWaitRegex(L *lua.LState) int {
	re, err := regexp.Compile(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
	}
	frame, err := r.term.WaitFor(r.ctx, harness.Regexp(re), r.waitOptions(L, 2)...)
	if err != nil {
		return r.fail(L, err)
	}
	m := re.FindStringSubmatch(frame.Contents())
	for _, s := range m {
		L.Push(lua.LString(s))
	}
	return len(m)
}

func (r *Runner) luaContents(L *lua.LState) int {
	L.Push(lua.LString(r.term.Frame().Contents()))
	return 1
}

func (r *Runner) luaLine(L *lua.LState) int {
	L.Push(lua.LString(r.term.Frame().Line(L.CheckInt(1))))
	return 1
}

func (r *Runner) luaCursor(L *lua.LState) int {
	pos := r.term.Frame().Snapshot.Cursor
	L.Push(lua.LNumber(pos.Row))
	L.Push(lua.LNumber(pos.Col))
	return 2
}

// luaCell returns a table describing one cell, or nil outside the grid.
// fg and bg are palette indices and absent for the default color.
func (r *Runner) luaCell(L *lua.LState) int {
	c, ok := r.term.Frame().Snapshot.Cell(L.CheckInt(1), L.CheckInt(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	char := ""
	if !c.Continuation() {
		char = string(c.Char)
	}
	t.RawSetString("char", lua.LString(char))
	setColor(t, "fg", c.FG)
	setColor(t, "bg", c.BG)
	t.RawSetString("bold", lua.LBool(c.Bold))
	t.RawSetString("italic", lua.LBool(c.Italic))
	t.RawSetString("underline", lua.LBool(c.Underline))
	t.RawSetString("wide", lua.LBool(c.Wide))
	L.Push(t)
	return 1
}

func setColor(t *lua.LTable, key string, c screen.Color) {
	if c.Set {
		t.RawSetString(key, lua.LNumber(c.Index))
	}
}

func (r *Runner) luaSixels(L *lua.LState) int {
	list := L.NewTable()
	for _, img := range r.term.Frame().Graphics().Sixel() {
		t := L.NewTable()
		t.RawSetString("row", lua.LNumber(img.Row))
		t.RawSetString("col", lua.LNumber(img.Col))
		t.RawSetString("rows", lua.LNumber(img.Rows))
		t.RawSetString("cols", lua.LNumber(img.Cols))
		t.RawSetString("width", lua.LNumber(img.Width))
		t.RawSetString("height", lua.LNumber(img.Height))
		list.Append(t)
	}
	L.Push(list)
	return 1
}

// luaExpect checks the screen without waiting. expect(text) looks for text
// anywhere; expect(row, text) requires the row to read exactly text.
func (r *Runner) luaExpect(L *lua.LState) int {
	frame := r.term.Frame()
	if L.Get(1).Type() == lua.LTNumber {
		row, want := L.CheckInt(1), L.CheckString(2)
		if got := frame.Line(row); got != want {
			return r.fail(L, fmt.Errorf("%w: line %d is %q, want %q", ErrExpectation, row, got, want))
		}
		return 0
	}
	want := L.CheckString(1)
	if !harness.Text(want).Match(frame) {
		return r.fail(L, fmt.Errorf("%w: text %q not on screen", ErrExpectation, want))
	}
	return 0
}

func (r *Runner) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	fmt.Fprintln(r.out, strings.Join(parts, "\t"))
	return 0
}

var _ Terminal = (*harness.Terminal)(nil)
