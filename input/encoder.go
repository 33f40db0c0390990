// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: input/encoder.go
// Summary: Translates tcell key and mouse events into the bytes a program
// reading from a terminal expects.
// Notes: Follows xterm conventions: SS3 cursor keys in application mode,
// CSI 1;m modifier parameters, SGR (1006) mouse reports.

package input

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelprobe/screen"
)

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

// Encoder turns events into input bytes. Modes should mirror the screen
// the bytes are destined for.
type Encoder struct {
	Modes screen.Modes

	held tcell.ButtonMask
}

// xterm modifier parameter: 1 + shift + 2*alt + 4*ctrl.
func modParam(mod tcell.ModMask) int {
	p := 1
	if mod&tcell.ModShift != 0 {
		p += 1
	}
	if mod&tcell.ModAlt != 0 {
		p += 2
	}
	if mod&tcell.ModCtrl != 0 {
		p += 4
	}
	return p
}

var cursorFinals = map[tcell.Key]byte{
	tcell.KeyUp:    'A',
	tcell.KeyDown:  'B',
	tcell.KeyRight: 'C',
	tcell.KeyLeft:  'D',
	tcell.KeyHome:  'H',
	tcell.KeyEnd:   'F',
}

var tildeKeys = map[tcell.Key]int{
	tcell.KeyInsert: 2,
	tcell.KeyDelete: 3,
	tcell.KeyPgUp:   5,
	tcell.KeyPgDn:   6,
	tcell.KeyF5:     15,
	tcell.KeyF6:     17,
	tcell.KeyF7:     18,
	tcell.KeyF8:     19,
	tcell.KeyF9:     20,
	tcell.KeyF10:    21,
	tcell.KeyF11:    23,
	tcell.KeyF12:    24,
}

var ss3Keys = map[tcell.Key]byte{
	tcell.KeyF1: 'P',
	tcell.KeyF2: 'Q',
	tcell.KeyF3: 'R',
	tcell.KeyF4: 'S',
}

// Key encodes a key event. Unknown keys encode to nil.
func (e *Encoder) Key(ev *tcell.EventKey) []byte {
	key := ev.Key()
	mod := ev.Modifiers()
	modified := mod&(tcell.ModShift|tcell.ModAlt|tcell.ModCtrl) != 0

	if final, ok := cursorFinals[key]; ok {
		switch {
		case modified:
			return fmt.Appendf(nil, "\x1b[1;%d%c", modParam(mod), final)
		case e.Modes.AppCursorKeys:
			return []byte{0x1b, 'O', final}
		default:
			return []byte{0x1b, '[', final}
		}
	}
	if n, ok := tildeKeys[key]; ok {
		if modified {
			return fmt.Appendf(nil, "\x1b[%d;%d~", n, modParam(mod))
		}
		return fmt.Appendf(nil, "\x1b[%d~", n)
	}
	if final, ok := ss3Keys[key]; ok {
		if modified {
			return fmt.Appendf(nil, "\x1b[1;%d%c", modParam(mod), final)
		}
		return []byte{0x1b, 'O', final}
	}

	var out []byte
	switch {
	case key == tcell.KeyBacktab:
		return []byte("\x1b[Z")
	case key == tcell.KeyEnter:
		out = []byte{'\r'}
	case key == tcell.KeyTab:
		out = []byte{'\t'}
	case key == tcell.KeyEsc:
		out = []byte{0x1b}
	case key == tcell.KeyBackspace || key == tcell.KeyBackspace2:
		out = []byte{0x7f}
	case key >= tcell.KeyCtrlSpace && key <= tcell.KeyCtrlUnderscore:
		out = []byte{byte(key - tcell.KeyCtrlSpace)}
	case key < 0x20:
		out = []byte{byte(key)}
	case key == tcell.KeyRune:
		r := ev.Rune()
		if mod&tcell.ModCtrl != 0 {
			if b, ok := controlByte(r); ok {
				out = []byte{b}
				break
			}
		}
		out = utf8.AppendRune(nil, r)
	default:
		return nil
	}
	if mod&tcell.ModAlt != 0 {
		out = append([]byte{0x1b}, out...)
	}
	return out
}

func controlByte(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return byte(r - 'a' + 1), true
	case r >= '@' && r <= '_':
		return byte(r - '@'), true
	case r == ' ':
		return 0, true
	case r == '?':
		return 0x7f, true
	}
	return 0, false
}

// Mouse encodes a mouse event as an SGR report with 1-based coordinates.
// A release is reported for the button that was last pressed.
func (e *Encoder) Mouse(ev *tcell.EventMouse) []byte {
	x, y := ev.Position()
	btns := ev.Buttons()
	mods := mouseMods(ev.Modifiers())

	if wheel, ok := wheelCode(btns); ok {
		return sgrMouse(wheel|mods, x, y, 'M')
	}

	code, ok := buttonCode(btns)
	if !ok {
		if e.held == tcell.ButtonNone {
			return sgrMouse(3|32|mods, x, y, 'M')
		}
		held, _ := buttonCode(e.held)
		e.held = tcell.ButtonNone
		return sgrMouse(held|mods, x, y, 'm')
	}
	if e.held == btns {
		return sgrMouse(code|32|mods, x, y, 'M')
	}
	e.held = btns
	return sgrMouse(code|mods, x, y, 'M')
}

// Click encodes a press and release of btn at (col, row), both 0-based.
func (e *Encoder) Click(col, row int, btn tcell.ButtonMask) []byte {
	out := e.Mouse(tcell.NewEventMouse(col, row, btn, tcell.ModNone))
	return append(out, e.Mouse(tcell.NewEventMouse(col, row, tcell.ButtonNone, tcell.ModNone))...)
}

func sgrMouse(code, x, y int, final byte) []byte {
	return fmt.Appendf(nil, "\x1b[<%d;%d;%d%c", code, x+1, y+1, final)
}

func mouseMods(mod tcell.ModMask) int {
	code := 0
	if mod&tcell.ModShift != 0 {
		code |= 4
	}
	if mod&tcell.ModAlt != 0 {
		code |= 8
	}
	if mod&tcell.ModCtrl != 0 {
		code |= 16
	}
	return code
}

func buttonCode(b tcell.ButtonMask) (int, bool) {
	switch {
	case b&tcell.Button1 != 0:
		return 0, true
	case b&tcell.Button3 != 0:
		return 1, true
	case b&tcell.Button2 != 0:
		return 2, true
	}
	return 0, false
}

func wheelCode(b tcell.ButtonMask) (int, bool) {
	switch {
	case b&tcell.WheelUp != 0:
		return 64, true
	case b&tcell.WheelDown != 0:
		return 65, true
	case b&tcell.WheelLeft != 0:
		return 66, true
	case b&tcell.WheelRight != 0:
		return 67, true
	}
	return 0, false
}

// Paste encodes pasted text. Line feeds become carriage returns, and with
// bracketed paste enabled the text is wrapped in paste markers with any
// embedded end marker removed.
func (e *Encoder) Paste(text string) []byte {
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	if !e.Modes.BracketedPaste {
		return []byte(text)
	}
	text = strings.ReplaceAll(text, pasteEnd, "")
	return []byte(pasteStart + text + pasteEnd)
}

// Keys parses each name with KeyNamed and concatenates the encodings.
func (e *Encoder) Keys(names ...string) ([]byte, error) {
	var out []byte
	for _, name := range names {
		ev, err := KeyNamed(name)
		if err != nil {
			return nil, err
		}
		out = append(out, e.Key(ev)...)
	}
	return out, nil
}
