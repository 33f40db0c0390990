// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: input/names.go
// Summary: Parses human key names such as "Ctrl+C" or "Shift+Up".

package input

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
)

var ErrUnknownKey = errors.New("input: unknown key name")

var namedKeys = map[string]tcell.Key{
	"enter":     tcell.KeyEnter,
	"return":    tcell.KeyEnter,
	"tab":       tcell.KeyTab,
	"backtab":   tcell.KeyBacktab,
	"esc":       tcell.KeyEsc,
	"escape":    tcell.KeyEsc,
	"backspace": tcell.KeyBackspace2,
	"up":        tcell.KeyUp,
	"down":      tcell.KeyDown,
	"left":      tcell.KeyLeft,
	"right":     tcell.KeyRight,
	"home":      tcell.KeyHome,
	"end":       tcell.KeyEnd,
	"pgup":      tcell.KeyPgUp,
	"pageup":    tcell.KeyPgUp,
	"pgdn":      tcell.KeyPgDn,
	"pagedown":  tcell.KeyPgDn,
	"insert":    tcell.KeyInsert,
	"ins":       tcell.KeyInsert,
	"delete":    tcell.KeyDelete,
	"del":       tcell.KeyDelete,
}

// KeyNamed builds a key event from a name. Modifiers (Ctrl, Alt, Shift)
// are joined with '+'; the last part is a key name, F1-F12, or a single
// character. Names are case-insensitive except for single characters.
func KeyNamed(name string) (*tcell.EventKey, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnknownKey)
	}
	parts := strings.Split(name, "+")
	base := parts[len(parts)-1]
	mods := parts[:len(parts)-1]
	// "Ctrl++" splits into a trailing empty pair.
	if base == "" && len(parts) >= 2 && parts[len(parts)-2] == "" {
		base = "+"
		mods = parts[:len(parts)-2]
	}

	var mod tcell.ModMask
	for _, m := range mods {
		switch strings.ToLower(m) {
		case "ctrl", "control", "c":
			mod |= tcell.ModCtrl
		case "alt", "meta", "m":
			mod |= tcell.ModAlt
		case "shift", "s":
			mod |= tcell.ModShift
		default:
			return nil, fmt.Errorf("%w: modifier %q in %q", ErrUnknownKey, m, name)
		}
	}

	if utf8.RuneCountInString(base) == 1 {
		r, _ := utf8.DecodeRuneInString(base)
		if mod&tcell.ModCtrl != 0 && r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		return tcell.NewEventKey(tcell.KeyRune, r, mod), nil
	}

	lower := strings.ToLower(base)
	if lower == "space" {
		return tcell.NewEventKey(tcell.KeyRune, ' ', mod), nil
	}
	if k, ok := namedKeys[lower]; ok {
		return tcell.NewEventKey(k, 0, mod), nil
	}
	if strings.HasPrefix(lower, "f") {
		if n, err := strconv.Atoi(lower[1:]); err == nil && n >= 1 && n <= 12 {
			return tcell.NewEventKey(tcell.KeyF1+tcell.Key(n-1), 0, mod), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, name)
}
