// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/cell.go
// Summary: Cell, color and pen value types for the screen model.
// Usage: Stamped into the grid on every write; compared by snapshots.

package screen

import (
	"strconv"
	"strings"
)

// Color is an optional 8-bit palette index. The zero value is the
// terminal default color.
type Color struct {
	Index uint8
	Set   bool
}

// Indexed returns the palette color n.
func Indexed(n uint8) Color {
	return Color{Index: n, Set: true}
}

// Standard palette indices.
const (
	Black uint8 = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
)

// String returns the palette index or "default".
func (c Color) String() string {
	if !c.Set {
		return "default"
	}
	return strconv.Itoa(int(c.Index))
}

// Cell is one grid position. A Char of 0 marks the right half of a wide
// character whose lead cell sits immediately to the left.
type Cell struct {
	Char      rune
	FG        Color
	BG        Color
	Bold      bool
	Italic    bool
	Underline bool
	Wide      bool
}

// BlankCell is the content of a cleared cell with no style.
var BlankCell = Cell{Char: ' '}

// Continuation reports whether the cell is the trailing half of a wide rune.
func (c Cell) Continuation() bool {
	return c.Char == 0
}

// Styled reports whether the cell carries any color or attribute.
func (c Cell) Styled() bool {
	return c.FG.Set || c.BG.Set || c.Bold || c.Italic || c.Underline
}

// String returns a compact description used in diagnostics.
func (c Cell) String() string {
	var b strings.Builder
	b.WriteString(strconv.QuoteRune(c.Char))
	if c.FG.Set {
		b.WriteString(" fg=" + c.FG.String())
	}
	if c.BG.Set {
		b.WriteString(" bg=" + c.BG.String())
	}
	if c.Bold {
		b.WriteString(" bold")
	}
	if c.Italic {
		b.WriteString(" italic")
	}
	if c.Underline {
		b.WriteString(" underline")
	}
	if c.Wide {
		b.WriteString(" wide")
	}
	return b.String()
}

// Pen is the style applied to every printed character. It is a value:
// SGR produces a new pen rather than mutating the old one.
type Pen struct {
	FG        Color
	BG        Color
	Bold      bool
	Italic    bool
	Underline bool
}

// Cell returns the cell for r drawn with this pen.
func (p Pen) Cell(r rune) Cell {
	return Cell{
		Char:      r,
		FG:        p.FG,
		BG:        p.BG,
		Bold:      p.Bold,
		Italic:    p.Italic,
		Underline: p.Underline,
	}
}

// blank is the cell left behind by erase operations: a space carrying the
// current background.
func (p Pen) blank() Cell {
	return Cell{Char: ' ', BG: p.BG}
}
