// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/snapshot.go
// Summary: Immutable copies of screen state for comparison and sharing.

package screen

import (
	"fmt"
	"strings"
)

// Position is a 0-based cell coordinate.
type Position struct {
	Row int
	Col int
}

// Snapshot is a deep copy of the visible state. Two engines fed the same
// bytes must produce Equal snapshots.
type Snapshot struct {
	Width  uint16
	Height uint16
	Cursor Position
	Cells  [][]Cell
}

// Equal compares every field, cell by cell.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Width != o.Width || s.Height != o.Height || s.Cursor != o.Cursor {
		return false
	}
	if len(s.Cells) != len(o.Cells) {
		return false
	}
	for y := range s.Cells {
		if len(s.Cells[y]) != len(o.Cells[y]) {
			return false
		}
		for x := range s.Cells[y] {
			if s.Cells[y][x] != o.Cells[y][x] {
				return false
			}
		}
	}
	return true
}

// Cell returns the cell at (row, col). ok is false outside the grid.
func (s Snapshot) Cell(row, col int) (Cell, bool) {
	if row < 0 || row >= len(s.Cells) || col < 0 || col >= len(s.Cells[row]) {
		return Cell{}, false
	}
	return s.Cells[row][col], true
}

// RowContents returns one row's text without trailing blanks.
func (s Snapshot) RowContents(row int) string {
	if row < 0 || row >= len(s.Cells) {
		return ""
	}
	return rowText(s.Cells[row])
}

// Contents returns every row's text joined by newlines.
func (s Snapshot) Contents() string {
	return gridText(s.Cells)
}

// Lines returns each row's text.
func (s Snapshot) Lines() []string {
	lines := make([]string, len(s.Cells))
	for y, row := range s.Cells {
		lines[y] = rowText(row)
	}
	return lines
}

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	cells := make([][]Cell, len(s.Cells))
	for y, row := range s.Cells {
		cells[y] = append([]Cell(nil), row...)
	}
	s.Cells = cells
	return s
}

// String renders the grid inside a frame followed by the cursor position.
func (s Snapshot) String() string {
	var b strings.Builder
	border := "+" + strings.Repeat("-", int(s.Width)) + "+\n"
	b.WriteString(border)
	for _, row := range s.Cells {
		b.WriteByte('|')
		for _, c := range row {
			if c.Continuation() {
				continue
			}
			b.WriteRune(c.Char)
		}
		b.WriteString("|\n")
	}
	b.WriteString(border)
	fmt.Fprintf(&b, "cursor: (%d, %d)\n", s.Cursor.Row, s.Cursor.Col)
	return b.String()
}
