// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/format.go
// Summary: Human-readable renderings of snapshots, comparisons and raw output.

package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/framegrace/texelprobe/screen"
)

// FormatLineByLine lists issues grouped by row.
func FormatLineByLine(r *Result) string {
	var sb strings.Builder
	if len(r.Issues) == 0 {
		sb.WriteString("PASSED: No differences found\n")
		return sb.String()
	}
	verdict := "FAILED"
	if r.Passed {
		verdict = "PASSED with warnings"
	}
	fmt.Fprintf(&sb, "%s: %d character diffs, %d color diffs, %d attr diffs\n\n",
		verdict, r.CharDiffs, r.ColorDiffs, r.AttrDiffs)

	byRow := make(map[int][]Issue)
	for _, is := range r.Issues {
		byRow[is.Row] = append(byRow[is.Row], is)
	}
	rows := make([]int, 0, len(byRow))
	for y := range byRow {
		rows = append(rows, y)
	}
	sort.Ints(rows)

	for _, y := range rows {
		if y < 0 {
			sb.WriteString("Grid:\n")
		} else {
			fmt.Fprintf(&sb, "Row %d:\n", y)
		}
		for _, is := range byRow[y] {
			if is.Col >= 0 && is.Type != IssueCursor {
				fmt.Fprintf(&sb, "  [%s] col %d: %s\n", is.Severity, is.Col, is.Message)
			} else {
				fmt.Fprintf(&sb, "  [%s] %s\n", is.Severity, is.Message)
			}
			fmt.Fprintf(&sb, "         expected: %s\n", is.Expected)
			fmt.Fprintf(&sb, "         actual:   %s\n", is.Actual)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSideBySide shows two snapshots next to each other, blanks as dots,
// and marks rows whose characters differ.
func FormatSideBySide(expected, actual screen.Snapshot) string {
	width := int(max(expected.Width, actual.Width))
	width = max(width, len("EXPECTED"))

	var sb strings.Builder
	sb.WriteString("EXPECTED" + strings.Repeat(" ", width-len("EXPECTED")) + " | ACTUAL\n")
	sb.WriteString(strings.Repeat("-", width) + "-+-" + strings.Repeat("-", width) + "\n")

	rows := max(len(expected.Cells), len(actual.Cells))
	for y := 0; y < rows; y++ {
		var exp, act []screen.Cell
		if y < len(expected.Cells) {
			exp = expected.Cells[y]
		}
		if y < len(actual.Cells) {
			act = actual.Cells[y]
		}
		sb.WriteString(rowToString(exp, width))
		sb.WriteString(" | ")
		sb.WriteString(rowToString(act, width))
		if !rowsEqual(exp, act) {
			sb.WriteString(" <-- DIFF")
		}
		fmt.Fprintf(&sb, " |%d\n", y)
	}
	return sb.String()
}

// GridWithCursor renders a snapshot with the cursor cell drawn as a block.
func GridWithCursor(s screen.Snapshot) string {
	var sb strings.Builder
	for y, row := range s.Cells {
		sb.WriteString("[")
		for x, c := range row {
			switch {
			case y == s.Cursor.Row && x == s.Cursor.Col:
				sb.WriteString("\u2588")
			case c.Continuation():
			case c.Char == ' ':
				sb.WriteRune('.')
			default:
				sb.WriteRune(c.Char)
			}
		}
		fmt.Fprintf(&sb, "] |%d", y)
		if y == s.Cursor.Row {
			sb.WriteString(" <-- cursor")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// UnifiedDiff renders the character content of two snapshots as a unified
// diff with one hunk per differing row.
func UnifiedDiff(expected, actual screen.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("--- expected\n+++ actual\n")
	exp, act := expected.Lines(), actual.Lines()
	for y := 0; y < max(len(exp), len(act)); y++ {
		var e, a string
		if y < len(exp) {
			e = exp[y]
		}
		if y < len(act) {
			a = act[y]
		}
		if e == a {
			continue
		}
		fmt.Fprintf(&sb, "@@ -%d +%d @@\n", y+1, y+1)
		if y < len(exp) {
			sb.WriteString("-" + e + "\n")
		}
		if y < len(act) {
			sb.WriteString("+" + a + "\n")
		}
	}
	return sb.String()
}

// EscapeSequenceLog formats raw bytes as a readable escape sequence log,
// one escape sequence per line, control bytes spelled out.
func EscapeSequenceLog(data []byte) string {
	var sb strings.Builder
	i := 0
	for i < len(data) {
		b := data[i]
		switch {
		case b == 0x1b:
			sb.WriteString("\n<ESC>")
			i++
			if i >= len(data) {
				break
			}
			switch next := data[i]; next {
			case '[':
				sb.WriteByte('[')
				i++
				for i < len(data) && data[i] >= 0x20 && data[i] <= 0x3f {
					sb.WriteByte(data[i])
					i++
				}
				if i < len(data) && data[i] >= 0x40 && data[i] <= 0x7e {
					sb.WriteByte(data[i])
					i++
				}
			case ']', 'P', '_':
				sb.WriteByte(next)
				i++
				for i < len(data) && data[i] != 0x07 && data[i] != 0x1b {
					writePrintable(&sb, data[i])
					i++
				}
				if i < len(data) && data[i] == 0x07 {
					sb.WriteString("<BEL>")
					i++
				}
			default:
				writePrintable(&sb, next)
				i++
			}
		case b == '\n':
			sb.WriteString("<LF>\n")
			i++
		case b == '\r':
			sb.WriteString("<CR>")
			i++
		case b == '\t':
			sb.WriteString("<TAB>")
			i++
		case b == 0x08:
			sb.WriteString("<BS>")
			i++
		case b == 0x07:
			sb.WriteString("<BEL>")
			i++
		default:
			writePrintable(&sb, b)
			i++
		}
	}
	return sb.String()
}

func writePrintable(sb *strings.Builder, b byte) {
	switch {
	case b < 0x20:
		fmt.Fprintf(sb, "<0x%02x>", b)
	case b < 0x7f:
		sb.WriteByte(b)
	default:
		fmt.Fprintf(sb, "\\x%02x", b)
	}
}

func rowToString(row []screen.Cell, width int) string {
	var sb strings.Builder
	n := 0
	for _, c := range row {
		if c.Continuation() {
			continue
		}
		if c.Char == ' ' {
			sb.WriteRune('.')
		} else {
			sb.WriteRune(c.Char)
		}
		n++
		if c.Wide {
			n++
		}
	}
	for ; n < width; n++ {
		sb.WriteRune('.')
	}
	return sb.String()
}

func rowsEqual(a, b []screen.Cell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Char != b[i].Char {
			return false
		}
	}
	return true
}
