// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: harness/frame.go
// Summary: Frames and the matchers that inspect them.

package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/framegrace/texelprobe/graphics"
	"github.com/framegrace/texelprobe/screen"
	"github.com/framegrace/texelprobe/waitfor"
)

// Frame is an immutable view of the terminal at one instant.
type Frame struct {
	Snapshot screen.Snapshot
	Images   []screen.Region
	Title    string
	Modes    screen.Modes
	Exited   bool
}

// Regions lets a Frame serve as a graphics.RegionSource.
func (f Frame) Regions() []screen.Region { return f.Images }

// Graphics returns a query layer over the frame's images.
func (f Frame) Graphics() *graphics.Capture { return graphics.New(f) }

func (f Frame) Contents() string { return f.Snapshot.Contents() }

func (f Frame) Line(row int) string { return f.Snapshot.RowContents(row) }

// Matcher is a described predicate over frames.
type Matcher = waitfor.Condition[Frame]

// Text matches when s appears anywhere on screen. Rows are searched
// individually, then joined, so text that wraps across rows also matches.
func Text(s string) Matcher {
	return waitfor.Cond(fmt.Sprintf("text %q", s), func(f Frame) bool {
		for _, line := range f.Snapshot.Lines() {
			if strings.Contains(line, s) {
				return true
			}
		}
		return strings.Contains(strings.Join(rawRows(f.Snapshot), ""), s)
	})
}

func rawRows(s screen.Snapshot) []string {
	rows := make([]string, len(s.Cells))
	for y, row := range s.Cells {
		var b strings.Builder
		for _, c := range row {
			if !c.Continuation() {
				b.WriteRune(c.Char)
			}
		}
		rows[y] = b.String()
	}
	return rows
}

// Regexp matches when re matches the screen contents.
func Regexp(re *regexp.Regexp) Matcher {
	return waitfor.Cond(fmt.Sprintf("regexp /%s/", re), func(f Frame) bool {
		return re.MatchString(f.Contents())
	})
}

// Line matches when row's text, trailing blanks removed, equals s.
func Line(row int, s string) Matcher {
	return waitfor.Cond(fmt.Sprintf("line %d == %q", row, s), func(f Frame) bool {
		return f.Line(row) == s
	})
}

// LineContains matches when row's text contains s.
func LineContains(row int, s string) Matcher {
	return waitfor.Cond(fmt.Sprintf("line %d contains %q", row, s), func(f Frame) bool {
		return strings.Contains(f.Line(row), s)
	})
}

// Cursor matches when the cursor sits at (row, col).
func Cursor(row, col int) Matcher {
	return waitfor.Cond(fmt.Sprintf("cursor at (%d,%d)", row, col), func(f Frame) bool {
		return f.Snapshot.Cursor == screen.Position{Row: row, Col: col}
	})
}

// Empty matches a screen with no visible text.
func Empty() Matcher {
	return waitfor.Cond("empty screen", func(f Frame) bool {
		return strings.TrimSpace(f.Contents()) == ""
	})
}

// Exited matches once the program's output has ended.
func Exited() Matcher {
	return waitfor.Cond("process exit", func(f Frame) bool { return f.Exited })
}

// Title matches the window title.
func Title(s string) Matcher {
	return waitfor.Cond(fmt.Sprintf("title %q", s), func(f Frame) bool { return f.Title == s })
}

// Not inverts m.
func Not(m Matcher) Matcher {
	return waitfor.Cond("not "+m.Description, func(f Frame) bool { return !m.Match(f) })
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return waitfor.Cond(joinDescriptions(ms, " and "), func(f Frame) bool {
		for _, m := range ms {
			if !m.Match(f) {
				return false
			}
		}
		return true
	})
}

// Any matches when at least one matcher does.
func Any(ms ...Matcher) Matcher {
	return waitfor.Cond(joinDescriptions(ms, " or "), func(f Frame) bool {
		for _, m := range ms {
			if m.Match(f) {
				return true
			}
		}
		return false
	})
}

func joinDescriptions(ms []Matcher, sep string) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.Description
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Style is the visual part of a cell.
type Style struct {
	FG        screen.Color
	BG        screen.Color
	Bold      bool
	Italic    bool
	Underline bool
}

func (s Style) String() string {
	return screen.Cell{Char: '*', FG: s.FG, BG: s.BG, Bold: s.Bold, Italic: s.Italic, Underline: s.Underline}.String()
}

// StyleOf extracts the style of c.
func StyleOf(c screen.Cell) Style {
	return Style{FG: c.FG, BG: c.BG, Bold: c.Bold, Italic: c.Italic, Underline: c.Underline}
}

// CellStyle matches when the cell at (row, col) is drawn with want.
func CellStyle(row, col int, want Style) Matcher {
	return waitfor.Cond(fmt.Sprintf("cell (%d,%d) styled %s", row, col, want), func(f Frame) bool {
		c, ok := f.Snapshot.Cell(row, col)
		return ok && StyleOf(c) == want
	})
}

// SixelAt matches when a sixel image covers (row, col).
func SixelAt(row, col int) Matcher {
	return waitfor.Cond(fmt.Sprintf("sixel at (%d,%d)", row, col), func(f Frame) bool {
		for _, r := range f.Images {
			if r.Protocol == screen.ProtocolSixel && r.Contains(row, col) {
				return true
			}
		}
		return false
	})
}

// GraphicsCount matches when exactly n images of protocol p are live.
func GraphicsCount(p screen.Protocol, n int) Matcher {
	return waitfor.Cond(fmt.Sprintf("%d %s images", n, p), func(f Frame) bool {
		return len(f.Graphics().ByProtocol(p)) == n
	})
}
