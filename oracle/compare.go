// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/compare.go
// Summary: Cell-by-cell snapshot comparison and issue reporting.

package oracle

import (
	"fmt"
	"strings"

	"github.com/framegrace/texelprobe/screen"
)

// IssueType categorizes comparison issues.
type IssueType int

const (
	IssueSize   IssueType = iota // Grid extents differ
	IssueChar                    // Character differs
	IssueFG                      // Foreground differs
	IssueBG                      // Background differs
	IssueAttr                    // Bold/italic/underline/wide differ
	IssueCursor                  // Cursor position differs
)

func (t IssueType) String() string {
	switch t {
	case IssueSize:
		return "size"
	case IssueChar:
		return "char"
	case IssueFG:
		return "fg"
	case IssueBG:
		return "bg"
	case IssueAttr:
		return "attr"
	case IssueCursor:
		return "cursor"
	default:
		return fmt.Sprintf("IssueType(%d)", int(t))
	}
}

// Severity indicates how serious an issue is.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARN"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Issue is a single difference. Row and Col are -1 for whole-grid issues.
type Issue struct {
	Type     IssueType
	Severity Severity
	Row, Col int
	Message  string
	Expected string
	Actual   string
}

// Result holds the full comparison output.
type Result struct {
	Passed bool
	Issues []Issue

	CharDiffs  int
	ColorDiffs int
	AttrDiffs  int
}

// Count returns the number of issues at severity s.
func (r *Result) Count(s Severity) int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == s {
			n++
		}
	}
	return n
}

// Summary is a one-line description of the result.
func (r *Result) Summary() string {
	if r.Passed && len(r.Issues) == 0 {
		return "snapshots match"
	}
	return fmt.Sprintf("%d issues (%d char, %d color, %d attr; %d errors)",
		len(r.Issues), r.CharDiffs, r.ColorDiffs, r.AttrDiffs, r.Count(SeverityError))
}

func (r *Result) add(is Issue) {
	r.Issues = append(r.Issues, is)
	if is.Severity == SeverityError {
		r.Passed = false
	}
	switch is.Type {
	case IssueChar:
		r.CharDiffs++
	case IssueFG, IssueBG:
		r.ColorDiffs++
	case IssueAttr:
		r.AttrDiffs++
	}
}

// Compare reports every difference between two snapshots. Character, size
// and cursor differences fail the comparison; style differences are
// warnings. Cells outside the shared area are compared against blanks.
func Compare(expected, actual screen.Snapshot) *Result {
	r := &Result{Passed: true}

	if expected.Width != actual.Width || expected.Height != actual.Height {
		r.add(Issue{
			Type:     IssueSize,
			Severity: SeverityError,
			Row:      -1,
			Col:      -1,
			Message:  "Grid size mismatch",
			Expected: fmt.Sprintf("%dx%d", expected.Width, expected.Height),
			Actual:   fmt.Sprintf("%dx%d", actual.Width, actual.Height),
		})
	}

	rows := max(len(expected.Cells), len(actual.Cells))
	for y := 0; y < rows; y++ {
		var expRow, actRow []screen.Cell
		if y < len(expected.Cells) {
			expRow = expected.Cells[y]
		}
		if y < len(actual.Cells) {
			actRow = actual.Cells[y]
		}
		cols := max(len(expRow), len(actRow))
		for x := 0; x < cols; x++ {
			exp, act := screen.BlankCell, screen.BlankCell
			if x < len(expRow) {
				exp = expRow[x]
			}
			if x < len(actRow) {
				act = actRow[x]
			}
			compareCell(r, y, x, exp, act)
		}
	}

	if expected.Cursor != actual.Cursor {
		r.add(Issue{
			Type:     IssueCursor,
			Severity: SeverityError,
			Row:      actual.Cursor.Row,
			Col:      actual.Cursor.Col,
			Message:  "Cursor position mismatch",
			Expected: fmt.Sprintf("(%d,%d)", expected.Cursor.Row, expected.Cursor.Col),
			Actual:   fmt.Sprintf("(%d,%d)", actual.Cursor.Row, actual.Cursor.Col),
		})
	}
	return r
}

func compareCell(r *Result, y, x int, exp, act screen.Cell) {
	if exp.Char != act.Char {
		r.add(Issue{
			Type:     IssueChar,
			Severity: SeverityError,
			Row:      y,
			Col:      x,
			Message:  fmt.Sprintf("Character mismatch at (%d,%d)", y, x),
			Expected: quoteChar(exp.Char),
			Actual:   quoteChar(act.Char),
		})
	}
	if exp.FG != act.FG {
		r.add(Issue{
			Type:     IssueFG,
			Severity: SeverityWarning,
			Row:      y,
			Col:      x,
			Message:  fmt.Sprintf("Foreground mismatch at (%d,%d)", y, x),
			Expected: ColorName(exp.FG),
			Actual:   ColorName(act.FG),
		})
	}
	if exp.BG != act.BG {
		r.add(Issue{
			Type:     IssueBG,
			Severity: SeverityWarning,
			Row:      y,
			Col:      x,
			Message:  fmt.Sprintf("Background mismatch at (%d,%d)", y, x),
			Expected: ColorName(exp.BG),
			Actual:   ColorName(act.BG),
		})
	}
	if attrString(exp) != attrString(act) {
		r.add(Issue{
			Type:     IssueAttr,
			Severity: SeverityWarning,
			Row:      y,
			Col:      x,
			Message:  fmt.Sprintf("Attribute mismatch at (%d,%d)", y, x),
			Expected: attrString(exp),
			Actual:   attrString(act),
		})
	}
}

// CompareLines compares plain text rows against a snapshot's characters.
// Only character differences are reported; the reference carries no style.
func CompareLines(expected []string, actual screen.Snapshot) *Result {
	r := &Result{Passed: true}
	rows := max(len(expected), len(actual.Cells))
	for y := 0; y < rows; y++ {
		var want string
		if y < len(expected) {
			want = strings.TrimRight(expected[y], " ")
		}
		got := actual.RowContents(y)
		if want == got {
			continue
		}
		wr, gr := []rune(want), []rune(got)
		for x := 0; x < max(len(wr), len(gr)); x++ {
			we, ge := ' ', ' '
			if x < len(wr) {
				we = wr[x]
			}
			if x < len(gr) {
				ge = gr[x]
			}
			if we != ge {
				r.add(Issue{
					Type:     IssueChar,
					Severity: SeverityError,
					Row:      y,
					Col:      x,
					Message:  fmt.Sprintf("Character mismatch at (%d,%d)", y, x),
					Expected: quoteChar(we),
					Actual:   quoteChar(ge),
				})
			}
		}
	}
	return r
}

func quoteChar(r rune) string {
	if r == 0 {
		return "<cont>"
	}
	return fmt.Sprintf("%q", r)
}

func attrString(c screen.Cell) string {
	var parts []string
	if c.Bold {
		parts = append(parts, "bold")
	}
	if c.Italic {
		parts = append(parts, "italic")
	}
	if c.Underline {
		parts = append(parts, "underline")
	}
	if c.Wide {
		parts = append(parts, "wide")
	}
	if len(parts) == 0 {
		return "normal"
	}
	return strings.Join(parts, "+")
}
