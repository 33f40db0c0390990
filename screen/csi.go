// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/csi.go
// Summary: CSI dispatch: cursor motion, erase, editing, margins and modes.

package screen

func (s *Screen) dispatchCSI(private byte, intermediate []byte, params []int, final byte) {
	param := func(i, def int) int {
		if i < len(params) && params[i] != 0 {
			return params[i]
		}
		return def
	}

	if private == '?' {
		switch final {
		case 'h':
			s.setModes(params, true)
		case 'l':
			s.setModes(params, false)
		default:
			debugLog.Printf("Screen: Unhandled private CSI ?%v%c", params, final)
		}
		return
	}
	if private != 0 || len(intermediate) > 0 {
		debugLog.Printf("Screen: Unhandled CSI %c%s %v %c", private, intermediate, params, final)
		return
	}

	switch final {
	case 'A':
		s.cursorUp(param(0, 1))
	case 'B':
		s.cursorDown(param(0, 1))
	case 'C', 'a':
		s.setCursor(s.cur.row, s.cur.col+param(0, 1))
	case 'D':
		s.setCursor(s.cur.row, s.cur.col-param(0, 1))
	case 'E':
		s.cursorDown(param(0, 1))
		s.cur.col = 0
	case 'F':
		s.cursorUp(param(0, 1))
		s.cur.col = 0
	case 'G', '`':
		s.setCursor(s.cur.row, param(0, 1)-1)
	case 'H', 'f':
		s.setCursor(param(0, 1)-1, param(1, 1)-1)
	case 'd':
		s.setCursor(param(0, 1)-1, s.cur.col)
	case 'e':
		s.setCursor(s.cur.row+param(0, 1), s.cur.col)
	case 'I':
		for n := param(0, 1); n > 0; n-- {
			s.cur.col = s.nextTab(s.cur.col)
		}
		s.cur.wrapPending = false
	case 'Z':
		for n := param(0, 1); n > 0; n-- {
			s.cur.col = s.prevTab(s.cur.col)
		}
		s.cur.wrapPending = false
	case 'J':
		s.eraseDisplay(param(0, 0))
	case 'K':
		s.eraseLine(param(0, 0))
	case 'X':
		n := param(0, 1)
		s.clearCells(s.cur.row, s.cur.col, s.cur.col+n)
	case '@':
		s.insertChars(param(0, 1))
	case 'P':
		s.deleteChars(param(0, 1))
	case 'L':
		s.insertLines(param(0, 1))
	case 'M':
		s.deleteLines(param(0, 1))
	case 'S':
		s.scrollUp(param(0, 1))
	case 'T':
		s.scrollDown(param(0, 1))
	case 'g':
		switch param(0, 0) {
		case 0:
			s.tabs[s.cur.col] = false
		case 3:
			for i := range s.tabs {
				s.tabs[i] = false
			}
		}
	case 'r':
		s.setMargins(param(0, 1)-1, param(1, s.rows)-1)
	case 's':
		s.saveCursor()
	case 'u':
		s.restoreCursor()
	case 'm':
		s.pen = s.pen.Apply(params)
	default:
		debugLog.Printf("Screen: Unhandled CSI sequence %q, params: %v", final, params)
	}
}

func (s *Screen) setModes(params []int, on bool) {
	for _, mode := range params {
		switch mode {
		case 1:
			s.modes.AppCursorKeys = on
		case 7:
			s.modes.AutoWrap = on
			if !on {
				s.cur.wrapPending = false
			}
		case 25:
			s.modes.CursorVisible = on
		case 2004:
			s.modes.BracketedPaste = on
		default:
			debugLog.Printf("Screen: Ignoring DEC private mode %d=%v", mode, on)
		}
	}
}

// setCursor moves to an absolute position, clamped to the grid.
func (s *Screen) setCursor(row, col int) {
	s.cur.row = clamp(row, 0, s.rows-1)
	s.cur.col = clamp(col, 0, s.cols-1)
	s.cur.wrapPending = false
}

func (s *Screen) cursorUp(n int) {
	limit := 0
	if s.cur.row >= s.top {
		limit = s.top
	}
	s.setCursor(max(s.cur.row-n, limit), s.cur.col)
}

func (s *Screen) cursorDown(n int) {
	limit := s.rows - 1
	if s.cur.row <= s.bottom {
		limit = s.bottom
	}
	s.setCursor(min(s.cur.row+n, limit), s.cur.col)
}

func (s *Screen) saveCursor() {
	s.saved = &savedCursor{cursor: s.cur, pen: s.pen}
}

func (s *Screen) restoreCursor() {
	if s.saved == nil {
		s.setCursor(0, 0)
		s.pen = Pen{}
		return
	}
	s.cur = s.saved.cursor
	s.cur.row = clamp(s.cur.row, 0, s.rows-1)
	s.cur.col = clamp(s.cur.col, 0, s.cols-1)
	s.pen = s.saved.pen
}

func (s *Screen) setMargins(top, bottom int) {
	top = clamp(top, 0, s.rows-1)
	bottom = clamp(bottom, 0, s.rows-1)
	if top >= bottom {
		return
	}
	s.top, s.bottom = top, bottom
	s.setCursor(0, 0)
}

// clearCells blanks columns [from, to) of one row.
func (s *Screen) clearCells(row, from, to int) {
	from = clamp(from, 0, s.cols)
	to = clamp(to, 0, s.cols)
	if from >= to {
		return
	}
	line := s.grid[row]
	blank := s.pen.blank()
	if from > 0 && line[from].Continuation() {
		line[from-1] = blank
	}
	if to < s.cols && line[to].Continuation() {
		line[to] = blank
	}
	for x := from; x < to; x++ {
		line[x] = blank
	}
	s.invalidate(row, row, from, to-1)
}

func (s *Screen) clearRows(from, to int) {
	for y := from; y < to; y++ {
		s.clearCells(y, 0, s.cols)
	}
}

func (s *Screen) eraseDisplay(mode int) {
	switch mode {
	case 0:
		s.clearCells(s.cur.row, s.cur.col, s.cols)
		s.clearRows(s.cur.row+1, s.rows)
	case 1:
		s.clearRows(0, s.cur.row)
		s.clearCells(s.cur.row, 0, s.cur.col+1)
	case 2:
		s.clearRows(0, s.rows)
	case 3:
		// Scrollback is not kept.
	}
}

func (s *Screen) eraseLine(mode int) {
	switch mode {
	case 0:
		s.clearCells(s.cur.row, s.cur.col, s.cols)
	case 1:
		s.clearCells(s.cur.row, 0, s.cur.col+1)
	case 2:
		s.clearCells(s.cur.row, 0, s.cols)
	}
}

func (s *Screen) insertChars(n int) {
	line := s.grid[s.cur.row]
	col := s.cur.col
	n = clamp(n, 0, s.cols-col)
	copy(line[col+n:], line[col:s.cols-n])
	s.clearCells(s.cur.row, col, col+n)
	s.invalidate(s.cur.row, s.cur.row, col, s.cols-1)
	s.cur.wrapPending = false
}

func (s *Screen) deleteChars(n int) {
	line := s.grid[s.cur.row]
	col := s.cur.col
	n = clamp(n, 0, s.cols-col)
	copy(line[col:], line[col+n:])
	s.clearCells(s.cur.row, s.cols-n, s.cols)
	s.invalidate(s.cur.row, s.cur.row, col, s.cols-1)
	s.cur.wrapPending = false
}

func (s *Screen) insertLines(n int) {
	if s.cur.row < s.top || s.cur.row > s.bottom {
		return
	}
	s.invalidate(s.cur.row, s.bottom, 0, s.cols-1)
	top := s.top
	s.top = s.cur.row
	s.scrollDown(n)
	s.top = top
	s.cur.col = 0
	s.cur.wrapPending = false
}

func (s *Screen) deleteLines(n int) {
	if s.cur.row < s.top || s.cur.row > s.bottom {
		return
	}
	s.invalidate(s.cur.row, s.bottom, 0, s.cols-1)
	top := s.top
	s.top = s.cur.row
	s.scrollUp(n)
	s.top = top
	s.cur.col = 0
	s.cur.wrapPending = false
}

func defaultTabs(cols int, prev []bool) []bool {
	tabs := make([]bool, cols)
	for i := range tabs {
		if i < len(prev) {
			tabs[i] = prev[i]
			continue
		}
		tabs[i] = i > 0 && i%8 == 0
	}
	return tabs
}

func (s *Screen) nextTab(col int) int {
	for x := col + 1; x < s.cols; x++ {
		if s.tabs[x] {
			return x
		}
	}
	return s.cols - 1
}

func (s *Screen) prevTab(col int) int {
	for x := col - 1; x > 0; x-- {
		if s.tabs[x] {
			return x
		}
	}
	return 0
}
