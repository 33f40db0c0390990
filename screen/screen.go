// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/screen.go
// Summary: Screen owns the grid, cursor, pen and detected graphics.
// Usage: Created with New, mutated only by Feed and Resize.
// Notes: Not safe for concurrent use; share Snapshots across goroutines.

package screen

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ErrInvalidDimensions is returned when a grid extent is zero, negative or
// larger than a snapshot can carry.
var ErrInvalidDimensions = errors.New("screen: invalid dimensions")

const maxExtent = 65535

// Modes are the DEC private modes the screen tracks.
type Modes struct {
	AppCursorKeys  bool
	AutoWrap       bool
	CursorVisible  bool
	BracketedPaste bool
}

var defaultModes = Modes{AutoWrap: true, CursorVisible: true}

type cursor struct {
	row, col    int
	wrapPending bool
}

type savedCursor struct {
	cursor
	pen Pen
}

// Screen is the terminal state model.
type Screen struct {
	cols, rows int
	grid       [][]Cell
	cur        cursor
	saved      *savedCursor
	pen        Pen
	tabs       []bool
	top        int
	bottom     int
	modes      Modes
	title      string

	regions      []Region
	kitty        kittyStore
	kittyPending *kittyCommand
	kittyDrop    bool
	cellWidth    int
	cellHeight   int

	p parser
}

// Option configures a Screen at construction.
type Option func(*Screen)

// WithCellSize sets the pixel size of one cell, used to convert declared
// image sizes into cell extents. The default is 10x20.
func WithCellSize(width, height int) Option {
	return func(s *Screen) {
		if width > 0 {
			s.cellWidth = width
		}
		if height > 0 {
			s.cellHeight = height
		}
	}
}

// WithMaxStringBytes bounds OSC, DCS and APC bodies.
func WithMaxStringBytes(n int) Option {
	return func(s *Screen) {
		if n > 0 {
			s.p.maxString = n
		}
	}
}

func checkDimensions(cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > maxExtent || rows > maxExtent {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, cols, rows)
	}
	return nil
}

// New returns a blank screen of cols x rows with the cursor at the origin.
func New(cols, rows int, opts ...Option) (*Screen, error) {
	if err := checkDimensions(cols, rows); err != nil {
		return nil, err
	}
	s := &Screen{
		cellWidth:  10,
		cellHeight: 20,
		p:          newParser(DefaultMaxStringBytes),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cols, s.rows = cols, rows
	s.reset()
	return s, nil
}

func (s *Screen) reset() {
	s.grid = make([][]Cell, s.rows)
	for y := range s.grid {
		s.grid[y] = blankRow(s.cols, BlankCell)
	}
	s.cur = cursor{}
	s.saved = nil
	s.pen = Pen{}
	s.tabs = defaultTabs(s.cols, nil)
	s.top, s.bottom = 0, s.rows-1
	s.modes = defaultModes
	s.title = ""
	s.regions = nil
	s.kitty.reset()
	s.kittyPending = nil
	s.kittyDrop = false
}

func blankRow(cols int, c Cell) []Cell {
	row := make([]Cell, cols)
	for x := range row {
		row[x] = c
	}
	return row
}

// Feed interprets raw terminal output. It never fails; malformed sequences
// are discarded.
func (s *Screen) Feed(data []byte) {
	for _, b := range data {
		s.p.step(s, b)
	}
}

// Write implements io.Writer on top of Feed.
func (s *Screen) Write(data []byte) (int, error) {
	s.Feed(data)
	return len(data), nil
}

// Resize changes the grid size, keeping the overlapping region.
func (s *Screen) Resize(cols, rows int) error {
	if err := checkDimensions(cols, rows); err != nil {
		return err
	}
	if cols == s.cols && rows == s.rows {
		return nil
	}

	grid := make([][]Cell, rows)
	for y := range grid {
		grid[y] = blankRow(cols, BlankCell)
		if y < s.rows {
			copy(grid[y], s.grid[y])
			if cols < s.cols && cols > 0 && grid[y][cols-1].Wide {
				grid[y][cols-1] = BlankCell
			}
		}
	}
	s.grid = grid
	s.tabs = defaultTabs(cols, s.tabs)
	s.cols, s.rows = cols, rows
	s.top, s.bottom = 0, rows-1

	s.cur.row = clamp(s.cur.row, 0, rows-1)
	s.cur.col = clamp(s.cur.col, 0, cols-1)
	s.cur.wrapPending = false
	if s.saved != nil {
		s.saved.row = clamp(s.saved.row, 0, rows-1)
		s.saved.col = clamp(s.saved.col, 0, cols-1)
		s.saved.wrapPending = false
	}

	kept := s.regions[:0]
	for _, r := range s.regions {
		if r.Row < rows && r.Col < cols {
			kept = append(kept, r)
		}
	}
	s.regions = kept
	return nil
}

// Size returns the grid extents.
func (s *Screen) Size() (cols, rows int) {
	return s.cols, s.rows
}

// Modes returns the tracked DEC private modes.
func (s *Screen) Modes() Modes {
	return s.modes
}

// Title returns the window title last set through OSC 0 or 2.
func (s *Screen) Title() string {
	return s.title
}

// Cell returns the cell at (row, col). ok is false outside the grid.
func (s *Screen) Cell(row, col int) (Cell, bool) {
	if row < 0 || row >= s.rows || col < 0 || col >= s.cols {
		return Cell{}, false
	}
	return s.grid[row][col], true
}

// Row iterates the cells of one row by column. Rows outside the grid
// yield nothing.
func (s *Screen) Row(row int) iter.Seq2[int, Cell] {
	return func(yield func(int, Cell) bool) {
		if row < 0 || row >= s.rows {
			return
		}
		for x, c := range s.grid[row] {
			if !yield(x, c) {
				return
			}
		}
	}
}

// Rows iterates copies of every row, top to bottom.
func (s *Screen) Rows() iter.Seq2[int, []Cell] {
	return func(yield func(int, []Cell) bool) {
		for y, row := range s.grid {
			cp := make([]Cell, len(row))
			copy(cp, row)
			if !yield(y, cp) {
				return
			}
		}
	}
}

// CursorPosition returns the 0-based cursor row and column.
func (s *Screen) CursorPosition() (row, col int) {
	return s.cur.row, s.cur.col
}

// RowContents returns the text of one row with trailing blanks removed.
func (s *Screen) RowContents(row int) string {
	if row < 0 || row >= s.rows {
		return ""
	}
	return rowText(s.grid[row])
}

// Contents returns all rows joined by newlines, each with trailing blanks
// removed.
func (s *Screen) Contents() string {
	return gridText(s.grid)
}

// Snapshot returns a deep copy of the visible state. While a wrap is
// pending the cursor stays on the last column; the pending flag is not
// part of the snapshot.
func (s *Screen) Snapshot() Snapshot {
	cells := make([][]Cell, s.rows)
	for y, row := range s.grid {
		cells[y] = make([]Cell, len(row))
		copy(cells[y], row)
	}
	return Snapshot{
		Width:  uint16(s.cols),
		Height: uint16(s.rows),
		Cursor: Position{Row: s.cur.row, Col: s.cur.col},
		Cells:  cells,
	}
}

func rowText(row []Cell) string {
	var b strings.Builder
	for _, c := range row {
		if c.Continuation() {
			continue
		}
		b.WriteRune(c.Char)
	}
	return strings.TrimRight(b.String(), " ")
}

func gridText(grid [][]Cell) string {
	lines := make([]string, len(grid))
	for y, row := range grid {
		lines[y] = rowText(row)
	}
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// print places r at the cursor using the pen. Autowrap is deferred: a
// character written in the last column leaves a pending wrap that the
// next printable character resolves.
func (s *Screen) print(r rune) {
	width := runewidth.RuneWidth(r)
	if width == 0 {
		return
	}
	if width > 2 {
		width = 2
	}
	if width == 2 && s.cols < 2 {
		width = 1
	}

	if s.cur.wrapPending {
		s.cur.wrapPending = false
		if s.modes.AutoWrap {
			s.cur.col = 0
			s.lineFeed()
		}
	}

	if width == 2 && s.cur.col == s.cols-1 {
		if !s.modes.AutoWrap {
			return
		}
		s.setCell(s.cur.row, s.cur.col, s.pen.blank())
		s.cur.col = 0
		s.lineFeed()
	}

	c := s.pen.Cell(r)
	if width == 2 {
		c.Wide = true
		s.setCell(s.cur.row, s.cur.col, c)
		tail := s.pen.Cell(0)
		s.setCell(s.cur.row, s.cur.col+1, tail)
	} else {
		s.setCell(s.cur.row, s.cur.col, c)
	}

	if s.cur.col+width >= s.cols {
		s.cur.col = s.cols - 1
		s.cur.wrapPending = s.modes.AutoWrap
		return
	}
	s.cur.col += width
}

// setCell writes one cell, repairing wide characters it splits and
// invalidating graphics underneath.
func (s *Screen) setCell(row, col int, c Cell) {
	line := s.grid[row]
	old := line[col]
	if old.Wide && col+1 < s.cols && !c.Wide {
		line[col+1] = s.pen.blank()
	}
	if old.Continuation() && col > 0 && c.Char != 0 {
		line[col-1] = s.pen.blank()
	}
	line[col] = c
	s.invalidate(row, row, col, col)
}

func (s *Screen) execute(b byte) {
	switch b {
	case '\b':
		s.cur.wrapPending = false
		if s.cur.col > 0 {
			s.cur.col--
		}
	case '\t':
		s.cur.col = s.nextTab(s.cur.col)
		s.cur.wrapPending = false
	case '\n', '\v', '\f':
		s.lineFeed()
	case '\r':
		s.cur.col = 0
		s.cur.wrapPending = false
	case bel:
	default:
		debugLog.Printf("Screen: Ignoring control byte 0x%02x", b)
	}
}

func (s *Screen) dispatchEsc(intermediate []byte, final byte) {
	if len(intermediate) > 0 {
		// Charset designations and similar; nothing to model.
		return
	}
	switch final {
	case '7':
		s.saveCursor()
	case '8':
		s.restoreCursor()
	case 'D':
		s.lineFeed()
	case 'E':
		s.cur.col = 0
		s.lineFeed()
	case 'M':
		s.reverseIndex()
	case 'H':
		s.tabs[s.cur.col] = true
	case 'c':
		s.reset()
	case '=', '>', '\\':
	default:
		debugLog.Printf("Screen: Unhandled ESC %q", final)
	}
}

func (s *Screen) lineFeed() {
	s.cur.wrapPending = false
	if s.cur.row == s.bottom {
		s.scrollUp(1)
		return
	}
	if s.cur.row < s.rows-1 {
		s.cur.row++
	}
}

func (s *Screen) reverseIndex() {
	s.cur.wrapPending = false
	if s.cur.row == s.top {
		s.scrollDown(1)
		return
	}
	if s.cur.row > 0 {
		s.cur.row--
	}
}

// scrollUp moves the scroll region up by n lines, clearing the bottom.
func (s *Screen) scrollUp(n int) {
	height := s.bottom - s.top + 1
	n = clamp(n, 0, height)
	if n == 0 {
		return
	}
	region := s.grid[s.top : s.bottom+1]
	copy(region, region[n:])
	for y := height - n; y < height; y++ {
		region[y] = blankRow(s.cols, s.pen.blank())
	}
	s.shiftRegions(s.top, s.bottom, -n)
}

// scrollDown moves the scroll region down by n lines, clearing the top.
func (s *Screen) scrollDown(n int) {
	height := s.bottom - s.top + 1
	n = clamp(n, 0, height)
	if n == 0 {
		return
	}
	region := s.grid[s.top : s.bottom+1]
	copy(region[n:], region[:height-n])
	for y := 0; y < n; y++ {
		region[y] = blankRow(s.cols, s.pen.blank())
	}
	s.shiftRegions(s.top, s.bottom, n)
}
