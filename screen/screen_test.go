// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package screen

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRejectsInvalidDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 24}, {80, 0}, {0, 0}, {-1, 5}, {70000, 10}} {
		if _, err := New(dims[0], dims[1]); !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("New(%d, %d) error = %v, want ErrInvalidDimensions", dims[0], dims[1], err)
		}
	}
}

func TestNewIsBlank(t *testing.T) {
	h := newHarness(t, 4, 3)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			if c := h.cell(row, col); c != BlankCell {
				t.Fatalf("cell (%d,%d) = %v, want blank", row, col, c)
			}
		}
	}
	h.assertCursor(0, 0)
}

func TestCellBounds(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {3, 7}, {80, 24}} {
		cols, rows := size[0], size[1]
		s, err := New(cols, rows)
		if err != nil {
			t.Fatal(err)
		}
		for r := -1; r <= rows; r++ {
			for c := -1; c <= cols; c++ {
				_, ok := s.Cell(r, c)
				want := r >= 0 && r < rows && c >= 0 && c < cols
				if ok != want {
					t.Fatalf("%dx%d Cell(%d,%d) ok=%v, want %v", cols, rows, r, c, ok, want)
				}
			}
		}
	}
}

func TestEndToEndRedText(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b[31mRed\x1b[0m Text")

	if !strings.HasPrefix(h.s.Contents(), "Red Text") {
		t.Errorf("contents = %q, want prefix %q", h.s.Contents(), "Red Text")
	}
	if c := h.cell(0, 0); c.FG != Indexed(Red) {
		t.Errorf("cell(0,0).FG = %v, want red", c.FG)
	}
	if c := h.cell(0, 4); c.FG.Set {
		t.Errorf("cell(0,4).FG = %v, want default", c.FG)
	}
}

func TestCursorMovement(t *testing.T) {
	tests := []struct {
		name     string
		seq      string
		row, col int
	}{
		{"CUP 1-based", "\x1b[5;10H", 4, 9},
		{"CUP defaults", "\x1b[5;10H\x1b[H", 0, 0},
		{"CUP clamps", "\x1b[99;999H", 23, 79},
		{"HVP", "\x1b[3;4f", 2, 3},
		{"CUU", "\x1b[10;10H\x1b[3A", 6, 9},
		{"CUD", "\x1b[10;10H\x1b[3B", 12, 9},
		{"CUF", "\x1b[10;10H\x1b[3C", 9, 12},
		{"CUB", "\x1b[10;10H\x1b[3D", 9, 6},
		{"CUB clamps", "\x1b[1;3H\x1b[10D", 0, 0},
		{"CNL", "\x1b[10;10H\x1b[2E", 11, 0},
		{"CPL", "\x1b[10;10H\x1b[2F", 7, 0},
		{"CHA", "\x1b[10;10H\x1b[20G", 9, 19},
		{"VPA", "\x1b[10;10H\x1b[4d", 3, 9},
		{"zero parameter means one", "\x1b[10;10H\x1b[0A", 8, 9},
		{"CR", "abc\r", 0, 0},
		{"LF keeps column", "abc\n", 1, 3},
		{"BS", "abc\b", 0, 2},
		{"BS at origin", "\b", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 80, 24)
			h.feed(tt.seq)
			h.assertCursor(tt.row, tt.col)
		})
	}
}

func TestTabStops(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("A\tB")
	if c := h.cell(0, 0); c.Char != 'A' {
		t.Errorf("cell(0,0) = %q, want A", c.Char)
	}
	if c := h.cell(0, 8); c.Char != 'B' {
		t.Errorf("cell(0,8) = %q, want B", c.Char)
	}

	h.feed("\r\n\x1b[3g\x1b[5G\x1bH\rY\tZ")
	if c := h.cell(1, 4); c.Char != 'Z' {
		t.Errorf("custom tab stop: cell(1,4) = %q, want Z", c.Char)
	}

	h.feed("\r\n\tQ")
	if c := h.cell(2, 4); c.Char != 'Q' {
		t.Errorf("only remaining stop should be column 4, got row %q", h.s.RowContents(2))
	}
}

func TestDeferredAutowrap(t *testing.T) {
	h := newHarness(t, 5, 3)
	h.feed("abcde")
	h.assertCursor(0, 4)
	h.assertRow(1, "")
	if !h.s.cur.wrapPending {
		t.Fatal("expected pending wrap after filling the row")
	}

	h.feed("f")
	h.assertRow(0, "abcde")
	h.assertRow(1, "f")
	h.assertCursor(1, 1)
}

func TestSnapshotCursorDuringPendingWrap(t *testing.T) {
	h := newHarness(t, 5, 3)
	h.feed("abcde")
	snap := h.s.Snapshot()
	if snap.Cursor != (Position{Row: 0, Col: 4}) {
		t.Errorf("snapshot cursor = %+v, want {0 4}", snap.Cursor)
	}
	if row, col := h.s.CursorPosition(); row != 0 || col != 4 {
		t.Errorf("CursorPosition = (%d,%d), want (0,4)", row, col)
	}
}

func TestPendingWrapClearedByCursorMotion(t *testing.T) {
	h := newHarness(t, 5, 3)
	h.feed("abcde\rX")
	h.assertRow(0, "Xbcde")
	h.assertCursor(0, 1)
}

func TestAutowrapDisabled(t *testing.T) {
	h := newHarness(t, 5, 3)
	h.feed("\x1b[?7labcdefg")
	h.assertRow(0, "abcdg")
	h.assertCursor(0, 4)
	if h.s.Modes().AutoWrap {
		t.Error("autowrap mode should be off")
	}
}

func TestScrollAtBottom(t *testing.T) {
	h := newHarness(t, 10, 3)
	h.feed("one\r\ntwo\r\nthree\r\nfour")
	h.assertRow(0, "two")
	h.assertRow(1, "three")
	h.assertRow(2, "four")
	h.assertCursor(2, 4)
}

func TestScrollRegion(t *testing.T) {
	h := newHarness(t, 10, 5)
	h.feed("top\x1b[2;4r")
	h.assertCursor(0, 0)
	h.feed("\x1b[2;1Ha\r\nb\r\nc\r\nd")
	h.assertRow(0, "top")
	h.assertRow(1, "b")
	h.assertRow(2, "c")
	h.assertRow(3, "d")
	h.assertRow(4, "")
}

func TestReverseIndexScrollsDown(t *testing.T) {
	h := newHarness(t, 10, 3)
	h.feed("a\r\nb\r\nc\x1b[H\x1bM")
	h.assertRow(0, "")
	h.assertRow(1, "a")
	h.assertRow(2, "b")
}

func TestEraseInLine(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want string
	}{
		{"to end", "abcdef\x1b[1;3H\x1b[K", "ab"},
		{"to start", "abcdef\x1b[1;3H\x1b[1K", "   def"},
		{"whole line", "abcdef\x1b[1;3H\x1b[2K", ""},
		{"erase chars", "abcdef\x1b[1;2H\x1b[2X", "a  def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10, 3)
			h.feed(tt.seq)
			h.assertRow(0, tt.want)
		})
	}
}

func TestEraseInDisplay(t *testing.T) {
	fill := "aaaa\r\nbbbb\r\ncccc\x1b[2;3H"
	tests := []struct {
		name string
		mode string
		want []string
	}{
		{"below", "0", []string{"aaaa", "bb", ""}},
		{"above", "1", []string{"", "   b", "cccc"}},
		{"all", "2", []string{"", "", ""}},
		{"scrollback only", "3", []string{"aaaa", "bbbb", "cccc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 4, 3)
			h.feed(fill + "\x1b[" + tt.mode + "J")
			for row, want := range tt.want {
				h.assertRow(row, want)
			}
			h.assertCursor(1, 2)
		})
	}
}

func TestEraseUsesPenBackground(t *testing.T) {
	h := newHarness(t, 4, 2)
	h.feed("\x1b[44m\x1b[2J")
	if c := h.cell(1, 3); c.BG != Indexed(Blue) || c.Char != ' ' {
		t.Errorf("erased cell = %v, want blank with blue background", c)
	}
}

func TestInsertDeleteChars(t *testing.T) {
	h := newHarness(t, 6, 2)
	h.feed("abcdef\x1b[1;2H\x1b[2@")
	h.assertRow(0, "a  bcd")
	h.feed("\x1b[1;2H\x1b[3P")
	h.assertRow(0, "acd")
}

func TestInsertDeleteLines(t *testing.T) {
	h := newHarness(t, 4, 4)
	h.feed("a\r\nb\r\nc\r\nd\x1b[2;1H\x1b[L")
	h.assertRow(1, "")
	h.assertRow(2, "b")
	h.assertRow(3, "c")
	h.feed("\x1b[2M")
	h.assertRow(1, "c")
	h.assertRow(2, "")
}

func TestSaveRestoreCursor(t *testing.T) {
	h := newHarness(t, 20, 5)
	h.feed("\x1b[3;4H\x1b[1;32m\x1b7\x1b[H\x1b[0mx\x1b8y")
	h.assertCursor(2, 4)
	c := h.cell(2, 3)
	if c.Char != 'y' || !c.Bold || c.FG != Indexed(Green) {
		t.Errorf("restored pen not applied: %v", c)
	}

	h.feed("\x1b[2;2H\x1b[s\x1b[5;5H\x1b[u")
	h.assertCursor(1, 1)
}

func TestRestoreWithoutSave(t *testing.T) {
	h := newHarness(t, 20, 5)
	h.feed("\x1b[3;4H\x1b8")
	h.assertCursor(0, 0)
}

func TestWideCharacters(t *testing.T) {
	h := newHarness(t, 6, 2)
	h.feed("a世b")
	lead := h.cell(0, 1)
	if lead.Char != '世' || !lead.Wide {
		t.Errorf("lead cell = %v, want wide 世", lead)
	}
	if !h.cell(0, 2).Continuation() {
		t.Error("cell after wide rune should be a continuation")
	}
	h.assertRow(0, "a世b")
	h.assertCursor(0, 4)

	h.feed("\x1b[1;3Hx")
	h.assertRow(0, "a xb")
}

func TestWideCharacterWrapsAtLastColumn(t *testing.T) {
	h := newHarness(t, 3, 2)
	h.feed("ab世")
	h.assertRow(0, "ab")
	h.assertRow(1, "世")
}

func TestUTF8SplitAcrossFeeds(t *testing.T) {
	h := newHarness(t, 10, 2)
	data := []byte("é世")
	for _, b := range data {
		h.s.Feed([]byte{b})
	}
	h.assertRow(0, "é世")
}

func TestInvalidUTF8PrintsReplacement(t *testing.T) {
	h := newHarness(t, 10, 2)
	h.s.Feed([]byte{'a', 0xff, 'b', 0xe4, 'c'})
	h.assertRow(0, "a�b�c")
}

func TestResizePreservesOverlap(t *testing.T) {
	h := newHarness(t, 6, 3)
	h.feed("abcdef\r\nghijkl\r\nmnop\x1b[3;6H")

	if err := h.s.Resize(4, 2); err != nil {
		t.Fatal(err)
	}
	h.assertRow(0, "abcd")
	h.assertRow(1, "ghij")
	h.assertCursor(1, 3)

	if err := h.s.Resize(8, 4); err != nil {
		t.Fatal(err)
	}
	h.assertRow(0, "abcd")
	h.assertRow(3, "")
	if c := h.cell(3, 7); c != BlankCell {
		t.Errorf("new cell = %v, want blank", c)
	}

	if err := h.s.Resize(0, 4); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Resize(0,4) error = %v, want ErrInvalidDimensions", err)
	}
	if cols, rows := h.s.Size(); cols != 8 || rows != 4 {
		t.Errorf("failed resize changed size to %dx%d", cols, rows)
	}
}

func TestRowIterators(t *testing.T) {
	h := newHarness(t, 3, 2)
	h.feed("abc\r\ndef")

	var got []rune
	for col, c := range h.s.Row(1) {
		if col != len(got) {
			t.Fatalf("column %d out of order", col)
		}
		got = append(got, c.Char)
	}
	if string(got) != "def" {
		t.Errorf("Row(1) = %q", string(got))
	}

	for range h.s.Row(5) {
		t.Fatal("out-of-range row should yield nothing")
	}

	count := 0
	for row, cells := range h.s.Rows() {
		cells[0].Char = 'Z'
		if r := h.s.RowContents(row); strings.HasPrefix(r, "Z") {
			t.Fatal("Rows must yield copies")
		}
		count++
	}
	if count != 2 {
		t.Errorf("Rows yielded %d rows, want 2", count)
	}

	for range h.s.Rows() {
		break
	}
}

func TestTitle(t *testing.T) {
	h := newHarness(t, 10, 2)
	h.feed("\x1b]2;hello\x07")
	if h.s.Title() != "hello" {
		t.Errorf("title = %q", h.s.Title())
	}
	h.feed("\x1b]0;world\x1b\\")
	if h.s.Title() != "world" {
		t.Errorf("title = %q", h.s.Title())
	}
}

func TestFullReset(t *testing.T) {
	h := newHarness(t, 10, 3)
	h.feed("\x1b[1;31mabc\x1b[2;3r\x1b[?7l\x1bc")
	h.assertRow(0, "")
	h.assertCursor(0, 0)
	if !h.s.Modes().AutoWrap {
		t.Error("reset should restore autowrap")
	}
	h.feed("x")
	if h.cell(0, 0).Styled() {
		t.Error("reset should clear the pen")
	}
}

func TestModes(t *testing.T) {
	h := newHarness(t, 10, 3)
	h.feed("\x1b[?1;2004h\x1b[?25l")
	m := h.s.Modes()
	if !m.AppCursorKeys || !m.BracketedPaste || m.CursorVisible {
		t.Errorf("modes = %+v", m)
	}
}

func TestDeterminismAcrossChunking(t *testing.T) {
	input := []byte("\x1b[1;31mHello\x1b[0m, \x1b[5;10Hworld\x1b[2K\x1b]2;t\x07" +
		"wide 世界 \x1bP0;0;0q\"1;1;20;12#0~~~~\x1b\\" +
		"\x1b[38;5;100mcolor\x1b[s\x1b[10;1H\x1b[u!")

	ref, _ := New(40, 12)
	ref.Feed(input)
	want := ref.Snapshot()

	for chunk := 1; chunk <= 7; chunk++ {
		s, _ := New(40, 12)
		for i := 0; i < len(input); i += chunk {
			end := min(i+chunk, len(input))
			s.Feed(input[i:end])
		}
		if got := s.Snapshot(); !got.Equal(want) {
			t.Fatalf("chunk size %d produced a different snapshot:\n%s\nwant:\n%s", chunk, got, want)
		}
		if len(s.SixelRegions()) != len(ref.SixelRegions()) {
			t.Fatalf("chunk size %d detected %d sixel regions, want %d", chunk, len(s.SixelRegions()), len(ref.SixelRegions()))
		}
	}
}

func TestQueriesAreIdempotent(t *testing.T) {
	h := newHarness(t, 20, 4)
	h.feed("\x1b[32mabc\x1b[2;2Hd")
	first := h.s.Snapshot()
	contents := h.s.Contents()
	for i := 0; i < 3; i++ {
		if !h.s.Snapshot().Equal(first) {
			t.Fatal("snapshot changed without feed")
		}
		if h.s.Contents() != contents {
			t.Fatal("contents changed without feed")
		}
	}
}

func TestWriteImplementsWriter(t *testing.T) {
	h := newHarness(t, 10, 2)
	n, err := h.s.Write([]byte("hi"))
	if err != nil || n != 2 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	h.assertRow(0, "hi")
}
