// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package screen

import "testing"

// testHarness wraps a Screen with assertion helpers.
type testHarness struct {
	t *testing.T
	s *Screen
}

func newHarness(t *testing.T, cols, rows int) *testHarness {
	t.Helper()
	s, err := New(cols, rows)
	if err != nil {
		t.Fatalf("New(%d, %d): %v", cols, rows, err)
	}
	return &testHarness{t: t, s: s}
}

func (h *testHarness) feed(seq string) {
	h.s.Feed([]byte(seq))
}

func (h *testHarness) cell(row, col int) Cell {
	h.t.Helper()
	c, ok := h.s.Cell(row, col)
	if !ok {
		h.t.Fatalf("cell (%d,%d) out of range", row, col)
	}
	return c
}

func (h *testHarness) assertCursor(row, col int) {
	h.t.Helper()
	r, c := h.s.CursorPosition()
	if r != row || c != col {
		h.t.Errorf("cursor = (%d,%d), want (%d,%d)", r, c, row, col)
	}
}

func (h *testHarness) assertRow(row int, want string) {
	h.t.Helper()
	if got := h.s.RowContents(row); got != want {
		h.t.Errorf("row %d = %q, want %q", row, got, want)
	}
}
