// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package screen

import "testing"

func TestSGRRoundTrip(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b[1;3;4;31;42mX\x1b[0mY")

	x := h.cell(0, 0)
	if !x.Bold || !x.Italic || !x.Underline {
		t.Errorf("X attributes = %v, want bold italic underline", x)
	}
	if x.FG != Indexed(Red) {
		t.Errorf("X fg = %v, want red", x.FG)
	}
	if x.BG != Indexed(Green) {
		t.Errorf("X bg = %v, want green", x.BG)
	}

	y := h.cell(0, 1)
	if y.Styled() {
		t.Errorf("Y should carry no style after reset, got %v", y)
	}
}

func TestSGRCodes(t *testing.T) {
	tests := []struct {
		name   string
		seq    string
		verify func(*testing.T, Cell)
	}{
		{
			name: "empty params reset",
			seq:  "\x1b[1;31m\x1b[mX",
			verify: func(t *testing.T, c Cell) {
				if c.Styled() {
					t.Errorf("expected plain cell, got %v", c)
				}
			},
		},
		{
			name: "bright foreground",
			seq:  "\x1b[91mX",
			verify: func(t *testing.T, c Cell) {
				if c.FG != Indexed(9) {
					t.Errorf("fg = %v, want 9", c.FG)
				}
			},
		},
		{
			name: "bright background",
			seq:  "\x1b[107mX",
			verify: func(t *testing.T, c Cell) {
				if c.BG != Indexed(15) {
					t.Errorf("bg = %v, want 15", c.BG)
				}
			},
		},
		{
			name: "256 color foreground and background",
			seq:  "\x1b[38;5;202;48;5;17mX",
			verify: func(t *testing.T, c Cell) {
				if c.FG != Indexed(202) || c.BG != Indexed(17) {
					t.Errorf("colors = %v/%v, want 202/17", c.FG, c.BG)
				}
			},
		},
		{
			name: "colon sub-parameters",
			seq:  "\x1b[38:5:33mX",
			verify: func(t *testing.T, c Cell) {
				if c.FG != Indexed(33) {
					t.Errorf("fg = %v, want 33", c.FG)
				}
			},
		},
		{
			name: "truecolor consumed without effect",
			seq:  "\x1b[38;2;10;20;30;1mX",
			verify: func(t *testing.T, c Cell) {
				if c.FG.Set {
					t.Errorf("truecolor should not set fg, got %v", c.FG)
				}
				if !c.Bold {
					t.Error("bold after truecolor triple should apply")
				}
			},
		},
		{
			name: "default colors",
			seq:  "\x1b[31;41m\x1b[39;49mX",
			verify: func(t *testing.T, c Cell) {
				if c.FG.Set || c.BG.Set {
					t.Errorf("colors should be default, got %v", c)
				}
			},
		},
		{
			name: "attribute resets",
			seq:  "\x1b[1;3;4m\x1b[22;23;24mX",
			verify: func(t *testing.T, c Cell) {
				if c.Bold || c.Italic || c.Underline {
					t.Errorf("attributes should be cleared, got %v", c)
				}
			},
		},
		{
			name: "out of range 256 index ignored",
			seq:  "\x1b[38;5;300mX",
			verify: func(t *testing.T, c Cell) {
				if c.FG.Set {
					t.Errorf("fg should stay default, got %v", c.FG)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 20, 5)
			h.feed(tt.seq)
			tt.verify(t, h.cell(0, 0))
		})
	}
}

func TestPenApplyIsPure(t *testing.T) {
	base := Pen{Bold: true}
	next := base.Apply([]int{31})
	if base.FG.Set {
		t.Fatal("Apply mutated the receiver")
	}
	if !next.Bold || next.FG != Indexed(Red) {
		t.Fatalf("next pen = %+v", next)
	}
}
