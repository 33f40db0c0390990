// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package screen

import (
	"math/rand"
	"strings"
	"testing"
)

func TestTransitionTableIsTotal(t *testing.T) {
	for s := State(0); s < numStates; s++ {
		for b := 0; b < 256; b++ {
			tr := transitions[s][b]
			if tr.next >= numStates {
				t.Fatalf("transition (%s, 0x%02x) leads to invalid state %d", s, b, tr.next)
			}
		}
		for _, b := range []byte{can, sub} {
			if transitions[s][b].next != StateGround {
				t.Errorf("CAN/SUB in %s should return to Ground", s)
			}
		}
	}
}

func TestStateNames(t *testing.T) {
	if StateDCS.String() != "DCS" {
		t.Errorf("StateDCS = %q", StateDCS.String())
	}
	if State(200).String() != "State(200)" {
		t.Errorf("unknown state = %q", State(200).String())
	}
}

func TestCSIWithinByteBoundDispatches(t *testing.T) {
	h := newHarness(t, 80, 24)
	// 61 zeros plus "5;3" is exactly MaxCSIBytes parameter bytes.
	h.feed("\x1b[" + strings.Repeat("0", 61) + "5;3H")
	h.assertCursor(4, 2)
}

func TestCSIOverflowDiscardsAndReturnsToGround(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b[" + strings.Repeat("1;", 32) + "1Hok")
	h.assertRow(0, "ok")
	h.assertCursor(0, 2)
	if h.s.p.state != StateGround {
		t.Errorf("state = %s, want Ground", h.s.p.state)
	}
}

func TestExtraParametersDropped(t *testing.T) {
	h := newHarness(t, 80, 24)
	// 32 empty parameters fill the cap; the trailing 1 (bold) is dropped.
	h.feed("\x1b[" + strings.Repeat(";", 32) + "1mX")
	if h.cell(0, 0).Bold {
		t.Error("parameter beyond the cap should be dropped")
	}
}

func TestMisplacedPrivateMarkerDiscards(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b[1?5hX")
	h.assertRow(0, "X")
}

func TestMalformedCSISwallowedThroughFinalByte(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want string
	}{
		{"param after intermediate", "\x1b[ 1mX", "X"},
		{"too many intermediates", "\x1b[1 !\"qX", "X"},
		{"overflow mid parameters", "\x1b[" + strings.Repeat("1;", 40) + "31mX", "X"},
		{"control still executes", "ab\x1b[1?\r5hX", "Xb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 80, 24)
			h.feed(tt.seq)
			h.assertRow(0, tt.want)
			if h.s.p.state != StateGround {
				t.Errorf("state = %s, want Ground", h.s.p.state)
			}
			if h.cell(0, 0).FG.Set {
				t.Error("discarded SGR must not apply")
			}
		})
	}
}

func TestEscapeRestartsDiscardedCSI(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b[1?5\x1b[31mX")
	if c := h.cell(0, 0); c.Char != 'X' || c.FG != Indexed(Red) {
		t.Errorf("sequence after discard not applied: %v", c)
	}
}

func TestCancelAbortsSequence(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b[31\x18mX")
	h.assertRow(0, "mX")
	if h.cell(0, 0).FG.Set {
		t.Error("cancelled SGR must not apply")
	}
}

func TestControlInsideCSIExecutes(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("abc\x1b[\r2C")
	h.assertCursor(0, 2)
}

func TestEscapeInsideStringAbortsAndRestarts(t *testing.T) {
	h := newHarness(t, 80, 24)
	h.feed("\x1b]2;title\x1b[31mX")
	if h.s.Title() != "" {
		t.Errorf("aborted OSC set title %q", h.s.Title())
	}
	if c := h.cell(0, 0); c.Char != 'X' || c.FG != Indexed(Red) {
		t.Errorf("sequence after abort not applied: %v", c)
	}
}

func TestStringOverflowIgnoredUntilTerminator(t *testing.T) {
	s, err := New(40, 4, WithMaxStringBytes(8))
	if err != nil {
		t.Fatal(err)
	}
	s.Feed([]byte("\x1b]2;abcdefghijklmnop\x07after"))
	if s.Title() != "" {
		t.Errorf("oversized OSC set title %q", s.Title())
	}
	if got := s.RowContents(0); got != "after" {
		t.Errorf("row 0 = %q, want %q", got, "after")
	}

	s.Feed([]byte("\r\x1bPq" + strings.Repeat("~", 32) + "\x1b\\x"))
	if got := s.RowContents(0); got != "xfter" {
		t.Errorf("row 0 = %q, want %q", got, "xfter")
	}
	if len(s.SixelRegions()) != 0 {
		t.Error("oversized sixel should not produce a region")
	}
}

func TestStringOverflowBELEndsOnlyOSC(t *testing.T) {
	for _, intro := range []string{"\x1bPq", "\x1b_G"} {
		s, err := New(40, 4, WithMaxStringBytes(8))
		if err != nil {
			t.Fatal(err)
		}
		s.Feed([]byte(intro + strings.Repeat("A", 16) + "\x07inside\x1b\\after"))
		if got := s.RowContents(0); got != "after" {
			t.Errorf("%q: row 0 = %q, want %q", intro, got, "after")
		}
		if s.p.state != StateGround {
			t.Errorf("%q: state = %s, want Ground", intro, s.p.state)
		}
	}
}

func TestUnknownSequencesIgnored(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want string
	}{
		{"unknown CSI final", "\x1b[5zX", "X"},
		{"charset designation", "\x1b(0X", "X"},
		{"unknown escape", "\x1bZX", "X"},
		{"intermediate CSI", "\x1b[0 qX", "X"},
		{"secondary DA", "\x1b[>cX", "X"},
		{"PM string", "\x1b^hidden\x1b\\X", "X"},
		{"DEL ignored", "A\x7fB", "AB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 20, 3)
			h.feed(tt.seq)
			h.assertRow(0, tt.want)
		})
	}
}

func TestRandomInputKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 20000)
	alphabet := []byte("\x1b[];?0123456789mHJKABCDPq_G\\\x07\x18\"#~-$!abc \r\n\t\b")
	for i := range data {
		if rng.Intn(4) == 0 {
			data[i] = byte(rng.Intn(256))
		} else {
			data[i] = alphabet[rng.Intn(len(alphabet))]
		}
	}

	a, _ := New(30, 10)
	b, _ := New(30, 10)
	for i := 0; i < len(data); i += 97 {
		a.Feed(data[i:min(i+97, len(data))])
	}
	b.Feed(data)

	row, col := a.CursorPosition()
	if row < 0 || row >= 10 || col < 0 || col >= 30 {
		t.Fatalf("cursor out of bounds: (%d,%d)", row, col)
	}
	if !a.Snapshot().Equal(b.Snapshot()) {
		t.Fatal("identical input produced different snapshots")
	}
	for _, r := range a.Rows() {
		if len(r) != 30 {
			t.Fatalf("row width %d, want 30", len(r))
		}
	}
}
