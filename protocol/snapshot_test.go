// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/snapshot_test.go
// Summary: Exercises the shared-memory snapshot layout.

package protocol

import (
	"errors"
	"testing"

	"github.com/framegrace/texelprobe/screen"
)

func sampleSnapshot(t *testing.T) screen.Snapshot {
	t.Helper()
	s, err := screen.New(6, 3)
	if err != nil {
		t.Fatalf("new screen: %v", err)
	}
	s.Feed([]byte("\x1b[1;31mhi\x1b[0m\r\n\x1b[4;44mok\x1b[0m 世"))
	return s.Snapshot()
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)
	buf := MarshalSnapshot(snap, 8)
	if len(buf) != SnapshotRegionSize(6, 3) {
		t.Fatalf("region size %d, want %d", len(buf), SnapshotRegionSize(6, 3))
	}

	got, seq, err := UnmarshalSnapshot(buf)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if seq != 8 {
		t.Fatalf("sequence %d, want 8", seq)
	}
	if !got.Equal(snap) {
		t.Fatalf("snapshot mismatch:\n%s\nvs\n%s", got, snap)
	}
}

func TestCellFlagsPreserved(t *testing.T) {
	cells := []screen.Cell{
		{Char: 'a'},
		{Char: 'b', FG: screen.Indexed(0), BG: screen.Indexed(15)},
		{Char: 'c', Bold: true, Italic: true, Underline: true},
		{Char: '世', Wide: true},
		{},
	}
	buf := make([]byte, CellSize)
	for _, c := range cells {
		EncodeCell(buf, c)
		if got := DecodeCell(buf); got != c {
			t.Fatalf("cell mismatch: %+v vs %+v", got, c)
		}
	}
}

func TestSnapshotHeaderValidation(t *testing.T) {
	buf := MarshalSnapshot(sampleSnapshot(t), 2)

	if _, err := DecodeSnapshotHeader(buf[:SnapshotHeaderSize-1]); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := DecodeSnapshotHeader(buf[:SnapshotHeaderSize+8]); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer for truncated grid, got %v", err)
	}

	bad := append([]byte(nil), buf...)
	bad[0] ^= 0xFF
	if _, err := DecodeSnapshotHeader(bad); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	bad = append([]byte(nil), buf...)
	bad[4] = 9
	if _, err := DecodeSnapshotHeader(bad); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestEncodeGridShortBuffer(t *testing.T) {
	snap := sampleSnapshot(t)
	if err := EncodeGrid(make([]byte, 10), snap); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
}
