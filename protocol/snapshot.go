// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/snapshot.go
// Summary: Shared-memory snapshot layout: fixed header followed by the grid.
// Notes: All integers are little endian. The sequence word is a seqlock:
// odd while the writer is updating the grid, even when stable.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/framegrace/texelprobe/screen"
)

const (
	SnapshotMagic      uint32 = 0x53505854 // "TXPS"
	SnapshotVersion    uint16 = 1
	SnapshotHeaderSize        = 64
	CellSize                  = 8

	// SequenceOffset locates the 8-byte aligned sequence word.
	SequenceOffset = 16
)

// Header flag bits.
const (
	// SnapshotFlagExited marks the final snapshot after the process exited.
	SnapshotFlagExited uint16 = 1 << iota
)

const (
	cellFGSet uint8 = 1 << iota
	cellBGSet
	cellBold
	cellItalic
	cellUnderline
	cellWide
)

var (
	ErrBadMagic        = errors.New("protocol: bad snapshot magic")
	ErrVersionMismatch = errors.New("protocol: snapshot version mismatch")
	ErrShortBuffer     = errors.New("protocol: snapshot buffer too short")
	ErrTornRead        = errors.New("protocol: snapshot changed while reading")
)

// SnapshotHeader is the fixed prefix of the shared-memory region.
type SnapshotHeader struct {
	Magic      uint32
	Version    uint16
	Flags      uint16
	Cols       uint16
	Rows       uint16
	CursorRow  uint16
	CursorCol  uint16
	Sequence   uint64
	GridOffset uint32
	GridSize   uint32
	CellSize   uint16
}

// SnapshotRegionSize is the number of bytes needed for a cols x rows grid.
func SnapshotRegionSize(cols, rows int) int {
	return SnapshotHeaderSize + cols*rows*CellSize
}

// NewSnapshotHeader fills in the layout fields for a grid.
func NewSnapshotHeader(cols, rows uint16) SnapshotHeader {
	return SnapshotHeader{
		Magic:      SnapshotMagic,
		Version:    SnapshotVersion,
		Cols:       cols,
		Rows:       rows,
		GridOffset: SnapshotHeaderSize,
		GridSize:   uint32(cols) * uint32(rows) * CellSize,
		CellSize:   CellSize,
	}
}

// EncodeSnapshotHeader writes h into the first SnapshotHeaderSize bytes of dst.
func EncodeSnapshotHeader(dst []byte, h SnapshotHeader) error {
	if len(dst) < SnapshotHeaderSize {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint32(dst[0:], h.Magic)
	binary.LittleEndian.PutUint16(dst[4:], h.Version)
	binary.LittleEndian.PutUint16(dst[6:], h.Flags)
	binary.LittleEndian.PutUint16(dst[8:], h.Cols)
	binary.LittleEndian.PutUint16(dst[10:], h.Rows)
	binary.LittleEndian.PutUint16(dst[12:], h.CursorRow)
	binary.LittleEndian.PutUint16(dst[14:], h.CursorCol)
	binary.LittleEndian.PutUint64(dst[SequenceOffset:], h.Sequence)
	binary.LittleEndian.PutUint32(dst[24:], h.GridOffset)
	binary.LittleEndian.PutUint32(dst[28:], h.GridSize)
	binary.LittleEndian.PutUint16(dst[32:], h.CellSize)
	clear(dst[34:SnapshotHeaderSize])
	return nil
}

// ParseSnapshotHeader decodes the header fields of src without checking
// that the grid is present.
func ParseSnapshotHeader(src []byte) (SnapshotHeader, error) {
	var h SnapshotHeader
	if len(src) < SnapshotHeaderSize {
		return h, ErrShortBuffer
	}
	h.Magic = binary.LittleEndian.Uint32(src[0:])
	if h.Magic != SnapshotMagic {
		return h, ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint16(src[4:])
	if h.Version != SnapshotVersion {
		return h, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, SnapshotVersion)
	}
	h.Flags = binary.LittleEndian.Uint16(src[6:])
	h.Cols = binary.LittleEndian.Uint16(src[8:])
	h.Rows = binary.LittleEndian.Uint16(src[10:])
	h.CursorRow = binary.LittleEndian.Uint16(src[12:])
	h.CursorCol = binary.LittleEndian.Uint16(src[14:])
	h.Sequence = binary.LittleEndian.Uint64(src[SequenceOffset:])
	h.GridOffset = binary.LittleEndian.Uint32(src[24:])
	h.GridSize = binary.LittleEndian.Uint32(src[28:])
	h.CellSize = binary.LittleEndian.Uint16(src[32:])

	if h.CellSize != CellSize || h.GridSize != uint32(h.Cols)*uint32(h.Rows)*CellSize {
		return h, fmt.Errorf("%w: inconsistent grid size", ErrShortBuffer)
	}
	if h.GridOffset < SnapshotHeaderSize {
		return h, fmt.Errorf("%w: grid offset %d inside header", ErrShortBuffer, h.GridOffset)
	}
	return h, nil
}

// RegionEnd is the offset just past the grid.
func (h SnapshotHeader) RegionEnd() int {
	return int(h.GridOffset) + int(h.GridSize)
}

// Exited reports whether SnapshotFlagExited is set.
func (h SnapshotHeader) Exited() bool {
	return h.Flags&SnapshotFlagExited != 0
}

// DecodeSnapshotHeader parses and validates a header read from src,
// including that the declared grid fits inside src.
func DecodeSnapshotHeader(src []byte) (SnapshotHeader, error) {
	h, err := ParseSnapshotHeader(src)
	if err != nil {
		return h, err
	}
	if h.RegionEnd() > len(src) {
		return h, fmt.Errorf("%w: grid needs %d bytes, have %d", ErrShortBuffer, h.RegionEnd(), len(src))
	}
	return h, nil
}

// EncodeCell writes c into 8 bytes.
func EncodeCell(dst []byte, c screen.Cell) {
	binary.LittleEndian.PutUint32(dst[0:], uint32(c.Char))
	dst[4] = c.FG.Index
	dst[5] = c.BG.Index
	var flags uint8
	if c.FG.Set {
		flags |= cellFGSet
	}
	if c.BG.Set {
		flags |= cellBGSet
	}
	if c.Bold {
		flags |= cellBold
	}
	if c.Italic {
		flags |= cellItalic
	}
	if c.Underline {
		flags |= cellUnderline
	}
	if c.Wide {
		flags |= cellWide
	}
	dst[6] = flags
	dst[7] = 0
}

// DecodeCell reads a cell written by EncodeCell.
func DecodeCell(src []byte) screen.Cell {
	flags := src[6]
	c := screen.Cell{
		Char:      rune(binary.LittleEndian.Uint32(src[0:])),
		Bold:      flags&cellBold != 0,
		Italic:    flags&cellItalic != 0,
		Underline: flags&cellUnderline != 0,
		Wide:      flags&cellWide != 0,
	}
	if flags&cellFGSet != 0 {
		c.FG = screen.Indexed(src[4])
	}
	if flags&cellBGSet != 0 {
		c.BG = screen.Indexed(src[5])
	}
	return c
}

// EncodeGrid writes the snapshot's cells row-major into dst.
func EncodeGrid(dst []byte, snap screen.Snapshot) error {
	need := int(snap.Width) * int(snap.Height) * CellSize
	if len(dst) < need {
		return ErrShortBuffer
	}
	off := 0
	for _, row := range snap.Cells {
		for _, c := range row {
			EncodeCell(dst[off:off+CellSize], c)
			off += CellSize
		}
	}
	return nil
}

// DecodeGrid reads a cols x rows grid from src.
func DecodeGrid(src []byte, cols, rows int) ([][]screen.Cell, error) {
	if len(src) < cols*rows*CellSize {
		return nil, ErrShortBuffer
	}
	cells := make([][]screen.Cell, rows)
	off := 0
	for y := range cells {
		cells[y] = make([]screen.Cell, cols)
		for x := range cells[y] {
			cells[y][x] = DecodeCell(src[off : off+CellSize])
			off += CellSize
		}
	}
	return cells, nil
}

// MarshalSnapshot encodes a complete region (header and grid).
func MarshalSnapshot(snap screen.Snapshot, sequence uint64) []byte {
	return MarshalSnapshotFlags(snap, sequence, 0)
}

// MarshalSnapshotFlags is MarshalSnapshot with header flags.
func MarshalSnapshotFlags(snap screen.Snapshot, sequence uint64, flags uint16) []byte {
	buf := make([]byte, SnapshotRegionSize(int(snap.Width), int(snap.Height)))
	h := NewSnapshotHeader(snap.Width, snap.Height)
	h.CursorRow = uint16(snap.Cursor.Row)
	h.CursorCol = uint16(snap.Cursor.Col)
	h.Sequence = sequence
	h.Flags = flags
	_ = EncodeSnapshotHeader(buf, h)
	_ = EncodeGrid(buf[SnapshotHeaderSize:], snap)
	return buf
}

// UnmarshalSnapshot decodes a region produced by MarshalSnapshot or a
// publisher.
func UnmarshalSnapshot(buf []byte) (screen.Snapshot, uint64, error) {
	h, err := DecodeSnapshotHeader(buf)
	if err != nil {
		return screen.Snapshot{}, 0, err
	}
	cells, err := DecodeGrid(buf[h.GridOffset:h.GridOffset+h.GridSize], int(h.Cols), int(h.Rows))
	if err != nil {
		return screen.Snapshot{}, 0, err
	}
	return screen.Snapshot{
		Width:  h.Cols,
		Height: h.Rows,
		Cursor: screen.Position{Row: int(h.CursorRow), Col: int(h.CursorCol)},
		Cells:  cells,
	}, h.Sequence, nil
}
