// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/divergence.go
// Summary: Locates the first byte at which two engines disagree.
//
// Usage:
//   a, _ := screen.New(80, 24)
//   b, _ := screen.New(80, 24)
//   if d := oracle.FirstDivergence(data, 64, a, b); d != nil {
//       fmt.Print(d.Format())
//   }

package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/framegrace/texelprobe/screen"
)

// Engine is anything that turns terminal output into a snapshot.
// *screen.Screen satisfies it.
type Engine interface {
	Feed(data []byte)
	Snapshot() screen.Snapshot
}

// Divergence describes where two engines stopped agreeing. The chunk
// data[Offset:End] was the last input fed before the snapshots differed.
type Divergence struct {
	Offset int
	End    int
	Chunk  []byte
	Result *Result
}

// Format renders the divergence with the offending bytes spelled out.
func (d *Divergence) Format() string {
	var sb strings.Builder
	sb.WriteString("=== DIVERGENCE FOUND ===\n")
	fmt.Fprintf(&sb, "Byte range: %d-%d\n", d.Offset, d.End)
	fmt.Fprintf(&sb, "Chunk: %s\n", EscapeSequenceLog(d.Chunk))
	fmt.Fprintf(&sb, "Comparison: %s\n\n", d.Result.Summary())
	sb.WriteString(FormatLineByLine(d.Result))
	return sb.String()
}

// FirstDivergence feeds data to both engines in chunk-sized pieces and
// compares their snapshots after each piece. It returns nil when the
// engines agree throughout. A chunk of 1 pins the divergence to a byte.
func FirstDivergence(data []byte, chunk int, a, b Engine) *Divergence {
	if chunk <= 0 {
		chunk = len(data)
	}
	for off := 0; off < len(data); off += chunk {
		end := min(off+chunk, len(data))
		piece := data[off:end]
		a.Feed(piece)
		b.Feed(piece)
		if res := Compare(a.Snapshot(), b.Snapshot()); len(res.Issues) > 0 {
			debugLog.Printf("oracle: divergence in bytes %d-%d: %s", off, end, res.Summary())
			return &Divergence{
				Offset: off,
				End:    end,
				Chunk:  append([]byte(nil), piece...),
				Result: res,
			}
		}
	}
	if len(data) == 0 {
		if res := Compare(a.Snapshot(), b.Snapshot()); len(res.Issues) > 0 {
			return &Divergence{Result: res}
		}
	}
	return nil
}

// ErrNondeterministic is matched by DeterminismError.
var ErrNondeterministic = errors.New("oracle: output depends on chunking")

// DeterminismError reports a chunk size whose final snapshot differs from
// feeding the input in one piece.
type DeterminismError struct {
	Chunk  int
	Result *Result
}

func (e *DeterminismError) Error() string {
	return fmt.Sprintf("oracle: chunk size %d diverges: %s", e.Chunk, e.Result.Summary())
}

func (e *DeterminismError) Is(target error) bool {
	return target == ErrNondeterministic
}

// CheckDeterminism feeds data to fresh cols x rows screens once whole and
// once per chunk size, and fails if any final snapshot differs.
func CheckDeterminism(data []byte, cols, rows int, chunks []int, opts ...screen.Option) error {
	ref, err := screen.New(cols, rows, opts...)
	if err != nil {
		return err
	}
	ref.Feed(data)
	want := ref.Snapshot()

	for _, n := range chunks {
		if n <= 0 {
			return fmt.Errorf("oracle: invalid chunk size %d", n)
		}
		scr, err := screen.New(cols, rows, opts...)
		if err != nil {
			return err
		}
		for off := 0; off < len(data); off += n {
			scr.Feed(data[off:min(off+n, len(data))])
		}
		if res := Compare(want, scr.Snapshot()); len(res.Issues) > 0 {
			return &DeterminismError{Chunk: n, Result: res}
		}
	}
	return nil
}
