// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: graphics/capture.go
// Summary: Protocol-agnostic queries over detected inline-image regions.
// Usage: Built from a screen (or a frame) after output has been fed.

package graphics

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/framegrace/texelprobe/screen"
)

// RegionSource is anything that can list detected regions, such as
// *screen.Screen.
type RegionSource interface {
	Regions() []screen.Region
}

// Area is a rectangle of cells.
type Area struct {
	Row  int
	Col  int
	Rows int
	Cols int
}

// AreaOf returns the cell rectangle covered by r.
func AreaOf(r screen.Region) Area {
	return Area{Row: r.Row, Col: r.Col, Rows: r.Rows, Cols: r.Cols}
}

// Empty reports whether the area covers no cells.
func (a Area) Empty() bool {
	return a.Rows <= 0 || a.Cols <= 0
}

// Contains reports whether b lies entirely inside a.
func (a Area) Contains(b Area) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return b.Row >= a.Row && b.Col >= a.Col &&
		b.Row+b.Rows <= a.Row+a.Rows && b.Col+b.Cols <= a.Col+a.Cols
}

// Intersects reports whether a and b share at least one cell.
func (a Area) Intersects(b Area) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Row < b.Row+b.Rows && b.Row < a.Row+a.Rows &&
		a.Col < b.Col+b.Cols && b.Col < a.Col+a.Cols
}

// Capture is an immutable set of regions taken at one point in time.
// Regions go in and come out as clones, payload included.
type Capture struct {
	regions []screen.Region
}

// New captures the regions currently reported by src.
func New(src RegionSource) *Capture {
	return FromRegions(src.Regions())
}

// FromRegions wraps an existing region list. The regions are copied.
func FromRegions(regions []screen.Region) *Capture {
	return &Capture{regions: cloneAll(regions)}
}

func cloneAll(regions []screen.Region) []screen.Region {
	if regions == nil {
		return nil
	}
	out := make([]screen.Region, len(regions))
	for i, r := range regions {
		out[i] = r.Clone()
	}
	return out
}

// All returns every region in detection order.
func (c *Capture) All() []screen.Region {
	return cloneAll(c.regions)
}

// Len returns the number of regions.
func (c *Capture) Len() int {
	return len(c.regions)
}

func (c *Capture) filter(keep func(screen.Region) bool) []screen.Region {
	var out []screen.Region
	for _, r := range c.regions {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ByProtocol returns the regions produced by p.
func (c *Capture) ByProtocol(p screen.Protocol) []screen.Region {
	return c.filter(func(r screen.Region) bool { return r.Protocol == p })
}

// Sixel returns the Sixel regions.
func (c *Capture) Sixel() []screen.Region { return c.ByProtocol(screen.ProtocolSixel) }

// Kitty returns the Kitty regions.
func (c *Capture) Kitty() []screen.Region { return c.ByProtocol(screen.ProtocolKitty) }

// ITerm2 returns the iTerm2 regions.
func (c *Capture) ITerm2() []screen.Region { return c.ByProtocol(screen.ProtocolITerm2) }

// InArea returns regions lying entirely inside a.
func (c *Capture) InArea(a Area) []screen.Region {
	return c.filter(func(r screen.Region) bool { return a.Contains(AreaOf(r)) })
}

// Overlapping returns regions sharing at least one cell with a.
func (c *Capture) Overlapping(a Area) []screen.Region {
	return c.filter(func(r screen.Region) bool { return a.Intersects(AreaOf(r)) })
}

// At returns regions covering the cell (row, col).
func (c *Capture) At(row, col int) []screen.Region {
	return c.filter(func(r screen.Region) bool { return r.Contains(row, col) })
}

// Largest returns the region covering the most cells. ok is false when the
// capture is empty. Ties keep the earliest region.
func (c *Capture) Largest() (screen.Region, bool) {
	best, found := screen.Region{}, false
	for _, r := range c.regions {
		if !found || r.Rows*r.Cols > best.Rows*best.Cols {
			best, found = r, true
		}
	}
	return best.Clone(), found
}

// Counts returns the number of regions per protocol.
func (c *Capture) Counts() map[screen.Protocol]int {
	counts := make(map[screen.Protocol]int)
	for _, r := range c.regions {
		counts[r.Protocol]++
	}
	return counts
}

// Summary describes the capture in one line per region, ordered by
// position.
func (c *Capture) Summary() string {
	regions := c.All()
	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Row != regions[j].Row {
			return regions[i].Row < regions[j].Row
		}
		return regions[i].Col < regions[j].Col
	})
	var b strings.Builder
	for _, r := range regions {
		fmt.Fprintf(&b, "%s at (%d,%d) %dx%d cells", r.Protocol, r.Row, r.Col, r.Cols, r.Rows)
		if r.Width > 0 || r.Height > 0 {
			fmt.Fprintf(&b, " %dx%d px", r.Width, r.Height)
		}
		fmt.Fprintf(&b, " payload=%dB\n", len(r.Payload))
	}
	return b.String()
}

// DecodePayload returns the image bytes carried by r. Kitty and iTerm2
// payloads are base64; Sixel payloads are returned as received.
func DecodePayload(r screen.Region) ([]byte, error) {
	if r.Protocol == screen.ProtocolSixel {
		return append([]byte(nil), r.Payload...), nil
	}
	out, err := base64.StdEncoding.DecodeString(string(r.Payload))
	if err != nil {
		return nil, fmt.Errorf("graphics: decode %s payload: %w", r.Protocol, err)
	}
	return out, nil
}
