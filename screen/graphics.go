// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/graphics.go
// Summary: Detection of Sixel, Kitty and iTerm2 inline images.
// Usage: dispatchString hands completed string bodies here.
// Notes: Images are recorded, never decoded or rendered. A region lives
// until a cell it covers is overwritten or erased, or it scrolls away.

package screen

import (
	"bytes"
	"strconv"
	"strings"
)

// Protocol identifies the inline-graphics protocol that produced a region.
type Protocol uint8

const (
	ProtocolSixel Protocol = iota + 1
	ProtocolKitty
	ProtocolITerm2
)

func (p Protocol) String() string {
	switch p {
	case ProtocolSixel:
		return "sixel"
	case ProtocolKitty:
		return "kitty"
	case ProtocolITerm2:
		return "iterm2"
	default:
		return "unknown"
	}
}

// Region is a detected inline image. Width and Height are the declared
// pixel size (0 when the sequence did not declare one); Rows and Cols are
// the cell extent starting at (Row, Col).
type Region struct {
	Protocol Protocol
	Row      int
	Col      int
	Width    int
	Height   int
	Rows     int
	Cols     int
	ID       uint32
	Payload  []byte
}

// Contains reports whether (row, col) lies inside the region's cell extent.
func (r Region) Contains(row, col int) bool {
	return row >= r.Row && row < r.Row+r.Rows && col >= r.Col && col < r.Col+r.Cols
}

func (r Region) intersects(row0, row1, col0, col1 int) bool {
	return r.Row <= row1 && r.Row+r.Rows-1 >= row0 && r.Col <= col1 && r.Col+r.Cols-1 >= col0
}

// Clone returns a copy of r that owns its payload.
func (r Region) Clone() Region {
	r.Payload = append([]byte(nil), r.Payload...)
	return r
}

// Regions returns copies of all live regions in detection order.
func (s *Screen) Regions() []Region {
	return s.regionsOf(0)
}

// SixelRegions returns the live Sixel regions.
func (s *Screen) SixelRegions() []Region {
	return s.regionsOf(ProtocolSixel)
}

// KittyRegions returns the live Kitty regions.
func (s *Screen) KittyRegions() []Region {
	return s.regionsOf(ProtocolKitty)
}

// ITerm2Regions returns the live iTerm2 regions.
func (s *Screen) ITerm2Regions() []Region {
	return s.regionsOf(ProtocolITerm2)
}

// HasSixelAt reports whether a Sixel region covers (row, col).
func (s *Screen) HasSixelAt(row, col int) bool {
	for _, r := range s.regions {
		if r.Protocol == ProtocolSixel && r.Contains(row, col) {
			return true
		}
	}
	return false
}

func (s *Screen) regionsOf(p Protocol) []Region {
	var out []Region
	for _, r := range s.regions {
		if p == 0 || r.Protocol == p {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Screen) addRegion(r Region) {
	r.Rows = max(r.Rows, 1)
	r.Cols = max(r.Cols, 1)
	s.regions = append(s.regions, r)
	debugLog.Printf("Screen: %s image at (%d,%d) %dx%d px, %dx%d cells",
		r.Protocol, r.Row, r.Col, r.Width, r.Height, r.Cols, r.Rows)
}

// invalidate drops regions overlapping the given cell rectangle.
func (s *Screen) invalidate(row0, row1, col0, col1 int) {
	if len(s.regions) == 0 {
		return
	}
	kept := s.regions[:0]
	for _, r := range s.regions {
		if r.intersects(row0, row1, col0, col1) {
			continue
		}
		kept = append(kept, r)
	}
	s.regions = kept
}

// shiftRegions moves regions anchored inside [top, bottom] by delta rows,
// dropping those whose anchor leaves the band.
func (s *Screen) shiftRegions(top, bottom, delta int) {
	if len(s.regions) == 0 {
		return
	}
	kept := s.regions[:0]
	for _, r := range s.regions {
		if r.Row >= top && r.Row <= bottom {
			r.Row += delta
			if r.Row < top || r.Row > bottom {
				continue
			}
		}
		kept = append(kept, r)
	}
	s.regions = kept
}

func (s *Screen) cellsFor(px, cell int) int {
	if px <= 0 {
		return 0
	}
	return (px + cell - 1) / cell
}

func (s *Screen) dispatchString(kind stringKind, body []byte, row, col int) {
	switch kind {
	case stringOSC:
		s.handleOSC(body, row, col)
	case stringDCS:
		s.handleDCS(body, row, col)
	case stringAPC:
		s.handleAPC(body, row, col)
	}
}

func (s *Screen) handleOSC(body []byte, row, col int) {
	code, rest, _ := bytes.Cut(body, []byte{';'})
	switch string(code) {
	case "0", "2":
		s.title = string(rest)
	case "1337":
		s.handleITerm2(rest, row, col)
	default:
		debugLog.Printf("Screen: Unhandled OSC %q", code)
	}
}

func (s *Screen) handleDCS(body []byte, row, col int) {
	width, height, ok := parseSixel(body)
	if !ok {
		debugLog.Printf("Screen: Ignoring DCS body (%d bytes)", len(body))
		return
	}
	s.addRegion(Region{
		Protocol: ProtocolSixel,
		Row:      row,
		Col:      col,
		Width:    width,
		Height:   height,
		Cols:     s.cellsFor(width, s.cellWidth),
		Rows:     s.cellsFor(height, s.cellHeight),
		Payload:  append([]byte(nil), body...),
	})
}

// parseSixel recognizes "params q data". The size comes from the raster
// attributes ("Pan;Pad;Ph;Pv) when present, otherwise from the data.
func parseSixel(body []byte) (width, height int, ok bool) {
	i := 0
	for i < len(body) && (isDigit(body[i]) || body[i] == ';') {
		i++
	}
	if i >= len(body) || body[i] != 'q' {
		return 0, 0, false
	}
	data := body[i+1:]

	if len(data) > 0 && data[0] == '"' {
		nums, _ := scanNumbers(data[1:])
		if len(nums) >= 4 && nums[2] > 0 && nums[3] > 0 {
			return nums[2], nums[3], true
		}
	}

	width, height = measureSixel(data)
	if width == 0 || height == 0 {
		return 0, 0, false
	}
	return width, height, true
}

// scanNumbers reads a ';'-separated list of decimal numbers and returns
// them with the number of bytes consumed.
func scanNumbers(b []byte) ([]int, int) {
	var nums []int
	n, seen, i := 0, false, 0
	for ; i < len(b); i++ {
		switch {
		case isDigit(b[i]):
			n = n*10 + int(b[i]-'0')
			seen = true
		case b[i] == ';':
			nums = append(nums, n)
			n, seen = 0, false
		default:
			if seen {
				nums = append(nums, n)
			}
			return nums, i
		}
	}
	if seen {
		nums = append(nums, n)
	}
	return nums, i
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isSixelData(b byte) bool {
	return b >= '?' && b <= '~'
}

// measureSixel derives the pixel size from sixel data: the widest band in
// columns and six pixel rows per band that carries data.
func measureSixel(data []byte) (width, height int) {
	x, band, lastBand := 0, 0, -1
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch {
		case b == '!':
			n, used := scanNumbers(data[i+1:])
			j := i + 1 + used
			if j < len(data) && isSixelData(data[j]) {
				count := 1
				if len(n) > 0 && n[0] > 0 {
					count = n[0]
				}
				x += count
				lastBand = band
				i = j
			} else {
				i = j - 1
			}
		case b == '#' || b == '"':
			_, used := scanNumbers(data[i+1:])
			i += used
		case b == '$':
			x = 0
		case b == '-':
			x = 0
			band++
		case isSixelData(b):
			x++
			lastBand = band
		}
		width = max(width, x)
	}
	if lastBand < 0 {
		return 0, 0
	}
	return width, (lastBand + 1) * 6
}

type kittyCommand struct {
	action  byte
	delete  byte
	id      uint32
	more    bool
	width   int
	height  int
	cols    int
	rows    int
	row     int
	col     int
	payload []byte
}

func parseKitty(body []byte) (kittyCommand, bool) {
	if len(body) == 0 || body[0] != 'G' {
		return kittyCommand{}, false
	}
	control, payload, _ := bytes.Cut(body[1:], []byte{';'})
	cmd := kittyCommand{action: 't', delete: 'a'}
	for _, kv := range strings.Split(string(control), ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		n, _ := strconv.Atoi(value)
		switch key {
		case "a":
			if value != "" {
				cmd.action = value[0]
			}
		case "d":
			if value != "" {
				cmd.delete = value[0]
			}
		case "i":
			cmd.id = uint32(max(n, 0))
		case "m":
			cmd.more = n == 1
		case "s":
			cmd.width = n
		case "v":
			cmd.height = n
		case "c":
			cmd.cols = n
		case "r":
			cmd.rows = n
		}
	}
	cmd.payload = append([]byte(nil), payload...)
	return cmd, true
}

func (s *Screen) handleAPC(body []byte, row, col int) {
	cmd, ok := parseKitty(body)
	if !ok {
		debugLog.Printf("Screen: Ignoring APC body (%d bytes)", len(body))
		return
	}
	cmd.row, cmd.col = row, col

	// An oversized transfer is dropped chunk by chunk until its last one.
	if s.kittyDrop {
		s.kittyDrop = cmd.more
		return
	}
	if pending := s.kittyPending; pending != nil {
		if len(pending.payload)+len(cmd.payload) > s.p.maxString {
			debugLog.Printf("Screen: Kitty transfer exceeded %d bytes, dropping", s.p.maxString)
			s.kittyPending = nil
			s.kittyDrop = cmd.more
			return
		}
		pending.payload = append(pending.payload, cmd.payload...)
		if cmd.more {
			return
		}
		s.kittyPending = nil
		cmd = *pending
		cmd.more = false
	} else if cmd.more {
		s.kittyPending = &cmd
		return
	}
	s.applyKitty(cmd)
}

func (s *Screen) applyKitty(cmd kittyCommand) {
	switch cmd.action {
	case 't':
		s.storeKittyImage(cmd)
	case 'T':
		s.storeKittyImage(cmd)
		s.placeKitty(cmd, cmd.payload)
	case 'p':
		s.placeKitty(cmd, s.kitty.get(cmd.id))
	case 'd':
		s.deleteKitty(cmd)
	case 'q':
	default:
		debugLog.Printf("Screen: Unhandled kitty action %q", cmd.action)
	}
}

func (s *Screen) storeKittyImage(cmd kittyCommand) {
	if cmd.id == 0 {
		return
	}
	s.kitty.put(cmd.id, cmd.payload, s.p.maxString)
}

// maxKittyImages caps transmitted-but-unplaced Kitty images.
const maxKittyImages = 64

// kittyStore keeps transmitted Kitty images by id. The oldest images are
// evicted once the count or the total payload exceeds its limits.
type kittyStore struct {
	images map[uint32][]byte
	order  []uint32
	bytes  int
}

func (k *kittyStore) get(id uint32) []byte { return k.images[id] }

func (k *kittyStore) put(id uint32, payload []byte, maxBytes int) {
	k.remove(id)
	if k.images == nil {
		k.images = make(map[uint32][]byte)
	}
	k.images[id] = payload
	k.order = append(k.order, id)
	k.bytes += len(payload)
	for len(k.order) > 1 && (len(k.order) > maxKittyImages || k.bytes > maxBytes) {
		debugLog.Printf("Screen: Evicting kitty image %d", k.order[0])
		k.remove(k.order[0])
	}
}

func (k *kittyStore) remove(id uint32) {
	payload, ok := k.images[id]
	if !ok {
		return
	}
	delete(k.images, id)
	k.bytes -= len(payload)
	for i, v := range k.order {
		if v == id {
			k.order = append(k.order[:i], k.order[i+1:]...)
			break
		}
	}
}

func (k *kittyStore) len() int { return len(k.order) }

func (k *kittyStore) reset() { *k = kittyStore{} }

func (s *Screen) placeKitty(cmd kittyCommand, payload []byte) {
	r := Region{
		Protocol: ProtocolKitty,
		Row:      cmd.row,
		Col:      cmd.col,
		Width:    cmd.width,
		Height:   cmd.height,
		Cols:     cmd.cols,
		Rows:     cmd.rows,
		ID:       cmd.id,
		Payload:  append([]byte(nil), payload...),
	}
	if r.Cols == 0 {
		r.Cols = s.cellsFor(r.Width, s.cellWidth)
	} else if r.Width == 0 {
		r.Width = r.Cols * s.cellWidth
	}
	if r.Rows == 0 {
		r.Rows = s.cellsFor(r.Height, s.cellHeight)
	} else if r.Height == 0 {
		r.Height = r.Rows * s.cellHeight
	}
	s.addRegion(r)
}

func (s *Screen) deleteKitty(cmd kittyCommand) {
	byID := cmd.delete == 'i' || cmd.delete == 'I'
	if !byID && cmd.delete != 'a' && cmd.delete != 'A' {
		debugLog.Printf("Screen: Unhandled kitty delete target %q", cmd.delete)
		return
	}
	kept := s.regions[:0]
	for _, r := range s.regions {
		if r.Protocol == ProtocolKitty && (!byID || r.ID == cmd.id) {
			continue
		}
		kept = append(kept, r)
	}
	s.regions = kept
	if byID {
		s.kitty.remove(cmd.id)
	} else if cmd.delete == 'A' {
		s.kitty.reset()
	}
}

// handleITerm2 parses "File=key=value;...:payload". Only inline images
// become regions; other files are downloads.
func (s *Screen) handleITerm2(body []byte, row, col int) {
	rest, ok := bytes.CutPrefix(body, []byte("File="))
	if !ok {
		debugLog.Printf("Screen: Unhandled OSC 1337 body")
		return
	}
	args, payload, _ := bytes.Cut(rest, []byte{':'})

	r := Region{Protocol: ProtocolITerm2, Row: row, Col: col}
	inline := false
	for _, kv := range strings.Split(string(args), ";") {
		key, value, _ := strings.Cut(kv, "=")
		switch key {
		case "inline":
			inline = value == "1"
		case "width":
			r.Width, r.Cols = s.iterm2Extent(value, s.cellWidth, s.cols)
		case "height":
			r.Height, r.Rows = s.iterm2Extent(value, s.cellHeight, s.rows)
		}
	}
	if !inline {
		return
	}
	r.Payload = append([]byte(nil), payload...)
	s.addRegion(r)
}

// iterm2Extent converts an iTerm2 dimension ("N", "Npx", "N%" or "auto")
// into pixels and cells.
func (s *Screen) iterm2Extent(value string, cell, screenCells int) (px, cells int) {
	switch {
	case value == "" || value == "auto":
		return 0, 0
	case strings.HasSuffix(value, "px"):
		n, _ := strconv.Atoi(strings.TrimSuffix(value, "px"))
		return n, s.cellsFor(n, cell)
	case strings.HasSuffix(value, "%"):
		n, _ := strconv.Atoi(strings.TrimSuffix(value, "%"))
		cells = (n*screenCells + 99) / 100
		return cells * cell, cells
	default:
		n, _ := strconv.Atoi(value)
		return n * cell, n
	}
}
