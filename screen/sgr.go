// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: screen/sgr.go
// Summary: Select Graphic Rendition handling for the pen.

package screen

// Apply returns the pen that results from the SGR parameter list. An
// empty list is treated as a reset.
func (p Pen) Apply(params []int) Pen {
	if len(params) == 0 {
		return Pen{}
	}

	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			p = Pen{}
		case code == 1:
			p.Bold = true
		case code == 3:
			p.Italic = true
		case code == 4:
			p.Underline = true
		case code == 22:
			p.Bold = false
		case code == 23:
			p.Italic = false
		case code == 24:
			p.Underline = false
		case code >= 30 && code <= 37:
			p.FG = Indexed(uint8(code - 30))
		case code == 38 || code == 48:
			color, consumed, ok := extendedColor(params[i+1:])
			i += consumed
			if !ok {
				continue
			}
			if code == 38 {
				p.FG = color
			} else {
				p.BG = color
			}
		case code == 39:
			p.FG = Color{}
		case code >= 40 && code <= 47:
			p.BG = Indexed(uint8(code - 40))
		case code == 49:
			p.BG = Color{}
		case code >= 90 && code <= 97:
			p.FG = Indexed(uint8(code-90) + 8)
		case code >= 100 && code <= 107:
			p.BG = Indexed(uint8(code-100) + 8)
		default:
			debugLog.Printf("Screen: Unhandled SGR code %d", code)
		}
	}
	return p
}

// extendedColor decodes the tail of a 38/48 sequence. It returns the
// number of parameters consumed so the caller can skip them. Direct RGB
// forms are consumed but not modeled.
func extendedColor(rest []int) (Color, int, bool) {
	if len(rest) == 0 {
		return Color{}, 0, false
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return Color{}, len(rest), false
		}
		if rest[1] > 255 {
			return Color{}, 2, false
		}
		return Indexed(uint8(rest[1])), 2, true
	case 2:
		if len(rest) < 4 {
			return Color{}, len(rest), false
		}
		return Color{}, 4, false
	default:
		return Color{}, 1, false
	}
}
