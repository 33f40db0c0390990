// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/palette.go
// Summary: xterm 256-color palette values and names.

package oracle

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/framegrace/texelprobe/screen"
)

var standardNames = [16]string{
	"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white",
	"bright-black", "bright-red", "bright-green", "bright-yellow",
	"bright-blue", "bright-magenta", "bright-cyan", "bright-white",
}

var standardHex = [16]string{
	"#000000", "#cd0000", "#00cd00", "#cdcd00", "#0000ee", "#cd00cd", "#00cdcd", "#e5e5e5",
	"#7f7f7f", "#ff0000", "#00ff00", "#ffff00", "#5c5cff", "#ff00ff", "#00ffff", "#ffffff",
}

var palette = buildPalette()

func buildPalette() [256]colorful.Color {
	var p [256]colorful.Color
	for i, h := range standardHex {
		c, err := colorful.Hex(h)
		if err != nil {
			panic(err)
		}
		p[i] = c
	}
	levels := [6]float64{0, 0x5f, 0x87, 0xaf, 0xd7, 0xff}
	for i := 0; i < 216; i++ {
		r, g, b := levels[i/36], levels[(i/6)%6], levels[i%6]
		p[16+i] = colorful.Color{R: r / 255, G: g / 255, B: b / 255}
	}
	for i := 0; i < 24; i++ {
		v := float64(8+10*i) / 255
		p[232+i] = colorful.Color{R: v, G: v, B: v}
	}
	return p
}

// PaletteColor returns the RGB value of palette index n.
func PaletteColor(n uint8) colorful.Color {
	return palette[n]
}

// ColorName names a screen color: "default", one of the sixteen standard
// names, or the palette entry's hex value with its index.
func ColorName(c screen.Color) string {
	if !c.Set {
		return "default"
	}
	if int(c.Index) < len(standardNames) {
		return standardNames[c.Index]
	}
	return fmt.Sprintf("%s(%d)", palette[c.Index].Hex(), c.Index)
}

// NearestIndex returns the palette index perceptually closest to c.
// The sixteen standard colors are skipped since terminals remap them.
func NearestIndex(c colorful.Color) uint8 {
	best, bestDist := 16, c.DistanceLab(palette[16])
	for i := 17; i < len(palette); i++ {
		if d := c.DistanceLab(palette[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return uint8(best)
}
