// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/colorize.go
// Summary: Syntax-colored diff output for terminals.
// Notes: Token colors come from a chroma style and are mapped onto the
// 256-color palette so the output works without truecolor support.

package oracle

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/term"

	"github.com/framegrace/texelprobe/screen"
)

const defaultStyleName = "catppuccin-mocha"

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Colorize highlights diff text with the named chroma style, falling back
// to the default style for unknown names. Lines are returned unchanged if
// the text cannot be tokenized.
func Colorize(text, styleName string) string {
	if styleName == "" {
		styleName = defaultStyleName
	}
	style := styles.Get(styleName)
	lexer := chroma.Coalesce(lexers.Get("diff"))
	tokens, err := chroma.Tokenise(lexer, nil, text)
	if err != nil {
		debugLog.Printf("oracle: tokenise diff: %v", err)
		return text
	}
	base := style.Get(chroma.Text).Colour

	var sb strings.Builder
	for _, tok := range tokens {
		if tok.Type == chroma.EOFType {
			break
		}
		sgr := tokenSGR(style.Get(tok.Type), base)
		if sgr == "" {
			sb.WriteString(tok.Value)
			continue
		}
		// SGR must not span newlines or a pager will bleed color.
		for i, line := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				sb.WriteByte('\n')
			}
			if line != "" {
				sb.WriteString(sgr + line + "\x1b[0m")
			}
		}
	}
	return sb.String()
}

func tokenSGR(entry chroma.StyleEntry, base chroma.Colour) string {
	var params []string
	if entry.Bold == chroma.Yes {
		params = append(params, "1")
	}
	if entry.Italic == chroma.Yes {
		params = append(params, "3")
	}
	if entry.Underline == chroma.Yes {
		params = append(params, "4")
	}
	if entry.Colour.IsSet() && entry.Colour != base {
		c := colorful.Color{
			R: float64(entry.Colour.Red()) / 255,
			G: float64(entry.Colour.Green()) / 255,
			B: float64(entry.Colour.Blue()) / 255,
		}
		params = append(params, fmt.Sprintf("38;5;%d", NearestIndex(c)))
	}
	if len(params) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(params, ";") + "m"
}

// WriteComparison writes the issue list and a character diff to w,
// colorizing the diff with styleName when w is a terminal.
func WriteComparison(w io.Writer, expected, actual screen.Snapshot, r *Result, styleName string) error {
	if _, err := io.WriteString(w, FormatLineByLine(r)); err != nil {
		return err
	}
	if r.CharDiffs == 0 && expected.Width == actual.Width && expected.Height == actual.Height {
		return nil
	}
	diff := UnifiedDiff(expected, actual)
	if IsTerminal(w) {
		diff = Colorize(diff, styleName)
	}
	_, err := io.WriteString(w, diff)
	return err
}
