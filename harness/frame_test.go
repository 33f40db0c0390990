// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package harness

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framegrace/texelprobe/screen"
)

func frameOf(t *testing.T, cols, rows int, data string) Frame {
	t.Helper()
	s, err := screen.New(cols, rows)
	require.NoError(t, err)
	s.Feed([]byte(data))
	return Frame{Snapshot: s.Snapshot(), Images: s.Regions(), Title: s.Title(), Modes: s.Modes()}
}

func TestTextMatchers(t *testing.T) {
	f := frameOf(t, 10, 3, "abcdefghijKLM\r\n\x1b[3Cindent")

	assert.True(t, Text("def").Match(f))
	assert.True(t, Text("ijKL").Match(f), "text wrapping across rows")
	assert.False(t, Text("absent").Match(f))
	assert.True(t, Line(2, "   indent").Match(f))
	assert.False(t, Line(2, "indent").Match(f))
	assert.True(t, LineContains(1, "KLM").Match(f))
	assert.True(t, LineContains(7, "").Match(f), "rows outside the grid read as empty")
	assert.False(t, LineContains(7, "x").Match(f))
	assert.True(t, Regexp(regexp.MustCompile(`(?m)^\s+ind`)).Match(f))
	assert.True(t, Cursor(2, 9).Match(f))
	assert.False(t, Empty().Match(f))
	assert.True(t, Empty().Match(frameOf(t, 5, 2, "")))
}

func TestCombinators(t *testing.T) {
	f := frameOf(t, 10, 2, "yes")
	yes, no := Text("yes"), Text("no")

	assert.True(t, Not(no).Match(f))
	assert.True(t, All(yes, Not(no)).Match(f))
	assert.False(t, All(yes, no).Match(f))
	assert.True(t, Any(no, yes).Match(f))
	assert.False(t, Any(no).Match(f))
	assert.True(t, All().Match(f))
	assert.Equal(t, `(text "yes" or not text "no")`, Any(yes, Not(no)).Description)
}

func TestCellStyleMatcher(t *testing.T) {
	f := frameOf(t, 10, 2, "\x1b[3;4;32;44mx\x1b[0my")
	want := Style{FG: screen.Indexed(screen.Green), BG: screen.Indexed(screen.Blue), Italic: true, Underline: true}

	assert.True(t, CellStyle(0, 0, want).Match(f))
	assert.False(t, CellStyle(0, 1, want).Match(f))
	assert.True(t, CellStyle(0, 1, Style{}).Match(f))
	assert.False(t, CellStyle(5, 5, Style{}).Match(f))
	assert.Contains(t, CellStyle(0, 0, want).Description, "fg=2 bg=4 italic underline")
}

func TestGraphicsMatchers(t *testing.T) {
	f := frameOf(t, 20, 4, "\x1b[2;3H\x1bPq\"1;1;20;20~\x1b\\")

	assert.True(t, SixelAt(1, 2).Match(f))
	assert.True(t, SixelAt(1, 3).Match(f))
	assert.False(t, SixelAt(0, 0).Match(f))
	assert.True(t, GraphicsCount(screen.ProtocolSixel, 1).Match(f))
	assert.True(t, GraphicsCount(screen.ProtocolKitty, 0).Match(f))
	assert.Equal(t, 1, f.Graphics().Len())
}

func TestTitleMatcher(t *testing.T) {
	f := frameOf(t, 10, 2, "\x1b]2;build\x07")
	assert.True(t, Title("build").Match(f))
	assert.False(t, Title("other").Match(f))
}

func TestMatchGolden(t *testing.T) {
	old := GoldenDir
	GoldenDir = t.TempDir()
	defer func() { GoldenDir = old }()

	f := frameOf(t, 6, 2, "\x1b]0;demo\x07ab\r\ncd")

	t.Setenv(UpdateGoldenEnv, "1")
	require.True(t, MatchGolden(t, f, "frame"))
	assert.FileExists(t, filepath.Join(GoldenDir, "frame.golden"))

	t.Setenv(UpdateGoldenEnv, "")
	assert.True(t, MatchGolden(t, f, "frame"))

	rec := &recordingTB{TB: t}
	assert.False(t, MatchGolden(rec, frameOf(t, 6, 2, "changed"), "frame"))
	assert.True(t, rec.failed)
}

// recordingTB swallows failures so a mismatch can be asserted on.
type recordingTB struct {
	testing.TB
	failed bool
}

func (r *recordingTB) Helper() {}
func (r *recordingTB) Errorf(string, ...any) { r.failed = true }
func (r *recordingTB) Fatalf(format string, args ...any) { r.TB.Fatalf(format, args...) }

func TestRenderGolden(t *testing.T) {
	f := frameOf(t, 4, 2, "\x1b]0;t\x07\x1bPq\"1;1;10;20~\x1b\\\x1b[2;1Hhi")
	want := "+----+\n|    |\n|hi  |\n+----+\ncursor: (1, 2)\ntitle: t\n" +
		"image: sixel at (0,0) 1x1 cells\n"
	assert.Equal(t, want, RenderGolden(f))
}
