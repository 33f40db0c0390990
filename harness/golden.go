// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: harness/golden.go
// Summary: Golden-file assertions for frames.
// Usage: TEXELPROBE_UPDATE_GOLDEN=1 go test ./... rewrites the files.

package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// UpdateGoldenEnv names the variable that switches MatchGolden to writing.
const UpdateGoldenEnv = "TEXELPROBE_UPDATE_GOLDEN"

// GoldenDir is where golden files live, relative to the test's package.
var GoldenDir = filepath.Join("testdata", "golden")

// RenderGolden is the text stored for a frame: the framed grid and cursor,
// the title, and one line per image.
func RenderGolden(f Frame) string {
	var b strings.Builder
	b.WriteString(f.Snapshot.String())
	if f.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", f.Title)
	}
	for _, r := range f.Images {
		fmt.Fprintf(&b, "image: %s at (%d,%d) %dx%d cells\n", r.Protocol, r.Row, r.Col, r.Cols, r.Rows)
	}
	return b.String()
}

// MatchGolden compares f with testdata/golden/<name>.golden. With
// TEXELPROBE_UPDATE_GOLDEN set, the file is rewritten instead.
func MatchGolden(t testing.TB, f Frame, name string) bool {
	t.Helper()
	path := filepath.Join(GoldenDir, name+".golden")
	got := RenderGolden(f)

	if os.Getenv(UpdateGoldenEnv) != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("write golden file: %v", err)
		}
		return true
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden file (set %s=1 to create it): %v", UpdateGoldenEnv, err)
		return false
	}
	return assert.Equal(t, string(want), got, "frame differs from %s", path)
}
