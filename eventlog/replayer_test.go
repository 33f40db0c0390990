// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventlog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func replayLog() *Log {
	l := NewLog(10, 3)
	l.Append(Event{Offset: 0, Kind: KindOutput, Data: []byte("one")})
	l.Append(Event{Offset: 10 * time.Millisecond, Kind: KindInput, Data: []byte("ignored")})
	l.Append(Event{Offset: 20 * time.Millisecond, Kind: KindOutput, Data: []byte("\r\ntwo")})
	l.Append(Event{Offset: 30 * time.Millisecond, Kind: KindResize, Cols: 20, Rows: 4})
	l.Append(Event{Offset: 40 * time.Millisecond, Kind: KindOutput, Data: []byte("\r\nthree")})
	return l
}

func TestReplayerStep(t *testing.T) {
	r, err := NewReplayer(replayLog())
	if err != nil {
		t.Fatalf("NewReplayer failed: %v", err)
	}
	ev, ok, err := r.Step()
	if err != nil || !ok || ev.Kind != KindOutput {
		t.Fatalf("first step: %+v %v %v", ev, ok, err)
	}
	if got := r.Screen().RowContents(0); got != "one" {
		t.Fatalf("row 0: expected %q, got %q", "one", got)
	}
	ev, _, _ = r.Step()
	if ev.Kind != KindInput || r.Screen().Contents() != "one\n\n" {
		t.Fatalf("input must not reach the screen: %q", r.Screen().Contents())
	}
	if err := r.StepAll(); err != nil {
		t.Fatalf("StepAll failed: %v", err)
	}
	if !r.Done() || r.Index() != 5 {
		t.Fatalf("expected done at 5, got %d", r.Index())
	}
	if cols, rows := r.Screen().Size(); cols != 20 || rows != 4 {
		t.Fatalf("size after resize: %dx%d", cols, rows)
	}
	if got := r.Screen().RowContents(2); got != "three" {
		t.Fatalf("row 2: expected %q, got %q", "three", got)
	}
	if _, ok, _ := r.Step(); ok {
		t.Fatal("step past the end should report !ok")
	}
}

func TestReplayerSnapshotAt(t *testing.T) {
	r, err := NewReplayer(replayLog())
	if err != nil {
		t.Fatalf("NewReplayer failed: %v", err)
	}
	snap, err := r.SnapshotAt(25 * time.Millisecond)
	if err != nil {
		t.Fatalf("SnapshotAt failed: %v", err)
	}
	if snap.Width != 10 || snap.RowContents(1) != "two" {
		t.Fatalf("unexpected snapshot:\n%s", snap)
	}

	// Rewinds even after running to the end.
	if err := r.StepAll(); err != nil {
		t.Fatalf("StepAll failed: %v", err)
	}
	snap, err = r.SnapshotAt(0)
	if err != nil {
		t.Fatalf("SnapshotAt failed: %v", err)
	}
	if snap.Contents() != "one\n\n" {
		t.Fatalf("expected first frame, got %q", snap.Contents())
	}
}

func TestReplayerRunUnpaced(t *testing.T) {
	r, err := NewReplayer(replayLog())
	if err != nil {
		t.Fatalf("NewReplayer failed: %v", err)
	}
	if err := r.Run(context.Background(), 0, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !r.Done() {
		t.Fatal("replayer should be done")
	}
}

func TestReplayerRunPaced(t *testing.T) {
	l := NewLog(10, 2)
	l.Append(Event{Offset: 0, Kind: KindOutput, Data: []byte("a")})
	l.Append(Event{Offset: 60 * time.Millisecond, Kind: KindOutput, Data: []byte("b")})
	r, err := NewReplayer(l)
	if err != nil {
		t.Fatalf("NewReplayer failed: %v", err)
	}
	start := time.Now()
	if err := r.Run(context.Background(), 2, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("run at speed 2 finished too early: %v", elapsed)
	}
	if got := r.Screen().RowContents(0); got != "ab" {
		t.Fatalf("expected %q, got %q", "ab", got)
	}
}

func TestReplayerRunCancel(t *testing.T) {
	l := NewLog(10, 2)
	l.Append(Event{Offset: 0, Kind: KindOutput, Data: []byte("a")})
	l.Append(Event{Offset: time.Hour, Kind: KindOutput, Data: []byte("b")})
	r, err := NewReplayer(l)
	if err != nil {
		t.Fatalf("NewReplayer failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Run(ctx, 1, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if r.Index() != 1 {
		t.Fatalf("expected one event applied, got %d", r.Index())
	}
}

func TestReplayerRejectsBadSize(t *testing.T) {
	if _, err := NewReplayer(NewLog(0, 10)); err == nil {
		t.Fatal("expected error for zero width")
	}
}
