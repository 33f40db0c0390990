// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventlog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
)

func TestRecorderOffsets(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mClock := quartz.NewMock(t)

	rec := NewRecorder(80, 24, mClock)
	rec.SetMetadata("bash", "demo")
	rec.Output([]byte("$ "))
	mClock.Advance(120 * time.Millisecond).MustWait(ctx)
	fmt.Fprint(rec, "typed")
	rec.Input([]byte("ls\r"))
	mClock.Advance(80 * time.Millisecond).MustWait(ctx)
	rec.Resize(100, 30)
	rec.Output(nil)

	l := rec.Log()
	if len(l.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(l.Events))
	}
	want := []struct {
		kind   Kind
		offset time.Duration
	}{
		{KindOutput, 0},
		{KindOutput, 120 * time.Millisecond},
		{KindInput, 120 * time.Millisecond},
		{KindResize, 200 * time.Millisecond},
	}
	for i, w := range want {
		if l.Events[i].Kind != w.kind || l.Events[i].Offset != w.offset {
			t.Errorf("event %d: expected %v@%v, got %v@%v", i, w.kind, w.offset, l.Events[i].Kind, l.Events[i].Offset)
		}
	}
	if l.Events[3].Cols != 100 || l.Events[3].Rows != 30 {
		t.Errorf("resize event: %+v", l.Events[3])
	}
	if l.Metadata.Shell != "bash" || l.Metadata.Description != "demo" || !l.Metadata.Timestamp.Equal(mClock.Now().Add(-200*time.Millisecond)) {
		t.Errorf("metadata: %+v", l.Metadata)
	}
}

func TestRecorderCopiesData(t *testing.T) {
	rec := NewRecorder(10, 2, nil)
	buf := []byte("abc")
	rec.Output(buf)
	buf[0] = 'z'
	l := rec.Log()
	if string(l.Events[0].Data) != "abc" {
		t.Fatalf("recorder kept a reference to the caller's buffer: %q", l.Events[0].Data)
	}
	l.Events[0].Data[0] = 'q'
	if string(rec.Log().Events[0].Data) != "abc" {
		t.Fatal("Log must return a copy")
	}
}

func TestRecorderConcurrent(t *testing.T) {
	rec := NewRecorder(10, 2, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec.Output([]byte("x"))
			}
		}()
	}
	wg.Wait()
	l := rec.Log()
	if l.Count(KindOutput) != 400 {
		t.Fatalf("expected 400 events, got %d", l.Count(KindOutput))
	}
	for i := 1; i < len(l.Events); i++ {
		if l.Events[i].Offset < l.Events[i-1].Offset {
			t.Fatalf("offsets out of order at %d", i)
		}
	}
}
