// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: eventlog/recorder.go
// Summary: Concurrent-safe capture of live terminal events.

package eventlog

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Recorder timestamps events against a clock as they happen.
type Recorder struct {
	clock quartz.Clock
	start time.Time

	mu  sync.Mutex
	log *Log
}

// NewRecorder starts a recording for a cols x rows terminal. A nil clock
// uses the real one.
func NewRecorder(cols, rows int, clock quartz.Clock) *Recorder {
	if clock == nil {
		clock = quartz.NewReal()
	}
	start := clock.Now()
	l := NewLog(cols, rows)
	l.Metadata.Timestamp = start
	return &Recorder{clock: clock, start: start, log: l}
}

func (r *Recorder) add(ev Event) {
	ev.Offset = r.clock.Since(r.start)
	r.mu.Lock()
	r.log.Append(ev)
	r.mu.Unlock()
}

// Output records bytes written by the program.
func (r *Recorder) Output(p []byte) {
	if len(p) == 0 {
		return
	}
	r.add(Event{Kind: KindOutput, Data: append([]byte(nil), p...)})
}

// Input records bytes sent to the program.
func (r *Recorder) Input(p []byte) {
	if len(p) == 0 {
		return
	}
	r.add(Event{Kind: KindInput, Data: append([]byte(nil), p...)})
}

// Resize records a terminal size change.
func (r *Recorder) Resize(cols, rows int) {
	r.add(Event{Kind: KindResize, Cols: cols, Rows: rows})
}

// Write records p as output so the recorder can sit behind an io.Writer.
func (r *Recorder) Write(p []byte) (int, error) {
	r.Output(p)
	return len(p), nil
}

// SetMetadata updates the descriptive fields of the recording.
func (r *Recorder) SetMetadata(shell, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Metadata.Shell = shell
	r.log.Metadata.Description = description
}

// Log returns a copy of everything recorded so far.
func (r *Recorder) Log() *Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.Clone()
}
