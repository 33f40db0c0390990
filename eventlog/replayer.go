// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: eventlog/replayer.go
// Summary: Steps a log's events into a screen.

package eventlog

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"github.com/framegrace/texelprobe/screen"
)

// Replayer applies output and resize events to a screen. Input events are
// stepped over; they only matter to the program that received them.
type Replayer struct {
	log    *Log
	opts   []screen.Option
	screen *screen.Screen
	index  int
}

// NewReplayer creates a replayer with a fresh screen sized from the log.
func NewReplayer(l *Log, opts ...screen.Option) (*Replayer, error) {
	r := &Replayer{log: l, opts: opts}
	if err := r.Reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset discards the screen and rewinds to the first event.
func (r *Replayer) Reset() error {
	scr, err := screen.New(r.log.Metadata.Width, r.log.Metadata.Height, r.opts...)
	if err != nil {
		return err
	}
	r.screen = scr
	r.index = 0
	return nil
}

func (r *Replayer) Screen() *screen.Screen { return r.screen }

// Index is the number of events applied so far.
func (r *Replayer) Index() int { return r.index }

func (r *Replayer) Done() bool { return r.index >= len(r.log.Events) }

// Step applies the next event. ok is false when the log is exhausted.
func (r *Replayer) Step() (ev Event, ok bool, err error) {
	if r.Done() {
		return Event{}, false, nil
	}
	ev = r.log.Events[r.index]
	r.index++
	switch ev.Kind {
	case KindOutput:
		r.screen.Feed(ev.Data)
	case KindResize:
		if err := r.screen.Resize(ev.Cols, ev.Rows); err != nil {
			return ev, true, err
		}
	}
	return ev, true, nil
}

// StepAll applies every remaining event.
func (r *Replayer) StepAll() error {
	for {
		_, ok, err := r.Step()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// SnapshotAt replays from the start through every event whose offset is at
// most at, and returns the resulting snapshot.
func (r *Replayer) SnapshotAt(at time.Duration) (screen.Snapshot, error) {
	if err := r.Reset(); err != nil {
		return screen.Snapshot{}, err
	}
	for !r.Done() && r.log.Events[r.index].Offset <= at {
		if _, _, err := r.Step(); err != nil {
			return screen.Snapshot{}, err
		}
	}
	return r.screen.Snapshot(), nil
}

// Run applies the remaining events paced by their offsets divided by speed.
// A speed of zero or less applies them without waiting.
func (r *Replayer) Run(ctx context.Context, speed float64, clock quartz.Clock) error {
	if clock == nil {
		clock = quartz.NewReal()
	}
	start := clock.Now()
	var base time.Duration
	if r.index > 0 {
		base = r.log.Events[r.index-1].Offset
	}
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if speed > 0 {
			due := time.Duration(float64(r.log.Events[r.index].Offset-base) / speed)
			if wait := due - clock.Since(start); wait > 0 {
				timer := clock.NewTimer(wait, "replayer", "event")
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
			}
		}
		if _, _, err := r.Step(); err != nil {
			return err
		}
	}
	return nil
}
