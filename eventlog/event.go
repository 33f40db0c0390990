// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: eventlog/event.go
// Summary: Timed terminal events and the logs that hold them.

package eventlog

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

var ErrUnknownKind = errors.New("eventlog: unknown event kind")

// Kind classifies an event.
type Kind uint8

const (
	// KindOutput is bytes the program wrote to the terminal.
	KindOutput Kind = iota + 1
	// KindInput is bytes sent to the program.
	KindInput
	// KindResize changes the terminal size to Cols x Rows.
	KindResize
)

func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindInput:
		return "input"
	case KindResize:
		return "resize"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Code is the single-letter asciicast event code.
func (k Kind) Code() string {
	switch k {
	case KindOutput:
		return "o"
	case KindInput:
		return "i"
	case KindResize:
		return "r"
	default:
		return "?"
	}
}

// ParseKind accepts either a Kind name or its asciicast code.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "output", "o":
		return KindOutput, nil
	case "input", "i":
		return KindInput, nil
	case "resize", "r":
		return KindResize, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Event is one timed occurrence. Offset is measured from the start of the
// log; Cols and Rows are only meaningful for KindResize.
type Event struct {
	Offset time.Duration
	Kind   Kind
	Data   []byte
	Cols   int
	Rows   int
}

// Metadata describes a log.
type Metadata struct {
	Width       int
	Height      int
	Shell       string
	Description string
	Title       string
	Timestamp   time.Time
}

// Log is an ordered sequence of events.
type Log struct {
	Metadata Metadata
	Events   []Event
}

// NewLog returns an empty log for a width x height terminal.
func NewLog(width, height int) *Log {
	return &Log{Metadata: Metadata{Width: width, Height: height, Timestamp: time.Now()}}
}

// Append adds an event. Offsets earlier than the previous event are raised
// so the log stays ordered.
func (l *Log) Append(ev Event) {
	if n := len(l.Events); n > 0 && ev.Offset < l.Events[n-1].Offset {
		ev.Offset = l.Events[n-1].Offset
	}
	l.Events = append(l.Events, ev)
}

// Output concatenates every output event.
func (l *Log) Output() []byte {
	var buf bytes.Buffer
	for _, ev := range l.Events {
		if ev.Kind == KindOutput {
			buf.Write(ev.Data)
		}
	}
	return buf.Bytes()
}

// Duration is the offset of the last event.
func (l *Log) Duration() time.Duration {
	if len(l.Events) == 0 {
		return 0
	}
	return l.Events[len(l.Events)-1].Offset
}

// Count returns how many events of kind k the log holds.
func (l *Log) Count(k Kind) int {
	n := 0
	for _, ev := range l.Events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (l *Log) Clone() *Log {
	out := &Log{Metadata: l.Metadata, Events: make([]Event, len(l.Events))}
	for i, ev := range l.Events {
		ev.Data = append([]byte(nil), ev.Data...)
		out.Events[i] = ev
	}
	return out
}
