// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: eventlog/recording.go
// Summary: TXREC01 recordings: raw terminal output with a metadata header.
//
// Format: TXREC01
//   TXREC01
//   width: 80
//   height: 24
//   shell: bash -c "ls -la"
//   description: List directory contents
//   ---
//   <raw escape sequences and text>

package eventlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RecordingMagic = "TXREC01"
	RecordingSep   = "---"
)

// Recording is a captured output stream without timing.
type Recording struct {
	Metadata  Metadata
	Sequences []byte
}

// NewRecording creates an empty recording.
func NewRecording(width, height int) *Recording {
	return &Recording{Metadata: Metadata{Width: width, Height: height, Timestamp: time.Now()}}
}

// NewRecordingFromString builds a synthetic recording, useful for tests.
func NewRecordingFromString(data string, width, height int) *Recording {
	return &Recording{
		Metadata:  Metadata{Width: width, Height: height, Description: "synthetic", Timestamp: time.Now()},
		Sequences: []byte(data),
	}
}

// LoadRecording loads a recording from a TXREC01 file.
func LoadRecording(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording file: %w", err)
	}
	defer f.Close()
	return ParseRecording(f)
}

// ParseRecording parses a recording from a reader. Unknown metadata keys and
// malformed lines are skipped.
func ParseRecording(r io.Reader) (*Recording, error) {
	reader := bufio.NewReader(r)

	magic, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	magic = strings.TrimSpace(magic)
	if magic != RecordingMagic {
		return nil, fmt.Errorf("invalid magic: expected %q, got %q", RecordingMagic, magic)
	}

	rec := &Recording{Metadata: Metadata{Width: DefaultWidth, Height: DefaultHeight}}

	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read metadata: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == RecordingSep {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "width":
			if w, err := strconv.Atoi(value); err == nil && w > 0 {
				rec.Metadata.Width = w
			}
		case "height":
			if h, err := strconv.Atoi(value); err == nil && h > 0 {
				rec.Metadata.Height = h
			}
		case "shell":
			rec.Metadata.Shell = value
		case "description":
			rec.Metadata.Description = value
		case "title":
			rec.Metadata.Title = value
		case "timestamp":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				rec.Metadata.Timestamp = t
			}
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("read sequences: %w", err)
	}
	rec.Sequences = buf.Bytes()
	return rec, nil
}

// Save writes the recording to a TXREC01 file.
func (r *Recording) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording file: %w", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write writes the recording to w.
func (r *Recording) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, RecordingMagic)
	fmt.Fprintf(bw, "width: %d\n", r.Metadata.Width)
	fmt.Fprintf(bw, "height: %d\n", r.Metadata.Height)
	for _, kv := range [][2]string{
		{"shell", r.Metadata.Shell},
		{"description", r.Metadata.Description},
		{"title", r.Metadata.Title},
	} {
		if kv[1] != "" {
			fmt.Fprintf(bw, "%s: %s\n", kv[0], oneLine(kv[1]))
		}
	}
	if !r.Metadata.Timestamp.IsZero() {
		fmt.Fprintf(bw, "timestamp: %s\n", r.Metadata.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintln(bw, RecordingSep)
	bw.Write(r.Sequences)
	return bw.Flush()
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// AppendString adds raw bytes to the recording.
func (r *Recording) AppendString(s string) {
	r.Sequences = append(r.Sequences, s...)
}

// AppendCSI adds a CSI sequence (ESC [ params).
func (r *Recording) AppendCSI(params string) {
	r.AppendString("\x1b[" + params)
}

// AppendCRLF adds CR+LF.
func (r *Recording) AppendCRLF() {
	r.AppendString("\r\n")
}

// Log converts the recording to a log with a single output event.
func (r *Recording) Log() *Log {
	l := &Log{Metadata: r.Metadata}
	if len(r.Sequences) > 0 {
		l.Append(Event{Kind: KindOutput, Data: append([]byte(nil), r.Sequences...)})
	}
	return l
}

// Recording flattens the log's output events. Timing, input and resize
// events are dropped.
func (l *Log) Recording() *Recording {
	return &Recording{Metadata: l.Metadata, Sequences: l.Output()}
}
