// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: eventlog/asciicast.go
// Summary: asciicast v2 import and export.
// Notes: Event data is carried as JSON strings, so invalid UTF-8 in output
// is replaced with U+FFFD on export.

package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var ErrAsciicast = errors.New("eventlog: invalid asciicast")

type asciicastHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Title     string            `json:"title,omitempty"`
	Command   string            `json:"command,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// WriteAsciicast encodes l as an asciicast v2 stream.
func WriteAsciicast(w io.Writer, l *Log) error {
	bw := bufio.NewWriter(w)
	hdr := asciicastHeader{
		Version: 2,
		Width:   l.Metadata.Width,
		Height:  l.Metadata.Height,
		Title:   l.Metadata.Title,
		Command: l.Metadata.Shell,
		Env:     map[string]string{"TERM": "xterm-256color"},
	}
	if !l.Metadata.Timestamp.IsZero() {
		hdr.Timestamp = l.Metadata.Timestamp.Unix()
	}
	line, err := json.Marshal(hdr)
	if err != nil {
		return err
	}
	bw.Write(line)
	bw.WriteByte('\n')

	for _, ev := range l.Events {
		data := string(ev.Data)
		if ev.Kind == KindResize {
			data = fmt.Sprintf("%dx%d", ev.Cols, ev.Rows)
		}
		line, err := json.Marshal([]any{ev.Offset.Seconds(), ev.Kind.Code(), data})
		if err != nil {
			return err
		}
		bw.Write(line)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadAsciicast decodes an asciicast v2 stream. Event codes other than
// output, input and resize (markers, for example) are skipped.
func ReadAsciicast(r io.Reader) (*Log, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty stream", ErrAsciicast)
	}
	header := scanner.Text()
	if !gjson.Valid(header) {
		return nil, fmt.Errorf("%w: header is not JSON", ErrAsciicast)
	}
	h := gjson.Parse(header)
	if v := h.Get("version").Int(); v != 2 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrAsciicast, v)
	}

	l := &Log{Metadata: Metadata{
		Width:  int(h.Get("width").Int()),
		Height: int(h.Get("height").Int()),
		Title:  h.Get("title").String(),
		Shell:  h.Get("command").String(),
	}}
	if l.Metadata.Width <= 0 || l.Metadata.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrAsciicast, l.Metadata.Width, l.Metadata.Height)
	}
	if ts := h.Get("timestamp"); ts.Exists() {
		l.Metadata.Timestamp = time.Unix(ts.Int(), 0)
	}

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		ev, ok, err := parseAsciicastEvent(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrAsciicast, lineNo, err)
		}
		if ok {
			l.Append(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

func parseAsciicastEvent(text string) (Event, bool, error) {
	if !gjson.Valid(text) {
		return Event{}, false, errors.New("event is not JSON")
	}
	parts := gjson.Parse(text).Array()
	if len(parts) != 3 || parts[0].Type != gjson.Number || parts[1].Type != gjson.String || parts[2].Type != gjson.String {
		return Event{}, false, errors.New("event must be [time, code, data]")
	}
	secs := parts[0].Float()
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return Event{}, false, fmt.Errorf("invalid time %v", secs)
	}
	kind, err := ParseKind(parts[1].String())
	if err != nil {
		return Event{}, false, nil
	}
	ev := Event{
		Offset: time.Duration(secs * float64(time.Second)),
		Kind:   kind,
	}
	data := parts[2].String()
	if kind == KindResize {
		cols, rows, ok := parseSize(data)
		if !ok {
			return Event{}, false, fmt.Errorf("invalid resize %q", data)
		}
		ev.Cols, ev.Rows = cols, rows
		return ev, true, nil
	}
	ev.Data = []byte(data)
	return ev, true, nil
}

func parseSize(s string) (int, int, bool) {
	c, r, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, false
	}
	cols, err1 := strconv.Atoi(c)
	rows, err2 := strconv.Atoi(r)
	if err1 != nil || err2 != nil || cols <= 0 || rows <= 0 {
		return 0, 0, false
	}
	return cols, rows, true
}
