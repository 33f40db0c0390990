// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: oracle/report.go
// Summary: Machine-readable JSON reports for comparisons and divergences.
//
// Usage:
//   data, _ := oracle.Report(res)
//   summary, _ := oracle.ParseReport(data)

package oracle

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrInvalidReport = errors.New("oracle: invalid report")

// Report serializes r as a JSON object.
func Report(r *Result) ([]byte, error) {
	return appendResult([]byte(`{}`), "", r)
}

// DivergenceReport serializes d with the chunk in hex and readable forms.
func DivergenceReport(d *Divergence) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"byte_index", d.Offset},
		{"byte_end_index", d.End},
		{"chunk_hex", fmt.Sprintf("%x", d.Chunk)},
		{"chunk_readable", EscapeSequenceLog(d.Chunk)},
	} {
		if doc, err = sjson.SetBytes(doc, kv.path, kv.value); err != nil {
			return nil, err
		}
	}
	return appendResult(doc, "comparison.", d.Result)
}

func appendResult(doc []byte, prefix string, r *Result) ([]byte, error) {
	var err error
	set := func(path string, value any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, prefix+path, value)
		}
	}
	set("passed", r.Passed)
	set("summary", r.Summary())
	set("char_diffs", r.CharDiffs)
	set("color_diffs", r.ColorDiffs)
	set("attr_diffs", r.AttrDiffs)
	set("errors", r.Count(SeverityError))
	set("warnings", r.Count(SeverityWarning))
	if len(r.Issues) == 0 && err == nil {
		doc, err = sjson.SetRawBytes(doc, prefix+"issues", []byte(`[]`))
	}
	for i, is := range r.Issues {
		p := fmt.Sprintf("issues.%d.", i)
		set(p+"type", is.Type.String())
		set(p+"severity", is.Severity.String())
		set(p+"row", is.Row)
		set(p+"col", is.Col)
		set(p+"message", is.Message)
		set(p+"expected", is.Expected)
		set(p+"actual", is.Actual)
	}
	return doc, err
}

// ReportSummary is the headline of a JSON report.
type ReportSummary struct {
	Passed     bool
	Summary    string
	Issues     int
	Errors     int
	CharDiffs  int
	ColorDiffs int
	AttrDiffs  int
	FirstIssue string
}

// ParseReport reads the headline of a report produced by Report or
// DivergenceReport.
func ParseReport(data []byte) (ReportSummary, error) {
	if !gjson.ValidBytes(data) {
		return ReportSummary{}, fmt.Errorf("%w: not JSON", ErrInvalidReport)
	}
	root := gjson.ParseBytes(data)
	if c := root.Get("comparison"); c.IsObject() {
		root = c
	}
	if !root.Get("passed").Exists() {
		return ReportSummary{}, fmt.Errorf("%w: missing passed", ErrInvalidReport)
	}
	s := ReportSummary{
		Passed:     root.Get("passed").Bool(),
		Summary:    root.Get("summary").String(),
		Issues:     int(root.Get("issues.#").Int()),
		Errors:     int(root.Get("errors").Int()),
		CharDiffs:  int(root.Get("char_diffs").Int()),
		ColorDiffs: int(root.Get("color_diffs").Int()),
		AttrDiffs:  int(root.Get("attr_diffs").Int()),
	}
	if first := root.Get("issues.0"); first.Exists() {
		s.FirstIssue = fmt.Sprintf("%s at (%d,%d)",
			first.Get("type").String(), first.Get("row").Int(), first.Get("col").Int())
	}
	return s, nil
}
