// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: waitfor/outcome.go
// Summary: Wait outcomes and the errors reported for non-matches.

package waitfor

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the state of a wait.
type Status uint8

const (
	Polling Status = iota
	Matched
	TimedOut
	Exited
)

func (s Status) String() string {
	switch s {
	case Polling:
		return "polling"
	case Matched:
		return "matched"
	case TimedOut:
		return "timed out"
	case Exited:
		return "source exited"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Outcome is the result of a wait. Index, Value and Description are set
// only when Status is Matched; Value holds the last observed state
// otherwise.
type Outcome[T any] struct {
	Status      Status
	Index       int
	Value       T
	Elapsed     time.Duration
	Description string
}

var (
	ErrTimeout      = errors.New("waitfor: timed out")
	ErrSourceExited = errors.New("waitfor: source exited")
	ErrNoConditions = errors.New("waitfor: no conditions")
)

// TimeoutError reports that no condition matched before the deadline.
type TimeoutError struct {
	Elapsed time.Duration
	Waiting []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("waitfor: timed out after %s%s", e.Elapsed, describe(e.Waiting))
}

// Is matches ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ExitedError reports that the source terminated before any condition
// matched.
type ExitedError struct {
	Elapsed time.Duration
	Waiting []string
}

func (e *ExitedError) Error() string {
	return fmt.Sprintf("waitfor: source exited after %s%s", e.Elapsed, describe(e.Waiting))
}

// Is matches ErrSourceExited.
func (e *ExitedError) Is(target error) bool {
	return target == ErrSourceExited
}

func describe(waiting []string) string {
	var named []string
	for _, w := range waiting {
		if w != "" {
			named = append(named, w)
		}
	}
	if len(named) == 0 {
		return ""
	}
	return " waiting for " + strings.Join(named, " or ")
}
