// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: waitfor/options.go
// Summary: Wait configuration, conditions and state sources.

package waitfor

import (
	"time"

	"github.com/coder/quartz"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	MinPollInterval     = time.Millisecond
)

// Source yields the current state. exited reports that the producer has
// terminated and the state will never change again.
type Source[T any] interface {
	Observe() (state T, exited bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func() (T, bool)

// Observe calls f.
func (f SourceFunc[T]) Observe() (T, bool) {
	return f()
}

// Func returns a source that never exits.
func Func[T any](fn func() T) Source[T] {
	return SourceFunc[T](func() (T, bool) { return fn(), false })
}

// Condition is a predicate over a state value. Description is used in
// timeout messages.
type Condition[T any] struct {
	Description string
	Match       func(T) bool
}

// Cond builds a Condition.
func Cond[T any](description string, match func(T) bool) Condition[T] {
	return Condition[T]{Description: description, Match: match}
}

func (c Condition[T]) matches(state T) bool {
	return c.Match != nil && c.Match(state)
}

// Progress is passed to OnProgress once per tick.
type Progress[T any] struct {
	Tick    int
	Elapsed time.Duration
	State   T
	Exited  bool
}

// Options configure a wait. Zero fields take their defaults independently.
type Options[T any] struct {
	Timeout      time.Duration
	PollInterval time.Duration
	OnProgress   func(Progress[T])
	Clock        quartz.Clock
}

func (o Options[T]) withDefaults() Options[T] {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.PollInterval < MinPollInterval {
		o.PollInterval = MinPollInterval
	}
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	return o
}
