// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: waitfor/poller.go
// Summary: The polling algorithm as an explicit state machine.
// Usage: Driven by WaitForAny's loop or by a Scheduler, one Step per tick.
// Notes: Step never blocks; callers own the sleeping.

package waitfor

import (
	"context"
	"time"

	"github.com/coder/quartz"
)

// Poller evaluates conditions against a source once per Step until one
// matches, the source exits or the deadline passes.
type Poller[T any] struct {
	src      Source[T]
	conds    []Condition[T]
	opts     Options[T]
	start    time.Time
	deadline time.Time
	next     time.Time
	ticks    int
	outcome  Outcome[T]
}

// Remaining returns the budget for a wait nested inside ctx: own, or the
// time left before ctx's deadline if that is sooner. It never returns a
// negative duration.
func Remaining(ctx context.Context, own time.Duration, clock quartz.Clock) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := dl.Sub(clock.Now()); left < own {
			own = left
		}
	}
	return max(own, 0)
}

// NewPoller starts a wait. The clock is read now; ctx only contributes its
// deadline to the budget.
func NewPoller[T any](ctx context.Context, src Source[T], conds []Condition[T], opts Options[T]) *Poller[T] {
	opts = opts.withDefaults()
	start := opts.Clock.Now()
	budget := Remaining(ctx, opts.Timeout, opts.Clock)
	return &Poller[T]{
		src:      src,
		conds:    append([]Condition[T](nil), conds...),
		opts:     opts,
		start:    start,
		deadline: start.Add(budget),
		next:     start,
	}
}

// Step performs one tick and returns the resulting status. Once the wait
// has resolved further calls are no-ops.
func (p *Poller[T]) Step() Status {
	if p.outcome.Status != Polling {
		return p.outcome.Status
	}

	now := p.opts.Clock.Now()
	state, exited := p.src.Observe()
	p.ticks++
	elapsed := now.Sub(p.start)
	p.outcome.Value = state
	p.outcome.Elapsed = elapsed

	matched := -1
	for i, c := range p.conds {
		if c.matches(state) {
			matched = i
			break
		}
	}

	switch {
	case matched >= 0:
		p.outcome.Status = Matched
		p.outcome.Index = matched
		p.outcome.Description = p.conds[matched].Description
	case exited:
		p.outcome.Status = Exited
		debugLog.Printf("waitfor: source exited after %s (%d ticks)", elapsed, p.ticks)
	case !now.Before(p.deadline):
		p.outcome.Status = TimedOut
		debugLog.Printf("waitfor: timed out after %s (%d ticks)", elapsed, p.ticks)
	default:
		p.next = now.Add(p.opts.PollInterval)
		if p.next.After(p.deadline) {
			p.next = p.deadline
		}
	}

	if p.opts.OnProgress != nil {
		p.opts.OnProgress(Progress[T]{Tick: p.ticks, Elapsed: elapsed, State: state, Exited: exited})
	}
	return p.outcome.Status
}

// NextPoll is when the next Step is due.
func (p *Poller[T]) NextPoll() time.Time {
	return p.next
}

// Deadline is the absolute time at which the wait gives up.
func (p *Poller[T]) Deadline() time.Time {
	return p.deadline
}

// Done reports whether the wait has resolved.
func (p *Poller[T]) Done() bool {
	return p.outcome.Status != Polling
}

// Outcome returns the current outcome. Its Status is Polling until the
// wait resolves.
func (p *Poller[T]) Outcome() Outcome[T] {
	return p.outcome
}

// Err returns the error matching a non-matched outcome, or nil.
func (p *Poller[T]) Err() error {
	switch p.outcome.Status {
	case TimedOut:
		return &TimeoutError{Elapsed: p.outcome.Elapsed, Waiting: p.descriptions()}
	case Exited:
		return &ExitedError{Elapsed: p.outcome.Elapsed, Waiting: p.descriptions()}
	default:
		return nil
	}
}

// expire resolves the wait as timed out; used when the enclosing context's
// deadline fires between ticks.
func (p *Poller[T]) expire() {
	if p.outcome.Status != Polling {
		return
	}
	p.outcome.Status = TimedOut
	p.outcome.Elapsed = p.opts.Clock.Since(p.start)
}

func (p *Poller[T]) descriptions() []string {
	out := make([]string, len(p.conds))
	for i, c := range p.conds {
		out[i] = c.Description
	}
	return out
}
