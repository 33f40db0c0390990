// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: waitfor/wait.go
// Summary: Blocking waits built on Poller.

package waitfor

import (
	"context"
	"errors"
)

// WaitFor blocks until cond matches the source's state. A non-match is
// reported as *TimeoutError or *ExitedError alongside the outcome.
func WaitFor[T any](ctx context.Context, src Source[T], cond Condition[T], opts Options[T]) (Outcome[T], error) {
	return WaitForAny(ctx, src, []Condition[T]{cond}, opts)
}

// WaitForAny blocks until one of conds matches. When several match on the
// same tick the lowest index wins. Cancelling ctx returns ctx.Err(); an
// expired ctx deadline is reported as a timeout.
func WaitForAny[T any](ctx context.Context, src Source[T], conds []Condition[T], opts Options[T]) (Outcome[T], error) {
	if len(conds) == 0 {
		return Outcome[T]{}, ErrNoConditions
	}
	if err := ctx.Err(); err != nil {
		return Outcome[T]{}, err
	}

	p := NewPoller(ctx, src, conds, opts)
	clock := p.opts.Clock
	for {
		if st := p.Step(); st != Polling {
			return p.Outcome(), p.Err()
		}

		wait := p.NextPoll().Sub(clock.Now())
		if wait <= 0 {
			continue
		}
		timer := clock.NewTimer(wait, "waitfor", "poll")
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				p.Step()
				p.expire()
				return p.Outcome(), p.Err()
			}
			return p.Outcome(), ctx.Err()
		case <-timer.C:
		}
	}
}
