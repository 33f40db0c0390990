// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: waitfor/scheduler.go
// Summary: Drives many pollers from one goroutine and one timer.
// Usage: Schedule pollers, run the scheduler, select on Pending.Done.
// Notes: A cancelled or resolved wait is removed before its Done channel
// closes; nothing else is cancelled as a side effect.

package waitfor

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// Steppable is a cooperative wait: Step performs one non-blocking tick and
// NextPoll says when the next one is due. *Poller implements it.
type Steppable interface {
	Step() Status
	NextPoll() time.Time
}

// Pending is a scheduled wait.
type Pending struct {
	task      Steppable
	done      chan struct{}
	once      sync.Once
	mu        sync.Mutex
	status    Status
	cancelled bool
	sched     *Scheduler
}

// Done is closed when the wait resolves or is cancelled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Status returns the final status once Done is closed; Polling while
// running or after cancellation.
func (p *Pending) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Cancelled reports whether the wait was abandoned before it resolved.
func (p *Pending) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancelled
}

// Cancel abandons the wait. No further Steps run after Cancel returns.
func (p *Pending) Cancel() {
	p.sched.mu.Lock()
	p.sched.remove(p)
	p.mu.Lock()
	if p.status == Polling {
		p.cancelled = true
	}
	p.mu.Unlock()
	p.sched.mu.Unlock()
	p.close()
}

func (p *Pending) close() {
	p.once.Do(func() { close(p.done) })
}

// Scheduler multiplexes cooperative waits.
type Scheduler struct {
	clock quartz.Clock
	mu    sync.Mutex
	tasks []*Pending
	wake  chan struct{}
}

// NewScheduler returns a scheduler using clock, or the real clock if nil.
func NewScheduler(clock quartz.Clock) *Scheduler {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Scheduler{clock: clock, wake: make(chan struct{}, 1)}
}

// Schedule registers a wait. It is stepped by Run.
func (s *Scheduler) Schedule(task Steppable) *Pending {
	p := &Pending{task: task, done: make(chan struct{}), sched: s}
	s.mu.Lock()
	s.tasks = append(s.tasks, p)
	s.mu.Unlock()
	s.notify()
	return p
}

// Len returns the number of unresolved waits.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) remove(p *Pending) {
	for i, t := range s.tasks {
		if t == p {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// Run steps due waits until ctx is done. Waits still pending when Run
// returns are cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.cancelAll()
	for {
		next, ok := s.stepDue()

		var timerC <-chan time.Time
		var timer *quartz.Timer
		if ok {
			timer = s.clock.NewTimer(max(next.Sub(s.clock.Now()), 0), "waitfor", "scheduler")
			timerC = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
		}
	}
}

// stepDue runs every due task once and returns the earliest next poll of
// the tasks that remain.
func (s *Scheduler) stepDue() (time.Time, bool) {
	now := s.clock.Now()
	s.mu.Lock()
	due := make([]*Pending, 0, len(s.tasks))
	for _, p := range s.tasks {
		if !p.task.NextPoll().After(now) {
			due = append(due, p)
		}
	}
	s.mu.Unlock()

	for _, p := range due {
		s.mu.Lock()
		if p.Cancelled() {
			s.mu.Unlock()
			continue
		}
		st := p.task.Step()
		if st != Polling {
			s.remove(p)
			p.mu.Lock()
			p.status = st
			p.mu.Unlock()
		}
		s.mu.Unlock()
		if st != Polling {
			p.close()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var next time.Time
	for i, p := range s.tasks {
		if at := p.task.NextPoll(); i == 0 || at.Before(next) {
			next = at
		}
	}
	return next, len(s.tasks) > 0
}

func (s *Scheduler) cancelAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	for _, p := range tasks {
		p.mu.Lock()
		p.cancelled = true
		p.mu.Unlock()
	}
	s.mu.Unlock()
	for _, p := range tasks {
		p.close()
	}
}
