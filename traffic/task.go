// traffic/task.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package traffic

import (
	"iter"
	"time"
)

// Budget bounds how much work is done in a single update. Exhausted is
// called before each unit of work; it consumes the unit if it returns
// false.
type Budget interface {
	Exhausted() bool
}

// StepBudget allows a fixed number of units of work.
type StepBudget struct {
	Steps int
}

func (b *StepBudget) Exhausted() bool {
	if b.Steps <= 0 {
		return true
	}
	b.Steps--
	return false
}

// ClockBudget allows work until a deadline passes.
type ClockBudget struct {
	Deadline time.Time
	now      func() time.Time
}

// NewClockBudget returns a budget that expires d after the current time
// as given by now; time.Now is used if now is nil.
func NewClockBudget(d time.Duration, now func() time.Time) *ClockBudget {
	if now == nil {
		now = time.Now
	}
	return &ClockBudget{Deadline: now().Add(d), now: now}
}

func (b *ClockBudget) Exhausted() bool {
	return !b.now().Before(b.Deadline)
}

type unlimitedBudget struct{}

func (unlimitedBudget) Exhausted() bool { return false }

// Unlimited is a Budget that's never exhausted.
var Unlimited Budget = unlimitedBudget{}

// Task runs a resumable computation a step at a time. The sequence
// yields true after each step if there's more work to do; it's finished
// when it yields false or returns.
type Task struct {
	next func() (bool, bool)
	stop func()
	done bool
}

func NewTask(seq iter.Seq[bool]) *Task {
	next, stop := iter.Pull(seq)
	return &Task{next: next, stop: stop}
}

// Run steps the task until it finishes or the budget runs out. It
// returns true once the task has finished.
func (t *Task) Run(b Budget) bool {
	for !t.done {
		if b.Exhausted() {
			return false
		}
		if more, ok := t.next(); !ok || !more {
			t.Stop()
		}
	}
	return true
}

func (t *Task) Done() bool {
	return t.done
}

// Stop abandons the task; it's safe to call more than once.
func (t *Task) Stop() {
	if !t.done {
		t.done = true
		t.stop()
	}
}
