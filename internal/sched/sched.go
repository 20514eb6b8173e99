// Package sched runs a fixed, ordered set of periodic tasks on a single
// goroutine.
//
// A pass visits every task in declaration order and runs those whose interval
// has elapsed. Tasks never run concurrently, so they may share plain data
// without locks. The first task error or panic ends the loop and is returned
// as a *Fault; there is no per-task retry.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"
)

// DefaultQuantum is the suspension between two passes.
const DefaultQuantum = 10 * time.Millisecond

// Task is one cooperative unit of work.
type Task struct {
	// Name identifies the task in faults and logs.
	Name string

	// Interval is the minimum time between two runs. Zero runs every pass.
	Interval time.Duration

	// Init runs once, in declaration order, before the first pass. Optional.
	Init func(now time.Time) error

	// Run performs one iteration. It must not block for long.
	Run func(now time.Time) error
}

// Fault is an unhandled task failure.
type Fault struct {
	Task  string
	Err   error
	Panic bool
	Stack []byte
}

func (f *Fault) Error() string {
	if f.Panic {
		return fmt.Sprintf("task %s panicked: %v", f.Task, f.Err)
	}
	return fmt.Sprintf("task %s: %v", f.Task, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// PanicError wraps a recovered panic value that was not an error.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("%v", p.Value) }

// Scheduler owns the task list and the pass loop.
type Scheduler struct {
	tasks   []Task
	lastRun []time.Time
	ran     []bool
	started bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Quantum is the pass period used by Run when Tick is nil.
	Quantum time.Duration

	// Tick, if set, drives passes instead of an internal ticker. Tests use it.
	Tick <-chan time.Time

	passes uint64
}

// New returns a scheduler for tasks, run in the given order.
func New(tasks ...Task) *Scheduler {
	return &Scheduler{
		tasks:   tasks,
		lastRun: make([]time.Time, len(tasks)),
		ran:     make([]bool, len(tasks)),
		Now:     time.Now,
		Quantum: DefaultQuantum,
	}
}

// Tasks returns the task names in execution order.
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.Name
	}
	return names
}

// Passes returns how many passes have completed.
func (s *Scheduler) Passes() uint64 {
	return s.passes
}

// Start runs every Init hook in order. It is called by Run; tests that
// drive passes with Step call it directly.
func (s *Scheduler) Start(now time.Time) error {
	if s.started {
		return nil
	}
	s.started = true
	for _, t := range s.tasks {
		if t.Init == nil {
			continue
		}
		if err := s.call(t.Name, t.Init, now); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one pass at the given time.
func (s *Scheduler) Step(now time.Time) error {
	for i, t := range s.tasks {
		if s.ran[i] && t.Interval > 0 && now.Sub(s.lastRun[i]) < t.Interval {
			continue
		}
		s.ran[i] = true
		s.lastRun[i] = now
		if err := s.call(t.Name, t.Run, now); err != nil {
			return err
		}
	}
	s.passes++
	return nil
}

// Run starts the tasks and loops until a task faults or ctx is done.
// A task failure is returned as *Fault; cancellation returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(s.Now()); err != nil {
		return err
	}

	tick := s.Tick
	if tick == nil {
		q := s.Quantum
		if q <= 0 {
			q = DefaultQuantum
		}
		ticker := time.NewTicker(q)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Printf("sched: running %d tasks %v", len(s.tasks), s.Tasks())

	for {
		if err := s.Step(s.Now()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-tick:
			if !ok {
				return errors.New("sched: tick channel closed")
			}
		}
	}
}

func (s *Scheduler) call(name string, fn func(time.Time) error, now time.Time) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = &PanicError{Value: r}
			}
			fault = &Fault{Task: name, Err: err, Panic: true, Stack: debug.Stack()}
		}
	}()
	if err := fn(now); err != nil {
		return &Fault{Task: name, Err: err}
	}
	return nil
}
