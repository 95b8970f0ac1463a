package prisched

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync"

	"github.com/tomasbasham/prisched/machine"
)

// Scheduler runs simulated threads on a single simulated processor. It
// supports the following operations:
//
//   - Spawn, yield, sleep, ready and finish threads
//   - Locks with priority donation and condition variables
//   - Sleeping on an alarm until a clock deadline
//   - Reading and changing base and effective priorities
//
// All scheduler state is owned by the processor: it is only touched by the
// running thread, or by the goroutine calling [Scheduler.Run] while no thread
// runs. Before Run is called, the goroutine creating the scheduler plays that
// part and may spawn threads and build locks.
type Scheduler struct {
	intr    *machine.Interrupt
	timer   *machine.Timer
	metrics MetricsHook

	// Arenas. Threads and queues refer to each other by index.
	threads []*Thread
	queues  []*WaitQueue

	ready   waitList
	alarm   *Alarm
	current *Thread
	live    int   // forked threads not yet finished.
	seqNo   int64 // orders insertions into every queue.

	idleCh   chan struct{}
	haltCh   chan struct{}
	haltOnce sync.Once
	err      error
}

// New creates a new [Scheduler] with the given options.
func New(opts ...Option) *Scheduler {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	timer := o.Timer
	if timer == nil {
		timer = machine.NewTimer(machine.NewInterrupt())
	}

	s := &Scheduler{
		intr:    timer.Interrupt(),
		timer:   timer,
		metrics: o.Metrics,
		idleCh:  make(chan struct{}, 1),
		haltCh:  make(chan struct{}),
	}

	s.alarm = &Alarm{s: s}
	timer.SetInterruptHandler(s.alarm.OnTick)

	return s
}

// Alarm returns the alarm driven by the scheduler's timer.
func (s *Scheduler) Alarm() *Alarm {
	return s.alarm
}

// Now returns the current value of the timer's clock.
func (s *Scheduler) Now() int64 {
	return s.timer.Now()
}

// Current returns the running thread, or nil if the processor is idle.
func (s *Scheduler) Current() *Thread {
	return s.current
}

// Threads returns an iterator over every thread created by the scheduler, in
// creation order.
func (s *Scheduler) Threads() iter.Seq[*Thread] {
	return func(yield func(*Thread) bool) {
		for _, t := range s.threads {
			if !yield(t) {
				return
			}
		}
	}
}

// Run spawns main, if not nil, and runs threads until all of them have
// finished. It returns nil once they have, ctx.Err() if ctx is done first,
// and the panic value as an error if a thread panics. A precondition
// violation therefore surfaces as an error wrapping [ErrPrecondition]. After
// an abort the scheduler is halted and every thread goroutine exits.
func (s *Scheduler) Run(ctx context.Context, main func()) error {
	select {
	case <-s.haltCh:
		return s.err
	default:
	}

	if main != nil {
		s.Spawn(main)
	}

	for {
		// The last thread to run left interrupts disabled. Re-enabling them
		// here services whatever was raised without letting time pass, so the
		// clock only moves on an idle processor when nothing can run.
		s.intr.Enable()
		s.intr.Disable()

		if next := s.nextReady(); next != nil {
			s.switchTo(next)
			if err := s.wait(ctx, s.idleCh); err != nil {
				return err
			}
			continue
		}

		switch {
		case s.live == 0:
			s.intr.Enable()
			return nil
		case s.alarm.sleepers.Len() > 0:
			// Nothing can run before the next timer interrupt, so advance the
			// clock to it.
			s.timer.Tick()
		default:
			if err := s.wait(ctx, s.intr.Notify()); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-s.haltCh:
		return s.err
	case <-ctx.Done():
		s.halt(ctx.Err())
		return s.err
	}
}

// abort halts the machine after thread t panicked with r.
func (s *Scheduler) abort(t *Thread, r any) {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("prisched: thread %d panicked: %v", t.id, r)
	}
	s.halt(err)
}

func (s *Scheduler) halt(err error) {
	s.haltOnce.Do(func() {
		s.err = err
		s.intr.Halt()
		close(s.haltCh)
	})
}

// Halted reports whether the scheduler has been aborted.
func (s *Scheduler) Halted() bool {
	select {
	case <-s.haltCh:
		return true
	default:
		return false
	}
}

// Err returns the error that halted the scheduler, or nil.
func (s *Scheduler) Err() error {
	select {
	case <-s.haltCh:
		return s.err
	default:
		return nil
	}
}

// currentThread returns the running thread and panics with
// ErrNoCurrentThread if there is none.
func (s *Scheduler) currentThread() *Thread {
	assert(s.current != nil, ErrNoCurrentThread, "processor idle")
	return s.current
}

func (s *Scheduler) thread(id ThreadID) *Thread {
	if id == noThread {
		return nil
	}
	return s.threads[id]
}

// nextReady removes and returns the ready thread with the highest effective
// priority, or nil.
func (s *Scheduler) nextReady() *Thread {
	if s.ready.Len() == 0 {
		return nil
	}

	d := s.donation()
	id := s.ready.popBest(func(id ThreadID) Priority {
		return d.effective(s.threads[id])
	})
	return s.threads[id]
}

// switchTo hands the processor to next. Interrupts must be disabled; next
// resumes inside its own critical section and restores it.
func (s *Scheduler) switchTo(next *Thread) {
	next.state = StateRunning
	s.current = next
	s.onRun(next)
	next.runCh <- struct{}{}
}

// runNextThread gives the processor to the best ready thread after cur has
// left the running state, and parks cur until it is dispatched again. If no
// thread is ready the processor goes idle. Interrupts must be disabled.
func (s *Scheduler) runNextThread(cur *Thread) {
	if s.Halted() {
		runtime.Goexit()
	}

	next := s.nextReady()
	if next == cur {
		cur.state = StateRunning
		return
	}

	finished := cur.state == StateFinished
	if next == nil {
		s.current = nil
		select {
		case s.idleCh <- struct{}{}:
		default:
		}
	} else {
		s.switchTo(next)
	}

	if finished {
		return
	}
	s.park(cur)
}

// park blocks the goroutine of t until t is dispatched. If the scheduler
// halts instead, the goroutine exits.
func (s *Scheduler) park(t *Thread) {
	select {
	case <-t.runCh:
	case <-s.haltCh:
		runtime.Goexit()
	}
}

// Priority returns the base priority of the current thread.
func (s *Scheduler) Priority() Priority {
	return s.currentThread().Priority()
}

// SetPriority sets the base priority of the current thread. It panics with
// [ErrInvalidPriority] if p is out of range.
func (s *Scheduler) SetPriority(p Priority) {
	s.currentThread().SetPriority(p)
}

// EffectivePriority returns the effective priority of the current thread.
func (s *Scheduler) EffectivePriority() Priority {
	return s.currentThread().EffectivePriority()
}

// IncreasePriority raises the base priority of the current thread by one. It
// returns false, leaving the priority unchanged, at [PriorityMaximum].
func (s *Scheduler) IncreasePriority() bool {
	return s.adjustPriority(1)
}

// DecreasePriority lowers the base priority of the current thread by one. It
// returns false, leaving the priority unchanged, at [PriorityMinimum].
func (s *Scheduler) DecreasePriority() bool {
	return s.adjustPriority(-1)
}

func (s *Scheduler) adjustPriority(delta Priority) bool {
	g := s.intr.Disable()
	defer g.Restore()

	t := s.currentThread()
	p := t.priority + delta
	if !p.IsValid() {
		return false
	}
	t.priority = p
	return true
}

// IsPrecondition reports whether err describes a caller bug.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}
