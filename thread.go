package prisched

import (
	"runtime"
	"slices"
)

// ThreadID indexes a [Thread] in its scheduler.
type ThreadID int

const noThread ThreadID = -1

// State is the lifecycle state of a [Thread].
type State int

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateBlocked
	StateFinished
)

var strStateMap = map[State]string{
	StateNew:      "new",
	StateReady:    "ready",
	StateRunning:  "running",
	StateBlocked:  "blocked",
	StateFinished: "finished",
}

func (s State) String() string {
	return strStateMap[s]
}

// Thread is the scheduling record of a simulated thread, backed by a
// goroutine once forked.
type Thread struct {
	s  *Scheduler
	id ThreadID
	fn func()

	priority Priority
	state    State

	// The effective priority last computed for the thread. It is recorded for
	// observers only; scheduling decisions always recompute it.
	effective Priority

	owned     []QueueID // queues held, in acquisition order.
	blockedOn QueueID   // queue waited on, or noQueue.
	inAlarm   bool      // sleeping on the alarm.

	// Threads joining this one wait here. The thread holds its own join queue
	// until it finishes, so joiners donate priority to it.
	join *WaitQueue

	runCh chan struct{} // receives the processor.
}

// NewThread creates a new [Thread] in [StateNew] that will run fn once
// forked. The thread takes no part in scheduling until [Thread.Fork].
func (s *Scheduler) NewThread(fn func(), opts ...ThreadOption) *Thread {
	g := s.intr.Disable()
	defer g.Restore()

	t := &Thread{
		s:         s,
		id:        ThreadID(len(s.threads)),
		fn:        fn,
		priority:  PriorityDefault,
		effective: PriorityDefault,
		state:     StateNew,
		blockedOn: noQueue,
		runCh:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.effective = t.priority
	s.threads = append(s.threads, t)

	t.join = s.newWaitQueue(true)
	t.join.acquire(t)

	return t
}

// Spawn creates a new [Thread] running fn and makes it ready.
func (s *Scheduler) Spawn(fn func(), opts ...ThreadOption) *Thread {
	t := s.NewThread(fn, opts...)
	t.Fork()
	return t
}

// Fork makes a new thread ready to run. It panics with [ErrInvalidState] if
// the thread has already been forked.
func (t *Thread) Fork() {
	g := t.s.intr.Disable()
	defer g.Restore()

	assert(t.state == StateNew, ErrInvalidState, "fork thread %d in state %s", t.id, t.state)
	assert(t.fn != nil, ErrInvalidState, "fork thread %d without a function", t.id)

	t.s.live++
	go t.s.start(t)
	t.s.readyThread(t)
}

// ID returns the index of the thread in its scheduler.
func (t *Thread) ID() ThreadID {
	return t.id
}

// State returns the lifecycle state of the thread.
func (t *Thread) State() State {
	g := t.s.intr.Disable()
	defer g.Restore()

	return t.state
}

// Priority returns the base priority of the thread.
func (t *Thread) Priority() Priority {
	g := t.s.intr.Disable()
	defer g.Restore()

	return t.priority
}

// SetPriority sets the base priority of the thread. The effective priority
// follows on its next computation. It panics with [ErrInvalidPriority] if p
// is out of range.
func (t *Thread) SetPriority(p Priority) {
	assert(p.IsValid(), ErrInvalidPriority, "%d", int(p))

	g := t.s.intr.Disable()
	defer g.Restore()

	t.priority = p
}

// EffectivePriority returns the priority of the thread including everything
// donated to it through the queues it holds.
func (t *Thread) EffectivePriority() Priority {
	g := t.s.intr.Disable()
	defer g.Restore()

	return t.s.donation().effective(t)
}

// Join blocks the current thread until t has finished. Joining a finished
// thread returns immediately. It panics with [ErrInvalidState] if a thread
// joins itself.
func (t *Thread) Join() {
	g := t.s.intr.Disable()
	defer g.Restore()

	cur := t.s.currentThread()
	assert(cur != t, ErrInvalidState, "thread %d joins itself", t.id)

	if t.state == StateFinished {
		return
	}
	t.join.waitForAccess(cur)
	t.s.sleep(cur)
}

// disown removes q from the queues held by the thread.
func (t *Thread) disown(q QueueID) {
	if i := slices.Index(t.owned, q); i >= 0 {
		t.owned = slices.Delete(t.owned, i, i+1)
	}
}

// start is the body of the goroutine backing t. The thread finishes once t.fn
// has returned or called [Scheduler.Finish] and its deferred calls have run.
func (s *Scheduler) start(t *Thread) {
	defer func() {
		if r := recover(); r != nil {
			s.abort(t, r)
			return
		}
		s.exit(t)
	}()

	s.park(t)

	// A thread is always dispatched inside a critical section, but a new one
	// has no guard to restore.
	s.intr.Enable()

	t.fn()
}

// exit finishes t on behalf of start.
func (s *Scheduler) exit(t *Thread) {
	if s.Halted() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.abort(t, r)
		}
	}()
	s.finish(t)
}

// Yield moves the current thread to the back of its priority class in the
// ready queue and runs the best ready thread, which may be the caller.
func (s *Scheduler) Yield() {
	g := s.intr.Disable()
	defer g.Restore()

	cur := s.currentThread()
	s.readyThread(cur)
	s.runNextThread(cur)
}

// Sleep blocks the current thread. The caller must already have placed it on
// exactly one wait queue or the alarm; otherwise Sleep panics with
// [ErrNotPlaced]. The thread runs again once something readies it.
func (s *Scheduler) Sleep() {
	g := s.intr.Disable()
	defer g.Restore()

	s.sleep(s.currentThread())
}

func (s *Scheduler) sleep(t *Thread) {
	placed := t.blockedOn != noQueue
	assert(placed != t.inAlarm, ErrNotPlaced, "thread %d", t.id)

	t.state = StateBlocked
	s.onBlock(t)
	s.runNextThread(t)
}

// Ready moves a blocked thread to the ready queue. The thread must already
// have been removed from whatever queue or alarm it was placed on; otherwise
// Ready panics with [ErrInvalidState].
func (s *Scheduler) Ready(t *Thread) {
	g := s.intr.Disable()
	defer g.Restore()

	assert(t.state == StateBlocked, ErrInvalidState, "ready thread %d in state %s", t.id, t.state)
	assert(!t.inAlarm, ErrInvalidState, "ready thread %d sleeping on alarm", t.id)
	if t.blockedOn != noQueue {
		q := s.queues[t.blockedOn]
		assert(!q.waiters.contains(t.id), ErrInvalidState, "ready thread %d still waiting on queue %d", t.id, q.id)
	}

	s.readyThread(t)
}

func (s *Scheduler) readyThread(t *Thread) {
	t.state = StateReady
	t.blockedOn = noQueue

	s.seqNo++
	s.ready.add(t.id, s.seqNo)
	s.onReady(t)
}

// Finish ends the current thread and does not return. The thread's deferred
// calls run first, still on the processor, so a deferred Release hands over
// the lock before the next thread runs. The thread then panics with
// [ErrResourcesHeld] if it still holds a lock.
func (s *Scheduler) Finish() {
	g := s.intr.Disable()
	defer g.Restore()

	s.currentThread()
	runtime.Goexit()
}

// finish retires t, wakes its joiners and gives the processor away for good.
func (s *Scheduler) finish(t *Thread) {
	s.intr.Disable()

	assert(slices.Equal(t.owned, []QueueID{t.join.id}), ErrResourcesHeld, "thread %d holds %v", t.id, t.owned)

	t.state = StateFinished
	s.live--

	// Hand the join queue to each joiner in turn; the last hand-off leaves it
	// without a holder.
	for j := t.join.nextThread(); j != nil; j = t.join.nextThread() {
		s.readyThread(j)
	}

	s.onFinish(t)
	s.runNextThread(t)
}
