package prisched

import "container/heap"

// Ensure alarmHeap implements [heap.Interface].
var _ heap.Interface = (*alarmHeap)(nil)

// Alarm puts threads to sleep until the clock reaches a deadline. It is
// driven by the timer interrupt: each tick wakes every thread whose deadline
// has passed, earliest deadline first and in arrival order among equal
// deadlines.
type Alarm struct {
	s        *Scheduler
	sleepers alarmHeap
}

// WaitUntil blocks the current thread for at least ticks clock ticks. The
// thread becomes ready on the first timer interrupt at or after the
// deadline. A non-positive ticks returns immediately. It panics with
// [ErrAlreadyWaiting] if the thread is already waiting elsewhere.
func (a *Alarm) WaitUntil(ticks int64) {
	if ticks <= 0 {
		return
	}

	g := a.s.intr.Disable()
	defer g.Restore()

	t := a.s.currentThread()
	assert(t.blockedOn == noQueue && !t.inAlarm, ErrAlreadyWaiting, "thread %d", t.id)

	a.s.seqNo++
	heap.Push(&a.sleepers, &sleeper{
		id:       t.id,
		deadline: a.s.timer.Now() + ticks,
		seqNo:    a.s.seqNo,
	})
	t.inAlarm = true

	a.s.sleep(t)
}

// OnTick readies every sleeping thread whose deadline is not after the
// current time. The timer calls it on each interrupt.
func (a *Alarm) OnTick() {
	g := a.s.intr.Disable()
	defer g.Restore()

	now := a.s.timer.Now()
	for a.sleepers.Len() > 0 && a.sleepers.items[0].deadline <= now {
		sl := heap.Pop(&a.sleepers).(*sleeper)
		t := a.s.threads[sl.id]
		t.inAlarm = false
		a.s.readyThread(t)
	}
}

// Len returns the number of sleeping threads.
func (a *Alarm) Len() int {
	g := a.s.intr.Disable()
	defer g.Restore()

	return a.sleepers.Len()
}

// sleeper is an entry of the alarm store.
type sleeper struct {
	id       ThreadID
	deadline int64
	seqNo    int64
}

// alarmHeap orders sleepers by deadline, then by arrival.
type alarmHeap struct {
	items []*sleeper
}

// Len returns the number of sleepers.
func (h *alarmHeap) Len() int {
	return len(h.items)
}

// Less orders sleepers by deadline, earliest first, then by arrival.
func (h *alarmHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.seqNo < b.seqNo
}

// Swap swaps the sleepers at indices i and j. It should not be called
// directly.
func (h *alarmHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

// Push adds a sleeper. It is used by the heap and should not be called
// directly.
func (h *alarmHeap) Push(x any) {
	h.items = append(h.items, x.(*sleeper))
}

// Pop removes the last sleeper. It is used by the heap and should not be
// called directly.
func (h *alarmHeap) Pop() any {
	old := h.items
	n := len(old)
	sl := old[n-1]
	old[n-1] = nil // avoid memory leak
	h.items = old[0 : n-1]
	return sl
}
