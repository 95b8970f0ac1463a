package prisched

import "container/heap"

// QueueID indexes a [WaitQueue] in its scheduler.
type QueueID int

const noQueue QueueID = -1

// Ensure waitList implements [heap.Interface].
var _ heap.Interface = (*waitList)(nil)

// WaitQueue is an ordered set of threads waiting for one resource, together
// with the thread currently holding it.
//
// A donating queue (transferPriority set) passes the effective priority of
// its waiters on to its holder and selects waiters by effective priority. A
// non-donating queue selects by base priority. Ties go to the thread that
// has waited longest.
type WaitQueue struct {
	s                *Scheduler
	id               QueueID
	transferPriority bool

	holder  ThreadID
	waiters waitList
}

// NewWaitQueue creates a new [WaitQueue] with no holder and no waiters.
func (s *Scheduler) NewWaitQueue(transferPriority bool) *WaitQueue {
	g := s.intr.Disable()
	defer g.Restore()

	return s.newWaitQueue(transferPriority)
}

func (s *Scheduler) newWaitQueue(transferPriority bool) *WaitQueue {
	q := &WaitQueue{
		s:                s,
		id:               QueueID(len(s.queues)),
		transferPriority: transferPriority,
		holder:           noThread,
	}
	s.queues = append(s.queues, q)
	return q
}

// ID returns the index of the queue in its scheduler.
func (q *WaitQueue) ID() QueueID {
	return q.id
}

// TransferPriority reports whether the queue donates priority to its holder.
func (q *WaitQueue) TransferPriority() bool {
	return q.transferPriority
}

// Len returns the number of waiting threads.
func (q *WaitQueue) Len() int {
	g := q.s.intr.Disable()
	defer g.Restore()

	return q.waiters.Len()
}

// Holder returns the thread holding the queue, or nil.
func (q *WaitQueue) Holder() *Thread {
	g := q.s.intr.Disable()
	defer g.Restore()

	return q.s.thread(q.holder)
}

// WaitForAccess appends t to the waiters. It panics with [ErrAlreadyWaiting]
// if t is already waiting on a queue or the alarm, or holds this queue.
func (q *WaitQueue) WaitForAccess(t *Thread) {
	g := q.s.intr.Disable()
	defer g.Restore()

	q.waitForAccess(t)
}

func (q *WaitQueue) waitForAccess(t *Thread) {
	assert(t.blockedOn == noQueue && !t.inAlarm, ErrAlreadyWaiting, "thread %d", t.id)
	assert(q.holder != t.id, ErrAlreadyWaiting, "thread %d holds queue %d", t.id, q.id)

	q.s.seqNo++
	q.waiters.add(t.id, q.s.seqNo)
	t.blockedOn = q.id
}

// Acquire installs t as the holder of the queue regardless of its current
// state. It is used when the resource is known to be free.
func (q *WaitQueue) Acquire(t *Thread) {
	g := q.s.intr.Disable()
	defer g.Restore()

	q.acquire(t)
}

func (q *WaitQueue) acquire(t *Thread) {
	if q.holder == t.id {
		return
	}
	if prev := q.s.thread(q.holder); prev != nil {
		prev.disown(q.id)
	}
	if q.waiters.remove(t.id) {
		t.blockedOn = noQueue
	}

	q.holder = t.id
	t.owned = append(t.owned, q.id)
}

// NextThread hands the queue from its holder to the waiter with the highest
// selection priority and returns it. If nobody is waiting the queue is left
// without a holder and NextThread returns nil.
func (q *WaitQueue) NextThread() *Thread {
	g := q.s.intr.Disable()
	defer g.Restore()

	return q.nextThread()
}

func (q *WaitQueue) nextThread() *Thread {
	if prev := q.s.thread(q.holder); prev != nil {
		prev.disown(q.id)
	}
	q.holder = noThread

	if q.waiters.Len() == 0 {
		return nil
	}

	var next ThreadID
	if q.transferPriority {
		d := q.s.donation()
		next = q.waiters.popBest(func(id ThreadID) Priority {
			return d.effective(q.s.threads[id])
		})
	} else {
		next = q.waiters.popBest(func(id ThreadID) Priority {
			return q.s.threads[id].priority
		})
	}

	t := q.s.threads[next]
	q.holder = t.id
	t.owned = append(t.owned, q.id)
	return t
}

// nextWaiter removes the longest-waiting thread without any change of
// ownership. It returns nil if the queue is empty.
func (q *WaitQueue) nextWaiter() *Thread {
	if q.waiters.Len() == 0 {
		return nil
	}
	return q.s.threads[q.waiters.popOldest()]
}

// waiter is an entry of a waitList.
type waiter struct {
	id    ThreadID
	key   Priority
	index int

	// The seqNo breaks ties between waiters with the same key. It is taken
	// from the scheduler's counter when the waiter is added and is immutable.
	seqNo int64
}

// waitList is a heap of waiters ordered by key, highest first, then by
// sequence number. Keys are recomputed before every selection because
// effective priorities change without the list being told.
type waitList struct {
	items []*waiter
}

func (l *waitList) add(id ThreadID, seqNo int64) {
	heap.Push(l, &waiter{id: id, seqNo: seqNo, index: -1})
}

func (l *waitList) contains(id ThreadID) bool {
	return l.find(id) != nil
}

func (l *waitList) find(id ThreadID) *waiter {
	for _, w := range l.items {
		if w.id == id {
			return w
		}
	}
	return nil
}

func (l *waitList) remove(id ThreadID) bool {
	w := l.find(id)
	if w == nil {
		return false
	}
	heap.Remove(l, w.index)
	return true
}

// popBest refreshes every key and removes the waiter with the highest key.
func (l *waitList) popBest(key func(ThreadID) Priority) ThreadID {
	for _, w := range l.items {
		w.key = key(w.id)
	}
	heap.Init(l)
	return heap.Pop(l).(*waiter).id
}

// popOldest removes the waiter that was added first.
func (l *waitList) popOldest() ThreadID {
	oldest := l.items[0]
	for _, w := range l.items[1:] {
		if w.seqNo < oldest.seqNo {
			oldest = w
		}
	}
	heap.Remove(l, oldest.index)
	return oldest.id
}

// Len returns the number of waiters.
func (l *waitList) Len() int {
	return len(l.items)
}

// Less orders waiters by key, highest first, and then by arrival.
func (l *waitList) Less(i, j int) bool {
	a, b := l.items[i], l.items[j]
	if a.key != b.key {
		return a.key > b.key
	}
	return a.seqNo < b.seqNo
}

// Swap swaps the waiters at indices i and j. It should not be called
// directly.
func (l *waitList) Swap(i, j int) {
	l.items[i], l.items[j] = l.items[j], l.items[i]
	l.items[i].index = i
	l.items[j].index = j
}

// Push adds a waiter. It is used by the heap and should not be called
// directly.
func (l *waitList) Push(x any) {
	w := x.(*waiter)
	w.index = len(l.items)
	l.items = append(l.items, w)
}

// Pop removes the last waiter. It is used by the heap and should not be
// called directly.
func (l *waitList) Pop() any {
	old := l.items
	n := len(old)
	w := old[n-1]
	old[n-1] = nil // avoid memory leak
	w.index = -1   // for safety
	l.items = old[0 : n-1]
	return w
}
