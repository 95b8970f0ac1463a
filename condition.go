package prisched

// Condition is a condition variable with Mesa semantics, bound to a [Lock].
// The lock must be held for every operation.
//
// Waking a thread only makes it ready; by the time it has re-acquired the
// lock the state it waited for may have changed again. Callers re-test their
// predicate after every Sleep:
//
//	l.Acquire()
//	for !predicate() {
//		c.Sleep()
//	}
//	// predicate holds and l is held.
//	l.Release()
//
// Waiters are woken strictly in the order they went to sleep, regardless of
// priority, and do not donate priority to anyone.
type Condition struct {
	lock  *Lock
	queue *WaitQueue
}

// NewCondition creates a new [Condition] bound to l.
func (s *Scheduler) NewCondition(l *Lock) *Condition {
	return &Condition{
		lock:  l,
		queue: s.NewWaitQueue(false),
	}
}

// Sleep atomically releases the lock and blocks the current thread until it
// is woken, then re-acquires the lock before returning. It panics with
// [ErrNotHolder] if the current thread does not hold the lock.
func (c *Condition) Sleep() {
	s := c.lock.s

	g := s.intr.Disable()
	defer g.Restore()

	t := c.holder()
	c.lock.release()
	c.queue.waitForAccess(t)
	s.sleep(t)

	c.lock.acquire()
}

// Wake readies the thread that has been sleeping longest, if any. It panics
// with [ErrNotHolder] if the current thread does not hold the lock.
func (c *Condition) Wake() {
	g := c.lock.s.intr.Disable()
	defer g.Restore()

	c.holder()
	c.wake()
}

// WakeAll readies every sleeping thread in the order they went to sleep. It
// panics with [ErrNotHolder] if the current thread does not hold the lock.
func (c *Condition) WakeAll() {
	g := c.lock.s.intr.Disable()
	defer g.Restore()

	c.holder()
	for c.wake() {
	}
}

// Len returns the number of sleeping threads.
func (c *Condition) Len() int {
	return c.queue.Len()
}

func (c *Condition) wake() bool {
	t := c.queue.nextWaiter()
	if t == nil {
		return false
	}
	c.lock.s.readyThread(t)
	return true
}

// holder returns the current thread after checking that it holds the lock.
func (c *Condition) holder() *Thread {
	t := c.lock.s.currentThread()
	assert(c.lock.queue.holder == t.id, ErrNotHolder, "thread %d", t.id)
	return t
}
