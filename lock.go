package prisched

// Lock is a mutual exclusion lock that donates the priority of its waiters to
// its holder. Release hands the lock directly to the waiter with the highest
// effective priority, which returns from Acquire already holding it.
type Lock struct {
	s     *Scheduler
	queue *WaitQueue
}

// NewLock creates a new, free [Lock].
func (s *Scheduler) NewLock() *Lock {
	return &Lock{
		s:     s,
		queue: s.NewWaitQueue(true),
	}
}

// Acquire blocks until the current thread holds the lock. It panics with
// [ErrRecursiveAcquire] if the thread already holds it.
func (l *Lock) Acquire() {
	g := l.s.intr.Disable()
	defer g.Restore()

	l.acquire()
}

func (l *Lock) acquire() {
	t := l.s.currentThread()
	assert(l.queue.holder != t.id, ErrRecursiveAcquire, "thread %d", t.id)

	if l.queue.holder == noThread {
		l.queue.acquire(t)
		return
	}

	l.queue.waitForAccess(t)
	l.s.sleep(t)
}

// Release releases the lock, handing it to the next waiter if there is one.
// It panics with [ErrNotHolder] if the current thread does not hold the lock.
func (l *Lock) Release() {
	g := l.s.intr.Disable()
	defer g.Restore()

	l.release()
}

func (l *Lock) release() {
	t := l.s.currentThread()
	assert(l.queue.holder == t.id, ErrNotHolder, "thread %d", t.id)

	if next := l.queue.nextThread(); next != nil {
		l.s.readyThread(next)
	}
}

// IsHeldByCurrentThread reports whether the running thread holds the lock.
func (l *Lock) IsHeldByCurrentThread() bool {
	g := l.s.intr.Disable()
	defer g.Restore()

	return l.s.current != nil && l.queue.holder == l.s.current.id
}

// Holder returns the thread holding the lock, or nil.
func (l *Lock) Holder() *Thread {
	return l.queue.Holder()
}
