package prisched

// donation computes effective priorities over the ownership graph: a thread
// owns queues, and each donating queue it owns has waiters that may in turn
// own queues. Results are memoised for the lifetime of one donation value
// only, so every query observes the graph as it is now.
type donation struct {
	s      *Scheduler
	memo   []Priority
	onPath []bool
}

func (s *Scheduler) donation() *donation {
	d := &donation{
		s:      s,
		memo:   make([]Priority, len(s.threads)),
		onPath: make([]bool, len(s.threads)),
	}
	for i := range d.memo {
		d.memo[i] = -1
	}
	return d
}

// effective returns the priority of t raised to the effective priority of
// every thread waiting on a donating queue t holds. A thread reached again
// while it is still being computed means the graph has a cycle; that is a
// caller bug and panics with ErrOwnershipCycle.
func (d *donation) effective(t *Thread) Priority {
	if p := d.memo[t.id]; p >= 0 {
		return p
	}
	assert(!d.onPath[t.id], ErrOwnershipCycle, "thread %d", t.id)

	d.onPath[t.id] = true
	p := t.priority
	for _, qid := range t.owned {
		q := d.s.queues[qid]
		if !q.transferPriority {
			continue
		}
		for _, w := range q.waiters.items {
			if e := d.effective(d.s.threads[w.id]); e > p {
				p = e
			}
		}
	}
	d.onPath[t.id] = false

	d.memo[t.id] = p
	t.effective = p
	return p
}
