// Package prisched implements a cooperative, priority-based thread scheduler
// for a simulated single processor, with transitive priority donation.
//
// Threads are goroutines, but only one of them holds the processor at a time
// and control changes hands only when the running thread yields, blocks on a
// [Lock], [Condition] or [Alarm], joins another thread, or finishes. The ready
// thread with the highest effective priority runs next; threads of equal
// priority run in the order they became ready.
//
// A thread's effective priority is its own priority raised to that of any
// thread waiting, directly or through a chain of locks, on a lock it holds.
// It is computed from the ownership graph on every read, so lowering a base
// priority or releasing a lock withdraws donated priority immediately.
//
// Condition variables follow Mesa semantics: a woken thread re-acquires the
// lock but must re-test its predicate, typically in a loop.
//
//	l.Acquire()
//	for !ready {
//		c.Sleep()
//	}
//	l.Release()
//
// Misuse, such as releasing a lock the caller does not hold, is a caller bug.
// It panics with an error wrapping [ErrPrecondition], and [Scheduler.Run]
// aborts the machine and returns that error.
package prisched
