package prisched

import (
	"errors"
	"fmt"
)

var (
	// ErrParsePriority is returned by [ParsePriority] for a value that does
	// not name a valid priority. It describes bad input, not a caller bug.
	ErrParsePriority = errors.New("prisched: invalid priority value")

	// ErrPrecondition is wrapped by every error describing a caller bug. Such
	// errors are raised by panicking, never returned from an operation.
	ErrPrecondition = errors.New("prisched: precondition violated")

	// ErrNotHolder is raised when a thread releases a lock, or uses a
	// condition variable, without holding the lock.
	ErrNotHolder = fmt.Errorf("%w: lock not held by current thread", ErrPrecondition)

	// ErrRecursiveAcquire is raised when a thread acquires a lock it holds.
	ErrRecursiveAcquire = fmt.Errorf("%w: lock already held by current thread", ErrPrecondition)

	// ErrAlreadyWaiting is raised when a thread that is already waiting on a
	// queue or sleeping on the alarm is placed somewhere else.
	ErrAlreadyWaiting = fmt.Errorf("%w: thread already waiting", ErrPrecondition)

	// ErrNotPlaced is raised when a thread blocks without first being placed
	// on exactly one wait queue or the alarm.
	ErrNotPlaced = fmt.Errorf("%w: thread not placed on a wait queue or alarm", ErrPrecondition)

	// ErrInvalidState is raised by a lifecycle transition that does not apply
	// to the thread's current state.
	ErrInvalidState = fmt.Errorf("%w: invalid thread state", ErrPrecondition)

	// ErrInvalidPriority is raised when a priority outside
	// [PriorityMinimum, PriorityMaximum] is set.
	ErrInvalidPriority = fmt.Errorf("%w: invalid priority", ErrPrecondition)

	// ErrOwnershipCycle is raised when a thread waits, directly or through
	// other threads, on a queue it owns.
	ErrOwnershipCycle = fmt.Errorf("%w: cycle in queue ownership", ErrPrecondition)

	// ErrNoCurrentThread is raised when an operation that acts on the running
	// thread is called while no thread holds the processor.
	ErrNoCurrentThread = fmt.Errorf("%w: no current thread", ErrPrecondition)

	// ErrResourcesHeld is raised when a thread finishes while holding a lock.
	ErrResourcesHeld = fmt.Errorf("%w: thread finished holding resources", ErrPrecondition)
)

// assert panics with an error wrapping err if cond is false.
func assert(cond bool, err error, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
}
