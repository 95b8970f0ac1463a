package machine

import "go.uber.org/atomic"

// Interrupt is the interrupt controller of a single simulated processor.
//
// The enabled flag belongs to the processor: it is read and written only by
// the goroutine currently holding the processor, and hand-offs between those
// goroutines order the accesses. Raise is the only method safe to call from
// elsewhere.
type Interrupt struct {
	enabled bool
	handler func()
	clock   func()

	pending atomic.Int64
	halted  atomic.Bool

	notifyCh chan struct{}
}

// NewInterrupt creates a new [Interrupt] with interrupts enabled.
func NewInterrupt() *Interrupt {
	return &Interrupt{
		enabled:  true,
		notifyCh: make(chan struct{}, 1),
	}
}

// Guard records the interrupt state in effect when [Interrupt.Disable] was
// called.
type Guard struct {
	intr  *Interrupt
	prior bool
}

// Disable disables interrupts and returns a [Guard] holding the previous
// state. Guards nest: restoring an inner guard leaves interrupts disabled.
func (i *Interrupt) Disable() Guard {
	if i.halted.Load() {
		return Guard{}
	}
	prior := i.enabled
	i.enabled = false
	return Guard{intr: i, prior: prior}
}

// Restore puts back the state captured by the guard. If that re-enables
// interrupts, the clock advances and any interrupt raised in the meantime is
// serviced before Restore returns.
func (g Guard) Restore() {
	if g.intr == nil || !g.prior || g.intr.halted.Load() {
		return
	}

	i := g.intr
	i.enabled = true
	if i.clock != nil {
		i.clock()
	}
	i.service()
}

// Enable unconditionally enables interrupts and services pending ones without
// advancing the clock. It is used when the processor starts a new context,
// such as a freshly dispatched thread or the idle loop, that has no guard of
// its own to restore.
func (i *Interrupt) Enable() {
	if i.halted.Load() {
		return
	}
	i.enabled = true
	i.service()
}

// Enabled reports whether interrupts are currently enabled.
func (i *Interrupt) Enabled() bool {
	return i.enabled
}

// SetHandler installs the function run on the processor for each raised
// interrupt. The handler runs with interrupts disabled.
func (i *Interrupt) SetHandler(h func()) {
	i.handler = h
}

// SetClock installs the function run each time a guard re-enables
// interrupts, before pending interrupts are serviced. A [Timer] uses it to
// let time pass while threads run.
func (i *Interrupt) SetClock(f func()) {
	i.clock = f
}

// Raise marks an interrupt as pending and wakes an idle processor. It may be
// called from any goroutine.
func (i *Interrupt) Raise() {
	i.pending.Inc()
	select {
	case i.notifyCh <- struct{}{}:
	default:
	}
}

// Pending returns the number of raised interrupts not yet serviced.
func (i *Interrupt) Pending() int64 {
	return i.pending.Load()
}

// Notify returns a channel that receives a value after an interrupt is
// raised. An idle processor waits on it.
func (i *Interrupt) Notify() <-chan struct{} {
	return i.notifyCh
}

// Halt stops the controller. Afterwards guards and Enable do nothing and no
// handler runs, which lets goroutines abandoned mid critical section unwind.
func (i *Interrupt) Halt() {
	i.halted.Store(true)
}

// Halted reports whether [Interrupt.Halt] has been called.
func (i *Interrupt) Halted() bool {
	return i.halted.Load()
}

func (i *Interrupt) service() {
	for i.pending.Load() > 0 {
		i.pending.Dec()
		if i.handler == nil {
			continue
		}

		i.enabled = false
		i.handler()
		i.enabled = true
	}
}
