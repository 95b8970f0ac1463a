package machine

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

const (
	// DefaultPeriod is the number of clock ticks between timer interrupts.
	DefaultPeriod = 1

	// DefaultStep is the number of clock ticks that pass each time a running
	// thread re-enables interrupts.
	DefaultStep = 1
)

// Timer is a monotonic tick counter that raises an interrupt every period.
//
// The clock moves in two ways. Running threads advance it by a step each time
// they leave a critical section, and an interrupt is raised whenever that
// crosses a multiple of the period. Devices and the idle processor call
// [Timer.Tick] to jump straight to the next multiple.
type Timer struct {
	intr   *Interrupt
	now    atomic.Int64
	period int64
	step   int64
}

// TimerOption is a function that configures a [Timer].
type TimerOption func(*Timer)

// WithPeriod sets the number of ticks between timer interrupts.
// Non-positive values are ignored.
func WithPeriod(ticks int64) TimerOption {
	return func(t *Timer) {
		if ticks > 0 {
			t.period = ticks
		}
	}
}

// WithStep sets the number of ticks that pass each time a running thread
// re-enables interrupts. Zero leaves the clock to Tick alone. Negative values
// are ignored.
func WithStep(ticks int64) TimerOption {
	return func(t *Timer) {
		if ticks >= 0 {
			t.step = ticks
		}
	}
}

// WithStart sets the initial value of the clock.
func WithStart(ticks int64) TimerOption {
	return func(t *Timer) {
		t.now.Store(ticks)
	}
}

// NewTimer creates a new [Timer] raising interrupts on intr and installs it
// as the controller's clock.
func NewTimer(intr *Interrupt, opts ...TimerOption) *Timer {
	t := &Timer{
		intr:   intr,
		period: DefaultPeriod,
		step:   DefaultStep,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.step > 0 {
		intr.SetClock(func() {
			t.Advance(t.step)
		})
	}
	return t
}

// Interrupt returns the controller the timer raises interrupts on.
func (t *Timer) Interrupt() *Interrupt {
	return t.intr
}

// Now returns the current value of the clock in ticks.
func (t *Timer) Now() int64 {
	return t.now.Load()
}

// Period returns the number of ticks between interrupts.
func (t *Timer) Period() int64 {
	return t.period
}

// SetInterruptHandler installs h as the handler for timer interrupts.
func (t *Timer) SetInterruptHandler(h func()) {
	t.intr.SetHandler(h)
}

// Step returns the number of ticks that pass each time a running thread
// re-enables interrupts.
func (t *Timer) Step() int64 {
	return t.step
}

// Tick advances the clock to the next multiple of the period and raises a
// timer interrupt. It may be called from any goroutine.
func (t *Timer) Tick() {
	for {
		now := t.now.Load()
		next := now + t.period - mod(now, t.period)
		if t.now.CompareAndSwap(now, next) {
			break
		}
	}
	t.intr.Raise()
}

// Advance moves the clock forward by ticks and raises a timer interrupt if it
// passes a multiple of the period.
func (t *Timer) Advance(ticks int64) {
	now := t.now.Add(ticks)
	if (now-ticks)/t.period != now/t.period {
		t.intr.Raise()
	}
}

// Start calls Tick every interval of wall-clock time until ctx is done.
func (t *Timer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// mod returns the non-negative remainder of a divided by b.
func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
