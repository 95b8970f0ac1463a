package prisched

import "github.com/tomasbasham/prisched/machine"

// Options holds configuration options for the [Scheduler].
type Options struct {
	Timer   *machine.Timer
	Metrics MetricsHook
}

// Option is a function that configures [Options].
type Option func(*Options)

// WithTimer sets the timer, and through it the interrupt controller, the
// [Scheduler] runs on. By default a timer with a period of one tick is used.
func WithTimer(t *machine.Timer) Option {
	return func(o *Options) {
		o.Timer = t
	}
}

// WithMetricsHook sets the metrics hook for the [Scheduler].
func WithMetricsHook(hook MetricsHook) Option {
	return func(o *Options) {
		o.Metrics = hook
	}
}

// ThreadOption is a function that configures a [Thread] before it is forked.
type ThreadOption func(*Thread)

// WithPriority sets the base priority of a [Thread]. It panics with
// [ErrInvalidPriority] if p is out of range.
func WithPriority(p Priority) ThreadOption {
	return func(t *Thread) {
		assert(p.IsValid(), ErrInvalidPriority, "%d", int(p))
		t.priority = p
	}
}
