package prisched_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/tomasbasham/prisched"
	"github.com/tomasbasham/prisched/machine"
)

// wakeups records the clock and the running thread each time the watched
// thread becomes ready.
type wakeups struct {
	s     *prisched.Scheduler
	watch *prisched.Thread

	at      []int64
	running []*prisched.Thread
}

func (w *wakeups) OnReady(t *prisched.Thread) {
	if t == w.watch {
		w.at = append(w.at, w.s.Now())
		w.running = append(w.running, w.s.Current())
	}
}

func (w *wakeups) OnRun(*prisched.Thread)    {}
func (w *wakeups) OnBlock(*prisched.Thread)  {}
func (w *wakeups) OnFinish(*prisched.Thread) {}

// last returns the clock at the most recent wakeup.
func (w *wakeups) last() int64 {
	if len(w.at) == 0 {
		return -1
	}
	return w.at[len(w.at)-1]
}

func TestAlarm_WaitUntil(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		period    int64
		ticks     int64
		wantBlock bool
	}{
		"wakes on the deadline": {
			period:    1,
			ticks:     100,
			wantBlock: true,
		},
		"wakes on the first tick after the deadline": {
			period:    10,
			ticks:     15,
			wantBlock: true,
		},
		"zero does not block": {
			period: 1,
			ticks:  0,
		},
		"negative does not block": {
			period: 1,
			ticks:  -5,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			hook := &wakeups{}
			timer := machine.NewTimer(machine.NewInterrupt(), machine.WithPeriod(tt.period))
			s := prisched.New(prisched.WithTimer(timer), prisched.WithMetricsHook(hook))
			hook.s = s

			var deadline int64
			hook.watch = s.Spawn(func() {
				deadline = s.Now() + tt.ticks
				s.Alarm().WaitUntil(tt.ticks)
			})
			run(t, s, nil)

			// The fork happens before the thread is watched, so any wakeup
			// comes from the alarm.
			if blocked := len(hook.at) > 0; blocked != tt.wantBlock {
				t.Fatalf("mismatch:\n  got:  blocked %t\n  want: blocked %t", blocked, tt.wantBlock)
			}
			if !tt.wantBlock {
				return
			}

			want := (deadline + tt.period - 1) / tt.period * tt.period
			if got := hook.last(); got != want {
				t.Errorf("mismatch:\n  got:  %d\n  want: %d", got, want)
			}
		})
	}
}

func TestAlarm_NotReadyBeforeDeadline(t *testing.T) {
	t.Parallel()

	hook := &wakeups{}
	s := prisched.New(prisched.WithMetricsHook(hook))
	hook.s = s

	var deadline int64
	var early bool

	sleeper := s.Spawn(func() {
		s.Alarm().WaitUntil(100)
		deadline = s.Now() + 10
		s.Alarm().WaitUntil(10)
	}, prisched.WithPriority(prisched.PriorityMaximum))
	hook.watch = sleeper

	// Keep the processor busy so the clock runs on execution alone.
	s.Spawn(func() {
		for sleeper.State() != prisched.StateFinished {
			if sleeper.State() == prisched.StateReady && s.Now() < deadline {
				early = true
			}
			s.Yield()
		}
	})

	run(t, s, nil)

	if early {
		t.Error("expected sleeper to stay blocked until its deadline")
	}
	if got := hook.last(); got != deadline {
		t.Errorf("mismatch:\n  got:  %d\n  want: %d", got, deadline)
	}
}

func TestAlarm_BusyProcessor(t *testing.T) {
	t.Parallel()

	hook := &wakeups{}
	s := prisched.New(prisched.WithMetricsHook(hook))
	hook.s = s

	// The spinning thread is always ready, so the processor never idles and
	// only the time spent running can bring the sleeper's deadline.
	var deadline int64
	done := false
	hook.watch = s.Spawn(func() {
		deadline = s.Now() + 5
		s.Alarm().WaitUntil(5)
		done = true
	})
	s.Spawn(func() {
		for !done {
			s.Yield()
		}
	})

	run(t, s, nil)

	if !done {
		t.Error("expected sleeper to wake while another thread spins")
	}
	if got := hook.last(); got != deadline {
		t.Errorf("mismatch:\n  got:  %d\n  want: %d", got, deadline)
	}
}

func TestAlarm_WallClock(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		hook := &wakeups{}

		// Running threads do not move the clock; only the ticker does.
		timer := machine.NewTimer(machine.NewInterrupt(), machine.WithPeriod(10), machine.WithStep(0))
		s := prisched.New(prisched.WithTimer(timer), prisched.WithMetricsHook(hook))
		hook.s = s

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.Start(ctx, 10*time.Millisecond)
		}()

		done := false
		hook.watch = s.Spawn(func() {
			s.Alarm().WaitUntil(25)
			done = true
		}, prisched.WithPriority(prisched.PriorityMaximum))

		var busy *prisched.Thread
		keptProcessor := false
		busy = s.Spawn(func() {
			for !done {
				time.Sleep(time.Millisecond)
				s.Yield()

				// The tick readied the sleeper inside Yield, yet this thread
				// is still the one running.
				if hook.watch.State() == prisched.StateReady && s.Current() == busy {
					keptProcessor = true
				}
			}
		})

		err := s.Run(ctx, nil)
		cancel()
		wg.Wait()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !done {
			t.Error("expected sleeper to wake")
		}
		if got := hook.last(); got != 30 {
			t.Errorf("mismatch:\n  got:  %d\n  want: %d", got, 30)
		}
		if got := hook.running[len(hook.running)-1]; got != busy {
			t.Error("expected the tick to arrive while the busy thread runs")
		}
		if !keptProcessor {
			t.Error("expected the busy thread to keep the processor after the tick")
		}
	})
}

func TestAlarm_Order(t *testing.T) {
	t.Parallel()

	s := prisched.New()

	// Sleepers wake in deadline order, and first and second, which sleep for
	// the same time, in arrival order. The ready queue then orders the woken
	// threads by priority.
	type sleeper struct {
		name     string
		priority prisched.Priority
		ticks    int64
	}
	sleepers := []sleeper{
		{"late", 7, 30},
		{"first", 1, 10},
		{"second", 1, 10},
		{"urgent", 5, 20},
	}

	var got []string
	for _, sl := range sleepers {
		s.Spawn(func() {
			s.Alarm().WaitUntil(sl.ticks)
			got = append(got, sl.name)
		}, prisched.WithPriority(sl.priority))
	}

	var pending int
	s.Spawn(func() {
		pending = s.Alarm().Len()
	}, prisched.WithPriority(prisched.PriorityMinimum))

	run(t, s, nil)

	want := []string{"first", "second", "urgent", "late"}
	if !slices.Equal(got, want) {
		t.Errorf("mismatch:\n  got:  %#v\n  want: %#v", got, want)
	}
	if pending != len(sleepers) {
		t.Errorf("mismatch:\n  got:  %d\n  want: %d", pending, len(sleepers))
	}
}

func TestAlarm_AlreadyWaiting(t *testing.T) {
	t.Parallel()

	s := prisched.New()
	q := s.NewWaitQueue(false)

	err := runErr(t, s, func() {
		q.WaitForAccess(s.Current())
		s.Alarm().WaitUntil(5)
	})
	if !errors.Is(err, prisched.ErrAlreadyWaiting) {
		t.Errorf("mismatch:\n  got:  %v\n  want: %v", err, prisched.ErrAlreadyWaiting)
	}
}
