package machine_test

import (
	"slices"
	"testing"

	"github.com/tomasbasham/prisched/machine"
)

func TestInterrupt_Guard(t *testing.T) {
	t.Parallel()

	intr := machine.NewInterrupt()

	outer := intr.Disable()
	inner := intr.Disable()
	if intr.Enabled() {
		t.Fatal("expected interrupts disabled")
	}

	// Restoring a nested guard must not re-enable interrupts.
	inner.Restore()
	if intr.Enabled() {
		t.Error("expected interrupts to stay disabled after inner restore")
	}

	outer.Restore()
	if !intr.Enabled() {
		t.Error("expected interrupts enabled after outer restore")
	}
}

func TestInterrupt_Service(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raises  int
		nested  bool
		wantRan int
	}{
		"pending interrupts run on restore": {
			raises:  3,
			wantRan: 3,
		},
		"pending interrupts wait for the outermost restore": {
			raises:  2,
			nested:  true,
			wantRan: 2,
		},
		"nothing pending": {
			raises:  0,
			wantRan: 0,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			intr := machine.NewInterrupt()

			ran := 0
			intr.SetHandler(func() {
				if intr.Enabled() {
					t.Error("expected handler to run with interrupts disabled")
				}
				ran++
			})

			g := intr.Disable()
			for range tt.raises {
				intr.Raise()
			}

			if tt.nested {
				inner := intr.Disable()
				inner.Restore()
				if ran != 0 {
					t.Fatalf("expected no handler run inside critical section, got: %d", ran)
				}
			}

			if ran != 0 {
				t.Fatalf("expected no handler run while disabled, got: %d", ran)
			}
			g.Restore()

			if ran != tt.wantRan {
				t.Errorf("mismatch:\n  got:  %d\n  want: %d", ran, tt.wantRan)
			}
			if intr.Pending() != 0 {
				t.Errorf("expected no pending interrupts, got: %d", intr.Pending())
			}
		})
	}
}

func TestInterrupt_Clock(t *testing.T) {
	t.Parallel()

	intr := machine.NewInterrupt()

	var events []string
	intr.SetClock(func() {
		events = append(events, "clock")
		intr.Raise()
	})
	intr.SetHandler(func() {
		events = append(events, "handler")
	})

	outer := intr.Disable()
	inner := intr.Disable()
	inner.Restore()
	if len(events) != 0 {
		t.Fatalf("expected no clock inside critical section, got: %v", events)
	}
	outer.Restore()

	intr.Enable()

	want := []string{"clock", "handler"}
	if !slices.Equal(events, want) {
		t.Errorf("mismatch:\n  got:  %v\n  want: %v", events, want)
	}
}

func TestInterrupt_Notify(t *testing.T) {
	t.Parallel()

	intr := machine.NewInterrupt()
	intr.Raise()
	intr.Raise()

	select {
	case <-intr.Notify():
	default:
		t.Fatal("expected notification after raise")
	}
	if got := intr.Pending(); got != 2 {
		t.Errorf("mismatch:\n  got:  %d\n  want: %d", got, 2)
	}
}

func TestInterrupt_Halt(t *testing.T) {
	t.Parallel()

	intr := machine.NewInterrupt()
	ran := false
	intr.SetHandler(func() { ran = true })

	g := intr.Disable()
	intr.Raise()
	intr.Halt()
	g.Restore()
	intr.Enable()

	if ran {
		t.Error("expected no handler to run after halt")
	}
	if !intr.Halted() {
		t.Error("expected controller to report halted")
	}
}
