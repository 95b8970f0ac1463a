package prisched

import "github.com/golang/glog"

// MetricsHook defines hooks for monitoring thread lifecycle events. Hooks run
// on the processor with interrupts disabled and must not block or call back
// into operations that switch threads.
type MetricsHook interface {
	OnReady(t *Thread)
	OnRun(t *Thread)
	OnBlock(t *Thread)
	OnFinish(t *Thread)
}

// LogHook is a [MetricsHook] that logs lifecycle events through glog at the
// given verbosity.
type LogHook struct {
	Verbosity glog.Level
}

func (h LogHook) OnReady(t *Thread) {
	glog.V(h.Verbosity).Infof("thread %d ready (priority %s)", t.id, t.priority)
}

func (h LogHook) OnRun(t *Thread) {
	glog.V(h.Verbosity).Infof("thread %d running (priority %s, effective %s)", t.id, t.priority, t.effective)
}

func (h LogHook) OnBlock(t *Thread) {
	if t.inAlarm {
		glog.V(h.Verbosity).Infof("thread %d sleeping on alarm", t.id)
		return
	}
	glog.V(h.Verbosity).Infof("thread %d blocked on queue %d", t.id, t.blockedOn)
}

func (h LogHook) OnFinish(t *Thread) {
	glog.V(h.Verbosity).Infof("thread %d finished", t.id)
}

func (s *Scheduler) onReady(t *Thread) {
	if s.metrics != nil {
		s.metrics.OnReady(t)
	}
}

func (s *Scheduler) onRun(t *Thread) {
	if s.metrics != nil {
		s.metrics.OnRun(t)
	}
}

func (s *Scheduler) onBlock(t *Thread) {
	if s.metrics != nil {
		s.metrics.OnBlock(t)
	}
}

func (s *Scheduler) onFinish(t *Thread) {
	if s.metrics != nil {
		s.metrics.OnFinish(t)
	}
}
